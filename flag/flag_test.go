package flag_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/nanvix/microvm/flag"
)

func TestParseSize(t *testing.T) { // nolint:paralleltest
	for _, tt := range []struct {
		name string
		m    string
		amt  int
		err  error
	}{
		{name: "1G", m: "1G", amt: 1 << 30, err: nil},
		{name: "1g", m: "1g", amt: 1 << 30, err: nil},
		{name: "1M", m: "1M", amt: 1 << 20, err: nil},
		{name: "1m", m: "1m", amt: 1 << 20, err: nil},
		{name: "1K", m: "1K", amt: 1 << 10, err: nil},
		{name: "1k", m: "1k", amt: 1 << 10, err: nil},
		{name: "128M", m: "128M", amt: 128 << 20, err: nil},
		{name: "missing suffix", m: "128", amt: -1, err: strconv.ErrSyntax},
		{name: "unknown suffix", m: "1T", amt: -1, err: strconv.ErrSyntax},
		{name: "doubled suffix", m: "1MM", amt: -1, err: strconv.ErrSyntax},
		{name: "suffix only", m: "M", amt: -1, err: strconv.ErrSyntax},
		{name: "empty", m: "", amt: -1, err: strconv.ErrSyntax},
		{name: "bogus garbage", m: "123411;3413234134m", amt: -1, err: strconv.ErrSyntax},
		{name: "too big", m: "0xffffffffffffffffffffM", amt: -1, err: strconv.ErrRange},
	} {
		amt, err := flag.ParseSize(tt.m)
		if !errors.Is(err, tt.err) || amt != tt.amt {
			t.Errorf("%s: ParseSize(%q) = (%d, %v), want (%d, %v)", tt.name, tt.m, amt, err, tt.amt, tt.err)
		}
	}
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	c, err := flag.ParseArgs([]string{
		"microvm",
		"-kernel", "kernel.elf",
		"-initrd", "initrd.img",
		"-memory", "64M",
		"-protected",
		"-stdout", "out.txt",
		"-stdin", "in.txt",
	})
	if err != nil {
		t.Fatal(err)
	}

	if c.Kernel != "kernel.elf" || c.Initrd != "initrd.img" {
		t.Errorf("image paths = (%q, %q)", c.Kernel, c.Initrd)
	}

	if c.MemSize != 64<<20 {
		t.Errorf("MemSize = %d, want %d", c.MemSize, 64<<20)
	}

	if !c.Protected {
		t.Error("Protected = false, want true")
	}

	if c.Stdout != "out.txt" || c.Stdin != "in.txt" {
		t.Errorf("console redirects = (%q, %q)", c.Stdout, c.Stdin)
	}

	if c.Dev != "/dev/kvm" {
		t.Errorf("Dev = %q, want /dev/kvm", c.Dev)
	}
}

func TestParseArgsDefaults(t *testing.T) {
	t.Parallel()

	c, err := flag.ParseArgs([]string{"microvm", "-kernel", "kernel.elf"})
	if err != nil {
		t.Fatal(err)
	}

	if c.MemSize != 128<<20 {
		t.Errorf("default MemSize = %d, want %d", c.MemSize, 128<<20)
	}

	if c.Protected {
		t.Error("default mode should be real mode")
	}
}

func TestParseArgsIgnoresUnknown(t *testing.T) {
	t.Parallel()

	c, err := flag.ParseArgs([]string{
		"microvm", "-frobnicate", "-kernel", "kernel.elf", "--verbose", "extra",
	})
	if err != nil {
		t.Fatal(err)
	}

	if c.Kernel != "kernel.elf" {
		t.Errorf("Kernel = %q, want kernel.elf", c.Kernel)
	}
}

func TestParseArgsNoKernel(t *testing.T) {
	t.Parallel()

	if _, err := flag.ParseArgs([]string{"microvm"}); !errors.Is(err, flag.ErrNoKernel) {
		t.Errorf("err = %v, want %v", err, flag.ErrNoKernel)
	}

	// The capability probe does not need a kernel.
	if _, err := flag.ParseArgs([]string{"microvm", "-probe"}); err != nil {
		t.Errorf("probe without kernel: %v", err)
	}
}

func TestParseArgsBadMemorySuffix(t *testing.T) {
	t.Parallel()

	if _, err := flag.ParseArgs([]string{"microvm", "-kernel", "k", "-memory", "128"}); err == nil {
		t.Error("suffixless -memory must fail")
	}
}
