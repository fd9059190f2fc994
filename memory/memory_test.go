package memory_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nanvix/microvm/memory"
)

func TestNewIsZeroed(t *testing.T) {
	t.Parallel()

	g, err := memory.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Free()

	b := make([]byte, 4096)
	if _, err := g.ReadAt(b, 1<<19); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(b, make([]byte, 4096)) {
		t.Error("fresh guest memory is not zeroed")
	}
}

func TestCopyIn(t *testing.T) {
	t.Parallel()

	g, err := memory.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Free()

	want := []byte("guest bytes")
	if err := g.CopyIn(0x1000, want); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, len(want))
	if _, err := g.ReadAt(got, 0x1000); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, want) {
		t.Errorf("read back %q, want %q", got, want)
	}
}

func TestCopyInBounds(t *testing.T) {
	t.Parallel()

	g, err := memory.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Free()

	for _, tt := range []struct {
		name string
		gpa  uint64
		n    int
		err  error
	}{
		{name: "inside", gpa: 0, n: 16, err: nil},
		{name: "exactly at the end", gpa: 1<<20 - 16, n: 16, err: nil},
		{name: "one past the end", gpa: 1<<20 - 15, n: 16, err: memory.ErrOutOfBounds},
		{name: "far past the end", gpa: 1 << 30, n: 1, err: memory.ErrOutOfBounds},
	} {
		if err := g.CopyIn(tt.gpa, make([]byte, tt.n)); !errors.Is(err, tt.err) {
			t.Errorf("%s: CopyIn(%#x, %d) = %v, want %v", tt.name, tt.gpa, tt.n, err, tt.err)
		}
	}
}

func TestHostAddrStable(t *testing.T) {
	t.Parallel()

	g, err := memory.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Free()

	a := g.HostAddr()
	if a == 0 {
		t.Fatal("HostAddr returned 0")
	}

	if err := g.CopyIn(0, make([]byte, 4096)); err != nil {
		t.Fatal(err)
	}

	if g.HostAddr() != a {
		t.Error("backing address moved")
	}
}

func TestFreeTwice(t *testing.T) {
	t.Parallel()

	g, err := memory.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Free(); err != nil {
		t.Fatal(err)
	}

	if err := g.Free(); !errors.Is(err, memory.ErrFreed) {
		t.Errorf("second Free = %v, want %v", err, memory.ErrFreed)
	}
}
