package bootabi_test

import (
	"testing"

	"github.com/nanvix/microvm/bootabi"
)

func TestPackInitrd(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		mmap bootabi.MemoryMap
		want uint32
	}{
		{
			name: "no initrd",
			mmap: bootabi.MemoryMap{KernelBase: 0x100000, KernelSize: 0x100000},
			want: 0,
		},
		{
			name: "two pages at the fixed base",
			mmap: bootabi.MemoryMap{InitrdBase: 0x00800000, InitrdSize: 8192},
			want: 0x00800002,
		},
		{
			name: "one page",
			mmap: bootabi.MemoryMap{InitrdBase: 0x00800000, InitrdSize: 4096},
			want: 0x00800001,
		},
		{
			name: "size field is pages modulo 4096",
			mmap: bootabi.MemoryMap{InitrdBase: 0x00800000, InitrdSize: 0xFFF * 4096},
			want: 0x00800FFF,
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := bootabi.PackInitrd(&tt.mmap); got != tt.want {
				t.Errorf("PackInitrd(%+v) = %#x, want %#x", tt.mmap, got, tt.want)
			}
		})
	}
}

func TestPackInitrdRoundTrip(t *testing.T) {
	t.Parallel()

	m := bootabi.MemoryMap{InitrdBase: bootabi.InitrdBase, InitrdSize: 5 * bootabi.PageSize}
	ebx := bootabi.PackInitrd(&m)

	if base := uint64(ebx & 0xFFFFF000); base != m.InitrdBase {
		t.Errorf("base bits = %#x, want %#x", base, m.InitrdBase)
	}

	if pages := uint64(ebx & 0xFFF); pages != m.InitrdSize/bootabi.PageSize {
		t.Errorf("page bits = %d, want %d", pages, m.InitrdSize/bootabi.PageSize)
	}
}

func TestPageAlign(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 4096},
		{4095, 4096},
		{4096, 4096},
		{4097, 8192},
		{5000, 8192},
	} {
		if got := bootabi.PageAlign(tt.in); got != tt.want {
			t.Errorf("PageAlign(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
