package loader_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nanvix/microvm/bootabi"
	"github.com/nanvix/microvm/loader"
)

func TestLoadInitrd(t *testing.T) {
	t.Parallel()

	mem := newMem(t, 16<<20)
	mmap := bootabi.MemoryMap{KernelBase: 0x100000, KernelSize: 0x100000}

	blob := bytes.Repeat([]byte{0x5A}, 5000)
	if err := loader.LoadInitrd(mem, bytes.NewReader(blob), int64(len(blob)), &mmap); err != nil {
		t.Fatal(err)
	}

	if mmap.InitrdBase != bootabi.InitrdBase {
		t.Errorf("InitrdBase = %#x, want %#x", mmap.InitrdBase, uint64(bootabi.InitrdBase))
	}

	// 5000 bytes round up to two pages.
	if mmap.InitrdSize != 8192 {
		t.Errorf("InitrdSize = %d, want 8192", mmap.InitrdSize)
	}

	got := make([]byte, len(blob))
	if _, err := mem.ReadAt(got, bootabi.InitrdBase); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, blob) {
		t.Error("initrd bytes do not match the source")
	}

	// The descriptor the guest receives in EBX.
	if ebx := bootabi.PackInitrd(&mmap); ebx != 0x00800002 {
		t.Errorf("packed descriptor = %#x, want 0x00800002", ebx)
	}
}

func TestLoadInitrdOverlapsKernel(t *testing.T) {
	t.Parallel()

	mem := newMem(t, 16<<20)

	// Kernel spans [0x700000, 0x900000): the initrd base falls inside.
	mmap := bootabi.MemoryMap{KernelBase: 0x700000, KernelSize: 0x200000}

	err := loader.LoadInitrd(mem, bytes.NewReader([]byte{1}), 1, &mmap)
	if !errors.Is(err, loader.ErrInitrdOverlapsKernel) {
		t.Errorf("err = %v, want %v", err, loader.ErrInitrdOverlapsKernel)
	}

	if mmap.InitrdBase != 0 || mmap.InitrdSize != 0 {
		t.Error("failed load must not record an initrd")
	}
}

func TestLoadInitrdDoesNotFit(t *testing.T) {
	t.Parallel()

	mem := newMem(t, 16<<20)
	mmap := bootabi.MemoryMap{KernelBase: 0x100000, KernelSize: 0x1000}

	// 16 MiB of RAM minus the 8 MiB initrd base leaves 8 MiB.
	size := int64(9 << 20)

	err := loader.LoadInitrd(mem, bytes.NewReader(make([]byte, size)), size, &mmap)
	if !errors.Is(err, loader.ErrInitrdDoesNotFit) {
		t.Errorf("err = %v, want %v", err, loader.ErrInitrdDoesNotFit)
	}
}

func TestLoadInitrdKernelAboveWindow(t *testing.T) {
	t.Parallel()

	mem := newMem(t, 16<<20)

	// A kernel linked above the initrd window does not collide.
	mmap := bootabi.MemoryMap{KernelBase: 0xA00000, KernelSize: 0x100000}

	if err := loader.LoadInitrd(mem, bytes.NewReader([]byte{1}), 1, &mmap); err != nil {
		t.Fatal(err)
	}

	if mmap.InitrdSize != bootabi.PageSize {
		t.Errorf("InitrdSize = %d, want one page", mmap.InitrdSize)
	}
}
