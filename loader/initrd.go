package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/nanvix/microvm/bootabi"
	"github.com/nanvix/microvm/memory"
)

var (
	ErrInitrdOverlapsKernel = errors.New("initrd overlaps with the kernel")
	ErrInitrdDoesNotFit     = errors.New("initrd does not fit in guest memory")
)

// LoadInitrd places size bytes from f at the fixed initrd base and
// records the placement in mmap. The kernel span must already be
// recorded. The overlap check tests the initrd base against the kernel
// span only: a kernel that starts above the initrd base but inside the
// initrd window is not detected.
func LoadInitrd(mem *memory.GuestMemory, f io.ReaderAt, size int64, mmap *bootabi.MemoryMap) error {
	if bootabi.InitrdBase >= mmap.KernelBase &&
		bootabi.InitrdBase < mmap.KernelBase+mmap.KernelSize {
		return ErrInitrdOverlapsKernel
	}

	if bootabi.InitrdBase+uint64(size) > uint64(mem.Size()) {
		return fmt.Errorf("%d bytes at %#x: %w", size, bootabi.InitrdBase, ErrInitrdDoesNotFit)
	}

	b := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), b); err != nil {
		return fmt.Errorf("read initrd: %w", err)
	}

	if err := mem.CopyIn(bootabi.InitrdBase, b); err != nil {
		return fmt.Errorf("initrd: %w", err)
	}

	mmap.InitrdBase = bootabi.InitrdBase
	mmap.InitrdSize = bootabi.PageAlign(uint64(size))

	return nil
}
