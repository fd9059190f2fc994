package memory

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	// ErrOutOfBounds means a guest physical access would cross the end
	// of guest RAM.
	ErrOutOfBounds = errors.New("guest physical access out of bounds")

	// ErrFreed means the mapping was already released.
	ErrFreed = errors.New("guest memory already freed")
)

// GuestMemory owns the one contiguous anonymous mapping that backs all
// guest physical RAM, starting at guest physical address 0. The mapping
// is never moved or resized, so the host address handed to
// KVM_SET_USER_MEMORY_REGION stays valid for the VM's lifetime.
type GuestMemory struct {
	buf []byte
}

// New allocates size bytes of zeroed guest RAM. The mapping is lazily
// populated and advised as mergeable so identical guest pages can be
// deduplicated across VMs.
func New(size int) (*GuestMemory, error) {
	buf, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes of guest memory: %w", size, err)
	}

	if err := unix.Madvise(buf, unix.MADV_MERGEABLE); err != nil {
		_ = unix.Munmap(buf)

		return nil, fmt.Errorf("madvise(MADV_MERGEABLE): %w", err)
	}

	return &GuestMemory{buf: buf}, nil
}

// Size returns the guest RAM size in bytes.
func (g *GuestMemory) Size() int {
	return len(g.buf)
}

// CopyIn copies b into guest physical memory at gpa.
func (g *GuestMemory) CopyIn(gpa uint64, b []byte) error {
	if gpa+uint64(len(b)) > uint64(len(g.buf)) {
		return fmt.Errorf("copy %d bytes to gpa %#x: %w", len(b), gpa, ErrOutOfBounds)
	}

	copy(g.buf[gpa:], b)

	return nil
}

// ReadAt implements io.ReaderAt over guest physical memory.
func (g *GuestMemory) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(g.buf)) {
		return 0, ErrOutOfBounds
	}

	return copy(b, g.buf[off:]), nil
}

// WriteAt implements io.WriterAt over guest physical memory.
func (g *GuestMemory) WriteAt(b []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(b)) > int64(len(g.buf)) {
		return 0, ErrOutOfBounds
	}

	return copy(g.buf[off:], b), nil
}

// HostAddr returns the host virtual address of guest physical 0. It
// exists only to register the memory slot with KVM.
func (g *GuestMemory) HostAddr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&g.buf[0])))
}

// Free releases the mapping. The VM must not run afterwards.
func (g *GuestMemory) Free() error {
	if g.buf == nil {
		return ErrFreed
	}

	err := unix.Munmap(g.buf)
	g.buf = nil

	return err
}
