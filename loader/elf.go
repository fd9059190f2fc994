// Package loader places guest images into guest physical memory.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/nanvix/microvm/bootabi"
	"github.com/nanvix/microvm/memory"
)

var (
	ErrBadMagic         = errors.New("not an ELF file")
	ErrWrongClass       = errors.New("not a 32-bit ELF file")
	ErrWrongEndian      = errors.New("not a little-endian ELF file")
	ErrBadIdentVersion  = errors.New("invalid ELF identification version")
	ErrNotExecutable    = errors.New("not an executable ELF file")
	ErrWrongMachine     = errors.New("not an x86 ELF file")
	ErrBadHeaderVersion = errors.New("invalid ELF header version")

	// ErrSegmentOutOfBounds means a PT_LOAD segment does not fit in
	// guest memory. It is wrapped with the segment index.
	ErrSegmentOutOfBounds = errors.New("segment out of memory bounds")
)

// LoadELF32 validates a 32-bit little-endian x86 executable ELF, copies
// every PT_LOAD segment into guest memory at its virtual address
// (treated as guest physical), and returns the entry point. KernelBase
// and KernelSize of mmap are set to the [low, high) span of the loaded
// segments; both stay zero when the image has no loadable segment.
//
// Bytes between a segment's file size and its memory size are left as
// the zero-initialized RAM they already are.
func LoadELF32(mem *memory.GuestMemory, f io.ReaderAt, mmap *bootabi.MemoryMap) (uint32, error) {
	var ident [elf.EI_NIDENT]byte
	if _, err := f.ReadAt(ident[:], 0); err != nil {
		return 0, fmt.Errorf("read ELF identification: %w", err)
	}

	if ident[0] != elf.ELFMAG[0] || ident[1] != elf.ELFMAG[1] ||
		ident[2] != elf.ELFMAG[2] || ident[3] != elf.ELFMAG[3] {
		return 0, ErrBadMagic
	}

	if elf.Class(ident[elf.EI_CLASS]) != elf.ELFCLASS32 {
		return 0, ErrWrongClass
	}

	if elf.Data(ident[elf.EI_DATA]) != elf.ELFDATA2LSB {
		return 0, ErrWrongEndian
	}

	if elf.Version(ident[elf.EI_VERSION]) != elf.EV_CURRENT {
		return 0, ErrBadIdentVersion
	}

	k, err := elf.NewFile(f)
	if err != nil {
		return 0, fmt.Errorf("parse ELF: %w", err)
	}
	defer k.Close()

	if k.Type != elf.ET_EXEC {
		return 0, ErrNotExecutable
	}

	if k.Machine != elf.EM_386 {
		return 0, ErrWrongMachine
	}

	if k.Version != elf.EV_CURRENT {
		return 0, ErrBadHeaderVersion
	}

	var (
		low    = uint64(^uint64(0))
		high   = uint64(0)
		loaded = false
	)

	for i, p := range k.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}

		if p.Vaddr+p.Memsz > uint64(mem.Size()) {
			return 0, fmt.Errorf("segment %d @%#x+%#x: %w", i, p.Vaddr, p.Memsz, ErrSegmentOutOfBounds)
		}

		b := make([]byte, p.Filesz)
		if _, err := io.ReadFull(p.Open(), b); err != nil {
			return 0, fmt.Errorf("read segment %d: %w", i, err)
		}

		if err := mem.CopyIn(p.Vaddr, b); err != nil {
			return 0, fmt.Errorf("segment %d: %w", i, err)
		}

		loaded = true
		low = min(low, p.Vaddr)
		high = max(high, p.Vaddr+p.Memsz)
	}

	if loaded {
		mmap.KernelBase = low
		mmap.KernelSize = high - low
	} else {
		mmap.KernelBase, mmap.KernelSize = 0, 0
	}

	return uint32(k.Entry), nil
}
