package machine

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nanvix/microvm/bootabi"
	"github.com/nanvix/microvm/device"
	"github.com/nanvix/microvm/iodev"
	"github.com/nanvix/microvm/kvm"
	"github.com/nanvix/microvm/loader"
	"github.com/nanvix/microvm/memory"
)

// ErrMemTooSmall indicates the requested memory size is too small.
var ErrMemTooSmall = errors.New("mem request must be at least 1<<20")

// ErrRunDataOutOfBounds means an exit record pointed its payload
// outside the vCPU run region.
var ErrRunDataOutOfBounds = errors.New("exit payload outside run region")

// Machine is one VM: one KVM handle, one memory slot, one vCPU.
type Machine struct {
	devKVM         *os.File
	kvmFd, vmFd    uintptr
	vcpuFd         uintptr
	mem            *memory.GuestMemory
	run            *kvm.RunData
	runBuf         []byte
	mmap           bootabi.MemoryMap
	ioportHandlers [0x10000][2]func(port uint64, bytes []byte) error
	trace          bool
	decodeMode     int
}

// New opens the KVM device, verifies the API version, creates a VM with
// a single memory slot covering [0, memSize) at guest physical 0, and
// creates its one vCPU with the run region mapped.
func New(kvmPath string, memSize int) (*Machine, error) {
	if memSize < MinMemSize {
		return nil, fmt.Errorf("memory size %d: %w", memSize, ErrMemTooSmall)
	}

	m := &Machine{decodeMode: 16}

	devKVM, err := os.OpenFile(kvmPath, os.O_RDWR, 0o644)
	if err != nil {
		return m, err
	}

	m.devKVM = devKVM
	m.kvmFd = devKVM.Fd()

	if err := kvm.CheckAPIVersion(m.kvmFd); err != nil {
		return m, err
	}

	if m.vmFd, err = kvm.CreateVM(m.kvmFd); err != nil {
		return m, fmt.Errorf("CreateVM: %w", err)
	}

	if m.mem, err = memory.New(memSize); err != nil {
		return m, err
	}

	err = kvm.SetUserMemoryRegion(m.vmFd, &kvm.UserspaceMemoryRegion{
		Slot: 0, Flags: 0, GuestPhysAddr: 0, MemorySize: uint64(memSize),
		UserspaceAddr: m.mem.HostAddr(),
	})
	if err != nil {
		return m, fmt.Errorf("SetUserMemoryRegion: %w", err)
	}

	if m.vcpuFd, err = kvm.CreateVCPU(m.vmFd, 0); err != nil {
		return m, fmt.Errorf("CreateVCPU: %w", err)
	}

	if err := m.initCPUID(); err != nil {
		return m, err
	}

	mmapSize, err := kvm.GetVCPUMMapSize(m.kvmFd)
	if err != nil {
		return m, err
	}

	if m.runBuf, err = unix.Mmap(int(m.vcpuFd), 0, int(mmapSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED); err != nil {
		return m, fmt.Errorf("mmap vcpu run region: %w", err)
	}

	m.run = (*kvm.RunData)(unsafe.Pointer(&m.runBuf[0]))

	m.initIOPortHandlers()

	return m, nil
}

// MemoryMap reports where the loaders put the kernel and the initrd.
func (m *Machine) MemoryMap() bootabi.MemoryMap {
	return m.mmap
}

// LoadKernel loads a 32-bit ELF kernel into guest memory and returns
// its entry point.
func (m *Machine) LoadKernel(kernel io.ReaderAt) (uint32, error) {
	entry, err := loader.LoadELF32(m.mem, kernel, &m.mmap)
	if err != nil {
		return 0, err
	}

	log.Printf("kernel loaded (base=%#x, size=%d, entry=%#x)",
		m.mmap.KernelBase, m.mmap.KernelSize, entry)

	return entry, nil
}

// LoadInitrd places an initrd blob at the fixed guest physical base.
// The kernel must be loaded first.
func (m *Machine) LoadInitrd(initrd io.ReaderAt, size int64) error {
	if err := loader.LoadInitrd(m.mem, initrd, size, &m.mmap); err != nil {
		return err
	}

	log.Printf("initrd loaded (base=%#x, size=%d)", m.mmap.InitrdBase, size)

	return nil
}

// SetupRegs programs the vCPU for its first instruction: segment state
// for real mode or flat 32-bit protected mode, a zeroed general purpose
// register file, the boot cookie in RAX and the packed initrd
// descriptor in RBX.
func (m *Machine) SetupRegs(entry uint32, protected bool) error {
	sregs, err := kvm.GetSregs(m.vcpuFd)
	if err != nil {
		return err
	}

	if protected {
		seg := kvm.Segment{
			Base:     0,
			Limit:    0xffffffff,
			Selector: selCode,
			Typ:      segTypeCode,
			Present:  1,
			DPL:      0,
			DB:       1,
			S:        1,
			L:        0,
			G:        1,
		}

		sregs.CS = seg

		seg.Typ = segTypeData
		seg.Selector = selData
		sregs.DS, sregs.ES, sregs.FS, sregs.GS, sregs.SS = seg, seg, seg, seg, seg

		sregs.CR0 |= CR0xPE
		m.decodeMode = 32
	} else {
		// KVM initializes a fresh vCPU with real-mode-usable segment
		// state; only the code segment needs pinning to 0000:0000.
		sregs.CS.Selector = 0
		sregs.CS.Base = 0
		m.decodeMode = 16
	}

	if err := kvm.SetSregs(m.vcpuFd, sregs); err != nil {
		return err
	}

	regs := &kvm.Regs{
		RFLAGS: 2,
		RIP:    uint64(entry),
		RAX:    bootabi.BootCookie,
		RBX:    uint64(bootabi.PackInitrd(&m.mmap)),
	}

	return kvm.SetRegs(m.vcpuFd, regs)
}

// AddDevice routes the device's port window to it.
func (m *Machine) AddDevice(d device.IODevice) {
	m.registerIOPortHandler(d.IOPort(), d.IOPort()+d.Size(), d.Read, d.Write)
}

// SingleStep enables or disables single stepping the guest.
func (m *Machine) SingleStep(onoff bool) error {
	if err := kvm.SingleStep(m.vcpuFd, onoff); err != nil {
		return fmt.Errorf("single step: %w", err)
	}

	m.trace = onoff

	return nil
}

// GetRegs gets the vCPU's general purpose registers.
func (m *Machine) GetRegs() (*kvm.Regs, error) {
	return kvm.GetRegs(m.vcpuFd)
}

// GetSregs gets the vCPU's segment and control registers.
func (m *Machine) GetSregs() (*kvm.Sregs, error) {
	return kvm.GetSregs(m.vcpuFd)
}

// RunInfiniteLoop drives the vCPU until the guest powers off or a
// fatal exit occurs. A guest shutdown returns nil.
func (m *Machine) RunInfiniteLoop() error {
	// vcpu ioctls must be issued from the thread that created the
	// vcpu, or every switch costs a performance penalty.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		isContinue, err := m.RunOnce()
		if isContinue {
			continue
		}

		if errors.Is(err, device.ErrShutdown) {
			return nil
		}

		return err
	}
}

// RunOnce runs the guest vCPU until it exits, then services the exit.
func (m *Machine) RunOnce() (bool, error) {
	if err := kvm.Run(m.vcpuFd); err != nil {
		return false, fmt.Errorf("KVM_RUN: %w", err)
	}

	exit := kvm.ExitType(m.run.ExitReason)

	switch exit {
	case kvm.EXITHLT:
		return true, nil

	case kvm.EXITIO:
		direction, size, port, count, offset := m.run.IO()

		bytes, err := m.payload(offset, size)
		if err != nil {
			return false, err
		}

		f := m.ioportHandlers[port][direction]

		for i := uint64(0); i < count; i++ {
			if err := f(port, bytes); err != nil {
				return false, err
			}
		}

		return true, nil

	case kvm.EXITINTR:
		// A signal delivered to the vCPU thread. Nothing to service.
		return true, nil

	case kvm.EXITDEBUG:
		if m.trace {
			if _, _, asm, err := m.Inst(); err == nil {
				log.Printf("trace: %s", asm)
			}

			return true, nil
		}

		return false, kvm.ErrDebug

	default:
		return false, fmt.Errorf("%w: %s%s", kvm.ErrUnexpectedExitReason, exit.String(), m.exitContext())
	}
}

// payload returns the exit payload slice, bounds-checked against the
// run region the host handed us.
func (m *Machine) payload(offset, size uint64) ([]byte, error) {
	if offset+size > uint64(len(m.runBuf)) {
		return nil, fmt.Errorf("payload at %#x+%d: %w", offset, size, ErrRunDataOutOfBounds)
	}

	return m.runBuf[offset : offset+size], nil
}

func (m *Machine) registerIOPortHandler(
	start, end uint64,
	inHandler, outHandler func(port uint64, bytes []byte) error,
) {
	for i := start; i < end; i++ {
		m.ioportHandlers[i][kvm.EXITIOIN] = inHandler
		m.ioportHandlers[i][kvm.EXITIOOUT] = outHandler
	}
}

func (m *Machine) initIOPortHandlers() {
	// Unrecognized ports have no effect: the guest may probe legacy
	// hardware freely.
	noop := &iodev.NoopDevice{Port: 0, Psize: 0x10000}

	m.registerIOPortHandler(0, 0x10000, noop.Read, noop.Write)
}

func (m *Machine) initCPUID() error {
	cpuid := kvm.CPUID{}
	cpuid.Nent = 100

	if err := kvm.GetSupportedCPUID(m.kvmFd, &cpuid); err != nil {
		return err
	}

	// https://www.kernel.org/doc/html/latest/virt/kvm/cpuid.html
	for i := 0; i < int(cpuid.Nent); i++ {
		if cpuid.Entries[i].Function != kvm.CPUIDSignature {
			continue
		}

		cpuid.Entries[i].Eax = kvm.CPUIDFeatures
		cpuid.Entries[i].Ebx = 0x4b4d564b // KVMK
		cpuid.Entries[i].Ecx = 0x564b4d56 // VMKV
		cpuid.Entries[i].Edx = 0x4d       // M
	}

	return kvm.SetCPUID2(m.vcpuFd, &cpuid)
}

// Free releases guest memory and the KVM device.
func (m *Machine) Free() error {
	if m.runBuf != nil {
		if err := unix.Munmap(m.runBuf); err != nil {
			return err
		}

		m.runBuf, m.run = nil, nil
	}

	if m.mem != nil {
		if err := m.mem.Free(); err != nil {
			return err
		}

		m.mem = nil
	}

	if m.devKVM != nil {
		if err := m.devKVM.Close(); err != nil {
			return err
		}

		m.devKVM = nil
	}

	return nil
}
