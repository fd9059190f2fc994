package kvm

import (
	"fmt"
	"unsafe"
)

// APIVersion is the only stable KVM API version. KVM_GET_API_VERSION has
// returned 12 since Linux 2.6.22 and the documentation promises it will
// not change again.
const APIVersion = 12

// ioctl numbers, from linux/kvm.h.
const (
	kvmGetAPIVersion       = 0x00
	kvmCreateVM            = 0x01
	kvmCheckExtension      = 0x03
	kvmGetVCPUMMapSize     = 0x04
	kvmGetSupportedCPUID   = 0x05
	kvmCreateVCPU          = 0x41
	kvmSetUserMemoryRegion = 0x46
	kvmRun                 = 0x80
	kvmGetRegs             = 0x81
	kvmSetRegs             = 0x82
	kvmGetSregs            = 0x83
	kvmSetSregs            = 0x84
	kvmSetCPUID2           = 0x90
	kvmSetGuestDebug       = 0x9b
)

const numInterrupts = 0x100

// GetAPIVersion returns the KVM API version of the running kernel.
func GetAPIVersion(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmGetAPIVersion), 0)
}

// CheckAPIVersion fails unless the kernel speaks the stable API.
func CheckAPIVersion(kvmFd uintptr) error {
	got, err := GetAPIVersion(kvmFd)
	if err != nil {
		return err
	}

	if got != APIVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrAPIVersion, got, APIVersion)
	}

	return nil
}

// CreateVM creates a VM and returns its fd.
func CreateVM(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmCreateVM), 0)
}

// CreateVCPU creates a vCPU with the given id on a VM.
func CreateVCPU(vmFd uintptr, vcpuID int) (uintptr, error) {
	return Ioctl(vmFd, IIO(kvmCreateVCPU), uintptr(vcpuID))
}

// Run runs a vCPU until its next exit. The exit record is written into
// the vCPU's mmap'ed run region.
func Run(vcpuFd uintptr) error {
	_, err := Ioctl(vcpuFd, IIO(kvmRun), 0)

	return err
}

// GetVCPUMMapSize returns the size of the shared vCPU run region.
func GetVCPUMMapSize(kvmFd uintptr) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmGetVCPUMMapSize), 0)
}

// RunData is the fixed prefix of the mmap'ed kvm_run structure. Exit
// payloads live in the union starting at Data.
type RunData struct {
	RequestInterruptWindow     uint8
	_                          [7]uint8
	ExitReason                 uint32
	ReadyForInterruptInjection uint8
	IfFlag                     uint8
	_                          [2]uint8
	CR8                        uint64
	ApicBase                   uint64
	Data                       [32]uint64
}

// IO decodes the port-I/O exit record: direction, access size in bytes,
// port number, repetition count, and the payload's byte offset into the
// run region.
func (r *RunData) IO() (uint64, uint64, uint64, uint64, uint64) {
	direction := r.Data[0] & 0xFF
	size := (r.Data[0] >> 8) & 0xFF
	port := (r.Data[0] >> 16) & 0xFFFF
	count := (r.Data[0] >> 32) & 0xFFFFFFFF
	offset := r.Data[1]

	return direction, size, port, count, offset
}

// GuestDebug is the argument of KVM_SET_GUEST_DEBUG.
type GuestDebug struct {
	Control uint32
	_       uint32
	Regs    [8]uint64
}

const (
	guestDebugEnable     = 1 << 0
	guestDebugSingleStep = 1 << 1
)

// SingleStep turns single-step debug exits on or off for a vCPU.
func SingleStep(vcpuFd uintptr, onoff bool) error {
	debug := GuestDebug{}
	if onoff {
		debug.Control = guestDebugEnable | guestDebugSingleStep
	}

	_, err := Ioctl(vcpuFd,
		IIOW(kvmSetGuestDebug, unsafe.Sizeof(GuestDebug{})),
		uintptr(unsafe.Pointer(&debug)))

	return err
}
