package kvm

import "unsafe"

const (
	// CPUIDSignature is the hypervisor identification leaf.
	CPUIDSignature = 0x40000000
	// CPUIDFeatures is the KVM feature-bits leaf.
	CPUIDFeatures = 0x40000001
)

// CPUID is the argument of KVM_GET_SUPPORTED_CPUID and KVM_SET_CPUID2.
type CPUID struct {
	Nent    uint32
	Padding uint32
	Entries [100]CPUIDEntry2
}

// CPUIDEntry2 is one CPUID function/index pair.
type CPUIDEntry2 struct {
	Function uint32
	Index    uint32
	Flags    uint32
	Eax      uint32
	Ebx      uint32
	Ecx      uint32
	Edx      uint32
	Padding  [3]uint32
}

// GetSupportedCPUID fills kvmCPUID with the host-supported entries.
func GetSupportedCPUID(kvmFd uintptr, kvmCPUID *CPUID) error {
	_, err := Ioctl(kvmFd,
		IIOWR(kvmGetSupportedCPUID, 8),
		uintptr(unsafe.Pointer(kvmCPUID)))

	return err
}

// SetCPUID2 programs the CPUID responses of a vCPU.
func SetCPUID2(vcpuFd uintptr, kvmCPUID *CPUID) error {
	_, err := Ioctl(vcpuFd,
		IIOW(kvmSetCPUID2, 8),
		uintptr(unsafe.Pointer(kvmCPUID)))

	return err
}
