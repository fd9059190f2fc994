package kvm

import "fmt"

// Capability is a KVM extension number, from linux/kvm.h.
type Capability uint

const (
	CapIRQChip         Capability = 0
	CapHLT             Capability = 1
	CapUserMemory      Capability = 3
	CapSetTSSAddr      Capability = 4
	CapVAPIC           Capability = 6
	CapEXTCPUID        Capability = 7
	CapNRVCPUS         Capability = 9
	CapNRMemSlots      Capability = 10
	CapMPState         Capability = 14
	CapCoalescedMMIO   Capability = 15
	CapSyncMMU         Capability = 16
	CapIOMMU           Capability = 18
	CapUserNMI         Capability = 22
	CapSetGuestDebug   Capability = 23
	CapIRQRouting      Capability = 25
	CapIRQFD           Capability = 32
	CapPIT2            Capability = 33
	CapSetBootCPUID    Capability = 34
	CapIOEventFD       Capability = 36
	CapAdjustClock     Capability = 39
	CapVCPUEvents      Capability = 41
	CapINTRShadow      Capability = 49
	CapDebugRegs       Capability = 50
	CapEnableCap       Capability = 54
	CapXSave           Capability = 55
	CapXCRS            Capability = 56
	CapTSCControl      Capability = 60
	CapONEREG          Capability = 70
	CapKVMClockCtrl    Capability = 76
	CapSignalMSI       Capability = 77
	CapDeviceCtrl      Capability = 89
	CapX86SMM          Capability = 117
	CapX86DisableExits Capability = 143
	CapNestedState     Capability = 157
	CapCoalescedPIO    Capability = 162
	CapSREGS2          Capability = 200
	CapBinaryStatsFD   Capability = 203
	CapXSave2          Capability = 208
)

var capabilityNames = map[Capability]string{
	CapIRQChip:         "CapIRQChip",
	CapHLT:             "CapHLT",
	CapUserMemory:      "CapUserMemory",
	CapSetTSSAddr:      "CapSetTSSAddr",
	CapVAPIC:           "CapVAPIC",
	CapEXTCPUID:        "CapEXTCPUID",
	CapNRVCPUS:         "CapNRVCPUS",
	CapNRMemSlots:      "CapNRMemSlots",
	CapMPState:         "CapMPState",
	CapCoalescedMMIO:   "CapCoalescedMMIO",
	CapSyncMMU:         "CapSyncMMU",
	CapIOMMU:           "CapIOMMU",
	CapUserNMI:         "CapUserNMI",
	CapSetGuestDebug:   "CapSetGuestDebug",
	CapIRQRouting:      "CapIRQRouting",
	CapIRQFD:           "CapIRQFD",
	CapPIT2:            "CapPIT2",
	CapSetBootCPUID:    "CapSetBootCPUID",
	CapIOEventFD:       "CapIOEventFD",
	CapAdjustClock:     "CapAdjustClock",
	CapVCPUEvents:      "CapVCPUEvents",
	CapINTRShadow:      "CapINTRShadow",
	CapDebugRegs:       "CapDebugRegs",
	CapEnableCap:       "CapEnableCap",
	CapXSave:           "CapXSave",
	CapXCRS:            "CapXCRS",
	CapTSCControl:      "CapTSCControl",
	CapONEREG:          "CapONEREG",
	CapKVMClockCtrl:    "CapKVMClockCtrl",
	CapSignalMSI:       "CapSignalMSI",
	CapDeviceCtrl:      "CapDeviceCtrl",
	CapX86SMM:          "CapX86SMM",
	CapX86DisableExits: "CapX86DisableExits",
	CapNestedState:     "CapNestedState",
	CapCoalescedPIO:    "CapCoalescedPIO",
	CapSREGS2:          "CapSREGS2",
	CapBinaryStatsFD:   "CapBinaryStatsFD",
	CapXSave2:          "CapXSave2",
}

func (c Capability) String() string {
	if s, ok := capabilityNames[c]; ok {
		return s
	}

	return fmt.Sprintf("Capability(%d)", uint(c))
}

// CheckExtension queries a capability. A zero return means the
// capability is absent; positive values are capability-specific.
func CheckExtension(kvmFd uintptr, c Capability) (uintptr, error) {
	return Ioctl(kvmFd, IIO(kvmCheckExtension), uintptr(c))
}
