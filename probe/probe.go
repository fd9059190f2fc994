// Package probe reports what the host KVM facility supports.
package probe

import (
	"fmt"
	"os"

	"github.com/nanvix/microvm/kvm"
)

var x86Caps = []kvm.Capability{
	kvm.CapIRQChip,
	kvm.CapHLT,
	kvm.CapUserMemory,
	kvm.CapSetTSSAddr,
	kvm.CapVAPIC,
	kvm.CapEXTCPUID,
	kvm.CapNRVCPUS,
	kvm.CapNRMemSlots,
	kvm.CapMPState,
	kvm.CapCoalescedMMIO,
	kvm.CapSyncMMU,
	kvm.CapIOMMU,
	kvm.CapUserNMI,
	kvm.CapSetGuestDebug,
	kvm.CapIRQRouting,
	kvm.CapIRQFD,
	kvm.CapPIT2,
	kvm.CapSetBootCPUID,
	kvm.CapIOEventFD,
	kvm.CapAdjustClock,
	kvm.CapVCPUEvents,
	kvm.CapINTRShadow,
	kvm.CapDebugRegs,
	kvm.CapEnableCap,
	kvm.CapXSave,
	kvm.CapXCRS,
	kvm.CapTSCControl,
	kvm.CapONEREG,
	kvm.CapKVMClockCtrl,
	kvm.CapSignalMSI,
	kvm.CapDeviceCtrl,
	kvm.CapX86SMM,
	kvm.CapX86DisableExits,
	kvm.CapNestedState,
	kvm.CapCoalescedPIO,
	kvm.CapSREGS2,
	kvm.CapBinaryStatsFD,
	kvm.CapXSave2,
}

// KVMCapabilities opens the KVM device and prints its API version and
// the value of every probed capability.
func KVMCapabilities(dev string) error {
	devKVM, err := os.OpenFile(dev, os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer devKVM.Close()

	version, err := kvm.GetAPIVersion(devKVM.Fd())
	if err != nil {
		return err
	}

	fmt.Printf("api version: %d\n", version)

	for _, c := range x86Caps {
		ret, err := kvm.CheckExtension(devKVM.Fd(), c)
		if err != nil {
			return fmt.Errorf("CheckExtension(%s): %w", c, err)
		}

		fmt.Printf("%-24s %d\n", c, ret)
	}

	return nil
}
