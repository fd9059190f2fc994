package kvm_test

import (
	"testing"

	"github.com/nanvix/microvm/kvm"
)

func TestCapabilityStringer(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name  string
		value kvm.Capability
		want  string
	}{
		{
			name:  "first",
			value: kvm.CapIRQChip,
			want:  "CapIRQChip",
		},
		{
			name:  "middle",
			value: kvm.CapMPState,
			want:  "CapMPState",
		},
		{
			name:  "sparse",
			value: kvm.CapIRQRouting,
			want:  "CapIRQRouting",
		},
		{
			name:  "high",
			value: kvm.CapKVMClockCtrl,
			want:  "CapKVMClockCtrl",
		},
		{
			name:  "unknown",
			value: kvm.Capability(255),
			want:  "Capability(255)",
		},
	} {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if test.value.String() != test.want {
				t.Errorf("have: %s, want: %s", test.value.String(), test.want)
			}
		})
	}
}

func TestExitTypeStringer(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		value kvm.ExitType
		want  string
	}{
		{value: kvm.EXITHLT, want: "EXITHLT"},
		{value: kvm.EXITIO, want: "EXITIO"},
		{value: kvm.EXITSHUTDOWN, want: "EXITSHUTDOWN"},
		{value: kvm.EXITINTERNALERROR, want: "EXITINTERNALERROR"},
		{value: kvm.ExitType(42), want: "ExitType(42)"},
	} {
		if test.value.String() != test.want {
			t.Errorf("have: %s, want: %s", test.value.String(), test.want)
		}
	}
}
