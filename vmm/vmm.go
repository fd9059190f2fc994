// Package vmm assembles a configured VM and drives it to completion.
package vmm

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/nanvix/microvm/iodev"
	"github.com/nanvix/microvm/machine"
	"github.com/nanvix/microvm/term"
)

// Config carries everything the front-end decided.
type Config struct {
	Dev        string
	Kernel     string
	Initrd     string
	MemSize    int
	Protected  bool
	Stdout     string
	Stdin      string
	Trace      bool
	CPUProfile bool
}

// VMM owns one machine and the files backing its console.
type VMM struct {
	*machine.Machine
	Config

	entry  uint32
	conIn  *os.File
	conOut *os.File
	ownIn  bool
	ownOut bool
}

func New(c Config) *VMM {
	return &VMM{
		Machine: nil,
		Config:  c,
	}
}

// Init instantiates the machine.
func (v *VMM) Init() error {
	m, err := machine.New(v.Dev, v.MemSize)
	if err != nil {
		return err
	}

	v.Machine = m

	return nil
}

// Setup loads the kernel and the optional initrd, wires the console
// and shutdown devices, and programs the vCPU.
func (v *VMM) Setup() error {
	kern, err := os.Open(v.Kernel)
	if err != nil {
		return err
	}
	defer kern.Close()

	if v.entry, err = v.LoadKernel(kern); err != nil {
		return err
	}

	if len(v.Initrd) > 0 {
		initrd, err := os.Open(v.Initrd)
		if err != nil {
			return err
		}
		defer initrd.Close()

		st, err := initrd.Stat()
		if err != nil {
			return err
		}

		if err := v.LoadInitrd(initrd, st.Size()); err != nil {
			return err
		}
	}

	if err := v.openConsole(); err != nil {
		return err
	}

	v.AddDevice(iodev.NewConsole(v.conIn, v.conOut))
	v.AddDevice(iodev.NewACPIShutDownDevice())

	if v.Trace {
		v.AddDevice(&iodev.PostCodeDevice{})
	}

	return v.SetupRegs(v.entry, v.Protected)
}

// Boot runs the exit loop until the guest powers off or dies. It
// returns nil exactly when the guest requested a clean shutdown.
func (v *VMM) Boot() error {
	if v.CPUProfile {
		defer profile.Start(profile.ProfilePath(".")).Stop()
	}

	if v.Trace {
		if err := v.SingleStep(true); err != nil {
			return fmt.Errorf("enabling trace: %w", err)
		}
	}

	if v.conIn == os.Stdin && term.IsTerminal() {
		restoreMode, err := term.SetRawMode()
		if err != nil {
			return err
		}

		defer restoreMode()
	}

	start := time.Now()
	err := v.RunInfiniteLoop()
	log.Printf("guest ran for %v", time.Since(start))

	return err
}

// Close releases the console files and the machine.
func (v *VMM) Close() error {
	if v.ownIn && v.conIn != nil {
		_ = v.conIn.Close()
	}

	if v.ownOut && v.conOut != nil {
		_ = v.conOut.Close()
	}

	if v.Machine != nil {
		return v.Free()
	}

	return nil
}

func (v *VMM) openConsole() error {
	v.conIn, v.conOut = os.Stdin, os.Stdout

	if len(v.Stdin) > 0 {
		f, err := os.Open(v.Stdin)
		if err != nil {
			return err
		}

		v.conIn, v.ownIn = f, true
	}

	if len(v.Stdout) > 0 {
		f, err := os.Create(v.Stdout)
		if err != nil {
			return err
		}

		v.conOut, v.ownOut = f, true
	}

	return nil
}
