package main

import (
	"log"
	"os"

	"github.com/nanvix/microvm/flag"
	"github.com/nanvix/microvm/probe"
	"github.com/nanvix/microvm/vmm"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	c, err := flag.ParseArgs(args)
	if err != nil {
		return err
	}

	if c.Probe {
		return probe.KVMCapabilities(c.Dev)
	}

	v := vmm.New(vmm.Config{
		Dev:        c.Dev,
		Kernel:     c.Kernel,
		Initrd:     c.Initrd,
		MemSize:    c.MemSize,
		Protected:  c.Protected,
		Stdout:     c.Stdout,
		Stdin:      c.Stdin,
		Trace:      c.Trace,
		CPUProfile: c.CPUProfile,
	})
	defer v.Close()

	if err := v.Init(); err != nil {
		return err
	}

	if err := v.Setup(); err != nil {
		return err
	}

	return v.Boot()
}
