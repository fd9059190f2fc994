// Package flag parses the microvm command line.
//
// The scanner is deliberately permissive: it walks the argument list
// and picks out the options it knows, ignoring everything else, so a
// stale wrapper script with extra arguments keeps working. The hard
// failures are a malformed -memory size and a missing -kernel (unless
// -probe is given).
package flag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoKernel means the required -kernel argument is missing.
var ErrNoKernel = errors.New("a kernel image is required")

// DefaultMemSize is 128 MiB, the historical microvm default.
const DefaultMemSize = 128 << 20

// Config is everything the command line decides.
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
	Probe      bool
}

// ParseArgs parses the command line. args is os.Args, program name
// included.
func ParseArgs(args []string) (*Config, error) {
	c := &Config{
		Dev:     "/dev/kvm",
		MemSize: DefaultMemSize,
	}

	takesValue := func(i int) bool { return i+1 < len(args) }

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-kernel":
			if takesValue(i) {
				c.Kernel = args[i+1]
				i++
			}
		case "-initrd":
			if takesValue(i) {
				c.Initrd = args[i+1]
				i++
			}
		case "-memory":
			if takesValue(i) {
				size, err := ParseSize(args[i+1])
				if err != nil {
					return nil, err
				}

				c.MemSize = size
				i++
			}
		case "-protected":
			c.Protected = true
		case "-stdout":
			if takesValue(i) {
				c.Stdout = args[i+1]
				i++
			}
		case "-stdin":
			if takesValue(i) {
				c.Stdin = args[i+1]
				i++
			}
		case "-D":
			if takesValue(i) {
				c.Dev = args[i+1]
				i++
			}
		case "-trace":
			c.Trace = true
		case "-cpuprofile":
			c.CPUProfile = true
		case "-probe":
			c.Probe = true
		default:
			// Unrecognized arguments are ignored.
		}
	}

	if len(c.Kernel) == 0 && !c.Probe {
		return nil, fmt.Errorf("usage: %s -kernel <filename> [-initrd <filename>] "+
			"[-memory <size>[KMG]] [-protected] [-stdout <path>] [-stdin <path>]: %w",
			args[0], ErrNoKernel)
	}

	return c, nil
}

// ParseSize parses a size string as number[KMG]. The multiplier is
// case-insensitive and required: a bare number or an unknown suffix is
// an error.
func ParseSize(s string) (int, error) {
	sz := strings.TrimRight(s, "gGmMkK")
	if len(sz) == 0 || len(s)-len(sz) != 1 {
		return -1, fmt.Errorf("%q: can't parse as num[KMG]: %w", s, strconv.ErrSyntax)
	}

	amt, err := strconv.ParseUint(sz, 0, 0)
	if err != nil {
		return -1, err
	}

	switch s[len(sz):] {
	case "G", "g":
		return int(amt) << 30, nil
	case "M", "m":
		return int(amt) << 20, nil
	case "K", "k":
		return int(amt) << 10, nil
	}

	return -1, fmt.Errorf("%q: can't parse as num[KMG]: %w", s, strconv.ErrSyntax)
}
