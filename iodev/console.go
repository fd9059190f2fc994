package iodev

import (
	"errors"
	"fmt"
	"io"

	"github.com/nanvix/microvm/bootabi"
)

// ErrConsoleIO is a console read or write failure other than end of
// input.
var ErrConsoleIO = errors.New("console i/o error")

// Console is the debug console on port 0xE9. OUT appends the raw
// payload bytes to the output sink; IN fills the payload from the input
// source, zero-padded on short reads. End of input is not signalled to
// the guest: the guest keeps reading zero bytes.
type Console struct {
	in  io.Reader
	out io.Writer
}

type flusher interface {
	Flush() error
}

// NewConsole builds a console over the given source and sink. Either
// may be nil, which behaves like an exhausted source or a discarding
// sink.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) Read(port uint64, data []byte) error {
	for i := range data {
		data[i] = 0
	}

	if c.in == nil {
		return nil
	}

	if _, err := c.in.Read(data); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrConsoleIO, err)
	}

	return nil
}

func (c *Console) Write(port uint64, data []byte) error {
	if c.out == nil {
		return nil
	}

	if _, err := c.out.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrConsoleIO, err)
	}

	// The guest must be able to observe that the bytes left the system
	// before its next exit is handled.
	if f, ok := c.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: %w", ErrConsoleIO, err)
		}
	}

	return nil
}

func (c *Console) IOPort() uint64 {
	return bootabi.StdoutPort
}

func (c *Console) Size() uint64 {
	return 1
}
