package iodev

import "log"

// PostCodeDevice logs byte-wide writes to the classic POST diagnostic
// port. It is only attached when tracing, so a silent guest stays
// silent: without it, port 0x80 falls through to the default no-op.
type PostCodeDevice struct{}

func (p *PostCodeDevice) Read(port uint64, data []byte) error {
	return nil
}

func (p *PostCodeDevice) Write(port uint64, data []byte) error {
	if len(data) == 1 {
		log.Printf("post code %#02x", data[0])
	}

	return nil
}

func (p *PostCodeDevice) IOPort() uint64 {
	return 0x80
}

func (p *PostCodeDevice) Size() uint64 {
	return 0x1
}
