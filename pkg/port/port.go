// Package port opens the serial ports of the sniffer.
package port

import (
	"fmt"
	"io"
	"os"

	"go.bug.st/serial"
)

// Stdio is the port name selecting the process's stdout as host link.
const Stdio = "-"

// Mode returns the 8N1 mode at baud.
func Mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens a serial port.
func Open(name string, baud int) (serial.Port, error) {
	if name == "" {
		return nil, fmt.Errorf("serial port not specified")
	}
	p, err := serial.Open(name, Mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", name, err)
	}
	return p, nil
}

// OpenHost opens the host link, Stdio selects stdout.
func OpenHost(name string, baud int) (io.WriteCloser, error) {
	if name == Stdio {
		return nopCloser{os.Stdout}, nil
	}
	return Open(name, baud)
}

// List returns the serial ports present on the system.
func List() ([]string, error) {
	return serial.GetPortsList()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
