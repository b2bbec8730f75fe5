//go:build baremetal

package transports

import (
	"fmt"
	"machine"
	"time"
)

// MCUTransport implements Transport on a TinyGo UART.
type MCUTransport struct {
	uart     *machine.UART
	portName string
}

// SerialConfig holds configuration for a UART. Port names the peripheral
// ("0" or "1").
type SerialConfig struct {
	Port     string
	BaudRate int

	// PollInterval mirrors the host SerialConfig so callers build on both
	// targets. UART reads never block, so it has no effect here.
	PollInterval time.Duration
}

// OpenSerial gets a UART port with the given configuration.
func OpenSerial(cfg SerialConfig) (*MCUTransport, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 38400
	}

	var t *MCUTransport
	switch cfg.Port {
	case "", "0":
		t = &MCUTransport{uart: machine.UART0, portName: "0"}
	case "1":
		t = &MCUTransport{uart: machine.UART1, portName: "1"}
	default:
		return nil, fmt.Errorf("unknown UART %s", cfg.Port)
	}

	t.uart.SetBaudRate(uint32(cfg.BaudRate))

	return t, nil
}

func (t *MCUTransport) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && t.uart.Buffered() > 0 {
		b, err := t.uart.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (t *MCUTransport) Write(p []byte) (int, error) {
	return t.uart.Write(p)
}

func (t *MCUTransport) Close() error {
	return nil
}

func (t *MCUTransport) Flush() error {
	for t.uart.Buffered() > 0 {
		if _, err := t.uart.ReadByte(); err != nil {
			break
		}
	}
	return nil
}

// PortName returns the UART name.
func (t *MCUTransport) PortName() string {
	return t.portName
}
