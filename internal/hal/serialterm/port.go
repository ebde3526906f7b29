// Package serialterm provides the concrete serial-port transports a
// hal.Serial-capable terminal (or a modbus.Client riding directly on a
// host tty) opens against. Two backends are wired, selected by
// internal/config: github.com/goburrow/serial (termios-based) and
// go.bug.st/serial (used on platforms/build configurations where the
// former's cgo-free termios ioctls aren't available). Both are hidden
// behind the Port interface so callers never import either package
// directly.
package serialterm

import (
	"fmt"
	"io"
	"time"

	"github.com/qitech/fieldbus-orchestrator/internal/modbus"
)

// Port is the minimal contract this repository needs from an open serial
// device: byte-stream read/write plus close. Backend-specific
// configuration (baud, data/parity/stop bits) happens at Open time.
type Port interface {
	io.ReadWriteCloser
}

// Config describes how to open and configure a serial port, derived from
// a modbus.SerialEncoding.
type Config struct {
	Path     string
	Baud     int
	Encoding modbus.SerialEncoding
	Timeout  time.Duration
}

// Backend selects which underlying driver Open uses.
type Backend int

const (
	BackendGoburrow Backend = iota
	BackendBugST
)

// Open dials the configured serial device using the requested backend.
func Open(backend Backend, cfg Config) (Port, error) {
	switch backend {
	case BackendGoburrow:
		return openGoburrow(cfg)
	case BackendBugST:
		return openBugST(cfg)
	default:
		return nil, fmt.Errorf("serialterm: unknown backend %d", backend)
	}
}
