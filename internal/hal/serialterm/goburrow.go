package serialterm

import (
	goserial "github.com/goburrow/serial"

	"github.com/qitech/fieldbus-orchestrator/internal/modbus"
)

// openGoburrow opens the port via github.com/goburrow/serial
// (termios-based, the default backend on Linux hosts).
func openGoburrow(cfg Config) (Port, error) {
	c := &goserial.Config{
		Address:  cfg.Path,
		BaudRate: cfg.Baud,
		DataBits: cfg.Encoding.DataBits(),
		StopBits: cfg.Encoding.StopBits(),
		Parity:   goburrowParity(cfg.Encoding.Parity()),
		Timeout:  cfg.Timeout,
	}
	return goserial.Open(c)
}

func goburrowParity(p modbus.ParityType) string {
	switch p {
	case modbus.ParityEven:
		return "E"
	case modbus.ParityOdd:
		return "O"
	default:
		return "N"
	}
}
