package serialterm

import (
	bugst "go.bug.st/serial"

	"github.com/qitech/fieldbus-orchestrator/internal/modbus"
)

// openBugST opens the port via go.bug.st/serial, for platforms where
// the termios backend is unavailable.
func openBugST(cfg Config) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.Encoding.DataBits(),
		Parity:   bugstParity(cfg.Encoding.Parity()),
		StopBits: bugstStopBits(cfg.Encoding.StopBits()),
	}
	port, err := bugst.Open(cfg.Path, mode)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		_ = port.SetReadTimeout(cfg.Timeout)
	}
	return port, nil
}

func bugstParity(p modbus.ParityType) bugst.Parity {
	switch p {
	case modbus.ParityEven:
		return bugst.EvenParity
	case modbus.ParityOdd:
		return bugst.OddParity
	case modbus.ParitySpace:
		return bugst.SpaceParity
	case modbus.ParityMark:
		return bugst.MarkParity
	default:
		return bugst.NoParity
	}
}

func bugstStopBits(n int) bugst.StopBits {
	if n == 2 {
		return bugst.TwoStopBits
	}
	return bugst.OneStopBit
}
