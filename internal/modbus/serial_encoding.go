package modbus

import "strconv"

// SerialEncoding enumerates the {7,8} data bits x {N,E,O,S,M} parity x
// {1,2} stop bits cross product. Not every combination is physically
// meaningful (7-data-bit frames never carry Space/Mark parity on real
// UARTs), so only the usable members exist.
type SerialEncoding int

const (
	Coding7E1 SerialEncoding = iota // 7 data, even parity, 1 stop
	Coding7O1                      // 7 data, odd parity, 1 stop
	Coding7E2                      // 7 data, even parity, 2 stop
	Coding7O2                      // 7 data, odd parity, 2 stop
	Coding8N1                      // 8 data, no parity, 1 stop
	Coding8E1                      // 8 data, even parity, 1 stop
	Coding8O1                      // 8 data, odd parity, 1 stop
	Coding8N2                      // 8 data, no parity, 2 stop
	Coding8E2                      // 8 data, even parity, 2 stop
	Coding8O2                      // 8 data, odd parity, 2 stop
	Coding8S1                      // 8 data, space parity, 1 stop
	Coding8M1                      // 8 data, mark parity, 1 stop
)

type ParityType int

const (
	ParityNone ParityType = iota
	ParityEven
	ParityOdd
	ParitySpace
	ParityMark
)

// DataBits returns the number of data bits carried per frame.
func (e SerialEncoding) DataBits() int {
	switch e {
	case Coding7E1, Coding7O1, Coding7E2, Coding7O2:
		return 7
	default:
		return 8
	}
}

// ParityBits returns 0 when no parity bit is sent, else 1.
func (e SerialEncoding) ParityBits() int {
	if e == Coding8N1 || e == Coding8N2 {
		return 0
	}
	return 1
}

// Parity returns the parity scheme, or ParityNone.
func (e SerialEncoding) Parity() ParityType {
	switch e {
	case Coding7E1, Coding7E2, Coding8E1, Coding8E2:
		return ParityEven
	case Coding7O1, Coding7O2, Coding8O1, Coding8O2:
		return ParityOdd
	case Coding8S1:
		return ParitySpace
	case Coding8M1:
		return ParityMark
	default:
		return ParityNone
	}
}

// StopBits returns 1 or 2.
func (e SerialEncoding) StopBits() int {
	switch e {
	case Coding7E2, Coding7O2, Coding8N2, Coding8E2, Coding8O2:
		return 2
	default:
		return 1
	}
}

// TotalBits is the number of bits physically sent per byte, including the
// mandatory single start bit: 1 (start) + data + parity + stop.
func (e SerialEncoding) TotalBits() int {
	return 1 + e.DataBits() + e.ParityBits() + e.StopBits()
}

// String renders a human-readable description, e.g. "8N1(10 bits total)".
func (e SerialEncoding) String() string {
	parityLetter := map[ParityType]string{
		ParityNone:  "N",
		ParityEven:  "E",
		ParityOdd:   "O",
		ParitySpace: "S",
		ParityMark:  "M",
	}[e.Parity()]
	return strconv.Itoa(e.DataBits()) + parityLetter + strconv.Itoa(e.StopBits()) +
		"(" + strconv.Itoa(e.TotalBits()) + " bits total)"
}
