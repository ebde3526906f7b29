// Package modbus implements the Modbus-RTU wire format and a
// priority-queued, co-operative client state machine that rides on top of
// a serial terminal.
package modbus

import (
	"encoding/binary"
	"fmt"
)

// FunctionCode identifies a Modbus PDU's operation. Unknown codes pass
// through opaquely.
type FunctionCode byte

const (
	FuncReadHoldingRegister   FunctionCode = 0x03
	FuncPresetHoldingRegister FunctionCode = 0x06
	FuncDiagnose              FunctionCode = 0x08

	exceptionBit = 0x80
)

// Request is a single Modbus-RTU request frame (minus CRC, which is
// computed on Encode).
type Request struct {
	SlaveID  byte
	Function FunctionCode
	Data     []byte

	// NoResponseExpected marks fire-and-forget requests (e.g. a VFD reset)
	// that must not stall the client's WaitingForResponse state.
	NoResponseExpected bool
}

// Encode serializes the request to the wire, appending a little-endian
// CRC-16/Modbus over everything preceding it. Matches B2/B3 literally:
// slave=0x01, fc=0x03, data=[0x03,0xEB,0x00,0x01] -> 01 03 03 EB 00 01 F4 7A.
func (r Request) Encode() []byte {
	buf := make([]byte, 0, 2+len(r.Data)+2)
	buf = append(buf, r.SlaveID, byte(r.Function))
	buf = append(buf, r.Data...)
	crc := crc16Modbus(buf)
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)
	return buf
}

// Response is a decoded Modbus-RTU response frame.
type Response struct {
	SlaveID  byte
	Function FunctionCode
	IsException bool
	ExceptionCode byte
	Data     []byte
}

// ErrShortFrame/ErrCRCMismatch are returned by Decode on malformed input.
var (
	ErrShortFrame  = fmt.Errorf("modbus: frame shorter than minimum (slave+fn+crc)")
	ErrCRCMismatch = fmt.Errorf("modbus: CRC mismatch")
)

// Decode parses a raw RTU response frame, verifying its trailing CRC.
func Decode(frame []byte) (Response, error) {
	if len(frame) < 4 {
		return Response{}, ErrShortFrame
	}
	body := frame[:len(frame)-2]
	wantCRC := binary.LittleEndian.Uint16(frame[len(frame)-2:])
	gotCRC := crc16Modbus(body)
	if wantCRC != gotCRC {
		return Response{}, ErrCRCMismatch
	}

	fn := frame[1]
	resp := Response{
		SlaveID:  frame[0],
		Function: FunctionCode(fn &^ exceptionBit),
	}
	payload := frame[2 : len(frame)-2]
	if fn&exceptionBit != 0 {
		resp.IsException = true
		if len(payload) > 0 {
			resp.ExceptionCode = payload[0]
		}
		return resp, nil
	}
	// A read-holding-register response carries a byte-count prefix ahead
	// of the register values; Data holds the register values only.
	if resp.Function == FuncReadHoldingRegister && len(payload) > 0 {
		payload = payload[1:]
	}
	resp.Data = append([]byte(nil), payload...)
	return resp, nil
}
