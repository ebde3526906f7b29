package modbus

import (
	"bytes"
	"math/rand"
	"testing"
)

// B2/B3: a modbus request with slave=0x01, fc=0x03, data=[0x03,0xEB,0x00,0x01]
// encodes to the 8-byte sequence 01 03 03 EB 00 01 F4 7A.
func TestRequestEncodeBoundary(t *testing.T) {
	req := Request{
		SlaveID:  0x01,
		Function: FuncReadHoldingRegister,
		Data:     []byte{0x03, 0xEB, 0x00, 0x01},
	}
	want := []byte{0x01, 0x03, 0x03, 0xEB, 0x00, 0x01, 0xF4, 0x7A}
	got := req.Encode()
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X want % X", got, want)
	}
}

// P3: for all requests r, let b = encode(r); the last two bytes of b equal
// CRC-16/Modbus(b[..len-2]) in little-endian order.
func TestRequestEncodeCRCProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		data := make([]byte, rng.Intn(20))
		rng.Read(data)
		req := Request{
			SlaveID:  byte(rng.Intn(248)),
			Function: FunctionCode(byte(rng.Intn(256))),
			Data:     data,
		}
		b := req.Encode()
		body := b[:len(b)-2]
		wantCRC := crc16Modbus(body)
		gotLo, gotHi := b[len(b)-2], b[len(b)-1]
		gotCRC := uint16(gotLo) | uint16(gotHi)<<8
		if gotCRC != wantCRC {
			t.Fatalf("request %+v: crc mismatch got %04X want %04X", req, gotCRC, wantCRC)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	resp := []byte{0x01, 0x03, 0x02, 0x00, 0x0D}
	crc := crc16Modbus(resp)
	full := append(append([]byte(nil), resp...), byte(crc), byte(crc>>8))
	decoded, err := Decode(full)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.SlaveID != 1 || decoded.Function != FuncReadHoldingRegister {
		t.Fatalf("unexpected header: %+v", decoded)
	}
	if !bytes.Equal(decoded.Data, []byte{0x00, 0x0D}) {
		t.Fatalf("unexpected data: % X", decoded.Data)
	}
}

func TestDecodeException(t *testing.T) {
	body := []byte{0x01, byte(FuncReadHoldingRegister) | exceptionBit, 0x02}
	crc := crc16Modbus(body)
	full := append(append([]byte(nil), body...), byte(crc), byte(crc>>8))
	decoded, err := Decode(full)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.IsException || decoded.ExceptionCode != 0x02 {
		t.Fatalf("unexpected exception decode: %+v", decoded)
	}
}

func TestDecodeCRCMismatch(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x03, 0x00, 0x00})
	if err != ErrCRCMismatch {
		t.Fatalf("got %v want ErrCRCMismatch", err)
	}
}

func TestDecodeShortFrame(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x03})
	if err != ErrShortFrame {
		t.Fatalf("got %v want ErrShortFrame", err)
	}
}
