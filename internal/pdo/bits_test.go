package pdo

import (
	"math/rand"
	"testing"
)

func TestBitRoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	SetBit(buf, 0, true)
	SetBit(buf, 15, true)
	if !GetBit(buf, 0) || !GetBit(buf, 15) {
		t.Fatal("bits not set")
	}
	if GetBit(buf, 1) {
		t.Fatal("adjacent bit disturbed")
	}
	SetBit(buf, 0, false)
	if GetBit(buf, 0) {
		t.Fatal("bit not cleared")
	}
	if !GetBit(buf, 15) {
		t.Fatal("unrelated bit disturbed by clear")
	}
}

func TestUintLittleEndianRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	buf := make([]byte, 8)
	for i := 0; i < 100; i++ {
		width := 1 + rng.Intn(32)
		at := rng.Intn(16)
		max := uint64(1)<<uint(width) - 1
		value := uint64(rng.Int63()) & max
		SetUint(buf, at, width, value)
		got := GetUint(buf, at, width)
		if got != value {
			t.Fatalf("width=%d at=%d: got %d want %d", width, at, got, value)
		}
	}
}

func TestIntSignRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	cases := []int64{0, 1, -1, 127, -128, 32767, -32768}
	for _, v := range cases {
		SetInt(buf, 0, 16, v)
		got := GetInt(buf, 0, 16)
		if got != v {
			t.Fatalf("got %d want %d", got, v)
		}
	}
}

func TestReadModifyWritePreservesReservedBits(t *testing.T) {
	buf := []byte{0b10101010}
	SetBit(buf, 1, true)
	if buf[0] != 0b10101010 {
		t.Fatalf("expected no change setting an already-set bit, got %08b", buf[0])
	}
	SetUint(buf, 0, 2, 0b11)
	if buf[0] != 0b10101011 {
		t.Fatalf("got %08b", buf[0])
	}
}

// An assignment's total width must equal the terminal's configured
// buffer length.
func TestAssignmentValidate(t *testing.T) {
	a := Layout("test", []Object{
		{Name: "a", BitWidth: 8},
		{Name: "b", BitWidth: 8},
	})
	if err := a.Validate(16); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Validate(15); err == nil {
		t.Fatal("expected width mismatch error")
	}
}

func TestVelocityControlCompactRoundTrip(t *testing.T) {
	term := VelocityControlCompact()
	buf := make([]byte, ByteLen(term.RxPDO.TotalBits()))
	if err := term.RxPDO.Validate(len(buf) * 8); err != nil {
		t.Fatal(err)
	}
	enable, _ := term.RxPDO.Find("enable")
	velocity, _ := term.RxPDO.Find("velocity")

	enable.WriteBool(buf, true)
	velocity.WriteInt(buf, -1234)

	if !enable.ReadBool(buf) {
		t.Fatal("enable bit lost")
	}
	if got := velocity.ReadInt(buf); got != -1234 {
		t.Fatalf("got %d want -1234", got)
	}
}
