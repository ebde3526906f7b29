package pdo

import "fmt"

// Object is one PDO entry: a declared bit width at a declared bit offset
// within the enclosing terminal's raw input/output buffer, with a
// bit-exact pack/unpack contract.
type Object struct {
	Index    uint16
	Name     string
	BitWidth uint16
	Offset   int // absolute bit offset within the terminal's raw buffer

	// IsBoolean marks a single-bit flag field, occupying exactly one bit
	// at Offset. Multi-bit fields use the little-endian
	// integer load/store in bits.go.
	IsBoolean bool
}

// ReadUint reads the object's value out of buf as an unsigned integer.
func (o Object) ReadUint(buf []byte) uint64 {
	if o.IsBoolean {
		if GetBit(buf, o.Offset) {
			return 1
		}
		return 0
	}
	return GetUint(buf, o.Offset, int(o.BitWidth))
}

// WriteUint stores an unsigned integer into the object's bit range,
// preserving every other bit in the buffer (read-modify-write).
func (o Object) WriteUint(buf []byte, value uint64) {
	if o.IsBoolean {
		SetBit(buf, o.Offset, value != 0)
		return
	}
	SetUint(buf, o.Offset, int(o.BitWidth), value)
}

// ReadInt/WriteInt are the signed-integer equivalents.
func (o Object) ReadInt(buf []byte) int64 {
	return GetInt(buf, o.Offset, int(o.BitWidth))
}

func (o Object) WriteInt(buf []byte, value int64) {
	SetInt(buf, o.Offset, int(o.BitWidth), value)
}

// ReadBool reads a single-bit flag object.
func (o Object) ReadBool(buf []byte) bool {
	return GetBit(buf, o.Offset)
}

// WriteBool writes a single-bit flag object.
func (o Object) WriteBool(buf []byte, value bool) {
	SetBit(buf, o.Offset, value)
}

// Assignment is an ordered set of Objects packed contiguously (or at
// explicit offsets) into one direction (input or output) of a terminal's
// raw buffer. TotalBits must equal the terminal's configured buffer
// length in bits.
type Assignment struct {
	Name    string
	Objects []Object
}

// Layout assigns contiguous bit offsets to every object in declaration
// order, overwriting any Offset already set, and returns the resulting
// Assignment. This is a convenience for
// presets that describe objects as an ordered sequence rather than by
// explicit offset, matching how the manufacturer's object dictionary
// lists PDO entries in a fixed order.
func Layout(name string, objects []Object) Assignment {
	offset := 0
	laid := make([]Object, len(objects))
	for i, o := range objects {
		o.Offset = offset
		laid[i] = o
		offset += int(o.BitWidth)
	}
	return Assignment{Name: name, Objects: laid}
}

// TotalBits sums the declared bit widths of every object in the
// assignment.
func (a Assignment) TotalBits() int {
	total := 0
	for _, o := range a.Objects {
		total += int(o.BitWidth)
	}
	return total
}

// Find returns the object with the given name, or an error if absent.
func (a Assignment) Find(name string) (Object, error) {
	for _, o := range a.Objects {
		if o.Name == name {
			return o, nil
		}
	}
	return Object{}, fmt.Errorf("pdo: no object named %q in assignment %q", name, a.Name)
}

// ErrWidthMismatch is returned when an assignment's total width does not
// match a terminal's configured buffer length.
type ErrWidthMismatch struct {
	Assignment string
	Got, Want  int
}

func (e *ErrWidthMismatch) Error() string {
	return fmt.Sprintf("pdo: assignment %q is %d bits, terminal buffer is %d bits", e.Assignment, e.Got, e.Want)
}

// Validate checks the sum-of-widths invariant against a
// terminal's configured raw-buffer length in bits.
func (a Assignment) Validate(bufBits int) error {
	if a.TotalBits() != bufBits {
		return &ErrWidthMismatch{Assignment: a.Name, Got: a.TotalBits(), Want: bufBits}
	}
	return nil
}
