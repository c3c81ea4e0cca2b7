package bus

import "fmt"

// Width tags the intended transfer size of a value.
type Width int

// The transfer sizes supported by the bus.
const (
	WidthByte Width = iota
	WidthHalfWord
	WidthWord
)

// ByteSize returns the number of bytes a transfer of this width moves.
func (w Width) ByteSize() int {
	switch w {
	case WidthByte:
		return 1
	case WidthHalfWord:
		return 2
	case WidthWord:
		return 4
	default:
		panic(fmt.Sprintf("bus: unknown width %d", int(w)))
	}
}

// Mask returns the bit mask that covers a value of this width.
func (w Width) Mask() int64 {
	return int64(1)<<(8*w.ByteSize()) - 1
}

func (w Width) String() string {
	switch w {
	case WidthByte:
		return "byte"
	case WidthHalfWord:
		return "halfword"
	case WidthWord:
		return "word"
	default:
		return fmt.Sprintf("Width(%d)", int(w))
	}
}

// Value is a width-tagged integer exchanged across the bus. Values are
// immutable and comparable. The width does not bound the number; no clamping
// happens at construction.
type Value struct {
	width Width
	value int64
}

// NewValue creates a value of the given width.
func NewValue(w Width, v int64) Value {
	return Value{width: w, value: v}
}

// Word creates a word-wide value.
func Word(v int64) Value {
	return NewValue(WidthWord, v)
}

// HalfWord creates a half-word-wide value.
func HalfWord(v int64) Value {
	return NewValue(WidthHalfWord, v)
}

// Byte creates a byte-wide value.
func Byte(v int64) Value {
	return NewValue(WidthByte, v)
}

// Width returns the width tag.
func (v Value) Width() Width {
	return v.width
}

// Int returns the raw number.
func (v Value) Int() int64 {
	return v.value
}

// Offset returns a value moved by delta, keeping the width tag.
func (v Value) Offset(delta int64) Value {
	return Value{width: v.width, value: v.value + delta}
}

// Masked returns the number truncated to the width of the value.
func (v Value) Masked() uint32 {
	return uint32(v.value & v.width.Mask())
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%#x)", v.width, v.value)
}
