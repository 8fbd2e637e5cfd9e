package value

import (
	"fmt"
)

// Value represents a Skink value as a single tagged 64-bit word.
//
// The low 3 bits select the variant; the remaining 61 bits hold the
// payload. Heap-backed variants (strings, lists) carry an arena slot
// index and are resolved through a Heap.
//
// Encoding scheme:
//   - Object:  tagObject + arena slot index (strings and lists)
//   - Int:     tagInt + 61-bit signed integer, stored inline
//   - Const:   tagConst + constant ID (false, true, null, absent)
//   - Block:   tagBlock + instruction index into the compiled Program
//
// A Value never changes tag after construction. "Mutating" a variable
// rebinds its slot to a new Value; the word itself is immutable.
type Value uint64

const (
	tagBits uint64 = 3
	tagMask uint64 = (1 << tagBits) - 1

	tagObject uint64 = 0 // Heap object (arena slot in payload)
	tagInt    uint64 = 1 // Inline signed integer
	tagConst  uint64 = 2 // Reserved constant encodings
	tagBlock  uint64 = 3 // Instruction index of a code block
)

// Reserved constant payloads.
const (
	constFalse uint64 = 0
	constTrue  uint64 = 1
	constNull  uint64 = 2

	// constAbsent marks a declared-but-never-assigned variable slot.
	// It is never produced by any language operation and never appears
	// on the operand stack.
	constAbsent uint64 = 3
)

// Pre-defined constant values.
const (
	False  Value = Value(constFalse<<tagBits | tagConst)
	True   Value = Value(constTrue<<tagBits | tagConst)
	Null   Value = Value(constNull<<tagBits | tagConst)
	Absent Value = Value(constAbsent<<tagBits | tagConst)
)

// Inline integer range (61-bit signed).
const (
	MaxInt int64 = (1 << 60) - 1
	MinInt int64 = -(1 << 60)
)

// Tag identifies which variant a Value holds.
type Tag uint8

const (
	TagObject Tag = iota
	TagInt
	TagConst
	TagBlock
)

// String returns a human-readable name for a Tag.
func (t Tag) String() string {
	switch t {
	case TagObject:
		return "object"
	case TagInt:
		return "integer"
	case TagConst:
		return "constant"
	case TagBlock:
		return "block"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Tag returns the variant tag of v.
func (v Value) Tag() Tag {
	return Tag(uint64(v) & tagMask)
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromInt creates an integer Value.
// Panics if n is outside the inline-representable range; the compiler
// rejects out-of-range literals before this can be reached at runtime.
func FromInt(n int64) Value {
	if n > MaxInt || n < MinInt {
		panic("value.FromInt: integer out of range")
	}
	return Value(uint64(n)<<tagBits | tagInt)
}

// TryFromInt creates an integer Value, reporting false when n does not
// fit in the inline payload.
func TryFromInt(n int64) (Value, bool) {
	if n > MaxInt || n < MinInt {
		return Null, false
	}
	return Value(uint64(n)<<tagBits | tagInt), true
}

// FromBool creates a boolean Value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromBlock creates a block Value referring to an instruction index.
func FromBlock(pos int) Value {
	if pos < 0 {
		panic("value.FromBlock: negative instruction index")
	}
	return Value(uint64(pos)<<tagBits | tagBlock)
}

// fromSlot creates an object Value for an arena slot. Only the Heap
// mints object values.
func fromSlot(slot uint32) Value {
	return Value(uint64(slot)<<tagBits | tagObject)
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsInt returns true if v holds an inline integer.
func (v Value) IsInt() bool { return uint64(v)&tagMask == tagInt }

// IsBool returns true if v is True or False.
func (v Value) IsBool() bool { return v == True || v == False }

// IsNull returns true if v is the null value.
func (v Value) IsNull() bool { return v == Null }

// IsAbsent returns true if v is the unassigned-slot sentinel.
func (v Value) IsAbsent() bool { return v == Absent }

// IsBlock returns true if v refers to a compiled code block.
func (v Value) IsBlock() bool { return uint64(v)&tagMask == tagBlock }

// IsObject returns true if v points at a heap object.
func (v Value) IsObject() bool { return uint64(v)&tagMask == tagObject }

// ---------------------------------------------------------------------------
// Checked accessors
// ---------------------------------------------------------------------------

// AsInt returns the integer payload, or false if v is not an integer.
func (v Value) AsInt() (int64, bool) {
	if !v.IsInt() {
		return 0, false
	}
	return int64(v) >> tagBits, true
}

// AsBool returns the boolean payload, or false if v is not a boolean.
func (v Value) AsBool() (bool, bool) {
	switch v {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// AsBlock returns the instruction index of a block Value, or false if v
// is not a block.
func (v Value) AsBlock() (int, bool) {
	if !v.IsBlock() {
		return 0, false
	}
	return int(uint64(v) >> tagBits), true
}

// ---------------------------------------------------------------------------
// Unchecked accessors
//
// The Must variants skip no work at runtime but codify a precondition:
// they are only legal once the tag has been established by a prior
// successful check, and panic on contract violation.
// ---------------------------------------------------------------------------

// MustInt returns the integer payload.
// Precondition: v.IsInt().
func (v Value) MustInt() int64 {
	if !v.IsInt() {
		panic("value.MustInt: not an integer")
	}
	return int64(v) >> tagBits
}

// MustBool returns the boolean payload.
// Precondition: v.IsBool().
func (v Value) MustBool() bool {
	switch v {
	case True:
		return true
	case False:
		return false
	}
	panic("value.MustBool: not a boolean")
}

// MustBlock returns the instruction index.
// Precondition: v.IsBlock().
func (v Value) MustBlock() int {
	if !v.IsBlock() {
		panic("value.MustBlock: not a block")
	}
	return int(uint64(v) >> tagBits)
}

// slot returns the arena slot of an object Value.
// Precondition: v.IsObject().
func (v Value) slot() uint32 {
	if !v.IsObject() {
		panic("value.slot: not an object")
	}
	return uint32(uint64(v) >> tagBits)
}
