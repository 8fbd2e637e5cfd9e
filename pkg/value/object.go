package value

import (
	"sync/atomic"
)

// Kind distinguishes the payload stored in a heap object header.
type Kind uint8

const (
	// KindString holds an immutable byte sequence.
	KindString Kind = iota

	// KindList holds an immutable sequence of Values.
	KindList
)

// String returns a human-readable name for Kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	default:
		return "?"
	}
}

// Header flag bits. The flags word is accessed atomically so headers
// remain soundly inspectable if an embedding adds collector threads;
// the single-threaded core does not otherwise rely on atomicity.
const (
	flagAllocated uint32 = 1 << 0 // Slot holds a live object
	flagMarked    uint32 = 1 << 1 // Reached during the current mark phase
	flagStatic    uint32 = 1 << 2 // Permanent object, exempt from sweep
	flagSpilled   uint32 = 1 << 3 // Payload lives in a separate backing slice
)

// Inline storage capacities. Payloads at or below these sizes live
// directly in the header; larger payloads spill to a separately
// allocated backing slice. The thresholds are compile-time constants
// shared by allocation and access.
const (
	InlineBytes = 24 // String payloads up to this many bytes stay inline
	InlineSlots = 4  // List payloads up to this many elements stay inline
)

// Object is the header shared by string and list heap objects.
//
// Small payloads are embedded in the header itself; payloads over the
// inline capacity use the spill slices. The split is an allocation
// detail: length and content are identical either way, and no
// value-level operation can observe which strategy is in use.
type Object struct {
	flags  uint32 // atomic; see flag bits above
	kind   Kind
	length int32

	inlineBytes [InlineBytes]byte
	inlineVals  [InlineSlots]Value
	spillBytes  []byte
	spillVals   []Value
}

// Kind returns the payload kind.
func (o *Object) Kind() Kind { return o.kind }

// Len returns the payload length in bytes (strings) or elements (lists).
func (o *Object) Len() int { return int(o.length) }

// Bytes returns the byte payload of a string object.
// Callers must not retain the slice past the owning Value's reachability,
// and must not write through it.
func (o *Object) Bytes() []byte {
	if o.spilled() {
		return o.spillBytes[:o.length]
	}
	return o.inlineBytes[:o.length]
}

// String returns the string payload as a Go string copy.
func (o *Object) String() string {
	return string(o.Bytes())
}

// Elems returns the element payload of a list object.
// The same retention rules as Bytes apply.
func (o *Object) Elems() []Value {
	if o.spilled() {
		return o.spillVals[:o.length]
	}
	return o.inlineVals[:o.length]
}

// ---------------------------------------------------------------------------
// Payload installation (heap-internal)
// ---------------------------------------------------------------------------

func (o *Object) setString(b []byte) {
	o.kind = KindString
	o.length = int32(len(b))
	if len(b) <= InlineBytes {
		copy(o.inlineBytes[:], b)
		return
	}
	o.spillBytes = make([]byte, len(b))
	copy(o.spillBytes, b)
	o.setFlag(flagSpilled)
}

func (o *Object) setList(elems []Value) {
	o.kind = KindList
	o.length = int32(len(elems))
	if len(elems) <= InlineSlots {
		copy(o.inlineVals[:], elems)
		return
	}
	o.spillVals = make([]Value, len(elems))
	copy(o.spillVals, elems)
	o.setFlag(flagSpilled)
}

// release clears the payload when the collector frees the object, so the
// Go runtime can reclaim any spilled backing slice immediately.
func (o *Object) release() {
	atomic.StoreUint32(&o.flags, 0)
	o.length = 0
	o.spillBytes = nil
	o.spillVals = nil
}

// ---------------------------------------------------------------------------
// Flag access
// ---------------------------------------------------------------------------

func (o *Object) setFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&o.flags)
		if atomic.CompareAndSwapUint32(&o.flags, old, old|f) {
			return
		}
	}
}

func (o *Object) clearFlag(f uint32) {
	for {
		old := atomic.LoadUint32(&o.flags)
		if atomic.CompareAndSwapUint32(&o.flags, old, old&^f) {
			return
		}
	}
}

func (o *Object) hasFlag(f uint32) bool {
	return atomic.LoadUint32(&o.flags)&f != 0
}

func (o *Object) allocated() bool { return o.hasFlag(flagAllocated) }
func (o *Object) marked() bool    { return o.hasFlag(flagMarked) }
func (o *Object) spilled() bool   { return o.hasFlag(flagSpilled) }

// Static reports whether the object is a permanent singleton exempt
// from sweeping.
func (o *Object) Static() bool { return o.hasFlag(flagStatic) }
