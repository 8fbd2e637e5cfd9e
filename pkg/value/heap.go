package value

import (
	"time"

	"github.com/tliron/commonlog"
)

// RootFunc enumerates one root set: it calls mark for every Value the
// owner considers reachable. The VM registers one covering its operand
// stack, variable slots, and the Program's constant pool.
type RootFunc func(mark func(Value))

// CollectStats holds statistics from a single mark-and-sweep cycle.
type CollectStats struct {
	Marked    int // Objects reached from the roots
	Swept     int // Objects freed
	Live      int // Allocated non-static objects after the cycle
	Duration  time.Duration
	Timestamp time.Time
}

// DefaultCollectThreshold is the number of allocations between
// automatic collection cycles.
const DefaultCollectThreshold = 4096

// Heap owns the allocation arena backing string and list Values and
// reclaims unreachable objects by mark-and-sweep. There is no reference
// counting: reachability from the registered roots alone determines
// liveness, so reference cycles are reclaimed correctly.
type Heap struct {
	objects []*Object
	free    []uint32

	roots    map[int]RootFunc
	nextRoot int

	paused     int // Nestable pause depth; no collection while > 0
	sinceGC    int // Allocations since the last cycle
	threshold  int
	sweepCount uint64
	lastStats  CollectStats

	emptyString Value
	emptyList   Value

	log commonlog.Logger
}

// NewHeap creates a heap with the static singleton objects
// pre-registered (empty string, empty list). Statics never pass through
// the normal allocate/free path and are skipped by sweep entirely.
func NewHeap() *Heap {
	h := &Heap{
		roots:     make(map[int]RootFunc),
		threshold: DefaultCollectThreshold,
		log:       commonlog.GetLogger("skink.heap"),
	}
	h.emptyString = h.newStatic(KindString)
	h.emptyList = h.newStatic(KindList)
	return h
}

func (h *Heap) newStatic(k Kind) Value {
	o := &Object{kind: k}
	o.setFlag(flagAllocated | flagStatic)
	slot := uint32(len(h.objects))
	h.objects = append(h.objects, o)
	return fromSlot(slot)
}

// SetCollectThreshold overrides the allocation count between automatic
// cycles. Zero disables automatic collection; Collect still works.
func (h *Heap) SetCollectThreshold(n int) {
	h.threshold = n
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// AllocString allocates a heap string and returns its Value.
// The empty string is served from the static singleton.
func (h *Heap) AllocString(s string) Value {
	if len(s) == 0 {
		return h.emptyString
	}
	o, v := h.allocate()
	o.setString([]byte(s))
	return v
}

// AllocStringBytes is AllocString for a byte slice payload.
// The bytes are copied.
func (h *Heap) AllocStringBytes(b []byte) Value {
	if len(b) == 0 {
		return h.emptyString
	}
	o, v := h.allocate()
	o.setString(b)
	return v
}

// AllocList allocates a heap list and returns its Value.
// The elements are copied; the empty list is the static singleton.
func (h *Heap) AllocList(elems []Value) Value {
	if len(elems) == 0 {
		return h.emptyList
	}
	o, v := h.allocate()
	o.setList(elems)
	return v
}

// EmptyString returns the permanent empty-string singleton.
func (h *Heap) EmptyString() Value { return h.emptyString }

// EmptyList returns the permanent empty-list singleton.
func (h *Heap) EmptyList() Value { return h.emptyList }

// allocate reserves an arena slot, collecting first when the allocation
// budget since the last cycle is exhausted.
func (h *Heap) allocate() (*Object, Value) {
	h.sinceGC++
	if h.threshold > 0 && h.sinceGC >= h.threshold && h.paused == 0 {
		h.Collect()
	}

	if n := len(h.free); n > 0 {
		slot := h.free[n-1]
		h.free = h.free[:n-1]
		o := h.objects[slot]
		o.setFlag(flagAllocated)
		return o, fromSlot(slot)
	}

	o := &Object{}
	o.setFlag(flagAllocated)
	slot := uint32(len(h.objects))
	h.objects = append(h.objects, o)
	return o, fromSlot(slot)
}

// ---------------------------------------------------------------------------
// Object resolution
// ---------------------------------------------------------------------------

// Object resolves an object Value to its header.
// Returns false if v is not an object Value.
func (h *Heap) Object(v Value) (*Object, bool) {
	if !v.IsObject() {
		return nil, false
	}
	return h.objects[v.slot()], true
}

// MustObject resolves an object Value to its header.
// Precondition: v.IsObject().
func (h *Heap) MustObject(v Value) *Object {
	return h.objects[v.slot()]
}

// AsString resolves v to a string object header, or false if v is not a
// heap string.
func (h *Heap) AsString(v Value) (*Object, bool) {
	if o, ok := h.Object(v); ok && o.kind == KindString {
		return o, true
	}
	return nil, false
}

// AsList resolves v to a list object header, or false if v is not a
// heap list.
func (h *Heap) AsList(v Value) (*Object, bool) {
	if o, ok := h.Object(v); ok && o.kind == KindList {
		return o, true
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports value equality: the raw words are compared first (which
// covers integers, booleans, null, blocks, and identical heap pointers),
// then distinct heap objects are compared by content.
func (h *Heap) Equal(a, b Value) bool {
	if a == b {
		return true
	}
	if !a.IsObject() || !b.IsObject() {
		return false
	}
	oa, ob := h.MustObject(a), h.MustObject(b)
	if oa.kind != ob.kind || oa.length != ob.length {
		return false
	}
	switch oa.kind {
	case KindString:
		ab, bb := oa.Bytes(), ob.Bytes()
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	case KindList:
		ae, be := oa.Elems(), ob.Elems()
		for i := range ae {
			if !h.Equal(ae[i], be[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Roots and collection
// ---------------------------------------------------------------------------

// AddRoot registers a root-enumeration callback and returns a handle
// for RemoveRoot.
func (h *Heap) AddRoot(fn RootFunc) int {
	id := h.nextRoot
	h.nextRoot++
	h.roots[id] = fn
	return id
}

// RemoveRoot unregisters a root set.
func (h *Heap) RemoveRoot(id int) {
	delete(h.roots, id)
}

// CollectAtSafePoint runs a cycle when the allocation budget since the
// last cycle is exhausted. Callers that keep the heap paused while an
// operation's intermediate values live outside any root set call this
// between operations, where the roots cover everything live.
func (h *Heap) CollectAtSafePoint() {
	if h.threshold > 0 && h.sinceGC >= h.threshold && h.paused == 0 {
		h.Collect()
	}
}

// Pause suppresses automatic collection until a matching Unpause.
// Pauses nest; the compiler pauses for the whole build so partially
// constructed constant pools are never treated as garbage.
func (h *Heap) Pause() {
	h.paused++
}

// Unpause re-enables collection after a Pause.
func (h *Heap) Unpause() {
	if h.paused == 0 {
		panic("value.Heap: Unpause without Pause")
	}
	h.paused--
}

// Paused reports whether collection is currently suppressed.
func (h *Heap) Paused() bool { return h.paused > 0 }

// Live returns the number of allocated, non-static objects.
func (h *Heap) Live() int {
	n := 0
	for _, o := range h.objects {
		if o.allocated() && !o.Static() {
			n++
		}
	}
	return n
}

// SweepCount returns the number of completed collection cycles.
func (h *Heap) SweepCount() uint64 { return h.sweepCount }

// LastStats returns statistics from the most recent cycle.
func (h *Heap) LastStats() CollectStats { return h.lastStats }

// Collect runs one mark-and-sweep cycle: every registered root set is
// enumerated and reachable objects get their mark bit set, then every
// allocated non-static object left unmarked is freed. All mark bits are
// cleared for the next cycle. Collect is a no-op while paused.
func (h *Heap) Collect() CollectStats {
	if h.paused > 0 {
		return CollectStats{Timestamp: time.Now()}
	}

	start := time.Now()
	stats := CollectStats{Timestamp: start}

	for _, root := range h.roots {
		root(h.mark)
	}

	for slot, o := range h.objects {
		if !o.allocated() || o.Static() {
			continue
		}
		if o.marked() {
			stats.Marked++
			o.clearFlag(flagMarked)
			continue
		}
		o.release()
		h.free = append(h.free, uint32(slot))
		stats.Swept++
	}

	stats.Live = stats.Marked
	stats.Duration = time.Since(start)
	h.sinceGC = 0
	h.sweepCount++
	h.lastStats = stats

	h.log.Debugf("collect: marked=%d swept=%d live=%d in %s",
		stats.Marked, stats.Swept, stats.Live, stats.Duration)
	return stats
}

// mark sets the mark bit on v's object and, for lists, on everything
// reachable through it. The mark-bit check terminates cyclic structures.
func (h *Heap) mark(v Value) {
	if !v.IsObject() {
		return
	}
	o := h.objects[v.slot()]
	if o.marked() || o.Static() || !o.allocated() {
		return
	}
	o.setFlag(flagMarked)
	if o.kind == KindList {
		for _, e := range o.Elems() {
			h.mark(e)
		}
	}
}
