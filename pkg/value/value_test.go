package value

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Integer tests
// ---------------------------------------------------------------------------

func TestIntRoundTrip(t *testing.T) {
	tests := []int64{
		0,
		1,
		-1,
		42,
		-42,
		1 << 30,
		-(1 << 30),
		MaxInt,
		MinInt,
		MaxInt - 1,
		MinInt + 1,
	}

	for _, n := range tests {
		v := FromInt(n)
		if !v.IsInt() {
			t.Errorf("FromInt(%d).IsInt() = false, want true", n)
			continue
		}
		got, ok := v.AsInt()
		if !ok {
			t.Errorf("FromInt(%d).AsInt() not ok", n)
			continue
		}
		if got != n {
			t.Errorf("FromInt(%d).AsInt() = %d, want %d", n, got, n)
		}
		if v.MustInt() != n {
			t.Errorf("FromInt(%d).MustInt() = %d, want %d", n, v.MustInt(), n)
		}
	}
}

func TestTryFromIntRange(t *testing.T) {
	if _, ok := TryFromInt(MaxInt); !ok {
		t.Error("TryFromInt(MaxInt) should succeed")
	}
	if _, ok := TryFromInt(MinInt); !ok {
		t.Error("TryFromInt(MinInt) should succeed")
	}
	if _, ok := TryFromInt(MaxInt + 1); ok {
		t.Error("TryFromInt(MaxInt+1) should fail")
	}
	if _, ok := TryFromInt(MinInt - 1); ok {
		t.Error("TryFromInt(MinInt-1) should fail")
	}
}

func TestIntTypeChecks(t *testing.T) {
	v := FromInt(7)
	if v.IsBool() {
		t.Error("IsBool should be false for integer")
	}
	if v.IsNull() {
		t.Error("IsNull should be false for integer")
	}
	if v.IsBlock() {
		t.Error("IsBlock should be false for integer")
	}
	if v.IsObject() {
		t.Error("IsObject should be false for integer")
	}
	if v.Tag() != TagInt {
		t.Errorf("Tag() = %v, want TagInt", v.Tag())
	}
}

// ---------------------------------------------------------------------------
// Constant tests
// ---------------------------------------------------------------------------

func TestConstants(t *testing.T) {
	if !True.IsBool() || !False.IsBool() {
		t.Error("True and False should be booleans")
	}
	if !Null.IsNull() {
		t.Error("Null.IsNull() should be true")
	}
	if Null.IsBool() {
		t.Error("Null should not be a boolean")
	}
	if !Absent.IsAbsent() {
		t.Error("Absent.IsAbsent() should be true")
	}
	if Absent.IsBool() || Absent.IsNull() {
		t.Error("Absent should be neither boolean nor null")
	}

	if b, ok := True.AsBool(); !ok || !b {
		t.Error("True.AsBool() = (false, _) or not ok")
	}
	if b, ok := False.AsBool(); !ok || b {
		t.Error("False.AsBool() = (true, _) or not ok")
	}
	if !True.MustBool() || False.MustBool() {
		t.Error("MustBool mismatch")
	}

	if FromBool(true) != True || FromBool(false) != False {
		t.Error("FromBool should produce the reserved encodings")
	}
}

func TestConstantsAreDistinct(t *testing.T) {
	all := []Value{True, False, Null, Absent, FromInt(0), FromBlock(0)}
	for i := range all {
		for j := range all {
			if i != j && all[i] == all[j] {
				t.Errorf("values %d and %d share an encoding", i, j)
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Block tests
// ---------------------------------------------------------------------------

func TestBlockRoundTrip(t *testing.T) {
	for _, pos := range []int{0, 1, 17, 1 << 20} {
		v := FromBlock(pos)
		if !v.IsBlock() {
			t.Errorf("FromBlock(%d).IsBlock() = false", pos)
		}
		got, ok := v.AsBlock()
		if !ok || got != pos {
			t.Errorf("FromBlock(%d).AsBlock() = (%d, %v), want (%d, true)", pos, got, ok, pos)
		}
		if v.MustBlock() != pos {
			t.Errorf("MustBlock() = %d, want %d", v.MustBlock(), pos)
		}
	}
}

// ---------------------------------------------------------------------------
// Accessor contract tests
// ---------------------------------------------------------------------------

func TestCheckedAccessorsRejectWrongTag(t *testing.T) {
	if _, ok := True.AsInt(); ok {
		t.Error("True.AsInt() should not be ok")
	}
	if _, ok := FromInt(1).AsBool(); ok {
		t.Error("int.AsBool() should not be ok")
	}
	if _, ok := Null.AsBlock(); ok {
		t.Error("Null.AsBlock() should not be ok")
	}
}

func TestMustAccessorsPanicOnWrongTag(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustInt on a boolean should panic")
		}
	}()
	_ = True.MustInt()
}
