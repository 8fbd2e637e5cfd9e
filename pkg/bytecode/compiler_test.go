package bytecode

import (
	"strings"
	"testing"

	"github.com/skink-lang/skink/config"
	"github.com/skink-lang/skink/pkg/value"
)

func compileSource(t *testing.T, src string) (*Program, *value.Heap) {
	t.Helper()
	heap := value.NewHeap()
	prog, err := Compile(src, "<test>", nil, heap)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	return prog, heap
}

func assertOps(t *testing.T, prog *Program, want []Opcode) {
	t.Helper()
	if len(prog.Code) != len(want) {
		t.Fatalf("instruction count = %d, want %d\n%s",
			len(prog.Code), len(want), Disassemble(prog, nil))
	}
	for i, op := range want {
		if got := prog.Code[i].Op(); got != op {
			t.Errorf("instruction %d = %s, want %s", i, got, op)
		}
	}
}

func TestCompileAddition(t *testing.T) {
	prog, _ := compileSource(t, "+ 1 2")
	assertOps(t, prog, []Opcode{OpPushConst, OpPushConst, OpAdd, OpReturn})
}

func TestCompileConstantDeduplication(t *testing.T) {
	prog, _ := compileSource(t, "+ 1 1")
	if len(prog.Constants) != 1 {
		t.Errorf("constant pool size = %d, want 1", len(prog.Constants))
	}

	prog, _ = compileSource(t, `+ "ab" "ab"`)
	if len(prog.Constants) != 1 {
		t.Errorf("string pool size = %d, want 1", len(prog.Constants))
	}
}

func TestCompileIf(t *testing.T) {
	prog, _ := compileSource(t, "I T 1 2")
	assertOps(t, prog, []Opcode{
		OpPushConst, OpJumpIfFalse, OpPushConst, OpJump, OpPushConst, OpReturn,
	})
	if got := prog.Code[1].Offset(); got != 4 {
		t.Errorf("else target = %d, want 4", got)
	}
	if got := prog.Code[3].Offset(); got != 5 {
		t.Errorf("end target = %d, want 5", got)
	}
}

func TestCompileWhile(t *testing.T) {
	prog, _ := compileSource(t, "W F 1")
	assertOps(t, prog, []Opcode{
		OpPushConst, OpJumpIfFalse, OpPushConst, OpPop, OpJump, OpPushConst, OpReturn,
	})
	if got := prog.Code[1].Offset(); got != 5 {
		t.Errorf("exit target = %d, want 5", got)
	}
	if got := prog.Code[4].Offset(); got != 0 {
		t.Errorf("loop-back target = %d, want 0", got)
	}
}

func TestCompileShortCircuitAnd(t *testing.T) {
	prog, _ := compileSource(t, `& F O "x"`)
	assertOps(t, prog, []Opcode{
		OpPushConst, OpDup, OpJumpIfFalse, OpPop, OpPushConst, OpOutput, OpReturn,
	})
	if got := prog.Code[2].Offset(); got != 6 {
		t.Errorf("skip target = %d, want 6", got)
	}
}

func TestCompileBlock(t *testing.T) {
	prog, _ := compileSource(t, "B + 1 2")
	assertOps(t, prog, []Opcode{
		OpJump, OpPushConst, OpPushConst, OpAdd, OpReturn, OpPushConst, OpReturn,
	})
	if got := prog.Code[0].Offset(); got != 5 {
		t.Errorf("skip target = %d, want 5", got)
	}
	// The block constant holds the body position.
	blockConst := prog.Constants[prog.Code[5].Offset()]
	if pos, ok := blockConst.AsBlock(); !ok || pos != 1 {
		t.Errorf("block constant = %v (pos %d), want block at 1", blockConst, pos)
	}
}

func TestCompileAssignmentKeepsValue(t *testing.T) {
	prog, _ := compileSource(t, "= x 1")
	assertOps(t, prog, []Opcode{OpPushConst, OpSetVar, OpReturn})
}

func TestCompileDiscardedAssignmentFolds(t *testing.T) {
	prog, _ := compileSource(t, "; = x 1 x")
	assertOps(t, prog, []Opcode{OpPushConst, OpSetVarPop, OpGetVar, OpReturn})
}

func TestCompileFoldStopsAtJoinPoint(t *testing.T) {
	// The else branch ends in SET_VAR and a jump joins right after it:
	// folding would strand the then branch's value on the stack.
	prog, _ := compileSource(t, "; I T 2 = x 1 x")
	if got := prog.Code[5].Op(); got != OpSetVar {
		t.Errorf("instruction 5 = %s, want SET_VAR", got)
	}
	if got := prog.Code[6].Op(); got != OpPop {
		t.Errorf("instruction 6 = %s, want POP", got)
	}
}

func TestCompileVariableSlotsFirstUseOrder(t *testing.T) {
	prog, _ := compileSource(t, "; = b 1 ; = a 2 ; b + a b")
	if prog.NumVars != 2 {
		t.Fatalf("NumVars = %d, want 2", prog.NumVars)
	}
	want := []string{"b", "a"}
	for i, name := range want {
		if prog.VarNames[i] != name {
			t.Errorf("slot %d = %q, want %q", i, prog.VarNames[i], name)
		}
	}
}

func TestCompileCommentsAndParensAreWhitespace(t *testing.T) {
	prog, _ := compileSource(t, "(+ 1 # comment\n 2)")
	assertOps(t, prog, []Opcode{OpPushConst, OpPushConst, OpAdd, OpReturn})
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"", "empty source"},
		{"# only a comment", "empty source"},
		{"+ 1", "missing argument 2 for +"},
		{"O", "missing argument 1 for O"},
		{`"abc`, "unterminated string literal"},
		{"= 1 2", "assignment to non-variable"},
		{"Z", `unknown function "Z"`},
		{"XFOO 1", `unknown extension "XFOO"`},
		{"$ 1", "extension $ is disabled"},
		{"XREAD 1", "extension XREAD is disabled"},
		{"9999999999999999999", "integer literal overflow"},
		{"`", "unknown token start"},
	}
	for _, c := range cases {
		heap := value.NewHeap()
		_, err := Compile(c.src, "<test>", nil, heap)
		if err == nil {
			t.Errorf("Compile(%q) succeeded, want error containing %q", c.src, c.want)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("Compile(%q) error = %q, want substring %q", c.src, err, c.want)
		}
		if _, ok := AsParseError(err); !ok {
			t.Errorf("Compile(%q) error is %T, want *ParseError", c.src, err)
		}
	}
}

func TestCompileErrorReportsLine(t *testing.T) {
	heap := value.NewHeap()
	_, err := Compile("; 1\n; 2\n+ 1", "input.sk", nil, heap)
	pe, ok := AsParseError(err)
	if !ok {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	if pe.Line != 3 {
		t.Errorf("Line = %d, want 3", pe.Line)
	}
	if pe.Origin != "input.sk" {
		t.Errorf("Origin = %q, want input.sk", pe.Origin)
	}
}

func TestCompileTrailingTokens(t *testing.T) {
	heap := value.NewHeap()
	prog, err := Compile("1 2", "<test>", nil, heap)
	if err != nil {
		t.Fatalf("default mode rejected trailing tokens: %v", err)
	}
	if len(prog.Constants) != 1 {
		t.Errorf("trailing expression was compiled: pool size %d", len(prog.Constants))
	}

	cfg := config.Default()
	cfg.Compliance.Strict = true
	if _, err := Compile("1 2", "<test>", cfg, heap); err == nil {
		t.Error("strict mode accepted trailing tokens")
	}
}

func TestCompileEncodingChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Compliance.CheckEncoding = true

	cfg.Encoding = config.EncodingASCII
	heap := value.NewHeap()
	if _, err := Compile(`O "héllo"`, "<test>", cfg, heap); err == nil {
		t.Error("ascii encoding accepted a non-ascii byte")
	}

	cfg.Encoding = config.EncodingMinimal
	if _, err := Compile("O \"a\x01b\"", "<test>", cfg, heap); err == nil {
		t.Error("minimal encoding accepted a control byte")
	}

	cfg.Encoding = config.EncodingUTF8
	if _, err := Compile("O \"\xff\xfe\"", "<test>", cfg, heap); err == nil {
		t.Error("utf8 encoding accepted an invalid sequence")
	}
	if _, err := Compile(`O "héllo"`, "<test>", cfg, heap); err != nil {
		t.Errorf("utf8 encoding rejected valid input: %v", err)
	}
}

func TestCompileStrictVariableLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Compliance.Strict = true
	cfg.Compliance.MaxVariableName = 4

	heap := value.NewHeap()
	if _, err := Compile("= toolong 1", "<test>", cfg, heap); err == nil {
		t.Error("strict mode accepted an overlong variable name")
	}

	cfg.Compliance.MaxVariableName = 127
	cfg.Compliance.MaxVariables = 1
	if _, err := Compile("; = a 1 = b 2", "<test>", cfg, heap); err == nil {
		t.Error("strict mode accepted a second variable over the limit")
	}

	// The same variable reused is one slot, not two.
	if _, err := Compile("; = a 1 = a 2", "<test>", cfg, heap); err != nil {
		t.Errorf("reuse of one variable rejected: %v", err)
	}
}

func TestCompileHeapStaysPaused(t *testing.T) {
	heap := value.NewHeap()
	heap.SetCollectThreshold(1)
	src := `+ + "a" "b" + "c" "d"`
	if _, err := Compile(src, "<test>", nil, heap); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if heap.SweepCount() != 0 {
		t.Errorf("collection ran during compilation (%d cycles)", heap.SweepCount())
	}
	if heap.Paused() {
		t.Error("heap still paused after compilation")
	}
}
