package bytecode

import (
	"fmt"
	"strings"

	"github.com/skink-lang/skink/pkg/value"
)

// Disassemble returns a human-readable listing of the program: a
// header, the constant pool, the variable slot table, and the annotated
// code section. The heap resolves string and list constants for
// display; pass nil to show only their slots.
func Disassemble(p *Program, h *value.Heap) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; === %s ===\n", p.Origin))
	sb.WriteString(fmt.Sprintf("; Program %s\n", p.ID))
	sb.WriteString("\n")

	if len(p.Constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, c := range p.Constants {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, formatConstant(h, c)))
		}
		sb.WriteString("\n")
	}

	if p.NumVars > 0 {
		sb.WriteString(fmt.Sprintf("; Variables (%d): ", p.NumVars))
		sb.WriteString(strings.Join(p.VarNames, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("; Code:\n")
	for pos := range p.Code {
		sb.WriteString(FormatInstruction(p, pos))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatInstruction renders the single instruction at pos with its
// position and offset annotation. Used for listings and the VM trace.
func FormatInstruction(p *Program, pos int) string {
	w := p.Code[pos]
	op := w.Op()
	if !op.HasOffset() {
		return fmt.Sprintf("%04d  %s", pos, op)
	}
	line := fmt.Sprintf("%04d  %-12s %d", pos, op.String(), w.Offset())
	switch op {
	case OpJump, OpJumpIfTrue, OpJumpIfFalse:
		return fmt.Sprintf("%s  ; -> %04d", line, w.Offset())
	case OpGetVar, OpSetVar, OpSetVarPop:
		if w.Offset() < len(p.VarNames) {
			return fmt.Sprintf("%s  ; %s", line, p.VarNames[w.Offset()])
		}
	}
	return line
}

// formatConstant renders one constant-pool entry.
func formatConstant(h *value.Heap, v value.Value) string {
	switch {
	case v.IsInt():
		return fmt.Sprintf("%d", v.MustInt())
	case v == value.True:
		return "true"
	case v == value.False:
		return "false"
	case v.IsNull():
		return "null"
	case v.IsBlock():
		return fmt.Sprintf("<block@%d>", v.MustBlock())
	}
	if h == nil {
		return "<object>"
	}
	o := h.MustObject(v)
	if o.Kind() == value.KindString {
		display := o.String()
		if len(display) > 40 {
			display = display[:37] + "..."
		}
		return fmt.Sprintf("%q", display)
	}
	return fmt.Sprintf("<list len=%d>", o.Len())
}
