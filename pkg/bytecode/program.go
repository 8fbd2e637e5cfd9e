package bytecode

import (
	"github.com/google/uuid"

	"github.com/skink-lang/skink/pkg/value"
)

// Program is a compiled unit: packed instruction words, a deduplicated
// constant pool, and the variable-slot count. It is built once by the
// compiler and is immutable for the lifetime of a VM run; the builder
// methods below are only called before the Program is handed off.
type Program struct {
	// ID correlates log lines and disassembly with a particular
	// compilation. It plays no part in execution.
	ID string

	// Origin describes where the source came from (file path, inline
	// expression, stdin) for diagnostics.
	Origin string

	Code      []Word
	Constants []value.Value

	// NumVars is the number of variable slots the VM must reserve.
	// Slot indices are assigned in first-use order during compilation
	// and are stable for the whole Program.
	NumVars int

	// VarNames maps slot index back to source name, for runtime error
	// messages and disassembly.
	VarNames []string
}

// NewProgram creates an empty program ready for emission.
func NewProgram(origin string) *Program {
	return &Program{
		ID:        uuid.NewString(),
		Origin:    origin,
		Code:      make([]Word, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// Value aliases value.Value for the constant pool.
type Value = value.Value

// AddConstant adds a Value to the pool and returns its index. Equal
// values share one entry: the pool is deduplicated by a linear scan
// using Value equality (content equality for heap objects), which is
// acceptable because pools stay small and compilation is one-shot.
func (p *Program) AddConstant(h *value.Heap, v value.Value) int {
	for i, c := range p.Constants {
		if h.Equal(c, v) {
			return i
		}
	}
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// Emit appends an instruction with no offset field and returns its index.
func (p *Program) Emit(op Opcode) int {
	pos := len(p.Code)
	p.Code = append(p.Code, MakeWord(op, 0))
	return pos
}

// EmitOffset appends an instruction carrying an offset and returns its
// index.
func (p *Program) EmitOffset(op Opcode, offset int) int {
	pos := len(p.Code)
	p.Code = append(p.Code, MakeWord(op, offset))
	return pos
}

// EmitConstant pushes v through the constant pool and emits the
// corresponding PUSH_CONST.
func (p *Program) EmitConstant(h *value.Heap, v value.Value) int {
	return p.EmitOffset(OpPushConst, p.AddConstant(h, v))
}

// Len returns the current instruction count, which is also the index
// the next emitted instruction will occupy.
func (p *Program) Len() int {
	return len(p.Code)
}
