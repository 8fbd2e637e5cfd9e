package bytecode

import "fmt"

// Opcode is the packed low byte of an instruction word:
//
//	(arity << 5) | (id << 1) | takesOffset
//
// Arity is the number of operand-stack values the instruction consumes,
// so the VM can dispatch and determine operand popping from the same
// byte without a side table. The id is only unique within one
// (arity, takesOffset) group.
type Opcode byte

const opFlagOffset Opcode = 1

const (
	// ========================================================================
	// Control opcodes — always carry an offset in the instruction word
	// (a constant-pool index, a variable slot, or an absolute jump target).
	// ========================================================================

	OpPushConst Opcode = 0<<5 | 0<<1 | opFlagOffset // Push Constants[offset]
	OpJump      Opcode = 0<<5 | 1<<1 | opFlagOffset // pc = offset
	OpGetVar    Opcode = 0<<5 | 2<<1 | opFlagOffset // Push variable slot `offset`
	OpSetVar    Opcode = 0<<5 | 3<<1 | opFlagOffset // Store TOS to slot (keeps TOS)

	OpJumpIfTrue  Opcode = 1<<5 | 0<<1 | opFlagOffset // Pop; jump when truthy
	OpJumpIfFalse Opcode = 1<<5 | 1<<1 | opFlagOffset // Pop; jump when falsy
	OpSetVarPop   Opcode = 1<<5 | 2<<1 | opFlagOffset // Pop and store to slot

	// ========================================================================
	// Arity-0 builtins — push a produced value with no stack consumption.
	// ========================================================================

	OpPrompt Opcode = 0<<5 | 0<<1 // Read one input line (null at EOF)
	OpRandom Opcode = 0<<5 | 1<<1 // Push a non-negative random integer
	OpDup    Opcode = 0<<5 | 2<<1 // Duplicate TOS

	// ========================================================================
	// Arity-1 builtins.
	// ========================================================================

	OpPop    Opcode = 1<<5 | 0<<1  // Discard TOS (produces nothing)
	OpReturn Opcode = 1<<5 | 1<<1  // Resume caller; terminates at top level
	OpCall   Opcode = 1<<5 | 2<<1  // Invoke a block value
	OpQuit   Opcode = 1<<5 | 3<<1  // Terminate with an exit status
	OpDump   Opcode = 1<<5 | 4<<1  // Debug-print TOS without consuming it
	OpOutput Opcode = 1<<5 | 5<<1  // Print as string; push null
	OpLength Opcode = 1<<5 | 6<<1  // Container length
	OpNot    Opcode = 1<<5 | 7<<1  // Boolean negation
	OpNegate Opcode = 1<<5 | 8<<1  // Arithmetic negation
	OpAscii  Opcode = 1<<5 | 9<<1  // Char code <-> one-character string
	OpBox    Opcode = 1<<5 | 10<<1 // Wrap TOS in a one-element list
	OpHead   Opcode = 1<<5 | 11<<1 // First element / first character
	OpTail   Opcode = 1<<5 | 12<<1 // All but the first element / character

	// Extension builtins, gated by configuration at compile time.
	OpSystem   Opcode = 1<<5 | 13<<1 // Run a shell command, push its output
	OpReadFile Opcode = 1<<5 | 14<<1 // Read a file into a string

	// ========================================================================
	// Arity-2 builtins. Dispatch is on the left operand's runtime tag;
	// the right operand is coerced (or a type error is raised).
	// ========================================================================

	OpAdd     Opcode = 2<<5 | 0<<1
	OpSub     Opcode = 2<<5 | 1<<1
	OpMul     Opcode = 2<<5 | 2<<1
	OpDiv     Opcode = 2<<5 | 3<<1
	OpMod     Opcode = 2<<5 | 4<<1
	OpPow     Opcode = 2<<5 | 5<<1
	OpLess    Opcode = 2<<5 | 6<<1
	OpGreater Opcode = 2<<5 | 7<<1
	OpEqual   Opcode = 2<<5 | 8<<1

	// ========================================================================
	// Arity-3 / arity-4 builtins.
	// ========================================================================

	OpGet Opcode = 3<<5 | 0<<1 // container, start, count -> slice
	OpSet Opcode = 4<<5 | 0<<1 // container, start, count, replacement -> copy
)

// Arity returns the number of operand-stack values the opcode consumes.
// OpDump is encoded with arity 1 but peeks instead of popping; OpSetVar
// likewise leaves its operand in place.
func (op Opcode) Arity() int {
	return int(op >> 5)
}

// HasOffset reports whether the instruction word carries an offset field.
func (op Opcode) HasOffset() bool {
	return op&opFlagOffset != 0
}

// OpcodeInfo provides metadata about each opcode for disassembly and
// validation.
type OpcodeInfo struct {
	Name      string // Human-readable name
	StackPop  int    // Values actually popped (may differ from Arity for peeks)
	StackPush int    // Values pushed
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpPushConst: {"PUSH_CONST", 0, 1},
	OpJump:      {"JUMP", 0, 0},
	OpGetVar:    {"GET_VAR", 0, 1},
	OpSetVar:    {"SET_VAR", 0, 0},

	OpJumpIfTrue:  {"JUMP_TRUE", 1, 0},
	OpJumpIfFalse: {"JUMP_FALSE", 1, 0},
	OpSetVarPop:   {"SET_VAR_POP", 1, 0},

	OpPrompt: {"PROMPT", 0, 1},
	OpRandom: {"RANDOM", 0, 1},
	OpDup:    {"DUP", 0, 1},

	OpPop:      {"POP", 1, 0},
	OpReturn:   {"RETURN", 1, 0},
	OpCall:     {"CALL", 1, 1},
	OpQuit:     {"QUIT", 1, 0},
	OpDump:     {"DUMP", 0, 0},
	OpOutput:   {"OUTPUT", 1, 1},
	OpLength:   {"LENGTH", 1, 1},
	OpNot:      {"NOT", 1, 1},
	OpNegate:   {"NEGATE", 1, 1},
	OpAscii:    {"ASCII", 1, 1},
	OpBox:      {"BOX", 1, 1},
	OpHead:     {"HEAD", 1, 1},
	OpTail:     {"TAIL", 1, 1},
	OpSystem:   {"SYSTEM", 1, 1},
	OpReadFile: {"READ_FILE", 1, 1},

	OpAdd:     {"ADD", 2, 1},
	OpSub:     {"SUB", 2, 1},
	OpMul:     {"MUL", 2, 1},
	OpDiv:     {"DIV", 2, 1},
	OpMod:     {"MOD", 2, 1},
	OpPow:     {"POW", 2, 1},
	OpLess:    {"LESS", 2, 1},
	OpGreater: {"GREATER", 2, 1},
	OpEqual:   {"EQUAL", 2, 1},

	OpGet: {"GET", 3, 1},
	OpSet: {"SET", 4, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with an UNKNOWN name if the opcode is not
// recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsJump returns true if this opcode rewrites the program counter.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpIfTrue || op == OpJumpIfFalse
}

// AllOpcodes returns every defined opcode.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// ---------------------------------------------------------------------------
// Instruction words
// ---------------------------------------------------------------------------

// Word is one packed instruction: the opcode byte in the low 8 bits and,
// when the opcode's offset flag is set, a 24-bit offset in the high bits.
type Word uint32

// MaxOffset is the largest encodable offset field.
const MaxOffset = 1<<24 - 1

// MakeWord packs an opcode and offset into a single instruction word.
// Panics if the offset does not fit: programs near the limit are beyond
// any realistic source input and indicate a compiler bug.
func MakeWord(op Opcode, offset int) Word {
	if offset < 0 || offset > MaxOffset {
		panic(fmt.Sprintf("bytecode: offset %d out of range for %s", offset, op))
	}
	return Word(uint32(op) | uint32(offset)<<8)
}

// Op returns the opcode byte of the word.
func (w Word) Op() Opcode {
	return Opcode(w)
}

// Offset returns the offset field of the word.
func (w Word) Offset() int {
	return int(w >> 8)
}
