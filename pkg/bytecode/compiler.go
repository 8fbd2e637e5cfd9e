package bytecode

import (
	"fmt"
	"unicode/utf8"

	"github.com/skink-lang/skink/config"
	"github.com/skink-lang/skink/pkg/value"
)

// Compiler turns a character stream directly into a Program: there is
// no intermediate tree. Literal and variable forms emit instructions as
// soon as they are parsed; control-flow forms emit partial sequences
// and defer jump targets until the target position is known.
type Compiler struct {
	src    []byte
	pos    int
	line   int
	origin string

	cfg  *config.Config
	heap *value.Heap
	prog *Program

	// Variable name -> dense slot index, assigned in first-use order.
	vars map[string]int

	// Explicit loop-context stack for while compilation.
	loops []*loopContext

	// Count of deferred jumps not yet resolved; must reach zero before
	// the Program is finalized.
	pending int

	// Highest position any resolved jump targets, so peepholes never
	// rewrite across a join point.
	maxJoin int
}

// loopContext tracks one while loop under compilation: its condition
// position and every deferred jump that exits it.
type loopContext struct {
	start int
	exits []*deferredJump
}

// deferredJump is a fixup handle for a jump emitted before its target
// is known. It is consumed exactly once by patchHere/patchTo.
type deferredJump struct {
	pos      int
	resolved bool
}

// Compile parses source and returns the compiled Program. The origin
// describes the source for diagnostics (a path, "<expr>", "<stdin>").
// A nil cfg means config.Default(). The heap stays paused for the whole
// build so constants under construction are never collected.
func Compile(source, origin string, cfg *config.Config, heap *value.Heap) (*Program, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Compiler{
		src:    []byte(source),
		line:   1,
		origin: origin,
		cfg:    cfg,
		heap:   heap,
		prog:   NewProgram(origin),
		vars:   make(map[string]int),
	}

	heap.Pause()
	defer heap.Unpause()

	if cfg.EncodingChecked() {
		if err := c.validateEncoding(); err != nil {
			return nil, err
		}
	}

	c.skipWhitespace()
	if c.eof() {
		return nil, c.errf("empty source")
	}
	if err := c.compileExpr(); err != nil {
		return nil, err
	}
	if cfg.TrailingTokensForbidden() {
		c.skipWhitespace()
		if !c.eof() {
			return nil, c.errf("trailing tokens after program end")
		}
	}

	// The implicit outermost return: falling off it ends the program.
	c.prog.Emit(OpReturn)

	if c.pending != 0 {
		panic("bytecode: deferred jump left unresolved at finalization")
	}
	c.prog.NumVars = len(c.vars)
	return c.prog, nil
}

// ---------------------------------------------------------------------------
// Expression compilation
// ---------------------------------------------------------------------------

// compileExpr compiles one expression, leaving exactly one value on the
// operand stack at run time. The caller has already skipped whitespace
// and guaranteed there is input left.
func (c *Compiler) compileExpr() error {
	ch := c.src[c.pos]
	switch {
	case ch >= '0' && ch <= '9':
		return c.compileInteger()
	case ch >= 'a' && ch <= 'z' || ch == '_':
		name, err := c.scanVariable()
		if err != nil {
			return err
		}
		slot, err := c.resolveVariable(name)
		if err != nil {
			return err
		}
		c.prog.EmitOffset(OpGetVar, slot)
		return nil
	case ch == '"' || ch == '\'':
		return c.compileString()
	case ch >= 'A' && ch <= 'Z':
		return c.compileWordFunction()
	default:
		return c.compileSymbolFunction()
	}
}

// compileArg compiles the idx-th (1-based) argument of fn, reporting a
// missing-argument error when the input runs out first.
func (c *Compiler) compileArg(fn string, idx int) error {
	c.skipWhitespace()
	if c.eof() {
		return c.errf("missing argument %d for %s", idx, fn)
	}
	return c.compileExpr()
}

func (c *Compiler) compileInteger() error {
	var n int64
	for !c.eof() && c.src[c.pos] >= '0' && c.src[c.pos] <= '9' {
		d := int64(c.src[c.pos] - '0')
		if n > (value.MaxInt-d)/10 {
			return c.errf("integer literal overflow")
		}
		n = n*10 + d
		c.pos++
	}
	c.prog.EmitConstant(c.heap, value.FromInt(n))
	return nil
}

func (c *Compiler) compileString() error {
	quote := c.src[c.pos]
	startLine := c.line
	c.pos++
	start := c.pos
	for {
		if c.eof() {
			return c.errAt(startLine, "unterminated string literal")
		}
		b := c.src[c.pos]
		if b == quote {
			break
		}
		if b == '\n' {
			c.line++
		}
		c.pos++
	}
	// No escape sequences: the payload is the raw bytes between quotes.
	s := string(c.src[start:c.pos])
	c.pos++
	c.prog.EmitConstant(c.heap, c.heap.AllocString(s))
	return nil
}

// compileWordFunction handles upper-case word functions. The token is
// the leading letter plus any run of upper-case letters and
// underscores, so OUTPUT and O spell the same function.
func (c *Compiler) compileWordFunction() error {
	start := c.pos
	c.pos++
	for !c.eof() && (c.src[c.pos] >= 'A' && c.src[c.pos] <= 'Z' || c.src[c.pos] == '_') {
		c.pos++
	}
	word := string(c.src[start:c.pos])

	switch word[0] {
	case 'T':
		c.prog.EmitConstant(c.heap, value.True)
		return nil
	case 'F':
		c.prog.EmitConstant(c.heap, value.False)
		return nil
	case 'N':
		c.prog.EmitConstant(c.heap, value.Null)
		return nil
	case 'P':
		c.prog.Emit(OpPrompt)
		return nil
	case 'R':
		c.prog.Emit(OpRandom)
		return nil
	case 'B':
		return c.compileBlock(word)
	case 'C':
		return c.compileUnary(word, OpCall)
	case 'Q':
		return c.compileUnary(word, OpQuit)
	case 'D':
		return c.compileUnary(word, OpDump)
	case 'O':
		return c.compileUnary(word, OpOutput)
	case 'L':
		return c.compileUnary(word, OpLength)
	case 'A':
		return c.compileUnary(word, OpAscii)
	case 'I':
		return c.compileIf(word)
	case 'W':
		return c.compileWhile(word)
	case 'G':
		return c.compileBuiltin(word, OpGet, 3)
	case 'S':
		return c.compileBuiltin(word, OpSet, 4)
	case 'X':
		return c.compileExtensionWord(word)
	default:
		return c.errf("unknown function %q", word)
	}
}

func (c *Compiler) compileExtensionWord(word string) error {
	switch word {
	case "XREAD":
		if !c.cfg.Extensions.ReadFile {
			return c.errf("extension %s is disabled", word)
		}
		return c.compileUnary(word, OpReadFile)
	default:
		return c.errf("unknown extension %q", word)
	}
}

func (c *Compiler) compileSymbolFunction() error {
	ch := c.src[c.pos]
	c.pos++
	fn := string(ch)

	switch ch {
	case ';':
		return c.compileSequence(fn)
	case '=':
		return c.compileAssignment(fn)
	case '&', '|':
		return c.compileLogic(fn, ch == '&')
	case ':':
		// Identity: compiles to its argument alone.
		return c.compileArg(fn, 1)
	case '+':
		return c.compileBuiltin(fn, OpAdd, 2)
	case '-':
		return c.compileBuiltin(fn, OpSub, 2)
	case '*':
		return c.compileBuiltin(fn, OpMul, 2)
	case '/':
		return c.compileBuiltin(fn, OpDiv, 2)
	case '%':
		return c.compileBuiltin(fn, OpMod, 2)
	case '^':
		return c.compileBuiltin(fn, OpPow, 2)
	case '<':
		return c.compileBuiltin(fn, OpLess, 2)
	case '>':
		return c.compileBuiltin(fn, OpGreater, 2)
	case '?':
		return c.compileBuiltin(fn, OpEqual, 2)
	case '!':
		return c.compileUnary(fn, OpNot)
	case '~':
		return c.compileUnary(fn, OpNegate)
	case ',':
		return c.compileUnary(fn, OpBox)
	case '[':
		return c.compileUnary(fn, OpHead)
	case ']':
		return c.compileUnary(fn, OpTail)
	case '@':
		c.prog.EmitConstant(c.heap, c.heap.EmptyList())
		return nil
	case '$':
		if !c.cfg.Extensions.System {
			return c.errf("extension $ is disabled")
		}
		return c.compileUnary(fn, OpSystem)
	default:
		return c.errf("unknown token start %q", string(ch))
	}
}

func (c *Compiler) compileUnary(fn string, op Opcode) error {
	if err := c.compileArg(fn, 1); err != nil {
		return err
	}
	c.prog.Emit(op)
	return nil
}

func (c *Compiler) compileBuiltin(fn string, op Opcode, arity int) error {
	for i := 1; i <= arity; i++ {
		if err := c.compileArg(fn, i); err != nil {
			return err
		}
	}
	c.prog.Emit(op)
	return nil
}

// compileSequence: compile left, discard its value, compile right.
// An assignment whose value is immediately discarded folds into
// SET_VAR_POP, but only when no already-resolved jump lands on the
// would-be pop site.
func (c *Compiler) compileSequence(fn string) error {
	if err := c.compileArg(fn, 1); err != nil {
		return err
	}
	if n := c.prog.Len(); n > 0 && c.prog.Code[n-1].Op() == OpSetVar && c.maxJoin < n {
		c.prog.Code[n-1] = MakeWord(OpSetVarPop, c.prog.Code[n-1].Offset())
	} else {
		c.prog.Emit(OpPop)
	}
	return c.compileArg(fn, 2)
}

// compileLogic lowers short-circuit `&`/`|`: the left value is
// duplicated so it can serve both as the test and, when the jump is
// taken, as the whole expression's result.
func (c *Compiler) compileLogic(fn string, isAnd bool) error {
	if err := c.compileArg(fn, 1); err != nil {
		return err
	}
	c.prog.Emit(OpDup)
	op := OpJumpIfTrue
	if isAnd {
		op = OpJumpIfFalse
	}
	skip := c.deferJump(op)
	c.prog.Emit(OpPop) // Discard the duplicated test value
	if err := c.compileArg(fn, 2); err != nil {
		return err
	}
	c.patchHere(skip)
	return nil
}

func (c *Compiler) compileIf(fn string) error {
	if err := c.compileArg(fn, 1); err != nil {
		return err
	}
	elseJump := c.deferJump(OpJumpIfFalse)
	if err := c.compileArg(fn, 2); err != nil {
		return err
	}
	endJump := c.deferJump(OpJump)
	c.patchHere(elseJump)
	if err := c.compileArg(fn, 3); err != nil {
		return err
	}
	c.patchHere(endJump)
	return nil
}

// compileWhile lowers a loop. The loop's own exit jump joins the
// loop-context's exit list so every way out of the loop lands just past
// it; a while expression always evaluates to null.
func (c *Compiler) compileWhile(fn string) error {
	loopStart := c.prog.Len()
	if err := c.compileArg(fn, 1); err != nil {
		return err
	}
	exit := c.deferJump(OpJumpIfFalse)

	ctx := &loopContext{start: loopStart, exits: []*deferredJump{exit}}
	c.loops = append(c.loops, ctx)

	if err := c.compileArg(fn, 2); err != nil {
		return err
	}
	c.prog.Emit(OpPop) // Body value is discarded each iteration
	c.prog.EmitOffset(OpJump, loopStart)

	c.loops = c.loops[:len(c.loops)-1]
	for _, j := range ctx.exits {
		c.patchHere(j)
	}
	c.prog.EmitConstant(c.heap, value.Null)
	return nil
}

// compileAssignment: the target must be a variable syntactically; the
// value expression compiles first, then SET_VAR rebinds the slot while
// leaving the value as the expression result.
func (c *Compiler) compileAssignment(fn string) error {
	c.skipWhitespace()
	if c.eof() {
		return c.errf("missing argument 1 for %s", fn)
	}
	ch := c.src[c.pos]
	if !(ch >= 'a' && ch <= 'z' || ch == '_') {
		return c.errf("assignment to non-variable (unexpected %q)", string(ch))
	}
	name, err := c.scanVariable()
	if err != nil {
		return err
	}
	slot, err := c.resolveVariable(name)
	if err != nil {
		return err
	}
	if err := c.compileArg(fn, 2); err != nil {
		return err
	}
	c.prog.EmitOffset(OpSetVar, slot)
	return nil
}

// compileBlock: jump over the body so control never falls into it, then
// push the body's start position as a block constant. CALL transfers to
// that position; the trailing RETURN resumes the caller.
func (c *Compiler) compileBlock(fn string) error {
	skip := c.deferJump(OpJump)
	body := c.prog.Len()
	if err := c.compileArg(fn, 1); err != nil {
		return err
	}
	c.prog.Emit(OpReturn)
	c.patchHere(skip)
	c.prog.EmitConstant(c.heap, value.FromBlock(body))
	return nil
}

// ---------------------------------------------------------------------------
// Variable table
// ---------------------------------------------------------------------------

func (c *Compiler) scanVariable() (string, error) {
	start := c.pos
	for !c.eof() {
		b := c.src[c.pos]
		if b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_' {
			c.pos++
			continue
		}
		break
	}
	name := string(c.src[start:c.pos])
	if max := c.cfg.VariableNameLimit(); max > 0 && len(name) > max {
		return "", c.errf("variable name %q exceeds %d characters", name, max)
	}
	return name, nil
}

// resolveVariable returns the slot for name, allocating the next dense
// slot on first use.
func (c *Compiler) resolveVariable(name string) (int, error) {
	if slot, ok := c.vars[name]; ok {
		return slot, nil
	}
	if max := c.cfg.VariableCountLimit(); max > 0 && len(c.vars) >= max {
		return 0, c.errf("too many variables (limit %d)", max)
	}
	slot := len(c.vars)
	c.vars[name] = slot
	c.prog.VarNames = append(c.prog.VarNames, name)
	return slot, nil
}

// ---------------------------------------------------------------------------
// Deferred jumps
// ---------------------------------------------------------------------------

// deferJump emits op with a placeholder target and returns the fixup
// handle. Every handle must be resolved exactly once before Compile
// finalizes the Program.
func (c *Compiler) deferJump(op Opcode) *deferredJump {
	pos := c.prog.EmitOffset(op, 0)
	c.pending++
	return &deferredJump{pos: pos}
}

// patchHere resolves j to the next instruction position.
func (c *Compiler) patchHere(j *deferredJump) {
	c.patchTo(j, c.prog.Len())
}

// patchTo writes j's final target. Resolving a handle twice is a
// compiler bug, not an input error.
func (c *Compiler) patchTo(j *deferredJump, target int) {
	if j.resolved {
		panic("bytecode: deferred jump resolved twice")
	}
	j.resolved = true
	c.pending--
	if target > c.maxJoin {
		c.maxJoin = target
	}
	c.prog.Code[j.pos] = MakeWord(c.prog.Code[j.pos].Op(), target)
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

func (c *Compiler) eof() bool {
	return c.pos >= len(c.src)
}

// skipWhitespace advances past whitespace, parentheses (which group
// only visually), and #-comments.
func (c *Compiler) skipWhitespace() {
	for !c.eof() {
		switch c.src[c.pos] {
		case ' ', '\t', '\r', '(', ')':
			c.pos++
		case '\n':
			c.line++
			c.pos++
		case '#':
			for !c.eof() && c.src[c.pos] != '\n' {
				c.pos++
			}
		default:
			return
		}
	}
}

// validateEncoding rejects source bytes outside the configured
// character set before tokenizing begins.
func (c *Compiler) validateEncoding() error {
	switch c.cfg.Encoding {
	case config.EncodingASCII:
		line := 1
		for _, b := range c.src {
			if b == '\n' {
				line++
			}
			if b > 0x7F {
				return c.errAt(line, "invalid byte 0x%02X for ascii encoding", b)
			}
		}
	case config.EncodingMinimal:
		line := 1
		for _, b := range c.src {
			if b == '\n' {
				line++
				continue
			}
			if b == '\t' || b == '\r' || (b >= 0x20 && b <= 0x7E) {
				continue
			}
			return c.errAt(line, "invalid byte 0x%02X for minimal encoding", b)
		}
	case config.EncodingUTF8:
		if !utf8.Valid(c.src) {
			line := 1
			rest := c.src
			for len(rest) > 0 {
				r, size := utf8.DecodeRune(rest)
				if r == utf8.RuneError && size == 1 {
					return c.errAt(line, "invalid UTF-8 sequence")
				}
				if r == '\n' {
					line++
				}
				rest = rest[size:]
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func (c *Compiler) errf(format string, args ...interface{}) error {
	return c.errAt(c.line, format, args...)
}

func (c *Compiler) errAt(line int, format string, args ...interface{}) error {
	return &ParseError{
		Origin:  c.origin,
		Line:    line,
		Message: fmt.Sprintf(format, args...),
	}
}
