package bytecode

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"github.com/skink-lang/skink/config"
	"github.com/skink-lang/skink/pkg/value"
)

// VM executes one Program. It is single-use: construct, Run once,
// discard. All effects flow through the injected Environment, so tests
// substitute mock collaborators for output, input, commands, and files.
type VM struct {
	prog *Program
	heap *value.Heap
	env  *Environment
	cfg  *config.Config

	pc    int
	stack []value.Value
	vars  []value.Value
	rets  []int

	// Trace logs every instruction before it executes.
	Trace bool

	log commonlog.Logger
}

// NewVM prepares a VM for prog. A nil cfg means config.Default().
// Variable slots start Absent; reading one before assignment is a
// runtime error.
func NewVM(prog *Program, heap *value.Heap, env *Environment, cfg *config.Config) *VM {
	if cfg == nil {
		cfg = config.Default()
	}
	vm := &VM{
		prog:  prog,
		heap:  heap,
		env:   env,
		cfg:   cfg,
		stack: make([]value.Value, 0, 64),
		vars:  make([]value.Value, prog.NumVars),
		log:   commonlog.GetLogger("skink.vm"),
	}
	for i := range vm.vars {
		vm.vars[i] = value.Absent
	}
	return vm
}

// Run executes the Program to completion and returns its result value.
// The VM's stack, variable slots, and the constant pool are registered
// as a GC root; collection runs only at instruction boundaries, where
// the roots cover everything live. The heap stays paused while an
// instruction's intermediate values are in flight.
func (vm *VM) Run() (value.Value, error) {
	root := vm.heap.AddRoot(func(mark func(value.Value)) {
		for _, v := range vm.stack {
			mark(v)
		}
		for _, v := range vm.vars {
			mark(v)
		}
		for _, v := range vm.prog.Constants {
			mark(v)
		}
	})
	defer vm.heap.RemoveRoot(root)

	for {
		vm.heap.CollectAtSafePoint()

		w := vm.prog.Code[vm.pc]
		if vm.Trace {
			vm.log.Debugf("%s stack=%d", FormatInstruction(vm.prog, vm.pc), len(vm.stack))
		}
		vm.pc++

		vm.heap.Pause()
		done, result, err := vm.step(w)
		vm.heap.Unpause()

		if err != nil {
			return value.Null, err
		}
		if done {
			return result, nil
		}
	}
}

// step executes one instruction. It reports done with the program's
// result when the top-level RETURN executes.
func (vm *VM) step(w Word) (done bool, result value.Value, err error) {
	switch op := w.Op(); op {
	case OpPushConst:
		vm.push(vm.prog.Constants[w.Offset()])

	case OpJump:
		vm.pc = w.Offset()

	case OpJumpIfTrue, OpJumpIfFalse:
		var b bool
		if b, err = vm.toBool(vm.pop()); err == nil && b == (op == OpJumpIfTrue) {
			vm.pc = w.Offset()
		}

	case OpGetVar:
		v := vm.vars[w.Offset()]
		if v == value.Absent {
			err = &UndefinedVariableError{Name: vm.prog.VarNames[w.Offset()]}
			break
		}
		vm.push(v)

	case OpSetVar:
		vm.vars[w.Offset()] = vm.peek()

	case OpSetVarPop:
		vm.vars[w.Offset()] = vm.pop()

	case OpDup:
		vm.push(vm.peek())

	case OpPop:
		vm.pop()

	case OpReturn:
		if len(vm.rets) == 0 {
			return true, vm.pop(), nil
		}
		vm.pc = vm.rets[len(vm.rets)-1]
		vm.rets = vm.rets[:len(vm.rets)-1]

	case OpCall:
		v := vm.pop()
		if !v.IsBlock() {
			err = &TypeError{Op: "CALL", Type: vm.typeName(v)}
			break
		}
		vm.rets = append(vm.rets, vm.pc)
		vm.pc = v.MustBlock()

	case OpQuit:
		var n int64
		if n, err = vm.toInt(vm.pop()); err == nil {
			err = &QuitError{Status: int(n)}
		}

	case OpPrompt:
		err = vm.opPrompt()
	case OpRandom:
		vm.push(value.FromInt(vm.env.Rand.Int63n(value.MaxInt + 1)))
	case OpDump:
		err = vm.opDump()
	case OpOutput:
		err = vm.opOutput()
	case OpLength:
		err = vm.opLength()
	case OpNot:
		var b bool
		if b, err = vm.toBool(vm.pop()); err == nil {
			vm.push(value.FromBool(!b))
		}
	case OpNegate:
		var n int64
		if n, err = vm.toInt(vm.pop()); err == nil {
			err = vm.pushInt("~", -n)
		}
	case OpAscii:
		err = vm.opAscii()
	case OpBox:
		vm.push(vm.heap.AllocList([]value.Value{vm.pop()}))
	case OpHead:
		err = vm.opHead()
	case OpTail:
		err = vm.opTail()
	case OpSystem:
		err = vm.opSystem()
	case OpReadFile:
		err = vm.opReadFile()

	case OpAdd:
		err = vm.opAdd()
	case OpSub:
		err = vm.opArith("-", func(a, b int64) (int64, error) { return a - b, nil })
	case OpMul:
		err = vm.opMul()
	case OpDiv:
		err = vm.opDivMod("/", func(a, b int64) int64 { return a / b })
	case OpMod:
		err = vm.opDivMod("%", func(a, b int64) int64 { return a % b })
	case OpPow:
		err = vm.opPow()
	case OpLess:
		err = vm.opCompare("<", func(c int) bool { return c < 0 })
	case OpGreater:
		err = vm.opCompare(">", func(c int) bool { return c > 0 })
	case OpEqual:
		b := vm.pop()
		a := vm.pop()
		vm.push(value.FromBool(vm.heap.Equal(a, b)))

	case OpGet:
		err = vm.opGet()
	case OpSet:
		err = vm.opSet()

	default:
		panic(fmt.Sprintf("bytecode: unhandled opcode %s", op))
	}
	return false, value.Null, err
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek() value.Value {
	return vm.stack[len(vm.stack)-1]
}

// pushInt pushes n, reporting overflow against op when n does not fit
// the inline integer payload.
func (vm *VM) pushInt(op string, n int64) error {
	v, ok := value.TryFromInt(n)
	if !ok {
		return &OverflowError{Op: op}
	}
	vm.push(v)
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func (vm *VM) typeName(v value.Value) string {
	switch {
	case v.IsInt():
		return "integer"
	case v.IsBool():
		return "boolean"
	case v.IsNull():
		return "null"
	case v.IsBlock():
		return "block"
	case v.IsObject():
		if vm.heap.MustObject(v).Kind() == value.KindList {
			return "list"
		}
		return "string"
	}
	return "value"
}

func (vm *VM) toBool(v value.Value) (bool, error) {
	switch {
	case v.IsInt():
		return v.MustInt() != 0, nil
	case v.IsBool():
		return v.MustBool(), nil
	case v.IsNull():
		return false, nil
	case v.IsObject():
		return vm.heap.MustObject(v).Len() > 0, nil
	}
	return false, &ConversionError{From: vm.typeName(v), To: "boolean"}
}

func (vm *VM) toInt(v value.Value) (int64, error) {
	switch {
	case v.IsInt():
		return v.MustInt(), nil
	case v.IsBool():
		if v.MustBool() {
			return 1, nil
		}
		return 0, nil
	case v.IsNull():
		return 0, nil
	case v.IsObject():
		o := vm.heap.MustObject(v)
		if o.Kind() == value.KindList {
			return int64(o.Len()), nil
		}
		return parseLeadingInt(o.Bytes()), nil
	}
	return 0, &ConversionError{From: vm.typeName(v), To: "integer"}
}

// parseLeadingInt implements string-to-integer conversion: optional
// leading whitespace, optional sign, then as many digits as follow.
// Anything else, including no digits at all, yields zero from there on.
// Results saturate at the integer payload bounds.
func parseLeadingInt(b []byte) int64 {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	neg := false
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		neg = b[i] == '-'
		i++
	}
	var n int64
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		d := int64(b[i] - '0')
		if n > (value.MaxInt-d)/10 {
			n = value.MaxInt
			break
		}
		n = n*10 + d
		i++
	}
	if neg {
		return -n
	}
	return n
}

func (vm *VM) toString(v value.Value) (string, error) {
	switch {
	case v.IsInt():
		return fmt.Sprintf("%d", v.MustInt()), nil
	case v == value.True:
		return "true", nil
	case v == value.False:
		return "false", nil
	case v.IsNull():
		return "", nil
	case v.IsObject():
		o := vm.heap.MustObject(v)
		if o.Kind() == value.KindString {
			return o.String(), nil
		}
		// Lists stringify as their elements joined by newlines.
		var sb strings.Builder
		for i, e := range o.Elems() {
			if i > 0 {
				sb.WriteByte('\n')
			}
			s, err := vm.toString(e)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		return sb.String(), nil
	}
	return "", &ConversionError{From: vm.typeName(v), To: "string"}
}

func (vm *VM) toList(v value.Value) ([]value.Value, error) {
	switch {
	case v.IsInt():
		return digitsOf(v.MustInt()), nil
	case v == value.True:
		return []value.Value{value.True}, nil
	case v == value.False, v.IsNull():
		return nil, nil
	case v.IsObject():
		o := vm.heap.MustObject(v)
		if o.Kind() == value.KindList {
			return o.Elems(), nil
		}
		// Strings decompose into one-character strings.
		bytes := o.Bytes()
		elems := make([]value.Value, 0, len(bytes))
		for len(bytes) > 0 {
			_, size := utf8.DecodeRune(bytes)
			elems = append(elems, vm.heap.AllocStringBytes(bytes[:size]))
			bytes = bytes[size:]
		}
		return elems, nil
	}
	return nil, &ConversionError{From: vm.typeName(v), To: "list"}
}

// digitsOf returns n's decimal digits as one-digit integers, most
// significant first. Negative numbers yield negative digits.
func digitsOf(n int64) []value.Value {
	if n == 0 {
		return []value.Value{value.FromInt(0)}
	}
	var rev []int64
	for m := n; m != 0; m /= 10 {
		rev = append(rev, m%10)
	}
	out := make([]value.Value, len(rev))
	for i, d := range rev {
		out[len(rev)-1-i] = value.FromInt(d)
	}
	return out
}

// checkLimit enforces the configured container length cap.
func (vm *VM) checkLimit(op string, n int) error {
	if max := vm.cfg.Limits.MaxContainerLength; max > 0 && n > max {
		return &LimitError{Op: op, Size: n, Max: max}
	}
	return nil
}

// repeatLen computes the length of a container of the given length
// repeated count times. The multiplication is guarded: a product that
// would not fit in an int is reported against the configured cap when
// one is set, and as an overflow otherwise, never computed.
func (vm *VM) repeatLen(op string, length int, count int64) (int, error) {
	if length == 0 || count == 0 {
		return 0, nil
	}
	if count > int64(math.MaxInt/length) {
		if err := vm.checkLimit(op, math.MaxInt); err != nil {
			return 0, err
		}
		return 0, &OverflowError{Op: op}
	}
	size := length * int(count)
	if err := vm.checkLimit(op, size); err != nil {
		return 0, err
	}
	return size, nil
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

func (vm *VM) opPrompt() error {
	line, err := vm.env.Input.ReadLine()
	if err == io.EOF {
		vm.push(value.Null)
		return nil
	}
	if err != nil {
		return fmt.Errorf("PROMPT: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	vm.push(vm.heap.AllocString(line))
	return nil
}

func (vm *VM) opDump() error {
	var sb strings.Builder
	vm.renderDebug(&sb, vm.peek())
	_, err := io.WriteString(vm.env.Output, sb.String())
	return err
}

// renderDebug writes the DUMP rendering of v: integers and constants by
// name, strings quoted with the control characters escaped, lists in
// bracketed element form.
func (vm *VM) renderDebug(sb *strings.Builder, v value.Value) {
	switch {
	case v.IsInt():
		fmt.Fprintf(sb, "%d", v.MustInt())
	case v == value.True:
		sb.WriteString("true")
	case v == value.False:
		sb.WriteString("false")
	case v.IsNull():
		sb.WriteString("null")
	case v.IsBlock():
		fmt.Fprintf(sb, "<block@%d>", v.MustBlock())
	case v.IsObject():
		o := vm.heap.MustObject(v)
		if o.Kind() == value.KindString {
			sb.WriteByte('"')
			for _, b := range o.Bytes() {
				switch b {
				case '\\':
					sb.WriteString(`\\`)
				case '"':
					sb.WriteString(`\"`)
				case '\n':
					sb.WriteString(`\n`)
				case '\r':
					sb.WriteString(`\r`)
				case '\t':
					sb.WriteString(`\t`)
				default:
					sb.WriteByte(b)
				}
			}
			sb.WriteByte('"')
			return
		}
		sb.WriteByte('[')
		for i, e := range o.Elems() {
			if i > 0 {
				sb.WriteString(", ")
			}
			vm.renderDebug(sb, e)
		}
		sb.WriteByte(']')
	}
}

// opOutput prints the operand's string form followed by a newline. A
// trailing backslash is dropped and suppresses the newline. Pushes null.
func (vm *VM) opOutput() error {
	s, err := vm.toString(vm.pop())
	if err != nil {
		return err
	}
	if strings.HasSuffix(s, "\\") {
		s = s[:len(s)-1]
	} else {
		s += "\n"
	}
	if _, err := io.WriteString(vm.env.Output, s); err != nil {
		return err
	}
	vm.push(value.Null)
	return nil
}

func (vm *VM) opLength() error {
	v := vm.pop()
	if o, ok := vm.heap.Object(v); ok {
		vm.push(value.FromInt(int64(o.Len())))
		return nil
	}
	elems, err := vm.toList(v)
	if err != nil {
		return err
	}
	vm.push(value.FromInt(int64(len(elems))))
	return nil
}

func (vm *VM) opAscii() error {
	v := vm.pop()
	switch {
	case v.IsInt():
		n := v.MustInt()
		if n < 0 || n > utf8.MaxRune {
			return &IndexError{Op: "ASCII", Index: int(n), Len: utf8.MaxRune + 1}
		}
		vm.push(vm.heap.AllocString(string(rune(n))))
		return nil
	default:
		o, ok := vm.heap.AsString(v)
		if !ok {
			return &TypeError{Op: "ASCII", Type: vm.typeName(v)}
		}
		if o.Len() == 0 {
			return &IndexError{Op: "ASCII", Index: 0, Len: 0}
		}
		r, _ := utf8.DecodeRune(o.Bytes())
		vm.push(value.FromInt(int64(r)))
		return nil
	}
}

func (vm *VM) opHead() error {
	v := vm.pop()
	o, ok := vm.heap.Object(v)
	if !ok {
		return &TypeError{Op: "[", Type: vm.typeName(v)}
	}
	if o.Len() == 0 {
		return &IndexError{Op: "[", Index: 0, Len: 0}
	}
	if o.Kind() == value.KindList {
		vm.push(o.Elems()[0])
		return nil
	}
	_, size := utf8.DecodeRune(o.Bytes())
	vm.push(vm.heap.AllocStringBytes(o.Bytes()[:size]))
	return nil
}

func (vm *VM) opTail() error {
	v := vm.pop()
	o, ok := vm.heap.Object(v)
	if !ok {
		return &TypeError{Op: "]", Type: vm.typeName(v)}
	}
	if o.Len() == 0 {
		return &IndexError{Op: "]", Index: 0, Len: 0}
	}
	if o.Kind() == value.KindList {
		rest := make([]value.Value, o.Len()-1)
		copy(rest, o.Elems()[1:])
		vm.push(vm.heap.AllocList(rest))
		return nil
	}
	_, size := utf8.DecodeRune(o.Bytes())
	vm.push(vm.heap.AllocStringBytes(o.Bytes()[size:]))
	return nil
}

func (vm *VM) opSystem() error {
	s, err := vm.toString(vm.pop())
	if err != nil {
		return err
	}
	out, err := vm.env.System.Run(s)
	if err != nil {
		return fmt.Errorf("$: %w", err)
	}
	vm.push(vm.heap.AllocString(out))
	return nil
}

func (vm *VM) opReadFile() error {
	s, err := vm.toString(vm.pop())
	if err != nil {
		return err
	}
	data, err := vm.env.Files.ReadFile(s)
	if err != nil {
		return fmt.Errorf("XREAD: %w", err)
	}
	vm.push(vm.heap.AllocString(data))
	return nil
}

// ---------------------------------------------------------------------------
// Binary operators
//
// Every binary dispatches on the left operand's runtime tag and coerces
// the right operand to match; a left operand outside the operator's
// domain is a type error.
// ---------------------------------------------------------------------------

func (vm *VM) opAdd() error {
	b := vm.pop()
	a := vm.pop()
	switch {
	case a.IsInt():
		bi, err := vm.toInt(b)
		if err != nil {
			return err
		}
		return vm.pushInt("+", a.MustInt()+bi)
	default:
		if o, ok := vm.heap.AsString(a); ok {
			bs, err := vm.toString(b)
			if err != nil {
				return err
			}
			if err := vm.checkLimit("+", o.Len()+len(bs)); err != nil {
				return err
			}
			vm.push(vm.heap.AllocString(o.String() + bs))
			return nil
		}
		if o, ok := vm.heap.AsList(a); ok {
			be, err := vm.toList(b)
			if err != nil {
				return err
			}
			if err := vm.checkLimit("+", o.Len()+len(be)); err != nil {
				return err
			}
			joined := make([]value.Value, 0, o.Len()+len(be))
			joined = append(joined, o.Elems()...)
			joined = append(joined, be...)
			vm.push(vm.heap.AllocList(joined))
			return nil
		}
		return &TypeError{Op: "+", Type: vm.typeName(a)}
	}
}

// opArith covers the integer-only binaries.
func (vm *VM) opArith(op string, f func(a, b int64) (int64, error)) error {
	b := vm.pop()
	a := vm.pop()
	if !a.IsInt() {
		return &TypeError{Op: op, Type: vm.typeName(a)}
	}
	bi, err := vm.toInt(b)
	if err != nil {
		return err
	}
	n, err := f(a.MustInt(), bi)
	if err != nil {
		return err
	}
	return vm.pushInt(op, n)
}

func (vm *VM) opMul() error {
	b := vm.pop()
	a := vm.pop()
	switch {
	case a.IsInt():
		bi, err := vm.toInt(b)
		if err != nil {
			return err
		}
		ai := a.MustInt()
		n := ai * bi
		if ai != 0 && n/ai != bi {
			return &OverflowError{Op: "*"}
		}
		return vm.pushInt("*", n)
	default:
		count, err := vm.toInt(b)
		if err != nil {
			return err
		}
		if count < 0 {
			return &IndexError{Op: "*", Index: int(count), Len: 0}
		}
		if o, ok := vm.heap.AsString(a); ok {
			size, err := vm.repeatLen("*", o.Len(), count)
			if err != nil {
				return err
			}
			if size == 0 {
				vm.push(vm.heap.EmptyString())
				return nil
			}
			vm.push(vm.heap.AllocString(strings.Repeat(o.String(), int(count))))
			return nil
		}
		if o, ok := vm.heap.AsList(a); ok {
			size, err := vm.repeatLen("*", o.Len(), count)
			if err != nil {
				return err
			}
			if size == 0 {
				vm.push(vm.heap.EmptyList())
				return nil
			}
			out := make([]value.Value, 0, size)
			for i := int64(0); i < count; i++ {
				out = append(out, o.Elems()...)
			}
			vm.push(vm.heap.AllocList(out))
			return nil
		}
		return &TypeError{Op: "*", Type: vm.typeName(a)}
	}
}

// opDivMod handles `/` and `%`. A zero right operand is reported before
// its coercion result is used for anything else.
func (vm *VM) opDivMod(op string, f func(a, b int64) int64) error {
	b := vm.pop()
	a := vm.pop()
	if b == value.FromInt(0) {
		return &DivisionByZeroError{Op: op}
	}
	if !a.IsInt() {
		return &TypeError{Op: op, Type: vm.typeName(a)}
	}
	bi, err := vm.toInt(b)
	if err != nil {
		return err
	}
	if bi == 0 {
		return &DivisionByZeroError{Op: op}
	}
	return vm.pushInt(op, f(a.MustInt(), bi))
}

func (vm *VM) opPow() error {
	b := vm.pop()
	a := vm.pop()
	switch {
	case a.IsInt():
		exp, err := vm.toInt(b)
		if err != nil {
			return err
		}
		n, err := intPow(a.MustInt(), exp)
		if err != nil {
			return err
		}
		return vm.pushInt("^", n)
	default:
		// List power is join-with-separator.
		o, ok := vm.heap.AsList(a)
		if !ok {
			return &TypeError{Op: "^", Type: vm.typeName(a)}
		}
		sep, err := vm.toString(b)
		if err != nil {
			return err
		}
		parts := make([]string, o.Len())
		for i, e := range o.Elems() {
			if parts[i], err = vm.toString(e); err != nil {
				return err
			}
		}
		s := strings.Join(parts, sep)
		if err := vm.checkLimit("^", len(s)); err != nil {
			return err
		}
		vm.push(vm.heap.AllocString(s))
		return nil
	}
}

// intPow raises base to exp by repeated multiplication. A negative
// exponent truncates to zero except for the bases whose reciprocal is
// integral; zero to a negative power is a division by zero.
func intPow(base, exp int64) (int64, error) {
	if exp < 0 {
		switch base {
		case 0:
			return 0, &DivisionByZeroError{Op: "^"}
		case 1:
			return 1, nil
		case -1:
			if exp%2 == 0 {
				return 1, nil
			}
			return -1, nil
		default:
			return 0, nil
		}
	}
	var n int64 = 1
	for i := int64(0); i < exp; i++ {
		m := n * base
		if base != 0 && m/base != n {
			return 0, &OverflowError{Op: "^"}
		}
		n = m
	}
	return n, nil
}

func (vm *VM) opCompare(op string, accept func(c int) bool) error {
	b := vm.pop()
	a := vm.pop()
	c, err := vm.compare(op, a, b)
	if err != nil {
		return err
	}
	vm.push(value.FromBool(accept(c)))
	return nil
}

// compare orders a against b by a's type: integers numerically, strings
// bytewise, booleans with false before true, lists element-wise with
// length as the tiebreak.
func (vm *VM) compare(op string, a, b value.Value) (int, error) {
	switch {
	case a.IsInt():
		bi, err := vm.toInt(b)
		if err != nil {
			return 0, err
		}
		return compareInt(a.MustInt(), bi), nil
	case a.IsBool():
		bb, err := vm.toBool(b)
		if err != nil {
			return 0, err
		}
		return compareBool(a.MustBool(), bb), nil
	case a.IsObject():
		o := vm.heap.MustObject(a)
		if o.Kind() == value.KindString {
			bs, err := vm.toString(b)
			if err != nil {
				return 0, err
			}
			return strings.Compare(o.String(), bs), nil
		}
		be, err := vm.toList(b)
		if err != nil {
			return 0, err
		}
		ae := o.Elems()
		for i := 0; i < len(ae) && i < len(be); i++ {
			c, err := vm.compare(op, ae[i], be[i])
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return c, nil
			}
		}
		return compareInt(int64(len(ae)), int64(len(be))), nil
	}
	return 0, &TypeError{Op: op, Type: vm.typeName(a)}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	switch {
	case !a && b:
		return -1
	case a && !b:
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Indexed access
// ---------------------------------------------------------------------------

// rangeOperands pops and validates the start and count for GET/SET
// against a container of length n.
func (vm *VM) rangeOperands(op string, start, count value.Value, n int) (int, int, error) {
	si, err := vm.toInt(start)
	if err != nil {
		return 0, 0, err
	}
	ci, err := vm.toInt(count)
	if err != nil {
		return 0, 0, err
	}
	s, c := int(si), int(ci)
	if s < 0 || c < 0 || s+c > n {
		idx := s
		if s >= 0 && c >= 0 {
			idx = s + c
		}
		return 0, 0, &IndexError{Op: op, Index: idx, Len: n}
	}
	return s, c, nil
}

func (vm *VM) opGet() error {
	count := vm.pop()
	start := vm.pop()
	a := vm.pop()
	o, ok := vm.heap.Object(a)
	if !ok {
		return &TypeError{Op: "GET", Type: vm.typeName(a)}
	}
	s, c, err := vm.rangeOperands("GET", start, count, o.Len())
	if err != nil {
		return err
	}
	if o.Kind() == value.KindString {
		vm.push(vm.heap.AllocStringBytes(o.Bytes()[s : s+c]))
		return nil
	}
	sub := make([]value.Value, c)
	copy(sub, o.Elems()[s:s+c])
	vm.push(vm.heap.AllocList(sub))
	return nil
}

func (vm *VM) opSet() error {
	repl := vm.pop()
	count := vm.pop()
	start := vm.pop()
	a := vm.pop()
	o, ok := vm.heap.Object(a)
	if !ok {
		return &TypeError{Op: "SET", Type: vm.typeName(a)}
	}
	s, c, err := vm.rangeOperands("SET", start, count, o.Len())
	if err != nil {
		return err
	}
	if o.Kind() == value.KindString {
		rs, err := vm.toString(repl)
		if err != nil {
			return err
		}
		size := o.Len() - c + len(rs)
		if err := vm.checkLimit("SET", size); err != nil {
			return err
		}
		bytes := o.Bytes()
		out := make([]byte, 0, size)
		out = append(out, bytes[:s]...)
		out = append(out, rs...)
		out = append(out, bytes[s+c:]...)
		vm.push(vm.heap.AllocStringBytes(out))
		return nil
	}
	re, err := vm.toList(repl)
	if err != nil {
		return err
	}
	size := o.Len() - c + len(re)
	if err := vm.checkLimit("SET", size); err != nil {
		return err
	}
	elems := o.Elems()
	out := make([]value.Value, 0, size)
	out = append(out, elems[:s]...)
	out = append(out, re...)
	out = append(out, elems[s+c:]...)
	vm.push(vm.heap.AllocList(out))
	return nil
}
