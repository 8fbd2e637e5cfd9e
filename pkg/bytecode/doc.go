// Package bytecode compiles Skink source to packed instruction words
// and executes them on a stack-based virtual machine.
//
// There is no AST: the compiler is single-pass and emits instructions
// while parsing, backpatching forward jumps through deferred-jump
// handles. Each instruction is one 32-bit word holding the opcode byte
// and an optional 24-bit offset (constant index, variable slot, or
// absolute jump target).
//
// The components are:
//
//   - Opcodes: the packed instruction encoding, with arity and the
//     offset flag folded into the opcode byte
//
//   - Compiler: source text in, Program out. Variables get dense slots
//     in first-use order; constants are pooled and deduplicated
//
//   - Program: the immutable compiled unit (code, constants, slot count)
//
//   - VM: the dispatch loop. All effects flow through an injected
//     Environment, and the VM registers its stack, variable slots, and
//     constant pool as a GC root for the duration of a run
//
// Compile-time failures are ParseErrors with source position; run-time
// failures unwind the whole VM with one of the error types in errors.go.
package bytecode
