// Package vm implements the stack-based virtual machine that executes
// stacklang bytecode.
//
// The VM is the final stage of the pipeline:
//
//	source -> lexer -> parser -> AST -> compiler -> bytecode -> vm -> side effects
//
// State Components:
//
//	stack: the value stack for intermediate computation.
//	  - grows as values are pushed, popped by binary/unary ops
//	  - scoped to a single Run call: cleared at the start of every Run
//	    so that a previous line's leftovers can never leak into the next
//
//	env: the variable environment, a flat name -> int map.
//	  - scoped to the VM instance: it is the REPL's persistent memory,
//	    surviving across every Run call for as long as the VM lives
//
// Only machine-word integers ever live on the stack or in the
// environment; there is no garbage collector because there is nothing
// to collect.
package vm

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jlang/stacklang/pkg/bytecode"
)

// VM is a stack machine with a persistent variable environment.
type VM struct {
	stack []int
	env   map[string]int

	out io.Writer // destination for PRINT; defaults to nothing written if nil

	trace bool // when true, Run reports each executed instruction to Tracer
	// Tracer, when non-nil and trace is enabled, receives one line per
	// executed instruction: pc, the instruction, and a snapshot of the
	// stack after it runs. Adapted from the teacher's interactive
	// debugger, stripped of breakpoints and call-stack frames (this
	// language has no calls).
	Tracer func(pc int, instr bytecode.Instruction, stack []int)
}

// New creates a VM with an empty environment and no output writer.
// Use SetOutput to direct PRINT output, typically to os.Stdout.
func New() *VM {
	return &VM{env: make(map[string]int)}
}

// SetOutput directs PRINT output to w.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetTrace enables or disables per-instruction tracing via Tracer.
func (vm *VM) SetTrace(enabled bool) {
	vm.trace = enabled
}

// Env returns the current variable environment. The returned map is
// owned by the VM; callers should treat it as read-only.
func (vm *VM) Env() map[string]int {
	return vm.env
}

// Top returns the value on top of the stack left behind by the most
// recent Run, and whether the stack was non-empty. Used only by the
// REPL's bare-expression echo diagnostic; ordinary statements leave
// the stack empty, so Top is meaningless outside that one case.
func (vm *VM) Top() (int, bool) {
	if len(vm.stack) == 0 {
		return 0, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// Run executes bc from instruction 0 until the program counter reaches
// len(bc.Instructions) (falling off the end halts normally) or a HALT
// instruction executes. The value stack is reset to empty at the start
// of every call; the environment is untouched across calls except by
// STORE_VAR, which is exactly how the REPL's variables persist across
// lines.
func (vm *VM) Run(bc bytecode.Bytecode) (err error) {
	vm.stack = vm.stack[:0]

	// MOD performs no zero check (spec, matching the source), which
	// means a%0 reaches Go's own integer-divide-by-zero panic. Recover
	// it here rather than at the REPL boundary, the same guarantee DIV
	// gives by explicit check, so every caller of Run sees a plain
	// error and not a crash.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("Division by zero")
		}
	}()

	instructions := bc.Instructions
	for pc := 0; pc < len(instructions); pc++ {
		instr := instructions[pc]
		next, err := vm.step(pc, instr)
		if err != nil {
			return err
		}
		if vm.trace && vm.Tracer != nil {
			vm.Tracer(pc, instr, append([]int(nil), vm.stack...))
		}
		if next == haltSignal {
			return nil
		}
		if next != pc+1 {
			pc = next - 1 // loop's pc++ brings it to next
		}
	}
	return nil
}

// haltSignal is returned by step for the HALT opcode, distinguishing
// "stop now" from "fell through to the next index naturally".
const haltSignal = -1

// step executes one instruction and returns the next program counter
// (pc+1 for sequential flow, an absolute target for a taken jump, or
// haltSignal). It implements the per-opcode semantics of spec §4.4.
func (vm *VM) step(pc int, instr bytecode.Instruction) (int, error) {
	switch instr.Op {
	case bytecode.LOAD_CONST:
		n, err := strconv.Atoi(instr.Operand)
		if err != nil {
			return 0, fmt.Errorf("malformed operand for LOAD_CONST: %s", instr.Operand)
		}
		vm.push(n)

	case bytecode.LOAD_VAR:
		v, ok := vm.env[instr.Operand]
		if !ok {
			return 0, fmt.Errorf("Undefined variable: %s", instr.Operand)
		}
		vm.push(v)

	case bytecode.STORE_VAR:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.env[instr.Operand] = v

	case bytecode.ADD:
		return pc + 1, vm.binary(func(a, b int) (int, error) { return a + b, nil })
	case bytecode.SUB:
		return pc + 1, vm.binary(func(a, b int) (int, error) { return a - b, nil })
	case bytecode.MUL:
		return pc + 1, vm.binary(func(a, b int) (int, error) { return a * b, nil })
	case bytecode.DIV:
		return pc + 1, vm.binary(func(a, b int) (int, error) {
			if b == 0 {
				return 0, fmt.Errorf("Division by zero")
			}
			return a / b, nil
		})
	case bytecode.MOD:
		// No zero check here by design: MOD mirrors the source's bare
		// a % b with an implementation-defined sign rule on negative
		// operands. b = 0 reaches Go's own divide-by-zero panic, which
		// Run recovers from and reports the same as DIV's.
		return pc + 1, vm.binary(func(a, b int) (int, error) { return a % b, nil })

	case bytecode.CMP_EQ:
		return pc + 1, vm.compare(func(a, b int) bool { return a == b })
	case bytecode.CMP_NEQ:
		return pc + 1, vm.compare(func(a, b int) bool { return a != b })
	case bytecode.CMP_LT:
		return pc + 1, vm.compare(func(a, b int) bool { return a < b })
	case bytecode.CMP_LTE:
		return pc + 1, vm.compare(func(a, b int) bool { return a <= b })
	case bytecode.CMP_GT:
		return pc + 1, vm.compare(func(a, b int) bool { return a > b })
	case bytecode.CMP_GTE:
		return pc + 1, vm.compare(func(a, b int) bool { return a >= b })

	case bytecode.LOGICAL_AND:
		return pc + 1, vm.compare(func(a, b int) bool { return truthy(a) && truthy(b) })
	case bytecode.LOGICAL_OR:
		return pc + 1, vm.compare(func(a, b int) bool { return truthy(a) || truthy(b) })

	case bytecode.LOGICAL_NOT:
		a, err := vm.pop()
		if err != nil {
			return 0, err
		}
		vm.push(boolInt(!truthy(a)))

	case bytecode.PRINT:
		v, err := vm.pop()
		if err != nil {
			return 0, err
		}
		if vm.out != nil {
			fmt.Fprintln(vm.out, v)
		}

	case bytecode.POP:
		if _, err := vm.pop(); err != nil {
			return 0, err
		}

	case bytecode.JMP:
		t, err := vm.jumpTarget(instr.Operand)
		if err != nil {
			return 0, err
		}
		return t, nil

	case bytecode.JMP_IF_TRUE:
		c, err := vm.pop()
		if err != nil {
			return 0, err
		}
		if truthy(c) {
			t, err := vm.jumpTarget(instr.Operand)
			if err != nil {
				return 0, err
			}
			return t, nil
		}

	case bytecode.JMP_IF_FALSE:
		c, err := vm.pop()
		if err != nil {
			return 0, err
		}
		if !truthy(c) {
			t, err := vm.jumpTarget(instr.Operand)
			if err != nil {
				return 0, err
			}
			return t, nil
		}

	case bytecode.HALT:
		return haltSignal, nil

	default:
		return 0, fmt.Errorf("unknown opcode: %s", instr.Op)
	}

	return pc + 1, nil
}

func (vm *VM) jumpTarget(operand string) (int, error) {
	t, err := strconv.Atoi(operand)
	if err != nil {
		return 0, fmt.Errorf("malformed jump operand: %s", operand)
	}
	return t, nil
}

// binary pops b then a (in that order — b is on top, matching
// post-order compilation, spec §4.4 "Operand ordering"), applies fn(a,
// b), and pushes the result.
func (vm *VM) binary(fn func(a, b int) (int, error)) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	result, err := fn(a, b)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// compare is binary specialized for predicates that reduce to 0/1.
func (vm *VM) compare(fn func(a, b int) bool) error {
	return vm.binary(func(a, b int) (int, error) {
		return boolInt(fn(a, b)), nil
	})
}

func (vm *VM) push(v int) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() (int, error) {
	if len(vm.stack) == 0 {
		return 0, fmt.Errorf("Stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

// truthy implements the uniform integer-truthiness rule (§9): every
// nonzero integer is true.
func truthy(v int) bool { return v != 0 }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
