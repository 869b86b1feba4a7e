// Package compiler lowers an AST into a flat bytecode.Bytecode.
//
// Compilation is a single post-order pass: for every expression, emit
// the code for its children before the operator that combines them, so
// that by the time an operator's instruction executes, its operands are
// already sitting on the VM's value stack in the right order (left
// pushed first, so it ends up second from the top — see pkg/vm).
//
// The only non-trivial part of lowering is control flow. If/While
// compile to forward and backward jumps whose targets aren't known
// until the skipped region has itself been compiled, so the compiler
// uses an emit-then-patch technique: emit the jump with a placeholder
// operand, remember its index, keep compiling, then go back and
// overwrite the operand once the real target index is known. This is
// intrinsic to single-pass lowering and is preserved verbatim from the
// reference implementation this package is modeled on.
package compiler

import (
	"fmt"
	"strconv"

	"github.com/jlang/stacklang/pkg/ast"
	"github.com/jlang/stacklang/pkg/bytecode"
)

// binaryOpcodes maps a binary operator's source spelling to the opcode
// that implements it.
var binaryOpcodes = map[string]bytecode.Opcode{
	"+":  bytecode.ADD,
	"-":  bytecode.SUB,
	"*":  bytecode.MUL,
	"/":  bytecode.DIV,
	"%":  bytecode.MOD,
	"==": bytecode.CMP_EQ,
	"!=": bytecode.CMP_NEQ,
	"<":  bytecode.CMP_LT,
	"<=": bytecode.CMP_LTE,
	">":  bytecode.CMP_GT,
	">=": bytecode.CMP_GTE,
	"&&": bytecode.LOGICAL_AND,
	"||": bytecode.LOGICAL_OR,
}

// Compiler accumulates a straight-line instruction stream as it walks
// an AST. It holds no symbol table: variables compile directly to
// LOAD_VAR/STORE_VAR by name, resolved at run time against the VM's
// environment.
type Compiler struct {
	instructions []bytecode.Instruction
}

// New creates an empty Compiler.
func New() *Compiler {
	return &Compiler{}
}

// Compile lowers every top-level statement of program in order and
// returns the resulting bytecode. Use a fresh Compiler per call.
func Compile(program *ast.Program) (bytecode.Bytecode, error) {
	c := New()
	for _, stmt := range program.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return bytecode.Bytecode{}, err
		}
	}
	return bytecode.Bytecode{Instructions: c.instructions}, nil
}

// CompileExpression lowers a single expression with no trailing
// discard, leaving exactly one value on the stack when run. It exists
// for the REPL's bare-expression echo (SPEC_FULL's `=> <value>`
// diagnostic): expressions are pure, so compiling and running one in
// isolation has no side effect beyond leaving its value for the
// caller to read off the stack.
func CompileExpression(expr ast.Expression) (bytecode.Bytecode, error) {
	c := New()
	if err := c.compileExpression(expr); err != nil {
		return bytecode.Bytecode{}, err
	}
	return bytecode.Bytecode{Instructions: c.instructions}, nil
}

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Assignment:
		if err := c.compileExpression(s.Expr); err != nil {
			return err
		}
		c.emit(bytecode.STORE_VAR, s.Name)
		return nil

	case *ast.Print:
		if err := c.compileExpression(s.Expr); err != nil {
			return err
		}
		c.emit(bytecode.PRINT, "")
		return nil

	case *ast.ExpressionStatement:
		if err := c.compileExpression(s.Expr); err != nil {
			return err
		}
		// A bare expression statement leaves one residual value on the
		// stack (§3 I2); discard it so every statement's net stack
		// effect is zero (§8 stack discipline).
		c.emit(bytecode.POP, "")
		return nil

	case *ast.Block:
		for _, inner := range s.Statements {
			if err := c.compileStatement(inner); err != nil {
				return err
			}
		}
		return nil

	case *ast.If:
		return c.compileIf(s)

	case *ast.While:
		return c.compileWhile(s)

	default:
		return fmt.Errorf("Unknown AST node in compiler")
	}
}

// compileIf lowers If(cond, then[, else]) using emit-then-patch:
//
//	   <cond>
//	   JMP_IF_FALSE ?jfalse
//	   <then>
//	 [ JMP ?jend            ; only when an else branch exists
//	   jfalse: <else>    ]
//	 jfalse-or-jend: ...
func (c *Compiler) compileIf(s *ast.If) error {
	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	jfalse := c.emit(bytecode.JMP_IF_FALSE, "?")

	if err := c.compileStatement(s.Then); err != nil {
		return err
	}

	if s.Else == nil {
		c.patch(jfalse, len(c.instructions))
		return nil
	}

	jend := c.emit(bytecode.JMP, "?")
	c.patch(jfalse, len(c.instructions))

	if err := c.compileStatement(s.Else); err != nil {
		return err
	}
	c.patch(jend, len(c.instructions))
	return nil
}

// compileWhile lowers While(cond, body):
//
//	loopStart: <cond>
//	           JMP_IF_FALSE ?jfalse
//	           <body>
//	           JMP loopStart
//	jfalse:    ...
func (c *Compiler) compileWhile(s *ast.While) error {
	loopStart := len(c.instructions)

	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	jfalse := c.emit(bytecode.JMP_IF_FALSE, "?")

	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	c.emit(bytecode.JMP, strconv.Itoa(loopStart))

	c.patch(jfalse, len(c.instructions))
	return nil
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.Number:
		c.emit(bytecode.LOAD_CONST, strconv.Itoa(e.Value))
		return nil

	case *ast.Identifier:
		c.emit(bytecode.LOAD_VAR, e.Name)
		return nil

	case *ast.BinaryOp:
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		op, ok := binaryOpcodes[e.Op]
		if !ok {
			return fmt.Errorf("Unknown binary operator: %s", e.Op)
		}
		c.emit(op, "")
		return nil

	case *ast.UnaryOp:
		switch e.Op {
		case "!":
			if err := c.compileExpression(e.Child); err != nil {
				return err
			}
			c.emit(bytecode.LOGICAL_NOT, "")
			return nil
		case "-":
			// The current grammar never produces unary minus, but the
			// compiler recognizes it for completeness: 0 - e.
			c.emit(bytecode.LOAD_CONST, "0")
			if err := c.compileExpression(e.Child); err != nil {
				return err
			}
			c.emit(bytecode.SUB, "")
			return nil
		default:
			return fmt.Errorf("Unknown unary operator: %s", e.Op)
		}

	default:
		return fmt.Errorf("Unknown AST node in compiler")
	}
}

// emit appends an instruction and returns its index, for later
// patching.
func (c *Compiler) emit(op bytecode.Opcode, operand string) int {
	c.instructions = append(c.instructions, bytecode.Instruction{Op: op, Operand: operand})
	return len(c.instructions) - 1
}

// patch rewrites the operand of a previously emitted jump at index to
// the absolute instruction index target, once that target is known.
func (c *Compiler) patch(index int, target int) {
	c.instructions[index].Operand = strconv.Itoa(target)
}
