// Package pipeline wires the lexer, parser, compiler, and VM together
// for a single line of input. It is the one piece of glue code that
// both the REPL and the integration tests depend on, so a test against
// Run exercises exactly the path a user's keystrokes take.
package pipeline

import (
	"github.com/jlang/stacklang/pkg/ast"
	"github.com/jlang/stacklang/pkg/bytecode"
	"github.com/jlang/stacklang/pkg/compiler"
	"github.com/jlang/stacklang/pkg/parser"
	"github.com/jlang/stacklang/pkg/vm"
)

// Run parses src, compiles the result, and executes it against v.
// It returns the intermediate AST and bytecode alongside any error so
// that a caller (the REPL's diagnostic mode) can print them even when
// execution itself never starts. The returned Program and Bytecode are
// the zero value if the pipeline failed before producing them.
func Run(src string, v *vm.VM) (ast.Program, bytecode.Bytecode, error) {
	program, err := parser.Parse(src)
	if err != nil {
		return ast.Program{}, bytecode.Bytecode{}, err
	}

	bc, err := compiler.Compile(program)
	if err != nil {
		return *program, bytecode.Bytecode{}, err
	}

	if err := v.Run(bc); err != nil {
		return *program, bc, err
	}

	return *program, bc, nil
}

// Stage identifies which pipeline phase an error came from, so a
// caller (the REPL) can report it under the right label rather than
// calling every failure a parse error.
type Stage int

const (
	// StageNone means the line produced no error.
	StageNone Stage = iota
	StageParse
	StageCompile
	StageRuntime
)

// Result is one line's full pipeline outcome, including the bare
// expression echo the REPL prints (SPEC_FULL's `=> <value>`
// diagnostic). Echo is nil unless the line was exactly one bare
// expression statement. Stage reports where an error (if any)
// occurred.
type Result struct {
	Program  ast.Program
	Bytecode bytecode.Bytecode
	Echo     *int
	Stage    Stage
}

// RunInteractive is Run's REPL-facing counterpart: when src is exactly
// one bare expression statement, it compiles and runs just that
// expression (no trailing discard) and reports the value it leaves on
// the stack via Result.Echo, instead of running the normal
// discard-appended statement form. Every other line behaves like Run.
func RunInteractive(src string, v *vm.VM) (Result, error) {
	program, err := parser.Parse(src)
	if err != nil {
		return Result{Stage: StageParse}, err
	}

	if len(program.Statements) == 1 {
		if exprStmt, ok := program.Statements[0].(*ast.ExpressionStatement); ok {
			bc, err := compiler.CompileExpression(exprStmt.Expr)
			if err != nil {
				return Result{Program: *program, Stage: StageCompile}, err
			}
			if err := v.Run(bc); err != nil {
				return Result{Program: *program, Bytecode: bc, Stage: StageRuntime}, err
			}
			result := Result{Program: *program, Bytecode: bc}
			if top, ok := v.Top(); ok {
				result.Echo = &top
			}
			return result, nil
		}
	}

	bc, err := compiler.Compile(program)
	if err != nil {
		return Result{Program: *program, Stage: StageCompile}, err
	}
	if err := v.Run(bc); err != nil {
		return Result{Program: *program, Bytecode: bc, Stage: StageRuntime}, err
	}
	return Result{Program: *program, Bytecode: bc}, nil
}
