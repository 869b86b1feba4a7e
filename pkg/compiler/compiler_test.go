package compiler

import (
	"testing"

	"github.com/jlang/stacklang/pkg/ast"
	"github.com/jlang/stacklang/pkg/bytecode"
	"github.com/stretchr/testify/require"
)

func TestCompile_Assignment(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.Assignment{Name: "x", Expr: &ast.Number{Value: 10}},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)
	require.Equal(t, []bytecode.Instruction{
		{Op: bytecode.LOAD_CONST, Operand: "10"},
		{Op: bytecode.STORE_VAR, Operand: "x"},
	}, bc.Instructions)
}

func TestCompile_BareExpressionStatementDiscards(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.Number{Value: 2}},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)
	require.Equal(t, []bytecode.Instruction{
		{Op: bytecode.LOAD_CONST, Operand: "2"},
		{Op: bytecode.POP, Operand: ""},
	}, bc.Instructions)
}

func TestCompile_BinaryOperandOrder(t *testing.T) {
	// a - b compiles left then right, so SUB pops b (top) then a.
	program := &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.BinaryOp{
			Op:    "-",
			Left:  &ast.Identifier{Name: "a"},
			Right: &ast.Identifier{Name: "b"},
		}},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)
	require.Equal(t, []bytecode.Instruction{
		{Op: bytecode.LOAD_VAR, Operand: "a"},
		{Op: bytecode.LOAD_VAR, Operand: "b"},
		{Op: bytecode.SUB, Operand: ""},
		{Op: bytecode.POP, Operand: ""},
	}, bc.Instructions)
}

func TestCompile_IfWithoutElse(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.If{
			Cond: &ast.Number{Value: 1},
			Then: &ast.Print{Expr: &ast.Number{Value: 2}},
		},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)

	require.Equal(t, bytecode.JMP_IF_FALSE, bc.Instructions[1].Op)
	// jfalse must point past the then-branch: indices 0,1 (cond+jump), 2,3 (then), so target 4.
	require.Equal(t, "4", bc.Instructions[1].Operand)
	require.Len(t, bc.Instructions, 4)
}

func TestCompile_IfWithElse(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.If{
			Cond: &ast.Number{Value: 1},
			Then: &ast.Print{Expr: &ast.Number{Value: 2}},
			Else: &ast.Print{Expr: &ast.Number{Value: 3}},
		},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)

	for i, instr := range bc.Instructions {
		t.Logf("%d: %s %s", i, instr.Op, instr.Operand)
	}

	// 0: LOAD_CONST 1
	// 1: JMP_IF_FALSE -> 5 (start of else)
	// 2: LOAD_CONST 2
	// 3: PRINT
	// 4: JMP -> 7 (end, one past the last instruction)
	// 5: LOAD_CONST 3
	// 6: PRINT
	require.Equal(t, "5", bc.Instructions[1].Operand)
	require.Equal(t, bytecode.JMP, bc.Instructions[4].Op)
	require.Equal(t, "7", bc.Instructions[4].Operand)
	require.Len(t, bc.Instructions, 7)
}

func TestCompile_WhileJumpsBackToLoopStart(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.While{
			Cond: &ast.Identifier{Name: "n"},
			Body: &ast.Assignment{Name: "n", Expr: &ast.Number{Value: 0}},
		},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)

	// 0: LOAD_VAR n      <- loopStart
	// 1: JMP_IF_FALSE -> 5
	// 2: LOAD_CONST 0
	// 3: STORE_VAR n
	// 4: JMP -> 0
	require.Equal(t, "5", bc.Instructions[1].Operand)
	require.Equal(t, bytecode.JMP, bc.Instructions[4].Op)
	require.Equal(t, "0", bc.Instructions[4].Operand)
}

func TestCompile_UnknownBinaryOperator(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.BinaryOp{Op: "^", Left: &ast.Number{Value: 1}, Right: &ast.Number{Value: 2}}},
	}}
	_, err := Compile(program)
	require.Error(t, err)
}

func TestCompile_UnaryMinusEmulatesZeroMinusExpr(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStatement{Expr: &ast.UnaryOp{Op: "-", Child: &ast.Number{Value: 5}}},
	}}

	bc, err := Compile(program)
	require.NoError(t, err)
	require.Equal(t, []bytecode.Instruction{
		{Op: bytecode.LOAD_CONST, Operand: "0"},
		{Op: bytecode.LOAD_CONST, Operand: "5"},
		{Op: bytecode.SUB, Operand: ""},
		{Op: bytecode.POP, Operand: ""},
	}, bc.Instructions)
}

func TestCompile_Idempotent(t *testing.T) {
	program := &ast.Program{Statements: []ast.Statement{
		&ast.Assignment{Name: "x", Expr: &ast.BinaryOp{
			Op:    "+",
			Left:  &ast.Number{Value: 1},
			Right: &ast.BinaryOp{Op: "*", Left: &ast.Number{Value: 2}, Right: &ast.Number{Value: 3}},
		}},
	}}

	bc1, err := Compile(program)
	require.NoError(t, err)
	bc2, err := Compile(program)
	require.NoError(t, err)
	require.Equal(t, bc1.Instructions, bc2.Instructions)
}
