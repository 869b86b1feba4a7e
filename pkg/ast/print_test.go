package ast

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrint_NestedBinaryOp(t *testing.T) {
	program := &Program{
		Statements: []Statement{
			&Print{Expr: &BinaryOp{
				Op:    "+",
				Left:  &Identifier{Name: "x"},
				Right: &Number{Value: 5},
			}},
		},
	}

	var buf bytes.Buffer
	Fprint(&buf, program)

	out := buf.String()
	for _, want := range []string{"Print", "BinaryOp +", "Identifier x", "Number 5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrint_IfElse(t *testing.T) {
	program := &Program{
		Statements: []Statement{
			&If{
				Cond: &BinaryOp{Op: ">", Left: &Identifier{Name: "x"}, Right: &Number{Value: 3}},
				Then: &Print{Expr: &Number{Value: 1}},
				Else: &Print{Expr: &Number{Value: 0}},
			},
		},
	}

	var buf bytes.Buffer
	Fprint(&buf, program)

	out := buf.String()
	for _, want := range []string{"If", "Else"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
