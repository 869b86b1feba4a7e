// Package repl implements the stacklang read-eval-print loop: one line
// of source in, lexed/parsed/compiled/executed against a VM whose
// environment survives for the life of the process.
//
// Line editing and history use github.com/chzyer/readline; colored
// diagnostics use github.com/fatih/color — both adopted the way
// akashmaji946/go-mix's repl/repl.go uses them, since this REPL shares
// the same shape: a persistent interpreter state fed one line at a
// time, with colored banners/results/errors and arrow-key history.
package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/jlang/stacklang/internal/pipeline"
	"github.com/jlang/stacklang/pkg/ast"
	"github.com/jlang/stacklang/pkg/bytecode"
	"github.com/jlang/stacklang/pkg/vm"
)

const (
	prompt   = ">>> "
	exitLine = "exit"
	banner   = "stacklang REPL — type 'exit' to quit."
)

var (
	blueColor   = color.New(color.FgBlue)
	redColor    = color.New(color.FgRed)
	yellowColor = color.New(color.FgYellow)
	cyanColor   = color.New(color.FgCyan)
)

// Repl is one interactive session. Trace enables the VM's
// per-instruction tracer (the --trace/-t flag), adapted from the
// teacher's interactive debugger.
type Repl struct {
	Trace bool
}

// New creates a Repl with tracing off.
func New() *Repl {
	return &Repl{}
}

// Start runs the main loop, reading lines via readline and writing
// diagnostics, program output, and errors to w. It returns when the
// user types "exit" or input reaches EOF (Ctrl+D).
func (r *Repl) Start(w io.Writer) error {
	cyanColor.Fprintln(w, banner)

	rl, err := readline.New(prompt)
	if err != nil {
		return fmt.Errorf("repl: could not start line editor: %w", err)
	}
	defer rl.Close()

	v := vm.New()
	v.SetOutput(w)
	if r.Trace {
		v.SetTrace(true)
		v.Tracer = func(pc int, instr bytecode.Instruction, stack []int) {
			blueColor.Fprintf(w, "[trace] pc=%d %s", pc, instr.Op)
			if instr.Operand != "" {
				blueColor.Fprintf(w, " %s", instr.Operand)
			}
			blueColor.Fprintf(w, " stack=%v\n", stack)
		}
	}

	for {
		line, err := rl.Readline()
		if err != nil { // EOF (Ctrl+D) or readline error
			fmt.Fprintln(w, "Good bye!")
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == exitLine {
			fmt.Fprintln(w, "Good bye!")
			return nil
		}
		rl.SaveHistory(line)

		r.evalLine(w, line, v)
	}
}

// evalLine runs one line through the pipeline and prints its
// diagnostics, output, and any error — never letting an error or a
// runtime panic escape to the caller, per spec §7 ("the REPL never
// crashes on a user error").
func (r *Repl) evalLine(w io.Writer, line string, v *vm.VM) {
	result, err := pipeline.RunInteractive(line, v)

	if len(result.Program.Statements) > 0 {
		fmt.Fprintln(w, "[AST]")
		ast.Fprint(w, &result.Program)
	}
	if result.Bytecode.Len() > 0 {
		fmt.Fprintf(w, "[Bytecode]\n%s", result.Bytecode.Disassemble())
	}

	if err != nil {
		switch result.Stage {
		case pipeline.StageCompile:
			redColor.Fprintf(w, "Compile error: %s\n", err)
		case pipeline.StageRuntime:
			redColor.Fprintf(w, "Runtime error: %s\n", err)
		default:
			redColor.Fprintf(w, "Parse error: %s\n", err)
		}
		return
	}

	if result.Echo != nil {
		yellowColor.Fprintf(w, "=> %d\n", *result.Echo)
	}
}
