// Command stacklang starts the interactive stacklang REPL.
package main

import (
	"fmt"
	"os"

	"github.com/jlang/stacklang/internal/repl"
)

const version = "0.1.0"

func main() {
	r := repl.New()

	for _, arg := range os.Args[1:] {
		switch arg {
		case "--trace", "-t":
			r.Trace = true
		case "--version", "-v":
			fmt.Printf("stacklang version %s\n", version)
			return
		case "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "stacklang: unrecognized flag %q\n", arg)
			printUsage()
			os.Exit(1)
		}
	}

	if err := r.Start(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "stacklang: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("stacklang - a tiny imperative expression REPL")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  stacklang              Start the REPL")
	fmt.Println("  stacklang --trace      Start the REPL with instruction tracing")
	fmt.Println("  stacklang --version    Show version")
	fmt.Println("  stacklang --help       Show this help")
}
