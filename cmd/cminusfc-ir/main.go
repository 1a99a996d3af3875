// Command cminusfc-ir lowers a C-minus-f syntax tree to LLVM-dialect textual
// IR and runs the optimization pipeline (function-effect analysis feeding
// dead-code elimination) over it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cminusfc/cminusfc/internal/ast"
	"github.com/cminusfc/cminusfc/internal/dce"
	"github.com/cminusfc/cminusfc/internal/lower"
	"github.com/cminusfc/cminusfc/internal/passes"
)

// maxPassRounds bounds the pass manager's fixed-point loop; DCE converges
// in a handful of rounds on any real module, so this is a ceiling rather
// than an expected iteration count.
const maxPassRounds = 64

func main() {
	var input string
	var output string
	var noOpt bool
	var globalDCE bool
	flag.StringVar(&input, "file", "", "C-minus-f AST JSON file to compile (reads from stdin if not provided)")
	flag.StringVar(&output, "o", "", "Output file (default: input file with .ll extension, or stdout)")
	flag.BoolVar(&noOpt, "no-opt", false, "Skip dead-code elimination and emit the IR straight out of lowering")
	flag.BoolVar(&globalDCE, "global-dce", false, "Also prune unreferenced functions and globals from the module")
	flag.Parse()

	if noOpt && globalDCE {
		fmt.Fprintln(os.Stderr, "Error: -global-dce requires the optimization pipeline; drop -no-opt")
		os.Exit(1)
	}

	data, err := readInput(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	var prog ast.Program
	if err := json.Unmarshal(data, &prog); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing AST JSON: %v\n", err)
		os.Exit(1)
	}

	module, uses, err := lower.LowerProgram(&prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lowering failed: %v\n", err)
		os.Exit(1)
	}

	if !noOpt {
		pm := passes.NewManager()
		pm.Add(dce.New(uses))
		if globalDCE {
			pm.Add(dce.NewGlobalSweep(uses))
		}
		if err := pm.RunToFixedPoint(module, maxPassRounds); err != nil {
			fmt.Fprintf(os.Stderr, "Optimization pipeline failed: %v\n", err)
			os.Exit(1)
		}
	}

	text := module.String()
	if output == "" && input == "" {
		fmt.Print(text)
		return
	}

	if output == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		output = base + ".ll"
	}
	if err := os.WriteFile(output, []byte(text), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing LLVM IR: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("LLVM IR written to %s\n", output)
}

func readInput(input string) ([]byte, error) {
	if input == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(input)
}
