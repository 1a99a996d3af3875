// Package runtime declares the four external runtime-library functions
// C-minus-f lowering assumes exist: input, output, outputFloat, and
// neg_idx_except. The compiled program links against an I/O runtime
// providing them; neg_idx_except terminates the process with a
// negative-index diagnostic.
package runtime

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// Names of the predefined runtime bindings.
const (
	Input        = "input"
	Output       = "output"
	OutputFloat  = "outputFloat"
	NegIdxExcept = "neg_idx_except"
)

// Declare creates the four external functions in module and returns them
// keyed by name, ready to be pushed into the global scope (internal/scope)
// before lowering a program.
func Declare(module *ir.Module) map[string]*ir.Func {
	funcs := make(map[string]*ir.Func, 4)

	// input: () -> i32
	funcs[Input] = module.NewFunc(Input, types.I32)

	// output: (i32) -> void
	output := module.NewFunc(Output, types.Void)
	output.Params = append(output.Params, ir.NewParam("v", types.I32))
	funcs[Output] = output

	// outputFloat: (float) -> void
	outputFloat := module.NewFunc(OutputFloat, types.Void)
	outputFloat.Params = append(outputFloat.Params, ir.NewParam("v", types.Double))
	funcs[OutputFloat] = outputFloat

	// neg_idx_except: () -> void
	funcs[NegIdxExcept] = module.NewFunc(NegIdxExcept, types.Void)

	return funcs
}
