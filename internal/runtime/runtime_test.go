package runtime

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

func TestDeclareCreatesAllFourFunctions(t *testing.T) {
	module := ir.NewModule()
	funcs := Declare(module)

	for _, name := range []string{Input, Output, OutputFloat, NegIdxExcept} {
		if _, ok := funcs[name]; !ok {
			t.Errorf("expected Declare to create %q", name)
		}
	}
	if len(module.Funcs) != 4 {
		t.Errorf("expected 4 functions registered on the module, got %d", len(module.Funcs))
	}
}

func TestDeclareSignatures(t *testing.T) {
	module := ir.NewModule()
	funcs := Declare(module)

	if funcs[Input].Sig.RetType != types.I32 {
		t.Error("input should return i32")
	}
	if len(funcs[Input].Params) != 0 {
		t.Error("input should take no parameters")
	}

	if funcs[Output].Sig.RetType != types.Void {
		t.Error("output should return void")
	}
	if len(funcs[Output].Params) != 1 || funcs[Output].Params[0].Type() != types.I32 {
		t.Error("output should take a single i32 parameter")
	}

	if len(funcs[OutputFloat].Params) != 1 || funcs[OutputFloat].Params[0].Type() != types.Double {
		t.Error("outputFloat should take a single float parameter")
	}

	if funcs[NegIdxExcept].Sig.RetType != types.Void || len(funcs[NegIdxExcept].Params) != 0 {
		t.Error("neg_idx_except should take no parameters and return void")
	}
}
