// Package effects implements function-purity analysis: a least-fixed-point
// classifier feeding internal/dce's call-criticality rule.
package effects

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Purity maps every function in a module to whether it is pure: no Store to
// a global or pointer-typed argument, and every transitively called
// function is itself pure.
type Purity map[*ir.Func]bool

// Analyze classifies every function in module. External functions (no
// blocks) are impure by declaration: nothing is known about their bodies,
// and the runtime externs (input, output, outputFloat, neg_idx_except) all
// perform I/O or abort.
func Analyze(module *ir.Module) Purity {
	p := make(Purity, len(module.Funcs))
	for _, fn := range module.Funcs {
		p[fn] = len(fn.Blocks) > 0
	}

	for {
		changed := false
		for _, fn := range module.Funcs {
			if len(fn.Blocks) == 0 || !p[fn] {
				continue
			}
			if hasObservableEffect(fn, p) {
				p[fn] = false
				changed = true
			}
		}
		if !changed {
			return p
		}
	}
}

// hasObservableEffect reports whether fn directly stores to escaping memory
// or calls a (currently classified) impure function.
func hasObservableEffect(fn *ir.Func, p Purity) bool {
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			switch in := inst.(type) {
			case *ir.InstStore:
				if isEscaping(in.Dst) {
					return true
				}
			case *ir.InstCall:
				callee, ok := in.Callee.(*ir.Func)
				if !ok {
					// No indirect-call surface in this language; treat
					// anything else as conservatively impure.
					return true
				}
				if !p[callee] {
					return true
				}
			}
		}
	}
	return false
}

// isEscaping reports whether ptr ultimately addresses a global variable, a
// function parameter, or a pointer loaded from memory (the decayed
// array-parameter shape: storing through the loaded value of a pointer
// argument writes the caller's memory), walking back through any chain of
// GEPs first. This is the same rule internal/dce's isEscapingPtr uses for
// store criticality, kept in sync so a store this pass calls impure is
// exactly the stores internal/dce treats as critical.
func isEscaping(ptr value.Value) bool {
	for {
		switch p := ptr.(type) {
		case *ir.Global, *ir.Param, *ir.InstLoad:
			return true
		case *ir.InstGetElementPtr:
			ptr = p.Src
		default:
			return false
		}
	}
}
