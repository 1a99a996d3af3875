// Package dce implements dead-code elimination: per-function
// unreachable-block cleanup and a mark/sweep pass over the operand graph,
// with internal/effects' purity classification deciding which calls are
// observable. A separate module-level sweep (GlobalSweep) prunes unused
// functions and globals; callers opt into it explicitly.
package dce

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"github.com/cminusfc/cminusfc/internal/effects"
	"github.com/cminusfc/cminusfc/internal/uselist"
)

// Pass adapts dead-code elimination to internal/passes.Pass.
type Pass struct {
	Uses *uselist.UseList
}

// New creates a DCE pass tracking use-lists in uses.
func New(uses *uselist.UseList) *Pass {
	return &Pass{Uses: uses}
}

func (p *Pass) Name() string { return "dce" }

// Run executes one clear/mark/sweep round per function, reporting whether
// anything changed. The global sweep is a separate entry point, see
// GlobalSweep: an uncalled-but-defined function is not dead code for this
// pass, only for a caller that explicitly asks for whole-module pruning.
func (p *Pass) Run(module *ir.Module) (bool, error) {
	purity := effects.Analyze(module)
	changed := false

	for _, fn := range module.Funcs {
		if len(fn.Blocks) == 0 {
			continue
		}
		if clearUnreachableBlocks(fn, p.Uses) {
			changed = true
		}
		marked := mark(fn, purity)
		if sweep(fn, marked, p.Uses) {
			changed = true
		}
	}

	return changed, nil
}

// RunToFixedPoint loops Run until a full round reports no change.
func RunToFixedPoint(module *ir.Module, uses *uselist.UseList) error {
	pass := New(uses)
	for {
		changed, err := pass.Run(module)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

// clearUnreachableBlocks removes every non-entry block with no predecessors
// still present in fn. A chain of unreachable blocks needs one round per
// link; the fixed-point driver supplies the rounds.
func clearUnreachableBlocks(fn *ir.Func, uses *uselist.UseList) bool {
	entry := fn.Blocks[0]
	preds := predecessorCounts(fn)

	var kept []*ir.Block
	changed := false
	for _, block := range fn.Blocks {
		if block != entry && preds[block] == 0 {
			removeBlock(block, uses)
			changed = true
			continue
		}
		kept = append(kept, block)
	}
	fn.Blocks = kept
	return changed
}

// predecessorCounts counts, for every block reachable via some other
// block's terminator, how many such edges point at it.
func predecessorCounts(fn *ir.Func) map[*ir.Block]int {
	preds := make(map[*ir.Block]int, len(fn.Blocks))
	for _, block := range fn.Blocks {
		if block.Term == nil {
			continue
		}
		for _, succ := range block.Term.Succs() {
			preds[succ]++
		}
	}
	return preds
}

func removeBlock(block *ir.Block, uses *uselist.UseList) {
	for _, inst := range block.Insts {
		uses.RemoveUses(inst)
	}
	if block.Term != nil {
		uses.RemoveUses(block.Term)
	}
}

// mark seeds the critical instructions, then propagates liveness backward
// through the operand graph.
//
// Every terminator is critical, but block.Term holds an ir.Terminator, a
// distinct type from the ir.Instruction entries swept out of block.Insts; a
// terminator is never a sweep candidate in the first place, so rather than
// marking the terminator itself this seeds its operands directly (the value
// a Ret returns, the condition a CondBr branches on), which is what
// actually needs to survive sweep.
//
// A store to a local alloca is not a critical seed, but its liveness is
// induced by downstream loads of the same alloca: once an alloca is marked
// (some live instruction loads through it), every store whose pointer
// resolves to that alloca is marked too. Without this, the pass would sweep
// parameter spills and local-variable writes that a surviving load still
// reads.
func mark(fn *ir.Func, purity effects.Purity) map[ir.Instruction]bool {
	owned := instructionSet(fn)
	storesInto := localStores(fn)
	marked := make(map[ir.Instruction]bool)
	var worklist []ir.Instruction

	var seedInst func(inst ir.Instruction)
	seedInst = func(inst ir.Instruction) {
		if marked[inst] || !owned[inst] {
			return
		}
		marked[inst] = true
		worklist = append(worklist, inst)
		if alloca, ok := inst.(*ir.InstAlloca); ok {
			for _, store := range storesInto[alloca] {
				seedInst(store)
			}
		}
	}
	seedValue := func(v value.Value) {
		if inst, ok := v.(ir.Instruction); ok {
			seedInst(inst)
		}
	}

	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			if isCritical(inst, purity) {
				seedInst(inst)
			}
		}
		if block.Term != nil {
			for _, operand := range block.Term.Operands() {
				seedValue(*operand)
			}
		}
	}

	for len(worklist) > 0 {
		inst := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, operand := range inst.Operands() {
			seedValue(*operand)
		}
	}

	return marked
}

// localStores indexes fn's stores by the alloca their pointer operand
// resolves to, walking back through any GEP chain the same way
// isEscapingPtr does.
func localStores(fn *ir.Func) map[*ir.InstAlloca][]*ir.InstStore {
	stores := make(map[*ir.InstAlloca][]*ir.InstStore)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			store, ok := inst.(*ir.InstStore)
			if !ok {
				continue
			}
			if alloca, ok := rootAlloca(store.Dst); ok {
				stores[alloca] = append(stores[alloca], store)
			}
		}
	}
	return stores
}

func rootAlloca(ptr value.Value) (*ir.InstAlloca, bool) {
	for {
		switch p := ptr.(type) {
		case *ir.InstAlloca:
			return p, true
		case *ir.InstGetElementPtr:
			ptr = p.Src
		default:
			return nil, false
		}
	}
}

// instructionSet collects fn's own instructions; marking never crosses a
// function boundary.
func instructionSet(fn *ir.Func) map[ir.Instruction]bool {
	set := make(map[ir.Instruction]bool)
	for _, block := range fn.Blocks {
		for _, inst := range block.Insts {
			set[inst] = true
		}
	}
	return set
}

// isCritical reports whether an instruction's removal would change
// observable behavior: a store to escaping memory or a call to an impure
// function. Terminators are handled separately in mark.
func isCritical(inst ir.Instruction, purity effects.Purity) bool {
	switch in := inst.(type) {
	case *ir.InstStore:
		return isEscapingPtr(in.Dst)
	case *ir.InstCall:
		callee, ok := in.Callee.(*ir.Func)
		if !ok {
			return true
		}
		return !purity[callee]
	default:
		return false
	}
}

// isEscapingPtr reports whether ptr ultimately addresses memory observable
// outside the function, walking back through any chain of GEPs first: an
// indexed store into a global array carries the GEP, not the global, as its
// pointer operand. A load at the root is the decayed-array-parameter shape
// (`a[0] = 0` inside `void f(int a[])` stores through GEP(Load(a's spill
// alloca))): the loaded pointer is the incoming argument, so the store
// writes caller memory.
func isEscapingPtr(ptr value.Value) bool {
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

// sweep removes every unmarked instruction, withdrawing its use-list
// entries.
func sweep(fn *ir.Func, marked map[ir.Instruction]bool, uses *uselist.UseList) bool {
	changed := false
	for _, block := range fn.Blocks {
		var kept []ir.Instruction
		for _, inst := range block.Insts {
			if marked[inst] {
				kept = append(kept, inst)
				continue
			}
			uses.RemoveUses(inst)
			changed = true
		}
		block.Insts = kept
	}
	return changed
}

// GlobalSweep is the separate module-pruning entry point: it drops
// functions (other than main) and globals with empty use-lists. It shares
// the Pass shape so a pipeline can register it after the per-function DCE
// rounds, but it is never run implicitly by Pass.
type GlobalSweep struct {
	Uses *uselist.UseList
}

// NewGlobalSweep creates a global-sweep pass tracking use-lists in uses.
func NewGlobalSweep(uses *uselist.UseList) *GlobalSweep {
	return &GlobalSweep{Uses: uses}
}

func (p *GlobalSweep) Name() string { return "dce-global-sweep" }

func (p *GlobalSweep) Run(module *ir.Module) (bool, error) {
	return sweepGlobals(module, p.Uses), nil
}

// sweepGlobals drops functions (other than main) and globals with empty
// use-lists. Dropping a function withdraws the uses its body held, so a
// global referenced only by a swept function is itself swept; functions are
// pruned before globals for exactly this reason.
func sweepGlobals(module *ir.Module, uses *uselist.UseList) bool {
	changed := false

	var keptFuncs []*ir.Func
	for _, fn := range module.Funcs {
		if fn.Name() != "main" && uses.IsUnused(fn) {
			for _, block := range fn.Blocks {
				removeBlock(block, uses)
			}
			changed = true
			continue
		}
		keptFuncs = append(keptFuncs, fn)
	}
	module.Funcs = keptFuncs

	var keptGlobals []*ir.Global
	for _, g := range module.Globals {
		if uses.IsUnused(g) {
			changed = true
			continue
		}
		keptGlobals = append(keptGlobals, g)
	}
	module.Globals = keptGlobals

	return changed
}
