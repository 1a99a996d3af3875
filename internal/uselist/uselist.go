// Package uselist maintains use-lists: the back-edges from a defined value
// to every instruction operand slot that references it. llir/llvm's
// instructions expose their operands forward (via Operands()) but never
// track who points at them; the global dead-code sweep decides what to
// prune by asking for values with no remaining users, so this package
// builds and maintains the reverse direction explicitly.
package uselist

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
)

// Use is one (referrer, operand-index) back-edge: Ref references the used
// value through its Operand'th slot. Ref holds either an ir.Instruction or
// an ir.Terminator; llir/llvm keeps those as two disjoint interfaces (a
// terminator carries no result value of its own), so this tracks both
// uniformly as the concrete pointer identity that owns the operand slot.
type Use struct {
	Ref     interface{}
	Operand int
}

// UseList tracks, for every value a builder has registered operands for,
// the set of instructions referencing it. It is scoped to a single module:
// construct one per lowering session and share it with the DCE pass that
// consumes it.
type UseList struct {
	uses map[value.Value][]Use
}

// NewUseList creates an empty UseList.
func NewUseList() *UseList {
	return &UseList{uses: make(map[value.Value][]Use)}
}

// AddUse records that ref (an ir.Instruction or ir.Terminator) references
// used through operand index idx. Constants are ignored: nothing ever
// queries a constant's use-list, so recording those entries would only
// grow memory.
func (u *UseList) AddUse(used value.Value, ref interface{}, idx int) {
	if !tracked(used) {
		return
	}
	u.uses[used] = append(u.uses[used], Use{Ref: ref, Operand: idx})
}

// RemoveUses withdraws every use-list entry recorded for ref, meaning
// entries where ref is the referencing instruction or terminator. Removal
// must withdraw uses before the instruction is unlinked from its block.
func (u *UseList) RemoveUses(ref interface{}) {
	for used, list := range u.uses {
		filtered := list[:0]
		for _, use := range list {
			if use.Ref != ref {
				filtered = append(filtered, use)
			}
		}
		if len(filtered) == 0 {
			delete(u.uses, used)
		} else {
			u.uses[used] = filtered
		}
	}
}

// Users returns every (instruction, operand-index) pair referencing v.
func (u *UseList) Users(v value.Value) []Use {
	return u.uses[v]
}

// IsUnused reports whether v has no recorded users.
func (u *UseList) IsUnused(v value.Value) bool {
	return len(u.uses[v]) == 0
}

// tracked reports whether v is a kind of value with an observable
// use-list: instructions, globals, functions, and parameters.
func tracked(v value.Value) bool {
	switch v.(type) {
	case ir.Instruction:
		return true
	case *ir.Global:
		return true
	case *ir.Func:
		return true
	case *ir.Param:
		return true
	default:
		return false
	}
}
