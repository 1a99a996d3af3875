package uselist

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

func newTestFunc() (*ir.Func, *ir.Block) {
	module := ir.NewModule()
	fn := module.NewFunc("f", types.I32)
	block := fn.NewBlock("entry")
	return fn, block
}

func TestAddUseAndUsers(t *testing.T) {
	_, block := newTestFunc()
	u := NewUseList()

	a := block.NewAlloca(types.I32)
	load := block.NewLoad(types.I32, a)
	u.AddUse(a, load, 0)

	users := u.Users(a)
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Ref != load || users[0].Operand != 0 {
		t.Error("recorded use does not match what was added")
	}
}

func TestAddUseIgnoresConstants(t *testing.T) {
	_, block := newTestFunc()
	u := NewUseList()

	c := constant.NewInt(types.I32, 42)
	add := block.NewAdd(c, c)
	u.AddUse(c, add, 0)

	if !u.IsUnused(c) {
		t.Error("constants should never be tracked in the use-list")
	}
}

func TestRemoveUsesWithdrawsEntries(t *testing.T) {
	_, block := newTestFunc()
	u := NewUseList()

	a := block.NewAlloca(types.I32)
	load := block.NewLoad(types.I32, a)
	u.AddUse(a, load, 0)

	if u.IsUnused(a) {
		t.Fatal("expected a to be used before removal")
	}

	u.RemoveUses(load)
	if !u.IsUnused(a) {
		t.Error("RemoveUses should withdraw every entry referencing the removed instruction")
	}
}

func TestRemoveUsesOnlyAffectsTargetedInstruction(t *testing.T) {
	_, block := newTestFunc()
	u := NewUseList()

	a := block.NewAlloca(types.I32)
	load1 := block.NewLoad(types.I32, a)
	load2 := block.NewLoad(types.I32, a)
	u.AddUse(a, load1, 0)
	u.AddUse(a, load2, 0)

	u.RemoveUses(load1)
	users := u.Users(a)
	if len(users) != 1 || users[0].Ref != load2 {
		t.Error("RemoveUses should only withdraw entries for the removed instruction")
	}
}

func TestIsUnusedForNeverReferencedValue(t *testing.T) {
	_, block := newTestFunc()
	u := NewUseList()
	a := block.NewAlloca(types.I32)
	if !u.IsUnused(a) {
		t.Error("a value with no recorded uses should report unused")
	}
}
