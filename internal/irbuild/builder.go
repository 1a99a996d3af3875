// Package irbuild implements the IR builder: an explicit cursor over the
// current insertion block that constructs well-typed instructions, appends
// them, and registers their operands in a UseList.
package irbuild

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/cminusfc/cminusfc/internal/uselist"
)

// Builder is the mutable insertion-point cursor lowering threads through a
// function body. It owns no other state, so tests can construct IR without
// a parser by driving it directly.
type Builder struct {
	block *ir.Block
	uses  *uselist.UseList
}

// New creates a Builder with no current block set. SetBlock must be called
// before any Create* method.
func New(uses *uselist.UseList) *Builder {
	return &Builder{uses: uses}
}

// Block returns the current insertion block.
func (b *Builder) Block() *ir.Block { return b.block }

// SetBlock repoints the cursor at block. Callers must do this before
// emitting into a new block; appending to a terminated block is a
// programming error this package does not itself guard against.
func (b *Builder) SetBlock(block *ir.Block) { b.block = block }

// Terminated reports whether the current block already ends in a
// terminator.
func (b *Builder) Terminated() bool {
	return b.block != nil && b.block.Term != nil
}

// track registers inst's operands (the values it was just constructed
// with) in the use-list. Called once by every Create* method right after
// the instruction is built.
func (b *Builder) track(inst ir.Instruction) {
	for i, operand := range inst.Operands() {
		b.uses.AddUse(*operand, inst, i)
	}
}

func (b *Builder) trackTerm(term ir.Terminator) {
	for i, operand := range term.Operands() {
		b.uses.AddUse(*operand, term, i)
	}
}

// --- Arithmetic ---

func (b *Builder) CreateIAdd(l, r value.Value) value.Value {
	inst := b.block.NewAdd(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateISub(l, r value.Value) value.Value {
	inst := b.block.NewSub(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateIMul(l, r value.Value) value.Value {
	inst := b.block.NewMul(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateISDiv(l, r value.Value) value.Value {
	inst := b.block.NewSDiv(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateFAdd(l, r value.Value) value.Value {
	inst := b.block.NewFAdd(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateFSub(l, r value.Value) value.Value {
	inst := b.block.NewFSub(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateFMul(l, r value.Value) value.Value {
	inst := b.block.NewFMul(l, r)
	b.track(inst)
	return inst
}

func (b *Builder) CreateFDiv(l, r value.Value) value.Value {
	inst := b.block.NewFDiv(l, r)
	b.track(inst)
	return inst
}

// --- Compares ---

var iPreds = map[string]enum.IPred{
	"eq": enum.IPredEQ,
	"ne": enum.IPredNE,
	"ge": enum.IPredSGE,
	"gt": enum.IPredSGT,
	"le": enum.IPredSLE,
	"lt": enum.IPredSLT,
}

var fPreds = map[string]enum.FPred{
	"eq": enum.FPredOEQ,
	"ne": enum.FPredONE,
	"ge": enum.FPredOGE,
	"gt": enum.FPredOGT,
	"le": enum.FPredOLE,
	"lt": enum.FPredOLT,
}

// CreateICmp emits an integer compare for one of "eq","ne","ge","gt","le","lt".
func (b *Builder) CreateICmp(pred string, l, r value.Value) value.Value {
	inst := b.block.NewICmp(iPreds[pred], l, r)
	b.track(inst)
	return inst
}

// CreateFCmp emits a float compare for one of "eq","ne","ge","gt","le","lt".
func (b *Builder) CreateFCmp(pred string, l, r value.Value) value.Value {
	inst := b.block.NewFCmp(fPreds[pred], l, r)
	b.track(inst)
	return inst
}

// --- Conversions ---

func (b *Builder) CreateZExt(v value.Value, to types.Type) value.Value {
	inst := b.block.NewZExt(v, to)
	b.track(inst)
	return inst
}

func (b *Builder) CreateSIToFP(v value.Value, to types.Type) value.Value {
	inst := b.block.NewSIToFP(v, to)
	b.track(inst)
	return inst
}

func (b *Builder) CreateFPToSI(v value.Value, to types.Type) value.Value {
	inst := b.block.NewFPToSI(v, to)
	b.track(inst)
	return inst
}

// --- Memory ---

func (b *Builder) CreateAlloca(elemType types.Type) value.Value {
	inst := b.block.NewAlloca(elemType)
	b.track(inst)
	return inst
}

func (b *Builder) CreateLoad(elemType types.Type, ptr value.Value) value.Value {
	inst := b.block.NewLoad(elemType, ptr)
	b.track(inst)
	return inst
}

func (b *Builder) CreateStore(v, ptr value.Value) {
	inst := b.block.NewStore(v, ptr)
	b.track(inst)
}

// --- Addressing ---

// CreateGEP emits a getelementptr computing a pointer into elemType rooted
// at base, following the given index path.
func (b *Builder) CreateGEP(elemType types.Type, base value.Value, indices ...value.Value) value.Value {
	inst := b.block.NewGetElementPtr(elemType, base, indices...)
	b.track(inst)
	return inst
}

// --- Call ---

func (b *Builder) CreateCall(callee value.Value, args ...value.Value) value.Value {
	inst := b.block.NewCall(callee, args...)
	b.track(inst)
	return inst
}

// --- Terminators ---

func (b *Builder) CreateBr(target *ir.Block) {
	term := b.block.NewBr(target)
	b.trackTerm(term)
}

func (b *Builder) CreateCondBr(cond value.Value, trueTarget, falseTarget *ir.Block) {
	term := b.block.NewCondBr(cond, trueTarget, falseTarget)
	b.trackTerm(term)
}

// CreateRet emits a return terminator. v may be nil for a void return.
func (b *Builder) CreateRet(v value.Value) {
	term := b.block.NewRet(v)
	b.trackTerm(term)
}
