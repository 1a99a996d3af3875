package lower

import (
	"strings"
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/llir/llvm/ir"

	"github.com/cminusfc/cminusfc/internal/ast"
	"github.com/cminusfc/cminusfc/internal/dce"
	"github.com/cminusfc/cminusfc/internal/effects"
)

// --- small AST-literal builders; tests construct syntax trees by hand
// rather than running a parser. ---

func intLit(v int32) ast.Expression {
	return ast.Expression{Kind: ast.ExprLiteral, IntVal: v}
}

func varRef(name string) ast.Expression {
	return ast.Expression{Kind: ast.ExprVar, Name: name}
}

func indexRef(name string, idx ast.Expression) ast.Expression {
	return ast.Expression{Kind: ast.ExprVar, Name: name, Index: &idx}
}

func assignExpr(target, value ast.Expression) ast.Expression {
	return ast.Expression{Kind: ast.ExprAssign, Target: &target, Value: &value}
}

func addExpr(l, r ast.Expression) ast.Expression {
	return ast.Expression{Kind: ast.ExprAdditive, Op: ast.OpAdd, Left: &l, Right: &r}
}

func callExpr(callee string, args ...ast.Expression) ast.Expression {
	return ast.Expression{Kind: ast.ExprCall, Callee: callee, Args: args}
}

func exprStmt(e ast.Expression) ast.Statement {
	return ast.Statement{Kind: ast.StmtExpr, Expr: &e}
}

func retStmt(e *ast.Expression) ast.Statement {
	return ast.Statement{Kind: ast.StmtReturn, Expr: e}
}

func compound(locals []ast.VarDeclaration, body ...ast.Statement) *ast.Statement {
	return &ast.Statement{Kind: ast.StmtCompound, Locals: locals, Body: body}
}

func numPtr(n int64) *int64 { return &n }

func funcDecl(name string, ret ast.ValueType, params []ast.Param, body *ast.Statement) ast.Declaration {
	return ast.Declaration{Kind: ast.DeclFunc, Func: &ast.FuncDeclaration{
		Returns: ret, Name: name, Params: params, Body: body,
	}}
}

func varDecl(t ast.ValueType, name string, num *int64) ast.Declaration {
	return ast.Declaration{Kind: ast.DeclVar, Var: &ast.VarDeclaration{Type: t, Name: name, Num: num}}
}

// findFunc locates a lowered function by name.
func findFunc(t *testing.T, module *ir.Module, name string) *ir.Func {
	t.Helper()
	for _, fn := range module.Funcs {
		if fn.Name() == name {
			return fn
		}
	}
	t.Fatalf("no function named %s in lowered module", name)
	return nil
}

// `int main(void){ return 0; }` lowers to a single block returning the
// constant 0.
func TestLowerIntMainReturnsZero(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("main", ast.TypeInt, nil, compound(nil, retStmt(exprPtr(intLit(0))))),
	}}

	module, uses, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	main := findFunc(t, module, "main")
	if len(main.Blocks) != 1 {
		t.Fatalf("expected a single block, got %d", len(main.Blocks))
	}
	ret, ok := main.Blocks[0].Term.(*ir.TermRet)
	if !ok {
		t.Fatalf("expected a ret terminator, got %T", main.Blocks[0].Term)
	}
	if ret.X == nil {
		t.Fatal("expected the return to carry a value")
	}

	// Nothing here is dead, so DCE must settle immediately.
	changed, err := dce.New(uses).Run(module)
	if err != nil {
		t.Fatalf("dce failed: %v", err)
	}
	if changed {
		t.Error("DCE should remove nothing from a minimal main")
	}
}

func exprPtr(e ast.Expression) *ast.Expression { return &e }

// `int x; void f(void){ x = 1; }`: the store to the global is critical and
// survives DCE. Swapping x for a local would instead be swept (covered by
// internal/dce's own tests).
func TestLowerGlobalAssignmentStoreSurvivesDCE(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		varDecl(ast.TypeInt, "x", nil),
		funcDecl("f", ast.TypeVoid, nil, compound(nil,
			exprStmt(assignExpr(varRef("x"), intLit(1))),
		)),
	}}

	module, uses, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dce.RunToFixedPoint(module, uses); err != nil {
		t.Fatalf("dce failed: %v", err)
	}

	f := findFunc(t, module, "f")
	var stores int
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstStore); ok {
				stores++
			}
		}
	}
	if stores != 1 {
		t.Errorf("expected the store to the global to survive DCE, found %d stores", stores)
	}
}

// `float f(int a){ return a+1; }`: a+1 is an integer add (both operands
// already i32), coerced with sitofp only at the return.
func TestLowerIntParamPlusLiteralCoercesAtReturn(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("f", ast.TypeFloat, []ast.Param{{Type: ast.TypeInt, Name: "a"}},
			compound(nil, retStmt(exprPtr(addExpr(varRef("a"), intLit(1)))))),
	}}

	module, _, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := findFunc(t, module, "f")
	var sawAdd, sawSIToFP bool
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			switch inst.(type) {
			case *ir.InstAdd:
				sawAdd = true
			case *ir.InstSIToFP:
				sawSIToFP = true
			}
		}
	}
	if !sawAdd {
		t.Error("expected an integer add for a+1")
	}
	if !sawSIToFP {
		t.Error("expected an sitofp coercion feeding the return")
	}
	ret, ok := f.Blocks[len(f.Blocks)-1].Term.(*ir.TermRet)
	if !ok {
		t.Fatalf("expected a ret terminator, got %T", f.Blocks[len(f.Blocks)-1].Term)
	}
	if _, ok := ret.X.(*ir.InstSIToFP); !ok {
		t.Errorf("expected the returned value itself to be the sitofp result, got %T", ret.X)
	}
}

// `int a[10]; int main(void){ a[2]=3; return a[2]; }`: two GEPs with
// [0, idx], each guarded by a negative-index check; the store is critical
// (writes a global); the load feeding the return is live.
func TestLowerGlobalArrayIndexedAssignAndReturn(t *testing.T) {
	ten := int64(10)
	prog := &ast.Program{Declarations: []ast.Declaration{
		varDecl(ast.TypeInt, "a", &ten),
		funcDecl("main", ast.TypeInt, nil, compound(nil,
			exprStmt(assignExpr(indexRef("a", intLit(2)), intLit(3))),
			retStmt(exprPtr(indexRef("a", intLit(2)))),
		)),
	}}

	module, uses, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	main := findFunc(t, module, "main")
	var geps, negChecks, stores, loads int
	for _, block := range main.Blocks {
		for _, inst := range block.Insts {
			switch in := inst.(type) {
			case *ir.InstGetElementPtr:
				geps++
				if len(in.Indices) != 2 {
					t.Errorf("expected a 2-index GEP ([0, idx]), got %d indices", len(in.Indices))
				}
			case *ir.InstICmp:
				negChecks++
			case *ir.InstStore:
				stores++
			case *ir.InstLoad:
				loads++
			}
		}
	}
	if geps != 2 {
		t.Errorf("expected 2 GEPs (one per array access), got %d", geps)
	}
	if negChecks != 2 {
		t.Errorf("expected 2 negative-index guards, got %d", negChecks)
	}
	if stores != 1 {
		t.Errorf("expected 1 store (the assignment), got %d", stores)
	}
	if loads != 1 {
		t.Errorf("expected 1 load (feeding the return), got %d", loads)
	}

	if err := dce.RunToFixedPoint(module, uses); err != nil {
		t.Fatalf("dce failed: %v", err)
	}
	main = findFunc(t, module, "main")
	var storesAfter int
	for _, block := range main.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstStore); ok {
				storesAfter++
			}
		}
	}
	if storesAfter != 1 {
		t.Errorf("store to the global array must survive DCE, found %d", storesAfter)
	}
}

// `void f(int a[]){ a[0]=0; }` called with a local array `int b[4]`: the
// call site decays b via GEP(b, [0, 0]); inside f, a's alloca has pointer
// element type so indexing is load-then-GEP.
func TestLowerArrayParamDecayAndInsideLoadThenGEP(t *testing.T) {
	four := int64(4)
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("f", ast.TypeVoid, []ast.Param{{Type: ast.TypeInt, Name: "a", IsArray: true}},
			compound(nil, exprStmt(assignExpr(indexRef("a", intLit(0)), intLit(0))))),
		funcDecl("main", ast.TypeInt, nil, compound(
			[]ast.VarDeclaration{{Type: ast.TypeInt, Name: "b", Num: &four}},
			exprStmt(callExpr("f", varRef("b"))),
			retStmt(exprPtr(intLit(0))),
		)),
	}}

	module, _, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	main := findFunc(t, module, "main")
	var decayGEP *ir.InstGetElementPtr
	for _, block := range main.Blocks {
		for _, inst := range block.Insts {
			if gep, ok := inst.(*ir.InstGetElementPtr); ok {
				decayGEP = gep
			}
		}
	}
	if decayGEP == nil {
		t.Fatal("expected a decay GEP at the call site")
	}
	if len(decayGEP.Indices) != 2 {
		t.Errorf("expected the decay GEP to carry [0, 0], got %d indices", len(decayGEP.Indices))
	}

	f := findFunc(t, module, "f")
	var sawLoadOfParam bool
	for _, block := range f.Blocks {
		for i, inst := range block.Insts {
			if _, ok := inst.(*ir.InstLoad); ok {
				if i+1 < len(block.Insts) {
					if _, ok := block.Insts[i+1].(*ir.InstGetElementPtr); ok {
						sawLoadOfParam = true
					}
				}
			}
		}
	}
	if !sawLoadOfParam {
		t.Error("expected f's indexing to load the decayed pointer before computing the element address")
	}
}

// A pure function called with its result unused is removed by DCE; an
// impure function called the same way survives.
func TestLowerPureCallDroppedImpureCallKept(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("pure", ast.TypeInt, []ast.Param{{Type: ast.TypeInt, Name: "x"}},
			compound(nil, retStmt(exprPtr(addExpr(varRef("x"), intLit(1)))))),
		funcDecl("impure", ast.TypeVoid, nil,
			compound(nil, exprStmt(callExpr("output", intLit(1))))),
		funcDecl("main", ast.TypeInt, nil, compound(nil,
			exprStmt(callExpr("pure", intLit(5))),
			exprStmt(callExpr("impure")),
			retStmt(exprPtr(intLit(0))),
		)),
	}}

	module, uses, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	purity := effects.Analyze(module)
	pureFn := findFunc(t, module, "pure")
	impureFn := findFunc(t, module, "impure")
	if !purity[pureFn] {
		t.Error("expected pure(int) to be classified pure")
	}
	if purity[impureFn] {
		t.Error("expected impure(void), which calls output, to be classified impure")
	}

	if err := dce.RunToFixedPoint(module, uses); err != nil {
		t.Fatalf("dce failed: %v", err)
	}

	main := findFunc(t, module, "main")

	var calls []*ir.InstCall
	for _, block := range main.Blocks {
		for _, inst := range block.Insts {
			if call, ok := inst.(*ir.InstCall); ok {
				calls = append(calls, call)
			}
		}
	}
	var calledNames []string
	for _, c := range calls {
		if fn, ok := c.Callee.(*ir.Func); ok {
			calledNames = append(calledNames, fn.Name())
		}
	}
	if containsName(calledNames, "pure") {
		t.Error("the unused call to the pure function should have been removed by DCE")
	}
	if !containsName(calledNames, "impure") {
		t.Error("the call to the impure function must survive DCE")
	}
}

func containsName(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// When both branches of an if/else return, the continuation block picks up
// the default return but has no predecessors; the unreachable-block cleanup
// removes it, leaving every remaining block terminated and reachable.
func TestLowerIfElseBothReturnOrphanContinuationRemoved(t *testing.T) {
	cond := varRef("x")
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("f", ast.TypeInt, []ast.Param{{Type: ast.TypeInt, Name: "x"}},
			compound(nil, ast.Statement{
				Kind: ast.StmtIf,
				Cond: &cond,
				Then: []ast.Statement{retStmt(exprPtr(intLit(1)))},
				Else: []ast.Statement{retStmt(exprPtr(intLit(2)))},
			})),
	}}

	module, uses, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := findFunc(t, module, "f")
	if len(f.Blocks) != 4 {
		t.Fatalf("expected entry/then/continuation/else blocks before DCE, got %d", len(f.Blocks))
	}

	if err := dce.RunToFixedPoint(module, uses); err != nil {
		t.Fatalf("dce failed: %v", err)
	}
	if len(f.Blocks) != 3 {
		t.Errorf("expected the orphan continuation block to be removed, got %d blocks", len(f.Blocks))
	}
	for i, block := range f.Blocks {
		if block.Term == nil {
			t.Errorf("block %d left unterminated after DCE", i)
		}
	}
}

// `int sum(int n){ int i; i = 0; while(i < n){ i = i + 1; } return i; }`
// lowers to entry/cond/body/end blocks, with the body branching back to the
// condition; everything feeds the final return, so DCE keeps it all.
func TestLowerWhileLoopShapeSurvivesDCE(t *testing.T) {
	cond := ast.Expression{Kind: ast.ExprRelational, Op: ast.OpLt,
		Left: exprPtr(varRef("i")), Right: exprPtr(varRef("n"))}
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("sum", ast.TypeInt, []ast.Param{{Type: ast.TypeInt, Name: "n"}},
			compound(
				[]ast.VarDeclaration{{Type: ast.TypeInt, Name: "i"}},
				exprStmt(assignExpr(varRef("i"), intLit(0))),
				ast.Statement{
					Kind: ast.StmtWhile,
					Cond: &cond,
					Body: []ast.Statement{
						exprStmt(assignExpr(varRef("i"), addExpr(varRef("i"), intLit(1)))),
					},
				},
				retStmt(exprPtr(varRef("i"))),
			)),
	}}

	module, uses, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dce.RunToFixedPoint(module, uses); err != nil {
		t.Fatalf("dce failed: %v", err)
	}

	sum := findFunc(t, module, "sum")
	if len(sum.Blocks) != 4 {
		t.Fatalf("expected entry/cond/body/end blocks, got %d", len(sum.Blocks))
	}
	condBB, bodyBB := sum.Blocks[1], sum.Blocks[2]
	condBr, ok := condBB.Term.(*ir.TermCondBr)
	if !ok {
		t.Fatalf("expected the condition block to end in a conditional branch, got %T", condBB.Term)
	}
	if _, ok := condBr.Cond.(*ir.InstICmp); !ok {
		t.Errorf("expected an integer compare driving the loop, got %T", condBr.Cond)
	}
	backEdge, ok := bodyBB.Term.(*ir.TermBr)
	if !ok {
		t.Fatalf("expected the body to branch back unconditionally, got %T", bodyBB.Term)
	}
	if backEdge.Target != condBB {
		t.Error("expected the body's branch to target the condition block")
	}

	var increments int
	for _, block := range sum.Blocks {
		for _, inst := range block.Insts {
			if _, ok := inst.(*ir.InstAdd); ok {
				increments++
			}
		}
	}
	if increments != 1 {
		t.Errorf("expected the loop increment to survive DCE, found %d adds", increments)
	}
}

// The printed module must be valid LLVM assembly: re-parsing it with the
// same library's assembler should succeed and yield the same number of
// globals and functions.
func TestLoweredModuleTextualIRReparses(t *testing.T) {
	ten := int64(10)
	four := int64(4)
	prog := &ast.Program{Declarations: []ast.Declaration{
		varDecl(ast.TypeInt, "a", &ten),
		varDecl(ast.TypeFloat, "scale", nil),
		funcDecl("f", ast.TypeVoid, []ast.Param{{Type: ast.TypeInt, Name: "p", IsArray: true}},
			compound(nil, exprStmt(assignExpr(indexRef("p", intLit(0)), intLit(0))))),
		funcDecl("main", ast.TypeInt, nil, compound(
			[]ast.VarDeclaration{{Type: ast.TypeInt, Name: "b", Num: &four}},
			exprStmt(assignExpr(indexRef("a", intLit(2)), intLit(3))),
			exprStmt(callExpr("f", varRef("b"))),
			retStmt(exprPtr(indexRef("a", intLit(2)))),
		)),
	}}

	module, _, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := module.String()
	reparsed, err := asm.ParseString("lowered.ll", text)
	if err != nil {
		t.Fatalf("printed IR does not re-parse: %v\n%s", err, text)
	}
	if len(reparsed.Globals) != len(module.Globals) {
		t.Errorf("expected %d globals after re-parse, got %d", len(module.Globals), len(reparsed.Globals))
	}
	if len(reparsed.Funcs) != len(module.Funcs) {
		t.Errorf("expected %d functions after re-parse, got %d", len(module.Funcs), len(reparsed.Funcs))
	}
}

// A reference to an undeclared identifier aborts lowering with an
// identifying diagnostic instead of emitting a partial module.
func TestLowerUndeclaredIdentifierFails(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("main", ast.TypeInt, nil, compound(nil, retStmt(exprPtr(varRef("missing"))))),
	}}

	_, _, err := LowerProgram(prog)
	if err == nil {
		t.Fatal("expected an error referencing the undeclared identifier")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected the error to name the missing identifier, got: %v", err)
	}
}

// TestLowerExternalDeclarationHasNoBlocks covers the boundary case of a
// function with only a declaration (no body): it is left untouched, with
// zero basic blocks.
func TestLowerExternalDeclarationHasNoBlocks(t *testing.T) {
	prog := &ast.Program{Declarations: []ast.Declaration{
		funcDecl("extern_fn", ast.TypeInt, []ast.Param{{Type: ast.TypeInt, Name: "x"}}, nil),
	}}

	module, _, err := LowerProgram(prog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := findFunc(t, module, "extern_fn")
	if len(fn.Blocks) != 0 {
		t.Errorf("expected an external declaration to have no blocks, got %d", len(fn.Blocks))
	}
}
