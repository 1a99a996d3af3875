// Package lower implements AST-to-IR lowering: the semantic translator that
// resolves names, inserts implicit numeric coercions, synthesizes
// control-flow graphs for conditionals and loops, and emits array indexing
// with the negative-index runtime guard.
package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"github.com/cminusfc/cminusfc/internal/ast"
	"github.com/cminusfc/cminusfc/internal/irbuild"
	"github.com/cminusfc/cminusfc/internal/runtime"
	"github.com/cminusfc/cminusfc/internal/scope"
	"github.com/cminusfc/cminusfc/internal/ssa"
	"github.com/cminusfc/cminusfc/internal/uselist"
)

// Lowerer owns the module under construction, a builder cursor, a scope
// stack, and the current-function/pre-entered-scope lowering context. The
// l-value-required mode is an explicit parameter threaded through
// lowerExpression rather than a mutated context field, which avoids having
// to save and restore it around every recursive call.
type Lowerer struct {
	module  *ir.Module
	types   *ssa.Interner
	builder *irbuild.Builder
	scope   *scope.Stack
	uses    *uselist.UseList

	runtimeFuncs map[string]*ir.Func

	currentFunc     *ir.Func
	preEnteredScope bool
}

// New creates a Lowerer over a fresh module with the runtime externs
// declared and bound in the global scope.
func New() *Lowerer {
	module := ir.NewModule()
	uses := uselist.NewUseList()
	l := &Lowerer{
		module:  module,
		types:   ssa.NewInterner(),
		builder: irbuild.New(uses),
		scope:   scope.New(),
		uses:    uses,
	}
	l.runtimeFuncs = runtime.Declare(module)
	for name, fn := range l.runtimeFuncs {
		l.scope.Push(name, fn)
	}
	return l
}

// Module returns the module under construction.
func (l *Lowerer) Module() *ir.Module { return l.module }

// UseList returns the use-list tracking every instruction this Lowerer's
// builder has created. Callers hand this to internal/dce.
func (l *Lowerer) UseList() *uselist.UseList { return l.uses }

// LowerProgram lowers every top-level declaration in order and returns the
// constructed module.
func LowerProgram(prog *ast.Program) (*ir.Module, *uselist.UseList, error) {
	l := New()
	for i := range prog.Declarations {
		if err := l.lowerDeclaration(&prog.Declarations[i]); err != nil {
			return nil, nil, err
		}
	}
	return l.module, l.uses, nil
}

func (l *Lowerer) lowerDeclaration(d *ast.Declaration) error {
	switch d.Kind {
	case ast.DeclVar:
		if d.Var == nil {
			return errors.New("var declaration missing payload")
		}
		return l.lowerVarDecl(d.Var, true)
	case ast.DeclFunc:
		if d.Func == nil {
			return errors.New("func declaration missing payload")
		}
		return l.lowerFuncDecl(d.Func)
	default:
		return errors.Errorf("unknown declaration kind: %s", d.Kind)
	}
}

// valueType converts a surface ast.ValueType to its interned IR type.
func (l *Lowerer) valueType(t ast.ValueType) (types.Type, error) {
	switch t {
	case ast.TypeInt:
		return l.types.Int32(), nil
	case ast.TypeFloat:
		return l.types.Float(), nil
	case ast.TypeVoid:
		return l.types.Void(), nil
	default:
		return nil, errors.Errorf("unknown value type: %s", t)
	}
}

// lowerVarDecl lowers a scalar or array declaration. Globals get a zero
// initial value; locals get an alloca at the current insertion point.
func (l *Lowerer) lowerVarDecl(v *ast.VarDeclaration, isGlobal bool) error {
	elemType, err := l.valueType(v.Type)
	if err != nil {
		return errors.Wrapf(err, "declaring %s", v.Name)
	}

	if v.Num != nil {
		arrType := l.types.Array(elemType, uint64(*v.Num))
		if isGlobal {
			zero := constant.NewZeroInitializer(arrType)
			g := l.module.NewGlobalDef(v.Name, zero)
			l.scope.Push(v.Name, g)
			return nil
		}
		alloca := l.builder.CreateAlloca(arrType)
		l.scope.Push(v.Name, alloca)
		return nil
	}

	if isGlobal {
		init := zeroScalar(elemType)
		g := l.module.NewGlobalDef(v.Name, init)
		l.scope.Push(v.Name, g)
		return nil
	}
	alloca := l.builder.CreateAlloca(elemType)
	l.scope.Push(v.Name, alloca)
	return nil
}

func zeroScalar(t types.Type) constant.Constant {
	if t.Equal(types.Double) {
		return constant.NewFloat(types.Double, 0.0)
	}
	return constant.NewInt(types.I32, 0)
}

// lowerFuncDecl lowers a function declaration: signature, entry block,
// parameter spills, body, and a default return if the body's final block
// falls through.
func (l *Lowerer) lowerFuncDecl(f *ast.FuncDeclaration) error {
	retType, err := l.valueType(f.Returns)
	if err != nil {
		return errors.Wrapf(err, "function %s return type", f.Name)
	}

	paramTypes := make([]types.Type, len(f.Params))
	for i, p := range f.Params {
		pt, err := l.valueType(p.Type)
		if err != nil {
			return errors.Wrapf(err, "function %s parameter %s", f.Name, p.Name)
		}
		if p.IsArray {
			pt = l.types.Pointer(pt)
		}
		paramTypes[i] = pt
	}
	l.types.Function(retType, paramTypes...)

	fn := l.module.NewFunc(f.Name, retType)
	for i, pt := range paramTypes {
		fn.Params = append(fn.Params, ir.NewParam(f.Params[i].Name, pt))
	}
	l.scope.Push(f.Name, fn)

	if f.Body == nil {
		// External declaration: no blocks.
		return nil
	}

	entry := fn.NewBlock("entry")
	l.builder.SetBlock(entry)

	prevFunc := l.currentFunc
	l.currentFunc = fn

	l.scope.Enter()
	l.preEnteredScope = true

	for i, p := range f.Params {
		paramAlloca := l.builder.CreateAlloca(paramTypes[i])
		l.builder.CreateStore(fn.Params[i], paramAlloca)
		l.scope.Push(p.Name, paramAlloca)
	}

	if err := l.lowerStatement(f.Body); err != nil {
		return errors.Wrapf(err, "function %s body", f.Name)
	}

	if !l.builder.Terminated() {
		switch {
		case retType.Equal(l.types.Void()):
			l.builder.CreateRet(nil)
		case retType.Equal(l.types.Int32()):
			l.builder.CreateRet(constant.NewInt(types.I32, 0))
		case retType.Equal(l.types.Float()):
			l.builder.CreateRet(constant.NewFloat(types.Double, 0.0))
		}
	}

	l.scope.Exit()
	l.currentFunc = prevFunc
	return nil
}
