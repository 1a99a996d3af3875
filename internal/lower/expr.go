package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"github.com/cminusfc/cminusfc/internal/ast"
	"github.com/cminusfc/cminusfc/internal/runtime"
	"github.com/cminusfc/cminusfc/internal/ssa"
)

func (l *Lowerer) lowerExpressionRValue(e *ast.Expression) (value.Value, error) {
	return l.lowerExpression(e, false)
}

func (l *Lowerer) lowerExpressionLValue(e *ast.Expression) (value.Value, error) {
	return l.lowerExpression(e, true)
}

// lowerExpression dispatches on Kind. Only ExprVar can ever satisfy an
// l-value request.
func (l *Lowerer) lowerExpression(e *ast.Expression, lvalue bool) (value.Value, error) {
	if lvalue && e.Kind != ast.ExprVar {
		return nil, errors.Errorf("%s expression is not an l-value", e.Kind)
	}
	switch e.Kind {
	case ast.ExprLiteral:
		return l.lowerLiteral(e), nil
	case ast.ExprVar:
		return l.lowerVarRef(e, lvalue)
	case ast.ExprAssign:
		return l.lowerAssign(e)
	case ast.ExprRelational:
		return l.lowerRelational(e)
	case ast.ExprAdditive:
		return l.lowerAdditive(e)
	case ast.ExprTerm:
		return l.lowerTerm(e)
	case ast.ExprCall:
		return l.lowerCall(e)
	default:
		return nil, errors.Errorf("unsupported expression kind: %s", e.Kind)
	}
}

func (l *Lowerer) lowerLiteral(e *ast.Expression) value.Value {
	if e.IsFloat {
		return constant.NewFloat(types.Double, e.FloatVal)
	}
	return constant.NewInt(types.I32, int64(e.IntVal))
}

// elementTypeOf returns the element type of a variable binding: the type
// base points to. Both *ir.InstAlloca and *ir.Global report their Type()
// as a pointer to the allocated/content type.
func (l *Lowerer) elementTypeOf(base value.Value) (types.Type, error) {
	elem, err := ssa.MustPointerElem(base.Type())
	if err != nil {
		return nil, errors.Wrap(err, "variable binding")
	}
	return elem, nil
}

// lowerVarRef lowers a plain or indexed variable reference, in both
// l-value and r-value positions, including array-to-pointer decay and the
// negative-index runtime guard.
func (l *Lowerer) lowerVarRef(e *ast.Expression, lvalue bool) (value.Value, error) {
	base, err := l.scope.Find(e.Name)
	if err != nil {
		return nil, err
	}
	elemType, err := l.elementTypeOf(base)
	if err != nil {
		return nil, err
	}

	if e.Index == nil {
		if lvalue {
			return base, nil
		}
		if _, isArray := elemType.(*types.ArrayType); isArray {
			// Array-to-pointer decay: GEP with a leading [0, 0].
			zero := constant.NewInt(types.I32, 0)
			return l.builder.CreateGEP(elemType, base, zero, zero), nil
		}
		return l.builder.CreateLoad(elemType, base), nil
	}

	idxVal, err := l.lowerExpressionRValue(e.Index)
	if err != nil {
		return nil, err
	}
	idx := l.coerceIndexToInt32(idxVal)

	ptr, pointee, err := l.indexedElementPointer(base, elemType, idx)
	if err != nil {
		return nil, err
	}
	if lvalue {
		return ptr, nil
	}
	return l.builder.CreateLoad(pointee, ptr), nil
}

// indexedElementPointer emits the negative-index guard (compare the index
// against zero, branch to a call of neg_idx_except on failure, otherwise
// proceed) and then the GEP computing the element's address.
//
// base/elemType describe the array binding being indexed: elemType is
// either a *types.PointerType (a decayed array parameter: base is its spill
// alloca, loaded here once to get the base pointer) or a *types.ArrayType (a local/global array,
// indexed directly off its alloca/global address).
func (l *Lowerer) indexedElementPointer(base value.Value, elemType types.Type, idx value.Value) (value.Value, types.Type, error) {
	fn := l.currentFunc
	okBB := fn.NewBlock("")
	failBB := fn.NewBlock("")

	geZero := l.builder.CreateICmp("ge", idx, constant.NewInt(types.I32, 0))
	l.builder.CreateCondBr(geZero, okBB, failBB)

	l.builder.SetBlock(failBB)
	negIdx, err := l.scope.Find(runtime.NegIdxExcept)
	if err != nil {
		return nil, nil, err
	}
	l.builder.CreateCall(negIdx)
	l.builder.CreateBr(okBB)

	l.builder.SetBlock(okBB)
	switch t := elemType.(type) {
	case *types.PointerType:
		loaded := l.builder.CreateLoad(elemType, base)
		ptr := l.builder.CreateGEP(t.ElemType, loaded, idx)
		return ptr, t.ElemType, nil
	case *types.ArrayType:
		zero := constant.NewInt(types.I32, 0)
		ptr := l.builder.CreateGEP(elemType, base, zero, idx)
		return ptr, t.ElemType, nil
	default:
		return nil, nil, errors.Errorf("cannot index non-array, non-pointer type %s", elemType)
	}
}

// lowerAssign evaluates the value, resolves the target's address, coerces
// if the stored type differs from the target's element type, stores, and
// yields the (possibly coerced) value as the expression's own result
// (assignment is itself an expression).
func (l *Lowerer) lowerAssign(e *ast.Expression) (value.Value, error) {
	val, err := l.lowerExpressionRValue(e.Value)
	if err != nil {
		return nil, err
	}
	addr, err := l.lowerExpressionLValue(e.Target)
	if err != nil {
		return nil, err
	}
	elemType, err := l.elementTypeOf(addr)
	if err != nil {
		return nil, err
	}

	if !val.Type().Equal(elemType) {
		switch {
		case elemType.Equal(l.types.Float()) && val.Type().Equal(l.types.Int32()):
			val = l.builder.CreateSIToFP(val, l.types.Float())
		case elemType.Equal(l.types.Int32()) && val.Type().Equal(l.types.Float()):
			val = l.builder.CreateFPToSI(val, l.types.Int32())
		case val.Type().Equal(l.types.Int1()):
			val = l.builder.CreateZExt(val, l.types.Int32())
		}
	}
	l.builder.CreateStore(val, addr)
	return val, nil
}

func relPred(op ast.BinOp) string {
	switch op {
	case ast.OpEq:
		return "eq"
	case ast.OpNe:
		return "ne"
	case ast.OpGe:
		return "ge"
	case ast.OpGt:
		return "gt"
	case ast.OpLe:
		return "le"
	case ast.OpLt:
		return "lt"
	default:
		return ""
	}
}

// lowerRelational lowers a comparison node. Left or Right may be absent,
// in which case lowering simply passes the present side through.
func (l *Lowerer) lowerRelational(e *ast.Expression) (value.Value, error) {
	if e.Left == nil {
		return l.lowerExpressionRValue(e.Right)
	}
	if e.Right == nil {
		return l.lowerExpressionRValue(e.Left)
	}
	lv, err := l.lowerExpressionRValue(e.Left)
	if err != nil {
		return nil, err
	}
	rv, err := l.lowerExpressionRValue(e.Right)
	if err != nil {
		return nil, err
	}
	lv, rv, isInt := l.promote(lv, rv)

	pred := relPred(e.Op)
	if pred == "" {
		return nil, errors.Errorf("unsupported relational operator: %s", e.Op)
	}
	if isInt {
		return l.builder.CreateICmp(pred, lv, rv), nil
	}
	return l.builder.CreateFCmp(pred, lv, rv), nil
}

func (l *Lowerer) lowerAdditive(e *ast.Expression) (value.Value, error) {
	if e.Left == nil {
		return l.lowerExpressionRValue(e.Right)
	}
	if e.Right == nil {
		return l.lowerExpressionRValue(e.Left)
	}
	lv, err := l.lowerExpressionRValue(e.Left)
	if err != nil {
		return nil, err
	}
	rv, err := l.lowerExpressionRValue(e.Right)
	if err != nil {
		return nil, err
	}
	lv, rv, isInt := l.promote(lv, rv)

	switch e.Op {
	case ast.OpAdd:
		if isInt {
			return l.builder.CreateIAdd(lv, rv), nil
		}
		return l.builder.CreateFAdd(lv, rv), nil
	case ast.OpSub:
		if isInt {
			return l.builder.CreateISub(lv, rv), nil
		}
		return l.builder.CreateFSub(lv, rv), nil
	default:
		return nil, errors.Errorf("unsupported additive operator: %s", e.Op)
	}
}

func (l *Lowerer) lowerTerm(e *ast.Expression) (value.Value, error) {
	if e.Left == nil {
		return l.lowerExpressionRValue(e.Right)
	}
	if e.Right == nil {
		return l.lowerExpressionRValue(e.Left)
	}
	lv, err := l.lowerExpressionRValue(e.Left)
	if err != nil {
		return nil, err
	}
	rv, err := l.lowerExpressionRValue(e.Right)
	if err != nil {
		return nil, err
	}
	lv, rv, isInt := l.promote(lv, rv)

	switch e.Op {
	case ast.OpMul:
		if isInt {
			return l.builder.CreateIMul(lv, rv), nil
		}
		return l.builder.CreateFMul(lv, rv), nil
	case ast.OpDiv:
		if isInt {
			return l.builder.CreateISDiv(lv, rv), nil
		}
		return l.builder.CreateFDiv(lv, rv), nil
	default:
		return nil, errors.Errorf("unsupported term operator: %s", e.Op)
	}
}

// lowerCall resolves the callee, lowers each argument, and coerces any
// argument whose type doesn't match its declared parameter type
// (pointer-typed arguments, i.e. decayed arrays, pass through unchanged).
func (l *Lowerer) lowerCall(e *ast.Expression) (value.Value, error) {
	calleeVal, err := l.scope.Find(e.Callee)
	if err != nil {
		return nil, err
	}
	fn, ok := calleeVal.(*ir.Func)
	if !ok {
		return nil, errors.Errorf("%s is not callable", e.Callee)
	}

	args := make([]value.Value, len(e.Args))
	for i := range e.Args {
		argVal, err := l.lowerExpressionRValue(&e.Args[i])
		if err != nil {
			return nil, err
		}
		if i < len(fn.Params) {
			if _, isPtr := argVal.Type().(*types.PointerType); !isPtr {
				paramType := fn.Params[i].Type()
				if !argVal.Type().Equal(paramType) {
					switch {
					case argVal.Type().Equal(l.types.Int32()):
						argVal = l.builder.CreateSIToFP(argVal, l.types.Float())
					case argVal.Type().Equal(l.types.Int1()):
						argVal = l.builder.CreateZExt(argVal, l.types.Int32())
					default:
						argVal = l.builder.CreateFPToSI(argVal, l.types.Int32())
					}
				}
			}
		}
		args[i] = argVal
	}
	return l.builder.CreateCall(fn, args...), nil
}
