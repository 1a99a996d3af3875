package lower

import (
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"github.com/cminusfc/cminusfc/internal/ast"
)

// lowerStatement dispatches on Kind.
func (l *Lowerer) lowerStatement(s *ast.Statement) error {
	switch s.Kind {
	case ast.StmtCompound:
		return l.lowerCompound(s)
	case ast.StmtExpr:
		if s.Expr == nil {
			return nil
		}
		_, err := l.lowerExpressionRValue(s.Expr)
		return err
	case ast.StmtIf:
		return l.lowerIf(s)
	case ast.StmtWhile:
		return l.lowerWhile(s)
	case ast.StmtReturn:
		return l.lowerReturn(s)
	default:
		return errors.Errorf("unsupported statement kind: %s", s.Kind)
	}
}

// lowerCompound lowers a brace block. A function body's top-level compound
// reuses the scope the caller already entered (preEnteredScope) so
// parameter bindings live in the same scope as the body's own locals; a
// nested compound enters its own.
func (l *Lowerer) lowerCompound(s *ast.Statement) error {
	enteredHere := false
	if l.preEnteredScope {
		l.preEnteredScope = false
	} else {
		l.scope.Enter()
		enteredHere = true
	}

	for i := range s.Locals {
		if err := l.lowerVarDecl(&s.Locals[i], false); err != nil {
			return err
		}
	}
	for i := range s.Body {
		if err := l.lowerStatement(&s.Body[i]); err != nil {
			return err
		}
	}

	if enteredHere {
		l.scope.Exit()
	}
	return nil
}

func (l *Lowerer) lowerStatementList(stmts []ast.Statement) error {
	for i := range stmts {
		if err := l.lowerStatement(&stmts[i]); err != nil {
			return err
		}
	}
	return nil
}

// lowerIf lowers a selection into a three (or two, without an else) block
// diamond. Each branch gets a fall-through branch to the continuation
// block only if its own lowering didn't already terminate it.
func (l *Lowerer) lowerIf(s *ast.Statement) error {
	condVal, err := l.lowerExpressionRValue(s.Cond)
	if err != nil {
		return err
	}
	cond, err := l.toBool(condVal)
	if err != nil {
		return err
	}

	fn := l.currentFunc
	trueBB := fn.NewBlock("")
	contBB := fn.NewBlock("")

	if s.Else != nil {
		falseBB := fn.NewBlock("")
		l.builder.CreateCondBr(cond, trueBB, falseBB)

		l.builder.SetBlock(trueBB)
		if err := l.lowerStatementList(s.Then); err != nil {
			return err
		}
		if !l.builder.Terminated() {
			l.builder.CreateBr(contBB)
		}

		l.builder.SetBlock(falseBB)
		if err := l.lowerStatementList(s.Else); err != nil {
			return err
		}
		if !l.builder.Terminated() {
			l.builder.CreateBr(contBB)
		}
	} else {
		l.builder.CreateCondBr(cond, trueBB, contBB)

		l.builder.SetBlock(trueBB)
		if err := l.lowerStatementList(s.Then); err != nil {
			return err
		}
		if !l.builder.Terminated() {
			l.builder.CreateBr(contBB)
		}
	}

	l.builder.SetBlock(contBB)
	return nil
}

// lowerWhile lowers a loop into cond/body/end blocks with the condition
// re-evaluated at the top of every iteration.
func (l *Lowerer) lowerWhile(s *ast.Statement) error {
	fn := l.currentFunc
	condBB := fn.NewBlock("")
	bodyBB := fn.NewBlock("")
	endBB := fn.NewBlock("")

	l.builder.CreateBr(condBB)

	l.builder.SetBlock(condBB)
	condVal, err := l.lowerExpressionRValue(s.Cond)
	if err != nil {
		return err
	}
	cond, err := l.toBool(condVal)
	if err != nil {
		return err
	}
	l.builder.CreateCondBr(cond, bodyBB, endBB)

	l.builder.SetBlock(bodyBB)
	if err := l.lowerStatementList(s.Body); err != nil {
		return err
	}
	if !l.builder.Terminated() {
		l.builder.CreateBr(condBB)
	}

	l.builder.SetBlock(endBB)
	return nil
}

// lowerReturn coerces the returned value to the function's declared return
// type when they differ.
func (l *Lowerer) lowerReturn(s *ast.Statement) error {
	if s.Expr == nil {
		l.builder.CreateRet(nil)
		return nil
	}

	v, err := l.lowerExpressionRValue(s.Expr)
	if err != nil {
		return err
	}

	target := l.currentFunc.Sig.RetType
	if !v.Type().Equal(target) {
		switch {
		case target.Equal(l.types.Int32()):
			v = l.builder.CreateFPToSI(v, l.types.Int32())
		case target.Equal(l.types.Float()):
			v = l.builder.CreateSIToFP(v, l.types.Float())
		}
	}
	l.builder.CreateRet(v)
	return nil
}

// toBool converts a condition value to i1: i32 compares against 0, float
// against 0.0, i1 passes through.
func (l *Lowerer) toBool(v value.Value) (value.Value, error) {
	t := v.Type()
	switch {
	case t.Equal(l.types.Int1()):
		return v, nil
	case t.Equal(l.types.Int32()):
		return l.builder.CreateICmp("ne", v, constant.NewInt(types.I32, 0)), nil
	case t.Equal(l.types.Float()):
		return l.builder.CreateFCmp("ne", v, constant.NewFloat(types.Double, 0.0)), nil
	default:
		return nil, errors.Errorf("cannot use type %s as a condition", t)
	}
}
