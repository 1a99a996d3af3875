package lower

import (
	"github.com/llir/llvm/ir/value"
)

// promote applies the binary-operand promotion rule:
//
//  1. Same type: widen Int1 to Int32 (both sides) if that's the shared type;
//     report integer mode for any non-Float type, float mode for Float.
//  2. Otherwise, if either side is Float: promote the other side to Float
//     (via ZExt then SIToFP, or SIToFP alone) and report float mode.
//  3. Otherwise (mixed Int1/Int32): widen any Int1 operand to Int32 and
//     report integer mode.
//
// Relational, additive, and term lowering all share this rule.
func (l *Lowerer) promote(lv, rv value.Value) (value.Value, value.Value, bool) {
	lt, rt := lv.Type(), rv.Type()

	if lt.Equal(rt) {
		isFloat := lt.Equal(l.types.Float())
		if lt.Equal(l.types.Int1()) {
			lv = l.builder.CreateZExt(lv, l.types.Int32())
			rv = l.builder.CreateZExt(rv, l.types.Int32())
		}
		return lv, rv, !isFloat
	}

	if lt.Equal(l.types.Float()) || rt.Equal(l.types.Float()) {
		return l.toFloat(lv), l.toFloat(rv), false
	}

	return l.maybeZExt(lv), l.maybeZExt(rv), true
}

// toFloat promotes an Int1 or Int32 value to Float; a Float value passes
// through unchanged.
func (l *Lowerer) toFloat(v value.Value) value.Value {
	t := v.Type()
	if t.Equal(l.types.Float()) {
		return v
	}
	if t.Equal(l.types.Int1()) {
		v = l.builder.CreateZExt(v, l.types.Int32())
	}
	return l.builder.CreateSIToFP(v, l.types.Float())
}

// maybeZExt widens an Int1 value to Int32; any other type passes through
// unchanged.
func (l *Lowerer) maybeZExt(v value.Value) value.Value {
	if v.Type().Equal(l.types.Int1()) {
		return l.builder.CreateZExt(v, l.types.Int32())
	}
	return v
}

// coerceIndexToInt32 coerces an array index: float indices truncate via
// fptosi, i1 indices widen via zext, i32 passes through.
func (l *Lowerer) coerceIndexToInt32(v value.Value) value.Value {
	t := v.Type()
	switch {
	case t.Equal(l.types.Float()):
		return l.builder.CreateFPToSI(v, l.types.Int32())
	case t.Equal(l.types.Int1()):
		return l.builder.CreateZExt(v, l.types.Int32())
	default:
		return v
	}
}
