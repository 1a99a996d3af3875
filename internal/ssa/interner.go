// Package ssa provides the C-minus-f type system: the scalar types plus
// Pointer/Array/Function constructors, interned so two structurally equal
// types compare equal by identity.
//
// The underlying representation is github.com/llir/llvm/ir/types. That
// library allocates a fresh *types.PointerType/*types.ArrayType/*types.FuncType
// struct on every call to types.NewPointer/NewArray/NewFunc, so two calls
// with identical structure do not compare equal by identity; the cache
// here is what makes the invariant hold.
package ssa

import (
	"fmt"
	"strings"

	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"
)

// Interner hands out canonical types.Type handles for the composite type
// constructors. The zero value is not usable; use NewInterner.
type Interner struct {
	pointers  map[types.Type]*types.PointerType
	arrays    map[arrayKey]*types.ArrayType
	functions map[string]*types.FuncType
}

type arrayKey struct {
	elem types.Type
	len  uint64
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{
		pointers:  make(map[types.Type]*types.PointerType),
		arrays:    make(map[arrayKey]*types.ArrayType),
		functions: make(map[string]*types.FuncType),
	}
}

// Void returns the canonical void type.
func (in *Interner) Void() types.Type { return types.Void }

// Int1 returns the canonical i1 (boolean) type.
func (in *Interner) Int1() types.Type { return types.I1 }

// Int32 returns the canonical i32 type.
func (in *Interner) Int32() types.Type { return types.I32 }

// Float returns the canonical float type (LLVM double).
func (in *Interner) Float() types.Type { return types.Double }

// Pointer returns the canonical Pointer(elem) type, allocating it on first
// request for a given elem.
func (in *Interner) Pointer(elem types.Type) types.Type {
	if p, ok := in.pointers[elem]; ok {
		return p
	}
	p := types.NewPointer(elem)
	in.pointers[elem] = p
	return p
}

// Array returns the canonical Array(elem, length) type, allocating it on
// first request for a given (elem, length) pair.
func (in *Interner) Array(elem types.Type, length uint64) types.Type {
	key := arrayKey{elem: elem, len: length}
	if a, ok := in.arrays[key]; ok {
		return a
	}
	a := types.NewArray(length, elem)
	in.arrays[key] = a
	return a
}

// Function returns the canonical Function(ret, params...) type, allocating
// it on first request for a given signature.
func (in *Interner) Function(ret types.Type, params ...types.Type) types.Type {
	key := funcKey(ret, params)
	if f, ok := in.functions[key]; ok {
		return f
	}
	f := types.NewFunc(ret, params...)
	in.functions[key] = f
	return f
}

// funcKey builds a structural key from a return type and parameter list.
// Every element is itself an already-interned handle, so formatting their
// pointer identities is sufficient to distinguish structurally different
// signatures within a single compiler run.
func funcKey(ret types.Type, params []types.Type) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%p(", ret)
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%p", p)
	}
	b.WriteByte(')')
	return b.String()
}

// MustPointerElem returns the element type of a Pointer(T) type, or an error
// if t is not a pointer type. Lowering uses this to recover the pointee of
// an alloca/global/parameter type.
func MustPointerElem(t types.Type) (types.Type, error) {
	p, ok := t.(*types.PointerType)
	if !ok {
		return nil, errors.Errorf("expected pointer type, got %s", t)
	}
	return p.ElemType, nil
}
