// Package scope implements the lexically nested name-to-value binding
// stack lowering uses to resolve identifiers.
package scope

import (
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// Stack is a stack of lexical scopes, each a name -> value binding.
type Stack struct {
	scopes []map[string]value.Value
}

// New creates a Stack with a single (global) scope already entered.
func New() *Stack {
	return &Stack{scopes: []map[string]value.Value{make(map[string]value.Value)}}
}

// Enter pushes a new, empty scope.
func (s *Stack) Enter() {
	s.scopes = append(s.scopes, make(map[string]value.Value))
}

// Exit pops the innermost scope. Exiting the last remaining (global) scope
// is a programming error.
func (s *Stack) Exit() {
	if len(s.scopes) <= 1 {
		panic("scope: exit called with no scope to pop")
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

// Push installs name -> val into the innermost scope, shadowing any outer
// binding of the same name.
func (s *Stack) Push(name string, val value.Value) {
	s.scopes[len(s.scopes)-1][name] = val
}

// Find searches from the innermost scope outward and returns the nearest
// binding for name, or an error if none exists.
func (s *Stack) Find(name string) (value.Value, error) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if v, ok := s.scopes[i][name]; ok {
			return v, nil
		}
	}
	return nil, errors.Errorf("undeclared identifier: %s", name)
}
