// Package passes implements the module-transform pass manager: ordered
// registration and sequential execution of passes over a single *ir.Module.
package passes

import "github.com/llir/llvm/ir"

// Pass is a module-level transformation. Run reports whether it changed the
// module, so a Manager (or a caller looping to a fixed point) can tell
// whether another round is worth running.
type Pass interface {
	Name() string
	Run(module *ir.Module) (changed bool, err error)
}

// Manager runs an ordered list of passes once over a module.
type Manager struct {
	passes []Pass
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add appends p to the pipeline, run after every pass already added.
func (m *Manager) Add(p Pass) {
	m.passes = append(m.passes, p)
}

// Run executes every registered pass once, in registration order, over
// module. It returns true if any pass reported a change.
func (m *Manager) Run(module *ir.Module) (bool, error) {
	changed := false
	for _, p := range m.passes {
		c, err := p.Run(module)
		if err != nil {
			return changed, err
		}
		changed = changed || c
	}
	return changed, nil
}

// RunToFixedPoint repeatedly runs the whole pipeline until a round produces
// no change, or maxRounds is reached (a defensive bound; passes here are all
// monotone shrinking transforms, so this is reached in practice well before
// maxRounds on any real module).
func (m *Manager) RunToFixedPoint(module *ir.Module, maxRounds int) error {
	for i := 0; i < maxRounds; i++ {
		changed, err := m.Run(module)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
	return nil
}
