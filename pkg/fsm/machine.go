package fsm

import (
	"fmt"
	"sync"
)

// Stage is one step of a linear pipeline.
type Stage string

// Action is executed when the machine enters a stage. It returns the stage to
// continue with; returning the empty stage means "the next stage in order".
// Actions may only skip forward, never loop back.
type Action func() (Stage, error)

// Machine walks an ordered sequence of stages exactly once, front to back.
// Each stage's action may redirect the walk to a later stage, which is how a
// gate stage skips the steps it bypasses. The machine is safe for concurrent
// observation via Current while Run is in progress.
type Machine struct {
	mu      sync.RWMutex
	order   []Stage
	index   map[Stage]int
	actions map[Stage]Action
	current Stage
	done    bool
}

// New creates a machine over the given stage order. The order must be
// non-empty and free of duplicates.
func New(order ...Stage) (*Machine, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("fsm: no stages")
	}
	idx := make(map[Stage]int, len(order))
	for i, s := range order {
		if _, dup := idx[s]; dup {
			return nil, fmt.Errorf("fsm: duplicate stage %s", s)
		}
		idx[s] = i
	}
	return &Machine{
		order:   order,
		index:   idx,
		actions: make(map[Stage]Action),
		current: order[0],
	}, nil
}

// OnEnter registers the action executed when the machine enters stage.
// Stages without an action simply pass through to their successor.
func (m *Machine) OnEnter(stage Stage, action Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[stage] = action
}

// Current returns the stage the machine is in (or finished in).
func (m *Machine) Current() Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Done reports whether Run has completed.
func (m *Machine) Done() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.done
}

// Run walks the stages in order, starting from the first. An action error
// stops the walk and is returned; a redirect to an unknown or earlier stage is
// a programming error and also stops the walk.
func (m *Machine) Run() error {
	i := 0
	for i < len(m.order) {
		stage := m.order[i]
		m.setCurrent(stage)

		m.mu.RLock()
		action := m.actions[stage]
		m.mu.RUnlock()

		next := i + 1
		if action != nil {
			redirect, err := action()
			if err != nil {
				return err
			}
			if redirect != "" {
				j, ok := m.index[redirect]
				if !ok {
					return fmt.Errorf("fsm: redirect to unknown stage %s", redirect)
				}
				if j <= i {
					return fmt.Errorf("fsm: backward redirect from %s to %s", stage, redirect)
				}
				next = j
			}
		}
		i = next
	}

	m.mu.Lock()
	m.done = true
	m.mu.Unlock()
	return nil
}

func (m *Machine) setCurrent(s Stage) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}
