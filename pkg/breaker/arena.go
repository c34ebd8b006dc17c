package breaker

import "sync"

// Arena owns the breakers for all unit names in a run. Workers never hold
// raw breaker references across call boundaries: every interaction goes
// through the arena, which guarantees at most one breaker per unit name.
type Arena struct {
	mu       sync.Mutex
	settings Settings
	breakers map[string]*CircuitBreaker
}

// NewArena creates an empty arena using the given settings for every breaker
// it lazily creates.
func NewArena(settings Settings) *Arena {
	return &Arena{
		settings: settings,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for a unit name, creating it on first use.
func (a *Arena) For(unitName string) *CircuitBreaker {
	a.mu.Lock()
	defer a.mu.Unlock()

	cb, ok := a.breakers[unitName]
	if !ok {
		cb = New(unitName, a.settings)
		a.breakers[unitName] = cb
	}

	return cb
}

// Snapshots returns a point-in-time copy of every breaker, sorted nowhere in
// particular; callers that need determinism sort by unit name.
func (a *Arena) Snapshots() []Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(a.breakers))
	for _, cb := range a.breakers {
		snapshots = append(snapshots, cb.Snapshot())
	}

	return snapshots
}
