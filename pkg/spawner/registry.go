package spawner

import "sync"

// Registry tracks the worker handle per issue for the lifetime of the
// orchestrator process. It is created by the reconciliation loop and passed
// by reference to whoever needs it; there is no package-level state.
type Registry struct {
	mu      sync.Mutex
	handles map[int]Handle // issue number -> handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[int]Handle)}
}

// Track records the worker handle for an issue, replacing any previous one.
func (r *Registry) Track(issueNumber int, handle Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[issueNumber] = handle
}

// Untrack forgets the handle for an issue.
func (r *Registry) Untrack(issueNumber int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, issueNumber)
}

// Handle returns the tracked handle for an issue, if any.
func (r *Registry) Handle(issueNumber int) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[issueNumber]
	return h, ok
}

// Snapshot returns a copy of the current issue -> handle map.
func (r *Registry) Snapshot() map[int]Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int]Handle, len(r.handles))
	for issue, handle := range r.handles {
		snapshot[issue] = handle
	}
	return snapshot
}
