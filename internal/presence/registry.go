// Package presence tracks which users are reachable over a live connection
// and who is currently typing to whom. State is process-local and lost on
// restart; clients re-register after reconnecting.
package presence

import "sync"

// Registry maps a user to their single active connection handle.
// A second registration for the same user replaces the first.
type Registry[H comparable] struct {
	mu       sync.RWMutex
	byUser   map[int]H
	byHandle map[H]int
}

// NewRegistry constructs an empty Registry.
func NewRegistry[H comparable]() *Registry[H] {
	return &Registry[H]{
		byUser:   make(map[int]H),
		byHandle: make(map[H]int),
	}
}

// Register binds userID to handle, replacing any earlier binding for either
// side. It returns the handle that previously belonged to userID, if any.
func (r *Registry[H]) Register(userID int, handle H) (H, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, replaced := r.byUser[userID]
	if replaced {
		delete(r.byHandle, prev)
	}
	if prevUser, ok := r.byHandle[handle]; ok && prevUser != userID {
		delete(r.byUser, prevUser)
	}
	r.byUser[userID] = handle
	r.byHandle[handle] = userID
	if replaced && prev == handle {
		var zero H
		return zero, false
	}
	return prev, replaced
}

// UnregisterByHandle drops the entry owned by handle. A handle that was
// already superseded by a newer registration leaves the registry untouched.
func (r *Registry[H]) UnregisterByHandle(handle H) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byHandle[handle]
	if !ok {
		return 0, false
	}
	delete(r.byHandle, handle)
	if current, ok := r.byUser[userID]; ok && current == handle {
		delete(r.byUser, userID)
	}
	return userID, true
}

// Lookup returns the active handle for userID.
func (r *Registry[H]) Lookup(userID int) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

// Len reports the number of reachable users.
func (r *Registry[H]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
