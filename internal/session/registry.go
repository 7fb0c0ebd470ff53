// Package session tracks which documents are visible to each interaction.
// The registry is process-local, in-memory state: it lives exactly as long
// as the running service and is never persisted.
package session

import (
	"sort"
	"strings"
	"sync"
)

// entry is one session's accumulated state. Hashes are purely additive for
// the session's lifetime; candidate names are recorded per hash for the
// query planner's name detection.
type entry struct {
	hashes     []string
	candidates map[string]string // content hash -> candidate name
}

// Registry maps session identifiers to their active document hashes.
// Safe for concurrent registration from parallel uploads.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// Register adds a content hash to a session, creating the session on first
// use. Registering the same hash again is a no-op.
func (r *Registry) Register(sessionID, contentHash, candidateName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		e = &entry{candidates: make(map[string]string)}
		r.sessions[sessionID] = e
	}

	if _, seen := e.candidates[contentHash]; !seen {
		e.hashes = append(e.hashes, contentHash)
	}
	e.candidates[contentHash] = candidateName
}

// Has reports whether a hash is already active in a session.
func (r *Registry) Has(sessionID, contentHash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	_, seen := e.candidates[contentHash]
	return seen
}

// ActiveHashes returns the session's content hashes in registration order.
// An unknown session yields an empty set.
func (r *Registry) ActiveHashes(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]string, len(e.hashes))
	copy(out, e.hashes)
	return out
}

// ActiveCandidates returns the distinct candidate names active in a session,
// sorted for stable output.
func (r *Registry) ActiveCandidates(sessionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{}, len(e.candidates))
	out := make([]string, 0, len(e.candidates))
	for _, name := range e.candidates {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Remove drops a content hash from a session. removed reports whether the
// hash was active there; orphaned reports that no session references the
// hash anymore, so its stored vectors can be reclaimed.
func (r *Registry) Remove(sessionID, contentHash string) (removed, orphaned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return false, false
	}
	if _, seen := e.candidates[contentHash]; !seen {
		return false, false
	}

	delete(e.candidates, contentHash)
	for i, h := range e.hashes {
		if h == contentHash {
			e.hashes = append(e.hashes[:i], e.hashes[i+1:]...)
			break
		}
	}

	for _, other := range r.sessions {
		if _, seen := other.candidates[contentHash]; seen {
			return true, false
		}
	}
	return true, true
}

// End discards a session and all of its state.
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
