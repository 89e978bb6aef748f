package relay

import (
	"errors"
	"sort"
	"sync"
)

// ErrUsernameTaken is returned by Registry.Add when the requested username is
// already registered to a live session.
var ErrUsernameTaken = errors.New("relay: username already taken")

// Registry is the authoritative mapping from username to live session, the
// only shared mutable structure in the relay. Every read and write runs under
// one mutex so membership changes are atomic with respect to concurrent
// lookups and iteration. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers sess under name. The existence check and the insert are a
// single critical section: of two concurrent Add calls for the same name,
// exactly one succeeds and the other gets ErrUsernameTaken.
func (r *Registry) Add(name string, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[name]; ok {
		return ErrUsernameTaken
	}

	r.sessions[name] = sess
	return nil
}

// Remove deletes name only while it still maps to sess, and reports whether
// an entry was removed. The identity check keeps a stale termination signal
// for an old session from evicting a new session that reused the name.
func (r *Registry) Remove(name string, sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[name]
	if !ok || current != sess {
		return false
	}

	delete(r.sessions, name)
	return true
}

// Get returns the session registered under name, if any.
func (r *Registry) Get(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[name]
	return sess, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Usernames returns the registered usernames sorted lexicographically. The
// slice is a snapshot; later membership changes do not affect it.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshot returns the registered sessions as a stable slice for iteration
// outside the lock (broadcast fan-out, WHO listings).
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}

	return sessions
}
