package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Registry maps usernames to their active sessions. All operations are safe
// for concurrent use; TryRegister checks and inserts under one lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// TryRegister inserts s under username if the name is free.
// It returns ErrUsernameEmpty or ErrUsernameTaken on rejection.
func (r *Registry) TryRegister(username string, s *Session) error {
	if strings.TrimSpace(username) == "" {
		return ErrUsernameEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[username]; exists {
		return ErrUsernameTaken
	}
	r.sessions[username] = s
	ConnectedClients.Inc()
	return nil
}

// Unregister removes username. Removing an absent name is a no-op.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[username]; !ok {
		return
	}
	delete(r.sessions, username)
	ConnectedClients.Dec()
}

func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

// Snapshot returns the registered usernames, sorted.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	names := lo.Keys(r.sessions)
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Sessions returns a point-in-time copy of the registered sessions.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
