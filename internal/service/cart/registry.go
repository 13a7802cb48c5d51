package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"nexus-storefront/internal/logging"
)

// ErrRegistryClosed is returned by Get once the registry has shut down.
var ErrRegistryClosed = errors.New("cart registry closed")

type session struct {
	uid      string
	manager  *Manager
	lastUsed time.Time
}

// Registry keeps one started Manager per signed-in session. Anonymous
// visitors never get one.
type Registry struct {
	store  cartStore
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]session
	closed   bool
}

func NewRegistry(store cartStore, logger *zap.Logger) *Registry {
	return &Registry{store: store, logger: logging.Or(logger), now: time.Now, sessions: make(map[string]session)}
}

// Get returns the session's manager, creating and starting it on first use.
// Starting talks to the store, so it runs without holding the registry lock;
// if two requests start the same session at once, the first to register
// wins and the other manager is stopped.
func (r *Registry) Get(ctx context.Context, sessionKey, uid string) (*Manager, error) {
	if m := r.lookup(sessionKey, uid); m != nil {
		return m, nil
	}

	m := NewManager(uid, r.store, r.logger)
	if err := m.Start(ctx); err != nil {
		m.Stop()
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		m.Stop()
		return nil, ErrRegistryClosed
	}
	existing, ok := r.sessions[sessionKey]
	if ok && existing.uid == uid {
		existing.lastUsed = r.now()
		r.sessions[sessionKey] = existing
		r.mu.Unlock()
		m.Stop()
		return existing.manager, nil
	}
	r.sessions[sessionKey] = session{uid: uid, manager: m, lastUsed: r.now()}
	r.mu.Unlock()

	if ok {
		existing.manager.SignOut()
	}
	return m, nil
}

// lookup returns a live manager for the session when it belongs to uid. A
// session held by another user is signed out and dropped.
func (r *Registry) lookup(sessionKey, uid string) *Manager {
	r.mu.Lock()
	s, ok := r.sessions[sessionKey]
	if ok && s.uid == uid {
		s.lastUsed = r.now()
		r.sessions[sessionKey] = s
		r.mu.Unlock()
		return s.manager
	}
	if ok {
		delete(r.sessions, sessionKey)
	}
	r.mu.Unlock()

	if ok {
		s.manager.SignOut()
	}
	return nil
}

// SignOut drops the session and empties its mirror. Unknown keys are ignored.
func (r *Registry) SignOut(sessionKey string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionKey]
	delete(r.sessions, sessionKey)
	r.mu.Unlock()
	if ok {
		s.manager.SignOut()
	}
}

// Sweep stops managers not used within maxIdle. The persisted carts are
// untouched; a returning session starts a fresh mirror.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	var idle []*Manager
	for key, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			idle = append(idle, s.manager)
			delete(r.sessions, key)
		}
	}
	r.mu.Unlock()
	for _, m := range idle {
		m.Stop()
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done, then closes
// the registry.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				r.logger.Debug("swept idle cart sessions", zap.Int("count", n))
			}
		}
	}
}

// Close stops every live subscription and refuses new sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.manager.Stop()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
