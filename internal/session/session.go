// Package session provides the in-memory conversation session store.
//
// Sessions are keyed by the conversation identifier (the user's phone
// number) and created lazily on first message. An idle session past the
// configured timeout is reset on next access, keeping the user's identity
// and saved address but dropping the cart and any in-flight flow state.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chowline/orderbot/internal/models"
)

// DefaultTimeout is how long a session may sit idle before it is reset on
// next access.
const DefaultTimeout = 30 * time.Minute

// Opts holds configuration options for the session store.
type Opts struct {
	Timeout time.Duration
	Clock   func() time.Time
}

// Option defines a configuration option for the session store.
type Option func(*Opts)

// WithTimeout sets the idle timeout after which a session is reset.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithClock overrides the time source (for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = clock
	}
}

// Store holds all active sessions for the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	timeout  time.Duration
	now      func() time.Time
}

// NewStore creates a session store, applying any provided options.
func NewStore(opts ...Option) *Store {
	cfg := Opts{Timeout: DefaultTimeout, Clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SessionStore created", "timeout", cfg.Timeout)
	return &Store{
		sessions: make(map[string]*models.Session),
		timeout:  cfg.Timeout,
		now:      cfg.Clock,
	}
}

// GetOrCreate returns the session for the given conversation identifier,
// creating it on first contact. If the existing session has been idle past
// the timeout it is reset in place first: user name, preferred name, and
// the saved address survive; the cart, flow scratch data, and state do not.
func (s *Store) GetOrCreate(id string) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.Session{
			ID:             id,
			CurrentState:   models.StateStart,
			CurrentHandler: models.HandlerGreeting,
			CreatedAt:      now,
			LastActivity:   now,
		}
		s.sessions[id] = sess
		slog.Debug("SessionStore created new session", "sessionID", id)
		return sess
	}

	if s.timeout > 0 && now.Sub(sess.LastActivity) > s.timeout {
		slog.Info("SessionStore resetting expired session", "sessionID", id, "idle", now.Sub(sess.LastActivity))
		s.resetLocked(sess, now)
	}
	sess.LastActivity = now
	return sess
}

// Get returns the session for the given identifier without creating or
// resetting it. Returns nil when no session exists.
func (s *Store) Get(id string) *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Reset clears a session's conversational state while preserving the user's
// identity and saved address, mirroring the timeout behavior.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	s.resetLocked(sess, s.now())
	slog.Debug("SessionStore reset session", "sessionID", id)
}

// resetLocked rebuilds the session in place. Caller holds s.mu.
func (s *Store) resetLocked(sess *models.Session, now time.Time) {
	preserved := models.Session{
		ID:            sess.ID,
		UserName:      sess.UserName,
		PreferredName: sess.PreferredName,
		Address:       sess.Address,
		Coordinates:   sess.Coordinates,
		MapLink:       sess.MapLink,
		CreatedAt:     sess.CreatedAt,
	}
	*sess = preserved
	sess.CurrentState = models.StateStart
	sess.CurrentHandler = models.HandlerGreeting
	sess.LastActivity = now
}

// Clear removes the session entirely. The next message from the user starts
// from a blank session with no remembered identity.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	slog.Debug("SessionStore cleared session", "sessionID", id)
}

// Count returns the number of sessions currently held, expired or not.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanupExpired removes sessions idle past the timeout and reports how many
// were dropped. Intended to run periodically from a background goroutine.
func (s *Store) CleanupExpired() int {
	if s.timeout <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastActivity) > s.timeout {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Info("SessionStore cleanup removed expired sessions", "count", removed, "remaining", len(s.sessions))
	}
	return removed
}

// RunCleanup runs CleanupExpired on the given interval until the stop
// channel closes.
func (s *Store) RunCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-stop:
			return
		}
	}
}
