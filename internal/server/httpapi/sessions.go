package httpapi

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/properbooky/internal/queue"
	"github.com/dmitrijs2005/properbooky/internal/uploader"
)

// DefaultSessionIdleTTL is how long an owner's finished session is kept
// after its last request.
const DefaultSessionIdleTTL = 30 * time.Minute

// Session is one owner's upload queue together with the orchestrator that
// drains it and the notifications it produced.
type Session struct {
	Store        *queue.Store
	Orchestrator *uploader.Orchestrator
	Feed         *uploader.Feed

	lastUsed time.Time
}

// idle reports whether the session holds nothing that still needs it.
func (s *Session) idle() bool {
	return !s.Orchestrator.Running() && !s.Store.Pending()
}

// SessionFactory builds a fresh session for an owner.
type SessionFactory func(ownerID string) *Session

// SessionsOption configures Sessions.
type SessionsOption func(*Sessions)

// WithIdleTTL sets how long an idle session survives; zero keeps sessions
// for the lifetime of the process.
func WithIdleTTL(d time.Duration) SessionsOption {
	return func(s *Sessions) { s.idleTTL = d }
}

// Sessions keeps one Session per owner. A session whose items are all
// finished and that has not been used for the idle TTL is dropped together
// with its payloads; queued or uploading work is never evicted.
type Sessions struct {
	mu      sync.Mutex
	byOwner map[string]*Session
	factory SessionFactory
	idleTTL time.Duration
	now     func() time.Time
}

func NewSessions(factory SessionFactory, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		byOwner: make(map[string]*Session),
		factory: factory,
		idleTTL: DefaultSessionIdleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the owner's session, creating it on first use. Expired idle
// sessions of other owners are swept on the way.
func (s *Sessions) Get(ownerID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now, ownerID)

	sess, ok := s.byOwner[ownerID]
	if !ok {
		sess = s.factory(ownerID)
		s.byOwner[ownerID] = sess
	}
	sess.lastUsed = now
	return sess
}

func (s *Sessions) sweep(now time.Time, keep string) {
	if s.idleTTL <= 0 {
		return
	}
	for owner, sess := range s.byOwner {
		if owner == keep || now.Sub(sess.lastUsed) < s.idleTTL {
			continue
		}
		if sess.idle() {
			delete(s.byOwner, owner)
		}
	}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byOwner)
}
