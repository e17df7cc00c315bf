package relay

import (
	"github.com/rs/zerolog"

	"courier/internal/message"
	"courier/internal/metrics"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// Conn is a connection that can also be told the outcome of an
// authenticate attempt.
type Conn interface {
	message.Conn
	Authenticated(success bool) error
}

// Session is the lifecycle state of one connection. Its fields are guarded
// by the router mutex.
type Session struct {
	conn  Conn
	state State
	key   string
	l     *Lifecycle
}

func (s *Session) State() State {
	s.l.router.mu.Lock()
	defer s.l.router.mu.Unlock()
	return s.state
}

// Key returns the identity the session last authenticated as.
func (s *Session) Key() string {
	s.l.router.mu.Lock()
	defer s.l.router.mu.Unlock()
	return s.key
}

// Lifecycle drives the per-connection state machine and keeps presence in
// step with it.
type Lifecycle struct {
	router  *Router
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewLifecycle(router *Router) *Lifecycle {
	return &Lifecycle{
		router:  router,
		metrics: router.metrics,
		logger:  router.logger.With().Str("component", "lifecycle").Logger(),
	}
}

func (l *Lifecycle) Open(conn Conn) *Session {
	l.metrics.ConnectionOpened()
	l.logger.Debug().Str("conn", conn.ID()).Msg("connection opened")
	return &Session{conn: conn, state: Unauthenticated, l: l}
}

// Authenticate binds the session to key when key is registered, signals the
// result to the connection and flushes the mailbox. A failed attempt leaves
// the session and any existing binding untouched.
func (l *Lifecycle) Authenticate(s *Session, key string) bool {
	r := l.router
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.state == Closed {
		return false
	}

	if err := r.presence.Bind(key, s.conn); err != nil {
		l.metrics.AuthFailed()
		l.logger.Debug().
			Err(err).
			Str("conn", s.conn.ID()).
			Str("key", key).
			Msg("authentication failed")
		s.conn.Authenticated(false)
		return false
	}

	s.key = key
	s.state = Authenticated
	l.metrics.SetOnline(r.presence.Online())

	if err := s.conn.Authenticated(true); err != nil {
		l.logger.Warn().Err(err).Str("conn", s.conn.ID()).Msg("failed to signal authentication")
	}

	delivered := r.flushLocked(key)
	l.logger.Info().
		Str("conn", s.conn.ID()).
		Str("key", key).
		Int("flushed", delivered).
		Msg("authenticated")
	return true
}

// Send routes a message from the session's identity.
func (l *Lifecycle) Send(s *Session, recipientKey, body string) (Outcome, error) {
	r := l.router
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.state != Authenticated {
		return 0, ErrNotAuthenticated
	}
	return r.routeLocked(s.key, recipientKey, body)
}

// Disconnect closes the session. Only an authenticated session touches
// presence, and only if it still owns its binding.
func (l *Lifecycle) Disconnect(s *Session) {
	r := l.router
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.state == Closed {
		return
	}

	if s.state == Authenticated {
		if key, ok := r.presence.Unbind(s.conn); ok {
			l.logger.Info().Str("conn", s.conn.ID()).Str("key", key).Msg("identity offline")
		}
		l.metrics.SetOnline(r.presence.Online())
	}

	s.state = Closed
	l.metrics.ConnectionClosed()
	l.logger.Debug().Str("conn", s.conn.ID()).Msg("connection closed")
}
