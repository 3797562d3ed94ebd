package sshmcp

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the concurrency-safe table of live sessions. Its lock only
// guards the map; connects and commands never run under it.
//
// Every id in the registry belongs to a session that connected successfully
// at least once. Sessions that later lose their connection stay listed in the
// Error state until closed.
type Registry struct {
	transport   Transport
	logger      zerolog.Logger
	maxSessions int
	sessionOpts []SessionOption

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for the registry and its sessions.
func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMaxSessions caps the number of live sessions. Zero means unlimited.
func WithMaxSessions(n int) RegistryOption {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

// WithSessionOptions applies opts to every session the registry creates.
func WithSessionOptions(opts ...SessionOption) RegistryOption {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// NewRegistry creates an empty registry that dials through transport.
func NewRegistry(transport Transport, opts ...RegistryOption) *Registry {
	r := &Registry{
		transport: transport,
		logger:    zerolog.Nop(),
		sessions:  make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CreateSession builds a session for cfg, connects it and publishes it.
// A session that fails to connect is never published.
func (r *Registry) CreateSession(ctx context.Context, cfg ConnectionConfig) (SessionInfo, error) {
	if err := r.checkCapacity(); err != nil {
		return SessionInfo{}, err
	}

	opts := append([]SessionOption{WithLogger(r.logger)}, r.sessionOpts...)

	s, err := NewSession(cfg, r.transport, opts...)
	if err != nil {
		return SessionInfo{}, err
	}

	info, err := s.Connect(ctx)
	if err != nil {
		return SessionInfo{}, err
	}

	r.mu.Lock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.mu.Unlock()
		s.Disconnect()

		return SessionInfo{}, fmt.Errorf("%w: limit is %d", ErrTooManySessions, r.maxSessions)
	}

	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.logger.Info().Str("session", s.ID()).Str("endpoint", cfg.String()).Msg("session created")

	return info, nil
}

// GetSession returns the session for id.
func (r *Registry) GetSession(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]

	return s, ok
}

// Lookup is GetSession returning a *SessionNotFoundError for unknown ids.
func (r *Registry) Lookup(id string) (*Session, error) {
	s, ok := r.GetSession(id)
	if !ok {
		return nil, &SessionNotFoundError{ID: id}
	}

	return s, nil
}

// CloseSession removes the session and disconnects it. Unknown ids are
// ignored. The disconnect waits for any in-flight command on that session.
func (r *Registry) CloseSession(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.Disconnect()
	r.logger.Info().Str("session", id).Msg("session closed")
}

// CloseAll disconnects and removes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var wg sync.WaitGroup

	for _, s := range sessions {
		wg.Add(1)

		go func() {
			defer wg.Done()
			s.Disconnect()
		}()
	}

	wg.Wait()

	if len(sessions) > 0 {
		r.logger.Info().Int("count", len(sessions)).Msg("all sessions closed")
	}
}

// ListSessions returns a snapshot of every session ordered by creation time.
func (r *Registry) ListSessions() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))

	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}

	slices.SortFunc(infos, func(a, b SessionInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return infos
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

func (r *Registry) checkCapacity() error {
	if r.maxSessions <= 0 {
		return nil
	}

	if r.Len() >= r.maxSessions {
		return fmt.Errorf("%w: limit is %d", ErrTooManySessions, r.maxSessions)
	}

	return nil
}
