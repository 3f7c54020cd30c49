package role

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultPersistTimeout = 3 * time.Second

// Persister remembers the last selected role as a plain string.
// Load reports ok=false when nothing has been stored yet.
type Persister interface {
	Load(ctx context.Context) (value string, ok bool, err error)
	Save(ctx context.Context, value string) error
}

// Store is the process-wide holder of the operator role.
type Store struct {
	persister Persister
	logger    *zap.Logger
	timeout   time.Duration

	loadOnce sync.Once

	mu        sync.RWMutex
	role      Role
	listeners map[int]func(Role)
	nextID    int
}

// Option customizes Store construction.
type Option func(*Store)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.Named("role")
		}
	}
}

// WithTimeout bounds each persistence call made by the store itself.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewStore wires a store to its persistence adapter. Nothing is read until
// the role is first accessed.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		persister: p,
		logger:    zap.NewNop(),
		timeout:   defaultPersistTimeout,
		listeners: map[int]func(Role){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Role returns the current role. It never fails: storage problems resolve to
// Default.
func (s *Store) Role() Role {
	s.ensureLoaded()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Capabilities recomputes the flags for the current role.
func (s *Store) Capabilities() Capabilities {
	return CapabilitiesFor(s.Role())
}

// SetRole switches the session role, persists it and notifies listeners.
// A persistence failure is returned but the in-session role still changes so
// the UI reflects the operator's choice.
func (s *Store) SetRole(ctx context.Context, r Role) error {
	if !r.Valid() {
		return fmt.Errorf("role: unknown role %q", r)
	}
	s.ensureLoaded()

	s.mu.Lock()
	previous := s.role
	s.role = r
	listeners := make([]func(Role), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	var saveErr error
	if s.persister != nil {
		if err := s.persister.Save(ctx, string(r)); err != nil {
			saveErr = fmt.Errorf("role: persist %s: %w", r, err)
			s.logger.Warn("role not persisted", zap.String("role", string(r)), zap.Error(err))
		}
	}
	s.logger.Info("role changed", zap.String("from", string(previous)), zap.String("to", string(r)))

	for _, fn := range listeners {
		fn(r)
	}
	return saveErr
}

// OnChange registers fn to run after every SetRole. The returned func
// unregisters it.
func (s *Store) OnChange(fn func(Role)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) ensureLoaded() {
	s.loadOnce.Do(func() {
		r := s.load()
		s.mu.Lock()
		s.role = r
		s.mu.Unlock()
	})
}

func (s *Store) load() Role {
	if s.persister == nil {
		return Default
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	value, ok, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("stored role unreadable, using default", zap.String("default", string(Default)), zap.Error(err))
		return Default
	}
	if ok {
		if r := Role(value); r.Valid() {
			return r
		}
		s.logger.Warn("stored role invalid, using default", zap.String("stored", value))
	}
	if err := s.persister.Save(ctx, string(Default)); err != nil {
		s.logger.Warn("default role not persisted", zap.Error(err))
	}
	return Default
}
