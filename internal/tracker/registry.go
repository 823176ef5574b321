package tracker

import (
	"context"
	"errors"
	"sync"
	"threadmark/internal/models"
	"threadmark/internal/providers"
	"threadmark/internal/services"
	"threadmark/internal/structures"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

type RegistryInterface interface {
	Open(ctx context.Context, threadID string, seq *models.CommentSequence) (*Session, error)
	Get(sessionID string) *Session
	Close(ctx context.Context, sessionID string) error
	FlushThread(ctx context.Context, threadID string, reason string) error
	ClearThread(threadID string)
	Sweep(ctx context.Context)
	CloseAll(ctx context.Context) error
	Len() int
	Stats() (opened, expired int64)
}

// Registry owns the open sessions keyed by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opened   atomic.Int64
	expired  atomic.Int64

	service services.ProgressServiceInterface
	clock   Clock
	conf    structures.TrackerConfig
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewRegistry(conf *structures.Config, service services.ProgressServiceInterface, clock Clock, logger providers.Logger, metrics providers.MetricsProviderInterface) RegistryInterface {
	return &Registry{
		sessions: make(map[string]*Session),
		service:  service,
		clock:    clock,
		conf:     conf.Tracker,
		logger:   logger,
		metrics:  metrics,
	}
}

// Open starts a session for a saved thread. An unknown thread yields a nil session.
func (r *Registry) Open(ctx context.Context, threadID string, seq *models.CommentSequence) (*Session, error) {
	rec, err := r.service.Get(ctx, threadID)
	if err != nil || rec == nil {
		return nil, err
	}

	s := newSession(uuid.NewString(), rec, seq, r)

	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.opened.Inc()
	r.metrics.SetOpenSessions(n)
	r.logger.Debugf(providers.TypeApp, "Session %s opened for thread %s with %d comments", s.id, threadID, seq.Len())
	return s, nil
}

func (r *Registry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

func (r *Registry) remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	n := len(r.sessions)
	r.mu.Unlock()
	r.metrics.SetOpenSessions(n)
}

// Close flushes and forgets a session. Unknown ids are ignored. A session
// whose flush fails is kept so its progress can still be written.
func (r *Registry) Close(ctx context.Context, sessionID string) error {
	s := r.Get(sessionID)
	if s == nil {
		return nil
	}
	if err := s.Close(ctx); err != nil {
		return err
	}
	r.remove(sessionID)
	return nil
}

func (r *Registry) forThread(threadID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0)
	for _, s := range r.sessions {
		if s.threadID == threadID {
			out = append(out, s)
		}
	}
	return out
}

// FlushThread forces a flush of every session viewing threadID.
func (r *Registry) FlushThread(ctx context.Context, threadID string, reason string) error {
	var errs []error
	for _, s := range r.forThread(threadID) {
		if err := s.Flush(ctx, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearThread drops local state of every session viewing threadID.
func (r *Registry) ClearThread(threadID string) {
	for _, s := range r.forThread(threadID) {
		s.ClearLocal()
	}
}

// Sweep flushes dirty sessions and closes those idle longer than idleTimeout.
func (r *Registry) Sweep(ctx context.Context) {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()

	now := r.clock.Now()
	for _, s := range all {
		if r.conf.IdleTimeout > 0 && now.Sub(s.idleSince()) >= r.conf.IdleTimeout {
			if err := s.Close(ctx); err != nil || s.Dirty() {
				r.logger.Errorf(providers.TypeApp, "Failed to flush expiring session %s: %v", s.id, err)
				continue
			}
			r.remove(s.id)
			r.expired.Inc()
			r.logger.Debugf(providers.TypeApp, "Session %s expired", s.id)
			continue
		}
		if err := s.Flush(ctx, FlushSweep); err != nil {
			r.logger.Errorf(providers.TypeApp, "Failed to flush session %s: %v", s.id, err)
		}
	}
}

// CloseAll flushes and closes every session, used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := r.Close(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stats reports lifetime session counters.
func (r *Registry) Stats() (opened, expired int64) {
	return r.opened.Load(), r.expired.Load()
}
