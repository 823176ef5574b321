package tracker

import (
	"context"
	"errors"
	"sync"
	"threadmark/internal/models"
	"threadmark/internal/providers"
	"threadmark/internal/services"
	"threadmark/internal/structures"
	"time"

	"go.uber.org/atomic"
)

var ErrSessionClosed = errors.New("session is closed")

// Visibility is the per-comment state of a session.
type Visibility int

const (
	NotVisible Visibility = iota
	Pending
	ConfirmedRead
)

func (v Visibility) String() string {
	switch v {
	case Pending:
		return "pending"
	case ConfirmedRead:
		return "confirmed-read"
	default:
		return "not-visible"
	}
}

const (
	FlushDebounce = "debounce"
	FlushForced   = "forced"
	FlushHide     = "hide"
	FlushClose    = "close"
	FlushSweep    = "sweep"
	FlushFinish   = "finish"
	FlushReset    = "reset"
)

// Session tracks one view of a thread. Comments that stay visible for the
// dwell time are confirmed read and advanced into a local record; the local
// record is merged into the store by debounced or forced flushes.
type Session struct {
	id       string
	threadID string
	seq      *models.CommentSequence

	mu           sync.Mutex
	local        *models.ThreadProgressRecord
	currentlyNew *models.IDSet
	states       map[models.CommentID]Visibility
	dwell        map[models.CommentID]func() bool
	flushStop    func() bool
	dirty        bool
	lastActivity time.Time
	closed       atomic.Bool

	service services.ProgressServiceInterface
	clock   Clock
	conf    structures.TrackerConfig
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func newSession(id string, persisted *models.ThreadProgressRecord, seq *models.CommentSequence, r *Registry) *Session {
	local := &models.ThreadProgressRecord{
		ID:                persisted.ID,
		LastReadCommentID: persisted.LastReadCommentID,
		MaxSeenCommentID:  persisted.MaxSeenCommentID,
	}
	return &Session{
		id:           id,
		threadID:     persisted.ID,
		seq:          seq,
		local:        local.Clone(),
		currentlyNew: models.CurrentlyNew(persisted, seq),
		states:       make(map[models.CommentID]Visibility),
		dwell:        make(map[models.CommentID]func() bool),
		lastActivity: r.clock.Now(),
		service:      r.service,
		clock:        r.clock,
		conf:         r.conf,
		logger:       r.logger,
		metrics:      r.metrics,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) ThreadID() string {
	return s.threadID
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// State reports the visibility state of a comment.
func (s *Session) State(id models.CommentID) Visibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Local returns a copy of the progress accumulated since the last flush.
func (s *Session) Local() *models.ThreadProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local.Clone()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Observe feeds one visibility event. Comments outside the session's
// sequence are ignored.
func (s *Session) Observe(commentID models.CommentID, visible bool) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = s.clock.Now()
	if s.seq.Position(commentID) < 0 {
		return nil
	}

	switch state := s.states[commentID]; {
	case visible && state == NotVisible:
		s.states[commentID] = Pending
		s.dwell[commentID] = s.clock.AfterFunc(s.conf.DwellTime, func() {
			s.confirm(commentID)
		})
	case !visible && state == Pending:
		s.cancelDwellLocked(commentID)
		s.states[commentID] = NotVisible
	}
	return nil
}

func (s *Session) cancelDwellLocked(commentID models.CommentID) {
	if stop, ok := s.dwell[commentID]; ok {
		stop()
		delete(s.dwell, commentID)
	}
}

func (s *Session) confirm(commentID models.CommentID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dwell, commentID)
	if s.closed.Load() || s.states[commentID] != Pending {
		return
	}
	s.states[commentID] = ConfirmedRead

	if s.local.MaxSeenCommentID == nil {
		s.local.SetBaseline(s.seq.MaxID(), s.clock.Now().UnixMilli())
		s.currentlyNew = models.NewIDSet()
	}

	res := s.local.AdvanceRecord(s.seq, commentID, s.currentlyNew)
	switch {
	case !res.Applied:
		s.metrics.IncCheckpointActions("stale")
		return
	case res.Advanced:
		s.metrics.IncCheckpointActions("advanced")
	default:
		s.metrics.IncCheckpointActions("acknowledged")
	}

	s.dirty = true
	if s.flushStop == nil {
		s.flushStop = s.clock.AfterFunc(s.conf.FlushDebounce, s.debouncedFlush)
	}
}

func (s *Session) debouncedFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushStop = nil
	if err := s.flushLocked(context.Background(), FlushDebounce); err != nil {
		s.logger.Errorf(providers.TypeApp, "Failed to flush progress for thread %s: %v", s.threadID, err)
	}
}

// Flush merges local progress into the store now, skipping the debounce wait.
func (s *Session) Flush(ctx context.Context, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopFlushTimerLocked()
	return s.flushLocked(ctx, reason)
}

func (s *Session) stopFlushTimerLocked() {
	if s.flushStop != nil {
		s.flushStop()
		s.flushStop = nil
	}
}

func (s *Session) flushLocked(ctx context.Context, reason string) error {
	if !s.dirty {
		return nil
	}
	merged, err := s.service.ApplyProgress(ctx, s.threadID, s.local, s.seq)
	if err != nil {
		return err
	}
	s.metrics.IncFlushes(reason)
	s.dirty = false
	if merged == nil {
		// thread was removed elsewhere
		s.logger.Debugf(providers.TypeApp, "Dropped progress for removed thread %s", s.threadID)
		return nil
	}
	s.local = &models.ThreadProgressRecord{
		ID:                s.threadID,
		LastReadCommentID: merged.LastReadCommentID,
		MaxSeenCommentID:  merged.MaxSeenCommentID,
	}
	return nil
}

// Hide is the page-hide signal: nothing stays visible, pending dwell timers
// are dropped and accumulated progress is flushed immediately.
func (s *Session) Hide(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.dwell {
		s.cancelDwellLocked(id)
		s.states[id] = NotVisible
	}
	s.stopFlushTimerLocked()
	return s.flushLocked(ctx, FlushHide)
}

// Close flushes and stops every timer. Closing twice is a no-op. When the
// final flush fails the session stays open and dirty so Close can be retried.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil
	}
	for id := range s.dwell {
		s.cancelDwellLocked(id)
		s.states[id] = NotVisible
	}
	s.stopFlushTimerLocked()
	if err := s.flushLocked(ctx, FlushClose); err != nil {
		return err
	}
	s.closed.Store(true)
	return nil
}

// ClearLocal forgets local progress after the thread was reset in the store.
func (s *Session) ClearLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.dwell {
		s.cancelDwellLocked(id)
	}
	s.stopFlushTimerLocked()
	s.states = make(map[models.CommentID]Visibility)
	s.local = &models.ThreadProgressRecord{ID: s.threadID}
	s.currentlyNew = models.NewIDSet()
	s.dirty = false
}
