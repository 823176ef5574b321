package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"threadmark/internal/models"
	"threadmark/internal/storage/interfaces"
	"threadmark/internal/structures"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
	"go.uber.org/atomic"
)

var (
	ErrInvalidIdentity = errors.New("invalid thread identity")
	ErrInvalidStatus   = errors.New("invalid thread status")
	ErrCorruptTable    = errors.New("stored progress table is corrupt")
)

type ProgressServiceInterface interface {
	Get(ctx context.Context, id string) (*models.ThreadProgressRecord, error)
	List(ctx context.Context) ([]*models.ThreadProgressRecord, error)
	Upsert(ctx context.Context, identity models.Identity) (*models.ThreadProgressRecord, error)
	Remove(ctx context.Context, id string) error
	Reset(ctx context.Context, id string) (*models.ThreadProgressRecord, error)
	SetStatus(ctx context.Context, id string, status models.Status) (*models.ThreadProgressRecord, error)
	UpdateVisitInfo(ctx context.Context, id string, maxSeen *models.CommentID) (*models.ThreadProgressRecord, error)
	EnsureBaseline(ctx context.Context, id string, seq *models.CommentSequence) (*models.ThreadProgressRecord, error)
	Advance(ctx context.Context, id string, seq *models.CommentSequence, trigger models.CommentID, currentlyNew *models.IDSet) (*models.ThreadProgressRecord, models.AdvanceResult, error)
	AcknowledgeNew(ctx context.Context, id string, seq *models.CommentSequence) (*models.ThreadProgressRecord, error)
	Continue(ctx context.Context, id string, seq *models.CommentSequence) (*ContinueResult, error)
	Stats(ctx context.Context, id string, seq *models.CommentSequence) (*models.ThreadStats, error)
	ApplyProgress(ctx context.Context, id string, local *models.ThreadProgressRecord, seq *models.CommentSequence) (*models.ThreadProgressRecord, error)
	Snapshot(ctx context.Context) (models.ThreadTable, error)
	ReplaceAll(ctx context.Context, table models.ThreadTable) error
	MergeAll(ctx context.Context, table models.ThreadTable) error
	Count() int
}

// ContinueResult is what a reader needs to pick a thread back up.
type ContinueResult struct {
	Record *models.ThreadProgressRecord `json:"record"`
	Stats  models.ThreadStats           `json:"stats"`
	// ResumeCommentID is the first unread comment after the checkpoint.
	ResumeCommentID *models.CommentID `json:"resumeCommentId,omitempty"`
}

// ProgressService keeps the whole thread table under a single key. Every
// mutation is a read-modify-write of that key serialized by mu; other
// processes sharing the store are reconciled by ApplyProgress.
type ProgressService struct {
	mu    sync.Mutex
	store interfaces.KeyValueStoreInterface
	key   string
	count atomic.Int64
	now   func() time.Time
}

func NewProgressService(conf *structures.Config, store interfaces.KeyValueStoreInterface) ProgressServiceInterface {
	return &ProgressService{
		store: store,
		key:   conf.Storage.Key,
		now:   time.Now,
	}
}

func (ps *ProgressService) load(ctx context.Context) (models.ThreadTable, error) {
	raw, ok, err := ps.store.Get(ctx, ps.key)
	if err != nil {
		return nil, err
	}
	table := make(models.ThreadTable)
	if !ok || len(raw) == 0 {
		ps.count.Store(0)
		return table, nil
	}
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}
	for id, rec := range table {
		if rec == nil {
			delete(table, id)
		}
	}
	ps.count.Store(int64(len(table)))
	return table, nil
}

func (ps *ProgressService) save(ctx context.Context, table models.ThreadTable) error {
	raw, err := json.Marshal(table)
	if err != nil {
		return err
	}
	if err := ps.store.Set(ctx, ps.key, raw); err != nil {
		return err
	}
	ps.count.Store(int64(len(table)))
	return nil
}

// mutate runs fn against the stored record for id and persists it when fn
// reports a change. A missing record is a no-op returning nil.
func (ps *ProgressService) mutate(ctx context.Context, id string, fn func(rec *models.ThreadProgressRecord) bool) (*models.ThreadProgressRecord, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := table[id]
	if !ok {
		return nil, nil
	}
	if fn(rec) {
		if err := ps.save(ctx, table); err != nil {
			return nil, err
		}
	}
	return rec.Clone(), nil
}

func (ps *ProgressService) nowMillis() int64 {
	return ps.now().UnixMilli()
}

func (ps *ProgressService) Get(ctx context.Context, id string) (*models.ThreadProgressRecord, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return nil, err
	}
	return table[id].Clone(), nil
}

// List orders records by addedAt descending, ties by id.
func (ps *ProgressService) List(ctx context.Context) ([]*models.ThreadProgressRecord, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ThreadProgressRecord, 0, len(table))
	for _, rec := range table {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedAt != out[j].AddedAt {
			return out[i].AddedAt > out[j].AddedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Upsert creates the record or refreshes title and url of an existing one.
// Progress fields and addedAt of an existing record are kept.
func (ps *ProgressService) Upsert(ctx context.Context, identity models.Identity) (*models.ThreadProgressRecord, error) {
	v := validate.Struct(&identity)
	if !v.Validate() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIdentity, v.Errors.One())
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := table[identity.ID]
	if ok {
		rec.Title = identity.Title
		rec.URL = identity.URL
	} else {
		if identity.AddedAt <= 0 {
			identity.AddedAt = ps.nowMillis()
		}
		rec = models.NewThreadProgressRecord(identity)
		table[identity.ID] = rec
	}
	if err := ps.save(ctx, table); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (ps *ProgressService) Remove(ctx context.Context, id string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := table[id]; !ok {
		return nil
	}
	delete(table, id)
	return ps.save(ctx, table)
}

// Reset clears every progress field and forces the active status.
func (ps *ProgressService) Reset(ctx context.Context, id string) (*models.ThreadProgressRecord, error) {
	return ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		rec.ClearProgress()
		return true
	})
}

// SetStatus freezes progress when the thread leaves active and clears the
// frozen snapshot when it returns to active.
func (ps *ProgressService) SetStatus(ctx context.Context, id string, status models.Status) (*models.ThreadProgressRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		if rec.Status == status {
			return false
		}
		switch {
		case status == models.StatusActive:
			rec.FrozenProgress = nil
		case rec.Status == models.StatusActive || rec.FrozenProgress == nil:
			rec.FrozenProgress = rec.Freeze()
		}
		rec.Status = status
		return true
	})
}

// UpdateVisitInfo sets the new-comment baseline and drops individual acknowledgements.
func (ps *ProgressService) UpdateVisitInfo(ctx context.Context, id string, maxSeen *models.CommentID) (*models.ThreadProgressRecord, error) {
	return ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		rec.SetBaseline(maxSeen, ps.nowMillis())
		return true
	})
}

// EnsureBaseline writes the baseline only when the record has none yet.
func (ps *ProgressService) EnsureBaseline(ctx context.Context, id string, seq *models.CommentSequence) (*models.ThreadProgressRecord, error) {
	return ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		return ps.ensureBaseline(rec, seq)
	})
}

func (ps *ProgressService) ensureBaseline(rec *models.ThreadProgressRecord, seq *models.CommentSequence) bool {
	if rec.MaxSeenCommentID != nil {
		return false
	}
	rec.SetBaseline(seq.MaxID(), ps.nowMillis())
	return true
}

// Advance applies a read or seen action. When currentlyNew is nil the new set
// is derived from the stored record. A stale trigger leaves the store untouched.
func (ps *ProgressService) Advance(ctx context.Context, id string, seq *models.CommentSequence, trigger models.CommentID, currentlyNew *models.IDSet) (*models.ThreadProgressRecord, models.AdvanceResult, error) {
	var res models.AdvanceResult
	rec, err := ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		if seq.Position(trigger) < 0 {
			return false
		}
		ps.ensureBaseline(rec, seq)
		res = rec.AdvanceRecord(seq, trigger, currentlyNew)
		stats := models.StatsFor(rec, seq)
		rec.CachedStats = &stats
		return true
	})
	return rec, res, err
}

// AcknowledgeNew moves the baseline up to the newest rendered comment.
func (ps *ProgressService) AcknowledgeNew(ctx context.Context, id string, seq *models.CommentSequence) (*models.ThreadProgressRecord, error) {
	return ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		maxID := seq.MaxID()
		if maxID == nil {
			return false
		}
		if rec.MaxSeenCommentID != nil && *rec.MaxSeenCommentID > *maxID {
			maxID = rec.MaxSeenCommentID
		}
		rec.SetBaseline(maxID, ps.nowMillis())
		stats := models.StatsFor(rec, seq)
		rec.CachedStats = &stats
		return true
	})
}

// Continue establishes the baseline and reports where reading should resume.
func (ps *ProgressService) Continue(ctx context.Context, id string, seq *models.CommentSequence) (*ContinueResult, error) {
	rec, err := ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		return ps.ensureBaseline(rec, seq)
	})
	if err != nil || rec == nil {
		return nil, err
	}
	return &ContinueResult{
		Record:          rec,
		Stats:           models.StatsFor(rec, seq),
		ResumeCommentID: resumePoint(rec, seq),
	}, nil
}

func resumePoint(rec *models.ThreadProgressRecord, seq *models.CommentSequence) *models.CommentID {
	start := seq.PositionOf(rec.LastReadCommentID) + 1
	for pos := start; pos < seq.Len(); pos++ {
		if id := seq.At(pos); !rec.ReadCommentIDs.Contains(id) {
			return models.IDPtr(id)
		}
	}
	if rec.LastReadCommentID != nil && seq.Position(*rec.LastReadCommentID) >= 0 {
		return models.IDPtr(*rec.LastReadCommentID)
	}
	return nil
}

// Stats computes display stats for seq and caches them on the record.
func (ps *ProgressService) Stats(ctx context.Context, id string, seq *models.CommentSequence) (*models.ThreadStats, error) {
	var stats models.ThreadStats
	rec, err := ps.mutate(ctx, id, func(rec *models.ThreadProgressRecord) bool {
		stats = models.StatsFor(rec, seq)
		rec.CachedStats = &stats
		return true
	})
	if err != nil || rec == nil {
		return nil, err
	}
	return &stats, nil
}

// ApplyProgress is the merge-before-write used by flushes: the stored record
// is re-read under the lock and local progress is unioned into it.
func (ps *ProgressService) ApplyProgress(ctx context.Context, id string, local *models.ThreadProgressRecord, seq *models.CommentSequence) (*models.ThreadProgressRecord, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return nil, err
	}
	persisted, ok := table[id]
	if !ok {
		return nil, nil
	}
	merged := models.MergeProgress(persisted, local, seq)
	if seq.Len() > 0 {
		stats := models.StatsFor(merged, seq)
		merged.CachedStats = &stats
	}
	table[id] = merged
	if err := ps.save(ctx, table); err != nil {
		return nil, err
	}
	return merged.Clone(), nil
}

func (ps *ProgressService) Snapshot(ctx context.Context) (models.ThreadTable, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	table, err := ps.load(ctx)
	if err != nil {
		return nil, err
	}
	return table, nil
}

// ReplaceAll makes table the entire store.
func (ps *ProgressService) ReplaceAll(ctx context.Context, table models.ThreadTable) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if table == nil {
		table = make(models.ThreadTable)
	}
	return ps.save(ctx, table.Clone())
}

// MergeAll overlays table onto the store at record granularity: an incoming
// record replaces any stored record with the same id, others stay untouched.
func (ps *ProgressService) MergeAll(ctx context.Context, table models.ThreadTable) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	current, err := ps.load(ctx)
	if err != nil {
		return err
	}
	for id, rec := range table {
		current[id] = rec.Clone()
	}
	return ps.save(ctx, current)
}

// Count is the number of threads seen at the last load or save.
func (ps *ProgressService) Count() int {
	return int(ps.count.Load())
}
