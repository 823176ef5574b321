package models

// Status is the lifecycle state of a saved thread.
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFinished, StatusArchived:
		return true
	}
	return false
}

// FrozenProgress is captured when a thread leaves the active status so that
// finished and archived threads keep stable numbers.
type FrozenProgress struct {
	TotalComments int `json:"totalComments"`
	ReadCount     int `json:"readCount"`
	Percent       int `json:"percent"`
}

type ThreadStats struct {
	TotalComments int  `json:"totalComments"`
	ReadCount     int  `json:"readCount"`
	Percent       int  `json:"percent"`
	NewCount      *int `json:"newCount,omitempty"`
}

// Identity carries the fields owned by save/unsave.
type Identity struct {
	ID      string `json:"id" validate:"required"`
	Title   string `json:"title"`
	URL     string `json:"url" validate:"required"`
	AddedAt int64  `json:"addedAt"`
}

type ThreadProgressRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	AddedAt int64  `json:"addedAt"`
	Status  Status `json:"status"`

	// LastReadCommentID is the checkpoint. Its sequence position never regresses.
	LastReadCommentID *CommentID `json:"lastReadCommentId,omitempty"`
	ReadCommentIDs    *IDSet     `json:"readCommentIds,omitempty"`
	// MaxSeenCommentID is the new-comment baseline.
	MaxSeenCommentID  *CommentID      `json:"maxSeenCommentId,omitempty"`
	SeenNewCommentIDs *IDSet          `json:"seenNewCommentIds,omitempty"`
	FrozenProgress    *FrozenProgress `json:"frozenProgress,omitempty"`
	CachedStats       *ThreadStats    `json:"cachedStats,omitempty"`
	LastVisitedAt     *int64          `json:"lastVisitedAt,omitempty"`
}

// NewThreadProgressRecord creates a record with every progress field absent.
func NewThreadProgressRecord(identity Identity) *ThreadProgressRecord {
	return &ThreadProgressRecord{
		ID:      identity.ID,
		Title:   identity.Title,
		URL:     identity.URL,
		AddedAt: identity.AddedAt,
		Status:  StatusActive,
	}
}

// ClearProgress drops every progress field and forces the active status.
func (r *ThreadProgressRecord) ClearProgress() {
	r.Status = StatusActive
	r.LastReadCommentID = nil
	r.ReadCommentIDs = nil
	r.MaxSeenCommentID = nil
	r.SeenNewCommentIDs = nil
	r.FrozenProgress = nil
	r.CachedStats = nil
	r.LastVisitedAt = nil
}

// Clone deep-copies the record so callers never share sets with the store.
func (r *ThreadProgressRecord) Clone() *ThreadProgressRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.LastReadCommentID = cloneID(r.LastReadCommentID)
	cp.MaxSeenCommentID = cloneID(r.MaxSeenCommentID)
	if r.ReadCommentIDs != nil {
		cp.ReadCommentIDs = r.ReadCommentIDs.Clone()
	}
	if r.SeenNewCommentIDs != nil {
		cp.SeenNewCommentIDs = r.SeenNewCommentIDs.Clone()
	}
	if r.FrozenProgress != nil {
		fp := *r.FrozenProgress
		cp.FrozenProgress = &fp
	}
	if r.CachedStats != nil {
		cs := *r.CachedStats
		if r.CachedStats.NewCount != nil {
			n := *r.CachedStats.NewCount
			cs.NewCount = &n
		}
		cp.CachedStats = &cs
	}
	if r.LastVisitedAt != nil {
		v := *r.LastVisitedAt
		cp.LastVisitedAt = &v
	}
	return &cp
}

// Freeze builds the frozen snapshot from the last computed stats. Without
// cached stats the thread length is unknown and only the read count is kept.
func (r *ThreadProgressRecord) Freeze() *FrozenProgress {
	if r.CachedStats != nil {
		return &FrozenProgress{
			TotalComments: r.CachedStats.TotalComments,
			ReadCount:     r.CachedStats.ReadCount,
			Percent:       r.CachedStats.Percent,
		}
	}
	return &FrozenProgress{ReadCount: r.ReadCommentIDs.Len()}
}

func cloneID(id *CommentID) *CommentID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// IDPtr is a helper for optional ids.
func IDPtr(id CommentID) *CommentID {
	return &id
}

// ThreadTable is the whole persisted progress table keyed by thread id.
type ThreadTable map[string]*ThreadProgressRecord

func (t ThreadTable) Clone() ThreadTable {
	out := make(ThreadTable, len(t))
	for id, rec := range t {
		out[id] = rec.Clone()
	}
	return out
}
