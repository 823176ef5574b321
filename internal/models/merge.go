package models

// SetBaseline moves the new-comment baseline and drops individual
// acknowledgements, which the baseline supersedes.
func (r *ThreadProgressRecord) SetBaseline(maxSeen *CommentID, visitedAt int64) {
	r.MaxSeenCommentID = cloneID(maxSeen)
	r.SeenNewCommentIDs = nil
	r.LastVisitedAt = &visitedAt
}

// MergeProgress folds locally accumulated progress into the persisted record.
// Read and seen sets are unioned, the checkpoint is whichever sits later in seq,
// and the baseline only moves up. Status, identity and frozen snapshot stay as persisted.
func MergeProgress(persisted, local *ThreadProgressRecord, seq *CommentSequence) *ThreadProgressRecord {
	out := persisted.Clone()
	if local == nil {
		return out
	}

	if local.LastReadCommentID != nil && seq.PositionOf(local.LastReadCommentID) > seq.PositionOf(out.LastReadCommentID) {
		out.LastReadCommentID = cloneID(local.LastReadCommentID)
	}

	if !local.ReadCommentIDs.IsEmpty() {
		if out.ReadCommentIDs == nil {
			out.ReadCommentIDs = NewIDSet()
		}
		out.ReadCommentIDs.Union(local.ReadCommentIDs)
	}

	if local.MaxSeenCommentID != nil && (out.MaxSeenCommentID == nil || *local.MaxSeenCommentID > *out.MaxSeenCommentID) {
		out.MaxSeenCommentID = cloneID(local.MaxSeenCommentID)
	}

	if !local.SeenNewCommentIDs.IsEmpty() {
		if out.SeenNewCommentIDs == nil {
			out.SeenNewCommentIDs = NewIDSet()
		}
		out.SeenNewCommentIDs.Union(local.SeenNewCommentIDs)
	}
	if out.MaxSeenCommentID != nil && out.SeenNewCommentIDs != nil {
		out.SeenNewCommentIDs.RemoveAtOrBelow(*out.MaxSeenCommentID)
	}

	if local.LastVisitedAt != nil && (out.LastVisitedAt == nil || *local.LastVisitedAt > *out.LastVisitedAt) {
		v := *local.LastVisitedAt
		out.LastVisitedAt = &v
	}
	return out
}
