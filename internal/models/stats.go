package models

import "math"

// ComputeStats counts sequence members present in readSet, so comments
// acknowledged out of order are counted as well. newCount is passed through.
func ComputeStats(seq *CommentSequence, readSet *IDSet, newCount *int) ThreadStats {
	stats := ThreadStats{TotalComments: seq.Len()}
	for i := 0; i < seq.Len(); i++ {
		if readSet.Contains(seq.At(i)) {
			stats.ReadCount++
		}
	}
	if stats.TotalComments > 0 {
		stats.Percent = int(math.Round(float64(stats.ReadCount) / float64(stats.TotalComments) * 100))
	}
	if newCount != nil {
		n := *newCount
		stats.NewCount = &n
	}
	return stats
}

// IsNew reports whether id is above the baseline and neither read nor acknowledged.
// Without a baseline nothing is new.
func (r *ThreadProgressRecord) IsNew(id CommentID) bool {
	if r.MaxSeenCommentID == nil || id <= *r.MaxSeenCommentID {
		return false
	}
	return !r.ReadCommentIDs.Contains(id) && !r.SeenNewCommentIDs.Contains(id)
}

// CurrentlyNew returns the rendered ids that are new for this record.
func CurrentlyNew(r *ThreadProgressRecord, seq *CommentSequence) *IDSet {
	out := NewIDSet()
	if r == nil {
		return out
	}
	for i := 0; i < seq.Len(); i++ {
		if id := seq.At(i); r.IsNew(id) {
			out.Add(id)
		}
	}
	return out
}

// StatsFor computes display stats for r against seq, including the new count.
func StatsFor(r *ThreadProgressRecord, seq *CommentSequence) ThreadStats {
	n := CurrentlyNew(r, seq).Len()
	return ComputeStats(seq, r.ReadCommentIDs, &n)
}
