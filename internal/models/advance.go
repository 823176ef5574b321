package models

// AdvanceInput describes one read or seen action against the current rendering.
type AdvanceInput struct {
	Sequence   *CommentSequence
	Checkpoint *CommentID
	Trigger    CommentID
	// CurrentlyNew is the set displayed as new when the action happened.
	CurrentlyNew *IDSet
}

type AdvanceResult struct {
	// Applied is false when the trigger is not rendered (stale trigger).
	Applied  bool
	Advanced bool
	// Checkpoint is the resulting checkpoint, unchanged when Advanced is false.
	Checkpoint *CommentID
	Read       *IDSet
	Seen       *IDSet
}

// Advance computes the next checkpoint. All ordering decisions use sequence
// position, never numeric id order, and the checkpoint only moves when the
// trigger is strictly after it.
func Advance(in AdvanceInput) AdvanceResult {
	triggerPos := in.Sequence.Position(in.Trigger)
	if triggerPos < 0 {
		return AdvanceResult{Checkpoint: cloneID(in.Checkpoint)}
	}
	checkpointPos := in.Sequence.PositionOf(in.Checkpoint)

	res := AdvanceResult{
		Applied: true,
		Read:    NewIDSet(),
		Seen:    NewIDSet(),
	}

	for pos := 0; pos <= triggerPos; pos++ {
		if id := in.Sequence.At(pos); in.CurrentlyNew.Contains(id) {
			res.Seen.Add(id)
		}
	}
	res.Seen.Add(in.Trigger)

	if triggerPos > checkpointPos {
		res.Advanced = true
		res.Checkpoint = IDPtr(in.Trigger)
		for pos := 0; pos <= triggerPos; pos++ {
			res.Read.Add(in.Sequence.At(pos))
		}
		return res
	}

	res.Checkpoint = cloneID(in.Checkpoint)
	res.Read.Union(res.Seen)
	return res
}

// ApplyAdvance writes an advance result into r.
func (r *ThreadProgressRecord) ApplyAdvance(res AdvanceResult) {
	if !res.Applied {
		return
	}
	if res.Advanced {
		r.LastReadCommentID = cloneID(res.Checkpoint)
	}
	if r.ReadCommentIDs == nil {
		r.ReadCommentIDs = NewIDSet()
	}
	r.ReadCommentIDs.Union(res.Read)
	if r.SeenNewCommentIDs == nil {
		r.SeenNewCommentIDs = NewIDSet()
	}
	r.SeenNewCommentIDs.Union(res.Seen)
}

// AdvanceRecord runs Advance against r's own checkpoint and applies it.
// When currentlyNew is nil it is derived from r.
func (r *ThreadProgressRecord) AdvanceRecord(seq *CommentSequence, trigger CommentID, currentlyNew *IDSet) AdvanceResult {
	if currentlyNew == nil {
		currentlyNew = CurrentlyNew(r, seq)
	}
	res := Advance(AdvanceInput{
		Sequence:     seq,
		Checkpoint:   r.LastReadCommentID,
		Trigger:      trigger,
		CurrentlyNew: currentlyNew,
	})
	r.ApplyAdvance(res)
	return res
}
