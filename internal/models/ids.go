package models

import (
	"bytes"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	json "github.com/goccy/go-json"
)

// CommentID is the source site's comment identifier. Zero is never a valid id.
type CommentID uint64

// IDSet is a set of comment ids backed by a roaring bitmap.
// Its JSON form is a sorted array of integers.
type IDSet struct {
	bm *roaring64.Bitmap
}

func NewIDSet(ids ...CommentID) *IDSet {
	s := &IDSet{bm: roaring64.New()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *IDSet) Add(id CommentID) bool {
	if id == 0 {
		return false
	}
	return s.bm.CheckedAdd(uint64(id))
}

// Contains is safe on a nil set.
func (s *IDSet) Contains(id CommentID) bool {
	if s == nil || s.bm == nil {
		return false
	}
	return s.bm.Contains(uint64(id))
}

func (s *IDSet) Len() int {
	if s == nil || s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

func (s *IDSet) IsEmpty() bool {
	return s.Len() == 0
}

// Union adds every member of other to s.
func (s *IDSet) Union(other *IDSet) {
	if other == nil || other.bm == nil {
		return
	}
	s.bm.Or(other.bm)
}

// RemoveAtOrBelow drops members <= limit.
func (s *IDSet) RemoveAtOrBelow(limit CommentID) {
	if s == nil || s.bm == nil {
		return
	}
	if uint64(limit) == math.MaxUint64 {
		s.bm.Clear()
		return
	}
	s.bm.RemoveRange(0, uint64(limit)+1)
}

// Clone returns an independent copy; cloning a nil set yields an empty set.
func (s *IDSet) Clone() *IDSet {
	if s == nil || s.bm == nil {
		return NewIDSet()
	}
	return &IDSet{bm: s.bm.Clone()}
}

// Slice returns the members in ascending order.
func (s *IDSet) Slice() []CommentID {
	if s == nil || s.bm == nil {
		return []CommentID{}
	}
	out := make([]CommentID, 0, s.bm.GetCardinality())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, CommentID(it.Next()))
	}
	return out
}

func (s *IDSet) Equal(other *IDSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s.Len() == 0 {
		return true
	}
	return s.bm.Equals(other.bm)
}

func (s *IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		s.bm = roaring64.New()
		return nil
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("comment id set: %w", err)
	}
	s.bm = roaring64.New()
	for _, id := range ids {
		if id == 0 {
			return fmt.Errorf("comment id set: zero is not a valid comment id")
		}
		s.bm.Add(id)
	}
	return nil
}

func (s *IDSet) String() string {
	return fmt.Sprint(s.Slice())
}
