package models

import (
	"net/url"
	"strings"

	"github.com/spf13/cast"
)

// CommentSequence is the rendering order of one thread visit. It is never persisted.
type CommentSequence struct {
	ids   []CommentID
	index map[CommentID]int
}

// NewCommentSequence keeps the first occurrence of duplicated ids and drops zero ids.
func NewCommentSequence(ids []CommentID) *CommentSequence {
	seq := &CommentSequence{
		ids:   make([]CommentID, 0, len(ids)),
		index: make(map[CommentID]int, len(ids)),
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seq.index[id]; dup {
			continue
		}
		seq.index[id] = len(seq.ids)
		seq.ids = append(seq.ids, id)
	}
	return seq
}

// SequenceFromSnapshot builds a sequence from raw rendered identifiers such as
// "123", "item?id=123" or "c_123". Entries without a trailing integer are skipped.
func SequenceFromSnapshot(raw []string) *CommentSequence {
	ids := make([]CommentID, 0, len(raw))
	for _, r := range raw {
		if id, ok := ParseCommentID(r); ok {
			ids = append(ids, id)
		}
	}
	return NewCommentSequence(ids)
}

// ParseCommentID extracts the trailing decimal run of s. Permalinks carrying
// an id query parameter, such as "item?id=123&p=2", yield that value instead.
func ParseCommentID(s string) (CommentID, bool) {
	s = strings.TrimSpace(s)
	if q := strings.IndexByte(s, '?'); q >= 0 {
		query, _, _ := strings.Cut(s[q+1:], "#")
		if values, _ := url.ParseQuery(query); values.Has("id") {
			s = strings.TrimSpace(values.Get("id"))
		}
	}
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	v, err := cast.ToUint64E(strings.TrimLeft(s[start:end], "0"))
	if err != nil || v == 0 {
		return 0, false
	}
	return CommentID(v), true
}

func (s *CommentSequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// Position returns the index of id, or -1 when it is not rendered.
func (s *CommentSequence) Position(id CommentID) int {
	if s == nil {
		return -1
	}
	if pos, ok := s.index[id]; ok {
		return pos
	}
	return -1
}

// PositionOf is Position for an optional id; absent maps to -1.
func (s *CommentSequence) PositionOf(id *CommentID) int {
	if id == nil {
		return -1
	}
	return s.Position(*id)
}

func (s *CommentSequence) At(pos int) CommentID {
	return s.ids[pos]
}

// IDs returns a copy of the ordered ids.
func (s *CommentSequence) IDs() []CommentID {
	if s == nil {
		return nil
	}
	out := make([]CommentID, len(s.ids))
	copy(out, s.ids)
	return out
}

// MaxID is the largest id in the sequence, nil when empty.
func (s *CommentSequence) MaxID() *CommentID {
	if s.Len() == 0 {
		return nil
	}
	max := s.ids[0]
	for _, id := range s.ids[1:] {
		if id > max {
			max = id
		}
	}
	return &max
}
