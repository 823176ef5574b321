package backup

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"threadmark/internal/models"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

const CurrentSchemaVersion = 1

var ErrInvalidBackup = errors.New("invalid backup")

// ValidationError names the offending field of a rejected backup.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid backup: %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidBackup
}

func invalid(path, format string, args ...interface{}) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Document is the backup file layout.
type Document struct {
	SchemaVersion int                `json:"schemaVersion"`
	ExportedAt    int64              `json:"exportedAt"`
	ThreadsByID   models.ThreadTable `json:"threadsById"`
}

// tableDecoder turns the raw threadsById object of one schema version into records.
type tableDecoder func(threads map[string]interface{}) (models.ThreadTable, error)

var decoders = map[int]tableDecoder{
	1: decodeTableV1,
}

// Decode validates a whole backup before returning it. Nothing is returned
// unless every record is valid.
func Decode(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid("$", "malformed JSON: %v", err)
	}
	if dec.More() {
		return nil, invalid("$", "trailing data after document")
	}
	root, ok := raw.(map[string]interface{})
	if !ok {
		return nil, invalid("$", "must be an object")
	}

	versionRaw, ok := root["schemaVersion"]
	if !ok {
		return nil, invalid("schemaVersion", "is required")
	}
	version, err := integer("schemaVersion", versionRaw)
	if err != nil {
		return nil, err
	}
	decode, ok := decoders[int(version)]
	if !ok {
		return nil, invalid("schemaVersion", "unsupported version %d, expected %d", version, CurrentSchemaVersion)
	}

	exportedRaw, ok := root["exportedAt"]
	if !ok {
		return nil, invalid("exportedAt", "is required")
	}
	exportedAt, err := integer("exportedAt", exportedRaw)
	if err != nil {
		return nil, err
	}

	threadsRaw, ok := root["threadsById"]
	if !ok {
		return nil, invalid("threadsById", "is required")
	}
	threads, ok := threadsRaw.(map[string]interface{})
	if !ok {
		return nil, invalid("threadsById", "must be an object")
	}

	table, err := decode(threads)
	if err != nil {
		return nil, err
	}
	return &Document{
		SchemaVersion: int(version),
		ExportedAt:    exportedAt,
		ThreadsByID:   table,
	}, nil
}

func decodeTableV1(threads map[string]interface{}) (models.ThreadTable, error) {
	keys := make([]string, 0, len(threads))
	for k := range threads {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make(models.ThreadTable, len(threads))
	for _, key := range keys {
		rec, err := decodeRecordV1("threadsById."+key, key, threads[key])
		if err != nil {
			return nil, err
		}
		table[key] = rec
	}
	return table, nil
}

func decodeRecordV1(path, key string, raw interface{}) (*models.ThreadProgressRecord, error) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, invalid(path, "must be an object")
	}

	rec := &models.ThreadProgressRecord{Status: models.StatusActive}
	var err error

	if rec.ID, err = requiredString(path, obj, "id"); err != nil {
		return nil, err
	}
	if rec.ID != key {
		return nil, invalid(path+".id", "%q does not match its key", rec.ID)
	}
	if rec.ID == "" {
		return nil, invalid(path+".id", "must not be empty")
	}
	if rec.Title, err = requiredString(path, obj, "title"); err != nil {
		return nil, err
	}
	if rec.URL, err = requiredString(path, obj, "url"); err != nil {
		return nil, err
	}
	addedAt, ok := obj["addedAt"]
	if !ok {
		return nil, invalid(path+".addedAt", "is required")
	}
	if rec.AddedAt, err = integer(path+".addedAt", addedAt); err != nil {
		return nil, err
	}

	if v, ok := present(obj, "status"); ok {
		s, isString := v.(string)
		if !isString || !models.Status(s).Valid() {
			return nil, invalid(path+".status", "must be one of active, finished, archived")
		}
		rec.Status = models.Status(s)
	}
	if v, ok := present(obj, "lastReadCommentId"); ok {
		if rec.LastReadCommentID, err = commentID(path+".lastReadCommentId", v); err != nil {
			return nil, err
		}
	}
	if v, ok := present(obj, "readCommentIds"); ok {
		if rec.ReadCommentIDs, err = idSet(path+".readCommentIds", v); err != nil {
			return nil, err
		}
	}
	if v, ok := present(obj, "maxSeenCommentId"); ok {
		if rec.MaxSeenCommentID, err = commentID(path+".maxSeenCommentId", v); err != nil {
			return nil, err
		}
	}
	if v, ok := present(obj, "seenNewCommentIds"); ok {
		if rec.SeenNewCommentIDs, err = idSet(path+".seenNewCommentIds", v); err != nil {
			return nil, err
		}
	}
	if v, ok := present(obj, "frozenProgress"); ok {
		fp, err := frozenProgress(path+".frozenProgress", v)
		if err != nil {
			return nil, err
		}
		rec.FrozenProgress = fp
	}
	if v, ok := present(obj, "cachedStats"); ok {
		cs, err := threadStats(path+".cachedStats", v)
		if err != nil {
			return nil, err
		}
		rec.CachedStats = cs
	}
	if v, ok := present(obj, "lastVisitedAt"); ok {
		ts, err := integer(path+".lastVisitedAt", v)
		if err != nil {
			return nil, err
		}
		rec.LastVisitedAt = &ts
	}
	return rec, nil
}

// present treats an explicit null like an absent field.
func present(obj map[string]interface{}, field string) (interface{}, bool) {
	v, ok := obj[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func requiredString(path string, obj map[string]interface{}, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", invalid(path+"."+field, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(path+"."+field, "must be a string")
	}
	return s, nil
}

func finite(path string, v interface{}) (json.Number, error) {
	n, ok := v.(json.Number)
	if !ok {
		return "", invalid(path, "must be a number")
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", invalid(path, "must be a finite number")
	}
	return n, nil
}

func integer(path string, v interface{}) (int64, error) {
	n, err := finite(path, v)
	if err != nil {
		return 0, err
	}
	i, err := n.Int64()
	if err != nil {
		return 0, invalid(path, "must be an integer")
	}
	return i, nil
}

func count(path string, v interface{}) (int, error) {
	i, err := integer(path, v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, invalid(path, "must not be negative")
	}
	return int(i), nil
}

func commentID(path string, v interface{}) (*models.CommentID, error) {
	n, err := finite(path, v)
	if err != nil {
		return nil, err
	}
	id, err := cast.ToUint64E(n.String())
	if err != nil || id == 0 {
		return nil, invalid(path, "must be a positive integer comment id")
	}
	return models.IDPtr(models.CommentID(id)), nil
}

func idSet(path string, v interface{}) (*models.IDSet, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, invalid(path, "must be an array")
	}
	set := models.NewIDSet()
	for i, item := range items {
		id, err := commentID(fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		set.Add(*id)
	}
	return set, nil
}

func countFields(path string, obj map[string]interface{}, fields ...string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, ok := obj[f]
		if !ok {
			return nil, invalid(path+"."+f, "is required")
		}
		n, err := count(path+"."+f, v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func frozenProgress(path string, v interface{}) (*models.FrozenProgress, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, invalid(path, "must be an object")
	}
	n, err := countFields(path, obj, "totalComments", "readCount", "percent")
	if err != nil {
		return nil, err
	}
	return &models.FrozenProgress{TotalComments: n[0], ReadCount: n[1], Percent: n[2]}, nil
}

func threadStats(path string, v interface{}) (*models.ThreadStats, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, invalid(path, "must be an object")
	}
	n, err := countFields(path, obj, "totalComments", "readCount", "percent")
	if err != nil {
		return nil, err
	}
	stats := &models.ThreadStats{TotalComments: n[0], ReadCount: n[1], Percent: n[2]}
	if raw, ok := present(obj, "newCount"); ok {
		nc, err := count(path+".newCount", raw)
		if err != nil {
			return nil, err
		}
		stats.NewCount = &nc
	}
	return stats, nil
}
