package controllers

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"threadmark/internal/backup"
	"threadmark/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importBackup(e *env, mode string, data []byte) *httptest.ResponseRecorder {
	target := "/backup/import"
	if mode != "" {
		target += "?mode=" + mode
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	rr := httptest.NewRecorder()
	e.backups.Import(rr, req)
	return rr
}

func TestExport_ContainsThreads(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 2})

	rr := get(e.backups.Export, "/backup/export")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "threadmark-backup-")

	doc := decode[backup.Document](t, rr)
	assert.Equal(t, backup.CurrentSchemaVersion, doc.SchemaVersion)
	require.Contains(t, doc.ThreadsByID, "t1")
	assert.Equal(t, models.CommentID(2), *doc.ThreadsByID["t1"].LastReadCommentID)
}

func TestExport_StoreError(t *testing.T) {
	e := newEnv(t)
	e.store.GetErr = errors.New("boom")

	rr := get(e.backups.Export, "/backup/export")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestImport_RoundTripReplace(t *testing.T) {
	src := newEnv(t)
	src.save(t, "t1", 1)
	src.save(t, "t2", 2)
	exported := get(src.backups.Export, "/backup/export").Body.Bytes()

	dst := newEnv(t)
	dst.save(t, "other", 3)
	dst.cache.Set(threadsCacheKey, []byte("[]"))

	rr := importBackup(dst, "replace", exported)
	require.Equal(t, http.StatusOK, rr.Code)

	res := decode[backup.ImportResult](t, rr)
	assert.Equal(t, backup.ModeReplace, res.Mode)
	assert.Equal(t, 2, res.Imported)
	assert.Nil(t, dst.stored(t, "other"))
	assert.NotNil(t, dst.stored(t, "t2"))
	_, cached := dst.cache.Get(threadsCacheKey)
	assert.False(t, cached)
}

func TestImport_DefaultModeMerges(t *testing.T) {
	src := newEnv(t)
	src.save(t, "t1", 1)
	exported := get(src.backups.Export, "/backup/export").Body.Bytes()

	dst := newEnv(t)
	dst.save(t, "other", 3)

	rr := importBackup(dst, "", exported)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, backup.ModeMerge, decode[backup.ImportResult](t, rr).Mode)
	assert.NotNil(t, dst.stored(t, "other"))
	assert.NotNil(t, dst.stored(t, "t1"))
}

func TestImport_Rejections(t *testing.T) {
	tests := []struct {
		name string
		mode string
		data string
	}{
		{"unknown mode", "append", `{"schemaVersion":1,"exportedAt":1,"threadsById":{}}`},
		{"not json", "merge", `{{`},
		{"future version", "merge", `{"schemaVersion":99,"exportedAt":1,"threadsById":{}}`},
		{"bad status", "merge", `{"schemaVersion":1,"exportedAt":1,"threadsById":{"t1":{"id":"t1","url":"u","addedAt":1,"status":"paused"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.save(t, "keep", 1)
			sets := e.store.Sets

			rr := importBackup(e, tt.mode, []byte(tt.data))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, sets, e.store.Sets, "rejected import must not write")
			assert.NotNil(t, e.stored(t, "keep"))
		})
	}
}

func TestImport_PersistenceFailure(t *testing.T) {
	e := newEnv(t)
	e.store.SetErr = errors.New("disk full")

	rr := importBackup(e, "replace", []byte(`{"schemaVersion":1,"exportedAt":1,"threadsById":{}}`))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), persistenceFailure)
}
