package controllers

import (
	"errors"
	"net/http"
	"testing"
	"threadmark/internal/models"
	"threadmark/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var comments = []string{"c_1", "c_2", "c_3", "c_4", "c_5"}

// --- SaveThread / ListThreads / GetThread ---

func TestSaveThread_CreatesRecord(t *testing.T) {
	e := newEnv(t)

	rr := post(t, e.api.SaveThread, body{"id": "t1", "title": "Hello", "url": "https://x/t1", "addedAt": 10})
	require.Equal(t, http.StatusOK, rr.Code)

	rec := decode[models.ThreadProgressRecord](t, rr)
	assert.Equal(t, "t1", rec.ID)
	assert.Equal(t, models.StatusActive, rec.Status)
	assert.Nil(t, rec.LastReadCommentID)
	assert.NotNil(t, e.stored(t, "t1"))
}

func TestSaveThread_InvalidIdentity(t *testing.T) {
	e := newEnv(t)

	rr := post(t, e.api.SaveThread, body{"id": "t1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, e.stored(t, "t1"))
}

func TestSaveThread_MalformedBody(t *testing.T) {
	e := newEnv(t)

	rr := post(t, e.api.SaveThread, "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveThread_PersistenceFailure(t *testing.T) {
	e := newEnv(t)
	e.store.SetErr = errors.New("disk full")

	rr := post(t, e.api.SaveThread, body{"id": "t1", "url": "https://x/t1"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), persistenceFailure)
	assert.Equal(t, 1, e.logger.Count("error"))
}

func TestListThreads_OrderAndCache(t *testing.T) {
	e := newEnv(t)
	e.save(t, "old", 1)
	e.save(t, "new", 2)

	rr := get(e.api.ListThreads, "/threads")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]models.ThreadProgressRecord](t, rr)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	_, cached := e.cache.Get(threadsCacheKey)
	assert.True(t, cached)

	gets := e.store.Gets
	get(e.api.ListThreads, "/threads")
	assert.Equal(t, gets, e.store.Gets, "second list should be served from cache")
}

func TestListThreads_InvalidatedByMutation(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	get(e.api.ListThreads, "/threads")

	post(t, e.api.SaveThread, body{"id": "t2", "url": "https://x/t2", "addedAt": 5})
	_, cached := e.cache.Get(threadsCacheKey)
	assert.False(t, cached)

	list := decode[[]models.ThreadProgressRecord](t, get(e.api.ListThreads, "/threads"))
	assert.Len(t, list, 2)
}

func TestListThreads_StoreError(t *testing.T) {
	e := newEnv(t)
	e.store.GetErr = errors.New("boom")

	rr := get(e.api.ListThreads, "/threads")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetThread(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := get(e.api.GetThread, "/thread?id=t1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t1", decode[models.ThreadProgressRecord](t, rr).ID)

	rr = get(e.api.GetThread, "/thread?id=missing")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", rr.Body.String())

	rr = get(e.api.GetThread, "/thread")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- RemoveThread ---

func TestRemoveThread(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := post(t, e.api.RemoveThread, body{"id": "t1"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, e.stored(t, "t1"))

	rr = post(t, e.api.RemoveThread, body{"id": "t1"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRemoveThread_MissingID(t *testing.T) {
	e := newEnv(t)
	rr := post(t, e.api.RemoveThread, body{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// --- mark-seen / mark-to-here ---

func TestMarkSeen_AdvancesCheckpoint(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": "c_3"})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[markResponse](t, rr)
	assert.True(t, resp.Applied)
	assert.True(t, resp.Advanced)
	require.NotNil(t, resp.Record.LastReadCommentID)
	assert.Equal(t, models.CommentID(3), *resp.Record.LastReadCommentID)
	assert.Equal(t, []models.CommentID{1, 2, 3}, resp.Record.ReadCommentIDs.Slice())
	assert.Equal(t, 1, e.metrics.Checkpoints["advanced"])
}

func TestMarkToHere_NumericCommentID(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := post(t, e.api.MarkToHere, body{"id": "t1", "comments": comments, "commentId": 2})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.CommentID(2), *e.stored(t, "t1").LastReadCommentID)
}

func TestMarkSeen_NoRegression(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 4})

	rr := post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 2})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[markResponse](t, rr)
	assert.True(t, resp.Applied)
	assert.False(t, resp.Advanced)
	assert.Equal(t, models.CommentID(4), *e.stored(t, "t1").LastReadCommentID)
	assert.Equal(t, 1, e.metrics.Checkpoints["acknowledged"])
}

func TestMarkSeen_StaleTrigger(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 99})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[markResponse](t, rr).Applied)
	assert.Nil(t, e.stored(t, "t1").LastReadCommentID)
	assert.Equal(t, 1, e.metrics.Checkpoints["stale"])
}

func TestMarkSeen_UnknownThread(t *testing.T) {
	e := newEnv(t)

	rr := post(t, e.api.MarkSeen, body{"id": "nope", "comments": comments, "commentId": 1})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[markResponse](t, rr)
	assert.Nil(t, resp.Record)
	assert.False(t, resp.Applied)
}

func TestMarkSeen_BadCommentID(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	for _, id := range []any{nil, "abc", 0, -3, 1.5, 2.7} {
		rr := post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": id})
		assert.Equal(t, http.StatusBadRequest, rr.Code, "commentId %v", id)
	}
}

func TestMarkSeen_PersistenceFailure(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	e.store.SetErr = errors.New("disk full")

	rr := post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 2})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), persistenceFailure)
}

// --- continue / ack-new / stats ---

func TestContinueThread_ResumePoint(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 2})

	rr := post(t, e.api.ContinueThread, body{"id": "t1", "comments": comments})
	require.Equal(t, http.StatusOK, rr.Code)

	res := decode[services.ContinueResult](t, rr)
	require.NotNil(t, res.ResumeCommentID)
	assert.Equal(t, models.CommentID(3), *res.ResumeCommentID)
	assert.Equal(t, 5, res.Stats.TotalComments)
	assert.Equal(t, 2, res.Stats.ReadCount)
	assert.Equal(t, 40, res.Stats.Percent)
}

func TestContinueThread_SetsBaselineOnFirstVisit(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := post(t, e.api.ContinueThread, body{"id": "t1", "comments": []string{"7", "3", "9"}})
	require.Equal(t, http.StatusOK, rr.Code)

	rec := e.stored(t, "t1")
	require.NotNil(t, rec.MaxSeenCommentID)
	assert.Equal(t, models.CommentID(9), *rec.MaxSeenCommentID)
}

func TestContinueThread_UnknownThread(t *testing.T) {
	e := newEnv(t)

	rr := post(t, e.api.ContinueThread, body{"id": "nope", "comments": comments})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "null", rr.Body.String())
}

func TestAcknowledgeNew_RaisesBaseline(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	post(t, e.api.ContinueThread, body{"id": "t1", "comments": []string{"1", "2"}})

	rr := post(t, e.api.AcknowledgeNew, body{"id": "t1", "comments": []string{"1", "2", "8"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.CommentID(8), *e.stored(t, "t1").MaxSeenCommentID)
}

func TestStats_CachesOnRecord(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 1})

	rr := post(t, e.api.Stats, body{"id": "t1", "comments": comments})
	require.Equal(t, http.StatusOK, rr.Code)

	stats := decode[models.ThreadStats](t, rr)
	assert.Equal(t, 5, stats.TotalComments)
	assert.Equal(t, 1, stats.ReadCount)
	assert.Equal(t, 20, stats.Percent)
	require.NotNil(t, e.stored(t, "t1").CachedStats)
}

// --- status / finish / reset ---

func TestSetStatus_FreezesProgress(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)
	post(t, e.api.MarkSeen, body{"id": "t1", "comments": comments, "commentId": 5})

	rr := post(t, e.api.SetStatus, body{"id": "t1", "status": "archived"})
	require.Equal(t, http.StatusOK, rr.Code)

	rec := e.stored(t, "t1")
	assert.Equal(t, models.StatusArchived, rec.Status)
	require.NotNil(t, rec.FrozenProgress)
	assert.Equal(t, 100, rec.FrozenProgress.Percent)
}

func TestSetStatus_Invalid(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	rr := post(t, e.api.SetStatus, body{"id": "t1", "status": "paused"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, models.StatusActive, e.stored(t, "t1").Status)
}

func TestFinishThread_FlushesOpenSessionsFirst(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	s, err := e.registry.Open(t.Context(), "t1", models.NewCommentSequence([]models.CommentID{1, 2, 3, 4}))
	require.NoError(t, err)
	require.NoError(t, s.Observe(1, true))
	require.NoError(t, s.Observe(2, true))
	e.clock.Advance(testDwell)
	require.Nil(t, e.stored(t, "t1").LastReadCommentID, "debounce has not elapsed yet")

	rr := post(t, e.api.FinishThread, body{"id": "t1"})
	require.Equal(t, http.StatusOK, rr.Code)

	rec := e.stored(t, "t1")
	assert.Equal(t, models.StatusFinished, rec.Status)
	assert.Equal(t, models.CommentID(2), *rec.LastReadCommentID)
	require.NotNil(t, rec.FrozenProgress)
	assert.Equal(t, 2, rec.FrozenProgress.ReadCount)
	assert.Equal(t, 1, e.metrics.FlushCount("finish"))
}

func TestResetThread_DropsSessionProgress(t *testing.T) {
	e := newEnv(t)
	e.save(t, "t1", 1)

	s, err := e.registry.Open(t.Context(), "t1", models.NewCommentSequence([]models.CommentID{1, 2, 3}))
	require.NoError(t, err)
	require.NoError(t, s.Observe(1, true))
	e.clock.Advance(testDwell)

	rr := post(t, e.api.ResetThread, body{"id": "t1"})
	require.Equal(t, http.StatusOK, rr.Code)

	rec := e.stored(t, "t1")
	assert.Nil(t, rec.LastReadCommentID)
	assert.True(t, rec.ReadCommentIDs.IsEmpty())

	// a later debounce must not resurrect the cleared progress
	e.clock.Advance(testDebounce * 2)
	assert.Nil(t, e.stored(t, "t1").LastReadCommentID)
	assert.False(t, s.Dirty())
}
