package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"threadmark/internal/backup"
	"threadmark/internal/models"
	"threadmark/internal/services"
	"threadmark/internal/structures"
	"threadmark/internal/testutil"
	"threadmark/internal/tracker"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

const (
	testDwell    = 1500 * time.Millisecond
	testDebounce = 2 * time.Second
)

type env struct {
	store    *testutil.MockStore
	cache    *testutil.MockCache
	metrics  *testutil.MockMetrics
	logger   *testutil.MockLogger
	clock    *testutil.FakeClock
	service  services.ProgressServiceInterface
	registry tracker.RegistryInterface
	api      *ApiController
	sessions *SessionController
	backups  *BackupController
	health   *HealthController
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conf := &structures.Config{
		Storage: structures.StorageConfig{Driver: "memory", Key: "threadsById"},
		Tracker: structures.TrackerConfig{
			DwellTime:     testDwell,
			FlushDebounce: testDebounce,
			SweepInterval: 30 * time.Second,
			IdleTimeout:   10 * time.Minute,
		},
	}
	e := &env{
		store:   testutil.NewMockStore(),
		cache:   testutil.NewMockCache(),
		metrics: testutil.NewMockMetrics(),
		logger:  &testutil.MockLogger{},
		clock:   testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	e.service = services.NewProgressService(conf, e.store)
	e.registry = tracker.NewRegistry(conf, e.service, e.clock, e.logger, e.metrics)
	e.api = NewApiController(e.logger, e.service, e.registry, e.cache, e.metrics)
	e.sessions = NewSessionController(e.logger, e.registry, e.cache)
	e.backups = NewBackupController(e.logger, backup.NewEngine(e.service), e.cache)
	e.health = NewHealthController(e.service, e.registry)
	return e
}

func (e *env) save(t *testing.T, id string, addedAt int64) {
	t.Helper()
	_, err := e.service.Upsert(context.Background(), models.Identity{ID: id, Title: "Thread " + id, URL: "https://news.example/item?id=" + id, AddedAt: addedAt})
	require.NoError(t, err)
}

func (e *env) stored(t *testing.T, id string) *models.ThreadProgressRecord {
	t.Helper()
	rec, err := e.service.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func post(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func get(handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

type body map[string]any
