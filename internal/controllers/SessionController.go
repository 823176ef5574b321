package controllers

import (
	"errors"
	"net/http"
	"threadmark/internal/models"
	"threadmark/internal/providers"
	"threadmark/internal/tracker"
)

const maxEventsPerRequest = 1000

type SessionController struct {
	logger   providers.Logger
	registry tracker.RegistryInterface
	cache    providers.CacheProviderInterface
}

func NewSessionController(logger providers.Logger, registry tracker.RegistryInterface, cache providers.CacheProviderInterface) *SessionController {
	return &SessionController{
		logger:   logger,
		registry: registry,
		cache:    cache,
	}
}

type openRequest struct {
	ThreadID string   `json:"threadId"`
	Comments []string `json:"comments"`
}

type openResponse struct {
	SessionID string `json:"sessionId"`
	Comments  int    `json:"comments"`
}

type visibilityEvent struct {
	CommentID any  `json:"commentId"`
	Visible   bool `json:"visible"`
}

type observeRequest struct {
	SessionID string            `json:"sessionId"`
	Events    []visibilityEvent `json:"events"`
}

type observeResponse struct {
	Accepted int `json:"accepted"`
	Ignored  int `json:"ignored"`
}

type closeRequest struct {
	SessionID string `json:"sessionId"`
	// Hide flushes without closing, for a page that may become visible again.
	Hide bool `json:"hide"`
}

// Open starts tracking a thread view. Unsaved threads answer null.
func (sc *SessionController) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeBody(w, r, maxRequestBodySize, &req); err != nil || req.ThreadID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	seq := models.SequenceFromSnapshot(req.Comments)
	s, err := sc.registry.Open(r.Context(), req.ThreadID, seq)
	if err != nil {
		sc.logger.Errorf(providers.TypePost, "Open session for thread %s failed: %v", req.ThreadID, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if s == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, openResponse{SessionID: s.ID(), Comments: seq.Len()})
}

func (sc *SessionController) Observe(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if err := decodeBody(w, r, maxRequestBodySize, &req); err != nil || req.SessionID == "" || len(req.Events) > maxEventsPerRequest {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	s := sc.registry.Get(req.SessionID)
	if s == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	var resp observeResponse
	for _, ev := range req.Events {
		id, ok := commentIDFrom(ev.CommentID)
		if !ok {
			resp.Ignored++
			continue
		}
		if err := s.Observe(id, ev.Visible); err != nil {
			if errors.Is(err, tracker.ErrSessionClosed) {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			resp.Ignored++
			continue
		}
		resp.Accepted++
	}
	writeJSON(w, http.StatusOK, resp)
}

// Close is the page-hide signal: progress is flushed immediately.
func (sc *SessionController) Close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decodeBody(w, r, maxRequestBodySize, &req); err != nil || req.SessionID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var err error
	if req.Hide {
		if s := sc.registry.Get(req.SessionID); s != nil {
			err = s.Hide(r.Context())
		}
	} else {
		err = sc.registry.Close(r.Context(), req.SessionID)
	}
	if err != nil && !errors.Is(err, tracker.ErrSessionClosed) {
		failPersistence(w, sc.logger, "Flush session "+req.SessionID, err)
		return
	}
	sc.cache.Del(threadsCacheKey)
	writeJSON(w, http.StatusOK, nil)
}
