package controllers

import (
	"errors"
	json "github.com/goccy/go-json"
	"net/http"
	"threadmark/internal/models"
	"threadmark/internal/providers"
	"threadmark/internal/services"
	"threadmark/internal/tracker"
)

const threadsCacheKey = "threads"

type ApiController struct {
	logger   providers.Logger
	service  services.ProgressServiceInterface
	registry tracker.RegistryInterface
	cache    providers.CacheProviderInterface
	metrics  providers.MetricsProviderInterface
}

func NewApiController(logger providers.Logger, service services.ProgressServiceInterface, registry tracker.RegistryInterface, cache providers.CacheProviderInterface, metrics providers.MetricsProviderInterface) *ApiController {
	return &ApiController{
		logger:   logger,
		service:  service,
		registry: registry,
		cache:    cache,
		metrics:  metrics,
	}
}

// threadCommand is the body shared by the thread commands. Comments is the
// current rendering, in order, as raw identifiers.
type threadCommand struct {
	ID           string   `json:"id"`
	Comments     []string `json:"comments"`
	CommentID    any      `json:"commentId"`
	CurrentlyNew []uint64 `json:"currentlyNew"`
	Status       string   `json:"status"`
}

func (c *threadCommand) sequence() *models.CommentSequence {
	return models.SequenceFromSnapshot(c.Comments)
}

func (c *threadCommand) currentlyNew() *models.IDSet {
	if c.CurrentlyNew == nil {
		return nil
	}
	set := models.NewIDSet()
	for _, id := range c.CurrentlyNew {
		set.Add(models.CommentID(id))
	}
	return set
}

type markResponse struct {
	Record   *models.ThreadProgressRecord `json:"record"`
	Applied  bool                         `json:"applied"`
	Advanced bool                         `json:"advanced"`
}

func (ac *ApiController) decodeCommand(w http.ResponseWriter, r *http.Request) (*threadCommand, bool) {
	var cmd threadCommand
	if err := decodeBody(w, r, maxRequestBodySize, &cmd); err != nil || cmd.ID == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return nil, false
	}
	return &cmd, true
}

func (ac *ApiController) invalidate() {
	ac.cache.Del(threadsCacheKey)
	ac.metrics.SetThreads(ac.service.Count())
}

func (ac *ApiController) ListThreads(w http.ResponseWriter, r *http.Request) {
	if data, ok := ac.cache.Get(threadsCacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	list, err := ac.service.List(r.Context())
	if err != nil {
		ac.logger.Errorf(providers.TypeGet, "List threads failed: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	gson, err := json.Marshal(list)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	ac.cache.Set(threadsCacheKey, gson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func (ac *ApiController) GetThread(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	rec, err := ac.service.Get(r.Context(), id)
	if err != nil {
		ac.logger.Errorf(providers.TypeGet, "Get thread %s failed: %v", id, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (ac *ApiController) SaveThread(w http.ResponseWriter, r *http.Request) {
	var identity models.Identity
	if err := decodeBody(w, r, maxRequestBodySize, &identity); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	rec, err := ac.service.Upsert(r.Context(), identity)
	if errors.Is(err, services.ErrInvalidIdentity) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		failPersistence(w, ac.logger, "Save thread "+identity.ID, err)
		return
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, rec)
}

func (ac *ApiController) RemoveThread(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	if err := ac.service.Remove(r.Context(), cmd.ID); err != nil {
		failPersistence(w, ac.logger, "Remove thread "+cmd.ID, err)
		return
	}
	ac.registry.ClearThread(cmd.ID)
	ac.invalidate()
	writeJSON(w, http.StatusOK, nil)
}

func (ac *ApiController) ContinueThread(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	res, err := ac.service.Continue(r.Context(), cmd.ID, cmd.sequence())
	if err != nil {
		failPersistence(w, ac.logger, "Continue thread "+cmd.ID, err)
		return
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, res)
}

// FinishThread flushes open sessions first so their progress lands in the frozen snapshot.
func (ac *ApiController) FinishThread(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	if err := ac.registry.FlushThread(r.Context(), cmd.ID, tracker.FlushFinish); err != nil {
		failPersistence(w, ac.logger, "Finish thread "+cmd.ID, err)
		return
	}
	rec, err := ac.service.SetStatus(r.Context(), cmd.ID, models.StatusFinished)
	if err != nil {
		failPersistence(w, ac.logger, "Finish thread "+cmd.ID, err)
		return
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, rec)
}

func (ac *ApiController) MarkSeen(w http.ResponseWriter, r *http.Request) {
	ac.mark(w, r, "Mark seen")
}

func (ac *ApiController) MarkToHere(w http.ResponseWriter, r *http.Request) {
	ac.mark(w, r, "Mark to here")
}

func (ac *ApiController) mark(w http.ResponseWriter, r *http.Request, action string) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	trigger, ok := commentIDFrom(cmd.CommentID)
	if !ok {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	rec, res, err := ac.service.Advance(r.Context(), cmd.ID, cmd.sequence(), trigger, cmd.currentlyNew())
	if err != nil {
		failPersistence(w, ac.logger, action+" on thread "+cmd.ID, err)
		return
	}
	switch {
	case rec == nil || !res.Applied:
		ac.metrics.IncCheckpointActions("stale")
		ac.logger.Debugf(providers.TypePost, "%s ignored: comment %d not in thread %s", action, trigger, cmd.ID)
	case res.Advanced:
		ac.metrics.IncCheckpointActions("advanced")
	default:
		ac.metrics.IncCheckpointActions("acknowledged")
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, markResponse{Record: rec, Applied: res.Applied, Advanced: res.Advanced})
}

func (ac *ApiController) AcknowledgeNew(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	rec, err := ac.service.AcknowledgeNew(r.Context(), cmd.ID, cmd.sequence())
	if err != nil {
		failPersistence(w, ac.logger, "Acknowledge new on thread "+cmd.ID, err)
		return
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, rec)
}

// ResetThread flushes open sessions, clears the stored progress, then drops
// the sessions' local progress so it cannot be flushed back.
func (ac *ApiController) ResetThread(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	if err := ac.registry.FlushThread(r.Context(), cmd.ID, tracker.FlushReset); err != nil {
		failPersistence(w, ac.logger, "Reset thread "+cmd.ID, err)
		return
	}
	rec, err := ac.service.Reset(r.Context(), cmd.ID)
	if err != nil {
		failPersistence(w, ac.logger, "Reset thread "+cmd.ID, err)
		return
	}
	ac.registry.ClearThread(cmd.ID)
	ac.invalidate()
	writeJSON(w, http.StatusOK, rec)
}

func (ac *ApiController) SetStatus(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	rec, err := ac.service.SetStatus(r.Context(), cmd.ID, models.Status(cmd.Status))
	if errors.Is(err, services.ErrInvalidStatus) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		failPersistence(w, ac.logger, "Set status on thread "+cmd.ID, err)
		return
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, rec)
}

func (ac *ApiController) Stats(w http.ResponseWriter, r *http.Request) {
	cmd, ok := ac.decodeCommand(w, r)
	if !ok {
		return
	}
	stats, err := ac.service.Stats(r.Context(), cmd.ID, cmd.sequence())
	if err != nil {
		failPersistence(w, ac.logger, "Stats for thread "+cmd.ID, err)
		return
	}
	ac.invalidate()
	writeJSON(w, http.StatusOK, stats)
}
