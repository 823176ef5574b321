package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"threadmark/internal/backup"
	"threadmark/internal/providers"
	"time"
)

const maxBackupSize = 64 << 20 // 64 MB

type BackupController struct {
	logger providers.Logger
	engine backup.EngineInterface
	cache  providers.CacheProviderInterface
}

func NewBackupController(logger providers.Logger, engine backup.EngineInterface, cache providers.CacheProviderInterface) *BackupController {
	return &BackupController{
		logger: logger,
		engine: engine,
		cache:  cache,
	}
}

func (bc *BackupController) Export(w http.ResponseWriter, r *http.Request) {
	data, err := bc.engine.ExportJSON(r.Context())
	if err != nil {
		bc.logger.Errorf(providers.TypeGet, "Export failed: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	name := "threadmark-backup-" + strconv.FormatInt(time.Now().Unix(), 10) + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import answers 400 with the validation message for a rejected document.
func (bc *BackupController) Import(w http.ResponseWriter, r *http.Request) {
	mode, err := backup.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBackupSize))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	res, err := bc.engine.Import(r.Context(), data, mode)
	if errors.Is(err, backup.ErrInvalidBackup) {
		bc.logger.Warnf(providers.TypePost, "Import rejected: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		failPersistence(w, bc.logger, "Import", err)
		return
	}
	bc.cache.Del(threadsCacheKey)
	bc.logger.Infof(providers.TypePost, "Imported %d threads in %s mode", res.Imported, res.Mode)
	writeJSON(w, http.StatusOK, res)
}
