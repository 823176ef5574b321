package controllers

import (
	"fmt"
	json "github.com/goccy/go-json"
	"net/http"
	"threadmark/internal/services"
	"threadmark/internal/tracker"
	"time"
)

type HealthController struct {
	service   services.ProgressServiceInterface
	registry  tracker.RegistryInterface
	startTime time.Time
}

type healthResponse struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Threads        int     `json:"threads"`
	OpenSessions   int     `json:"open_sessions"`
	SessionsOpened int64   `json:"sessions_opened"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	opened, _ := hc.registry.Stats()
	resp := healthResponse{
		Status:         "ok",
		Uptime:         formatDuration(uptime),
		UptimeSeconds:  uptime.Seconds(),
		Threads:        hc.service.Count(),
		OpenSessions:   hc.registry.Len(),
		SessionsOpened: opened,
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(service services.ProgressServiceInterface, registry tracker.RegistryInterface) *HealthController {
	return &HealthController{
		service:   service,
		registry:  registry,
		startTime: time.Now(),
	}
}
