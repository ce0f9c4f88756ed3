package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zsiec/avwrap/pkg/version"
)

// Response is the body of the /health endpoint.
type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]*Check `json:"checks,omitempty"`

	CodecEngines  []string `json:"codec_engines"`
	FormatEngines []string `json:"format_engines"`
}

type statusResponse struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler serves the health endpoints.
type Handler struct {
	manager   *Manager
	startTime time.Time
}

// NewHandler creates a new health check handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{
		manager:   manager,
		startTime: time.Now(),
	}
}

// HandleHealth runs every check and reports the results. Degraded still
// answers 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := h.manager.RunChecks(ctx)
	overall := h.manager.GetOverallStatus()
	info := version.GetInfo()

	h.writeJSON(w, statusCode(overall), Response{
		Status:        overall,
		Timestamp:     time.Now(),
		Version:       info.Version,
		Uptime:        formatUptime(time.Since(h.startTime)),
		Checks:        checks,
		CodecEngines:  info.CodecEngines,
		FormatEngines: info.FormatEngines,
	})
}

// HandleReady reports the status of the last check run without running new
// checks.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	overall := h.manager.GetOverallStatus()
	h.writeJSON(w, statusCode(overall), statusResponse{Status: overall, Timestamp: time.Now()})
}

// HandleLive always answers while the process serves requests.
func (h *Handler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "alive", Timestamp: time.Now()})
}

func statusCode(s Status) int {
	if s == StatusDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// formatUptime renders d as "2 days 6 hours 30 minutes 15 seconds", leaving
// out leading zero units.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	return formatDuration(total/86400, total/3600%24, total/60%60, total%60)
}

func formatDuration(days, hours, minutes, seconds int) string {
	var parts []string
	for _, u := range []struct {
		n    int
		name string
	}{{days, "day"}, {hours, "hour"}, {minutes, "minute"}} {
		if u.n > 0 {
			parts = append(parts, formatUnit(u.n, u.name))
		}
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, formatUnit(seconds, "second"))
	}
	return strings.Join(parts, " ")
}

func formatUnit(value int, unit string) string {
	if value == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", value, unit)
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.manager.logger.WithError(err).Error("Failed to encode health response")
	}
}
