package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the response of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// Metrics is the response of GET /metrics.
type Metrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Cyclers       CyclerMetrics  `json:"cyclers"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// CyclerMetrics summarises controller state.
type CyclerMetrics struct {
	Total        int `json:"total"`
	Persistent   int `json:"persistent"`
	SavePending  int `json:"save_pending"`
	ApplyPending int `json:"apply_pending"`
	Restored     int `json:"restored"`
}

// handleHealth answers 200 when every component is healthy and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: s.version}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > 0 {
		resp.Components = make(map[string]string, len(names))
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()

		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = err.Error()
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := Metrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
	}
	for _, c := range s.controllers.List() {
		snap := c.Snapshot()
		m.Cyclers.Total++
		if snap.Persist {
			m.Cyclers.Persistent++
		}
		if snap.SavePending {
			m.Cyclers.SavePending++
		}
		if snap.ApplyPending {
			m.Cyclers.ApplyPending++
		}
		if snap.Restored {
			m.Cyclers.Restored++
		}
	}
	writeJSON(w, http.StatusOK, m)
}
