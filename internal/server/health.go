package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus tracks server health for the /health endpoint, adapted from
// main.go's HealthStatus to this subsystem's two dependencies: the storage
// provider and the search index.
type HealthStatus struct {
	mu            sync.RWMutex
	Status        string `json:"status"`
	Storage       string `json:"storage"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	startTime     time.Time
}

// NewHealthStatus returns a HealthStatus initialized to "ok".
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{Status: "ok", Storage: "connected", startTime: time.Now()}
}

// SetStorage updates the storage component's reported state.
func (h *HealthStatus) SetStorage(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Storage = status
	if status != "connected" {
		h.Status = "degraded"
	} else {
		h.Status = "ok"
	}
}

func (h *HealthStatus) toJSON() []byte {
	h.mu.Lock()
	h.UptimeSeconds = int64(time.Since(h.startTime).Seconds())
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	data, _ := json.Marshal(h)
	return data
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if s.health != nil {
		s.health.mu.RLock()
		degraded := s.health.Status != "ok"
		s.health.mu.RUnlock()
		if degraded {
			status = http.StatusServiceUnavailable
		}
	}
	w.WriteHeader(status)
	if s.health != nil {
		w.Write(s.health.toJSON())
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}
