package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports engine liveness over HTTP.
type HealthChecker struct {
	mu        sync.RWMutex
	lastCycle time.Time
	equity    float64
	halted    bool
	errors    []string
}

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LastCycle time.Time `json:"last_cycle"`
	Equity    float64   `json:"equity"`
	Halted    bool      `json:"halted"`
	Uptime    string    `json:"uptime"`
	Errors    []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// CycleCompleted records a finished cycle and the resulting equity.
func (h *HealthChecker) CycleCompleted(at time.Time, equity float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = at
	h.equity = equity
}

// SetHalted flags the engine as halted after a state inconsistency.
func (h *HealthChecker) SetHalted(halted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = halted
}

// RecordError appends to the rolling error list, keeping the last ten.
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if h.halted {
		status = "halted"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else if len(h.errors) > 0 {
		status = "degraded"
	}

	health := HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		LastCycle: h.lastCycle,
		Equity:    h.equity,
		Halted:    h.halted,
		Uptime:    time.Since(startTime).String(),
		Errors:    h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
