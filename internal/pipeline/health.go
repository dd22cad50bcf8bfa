package pipeline

import (
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a program's runs.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"

	// DefaultUnhealthyThreshold is the number of consecutive failed runs
	// before a program is considered unhealthy.
	DefaultUnhealthyThreshold = 1

	// DefaultDegradedLatencyThreshold is the P95 run latency above which a
	// program is considered degraded.
	DefaultDegradedLatencyThreshold = 2 * time.Minute

	latencyWindowSize = 10
)

// ProgramHealth tracks the run outcomes of one program.
type ProgramHealth struct {
	mu                       sync.RWMutex
	program                  string
	status                   HealthStatus
	consecutiveFailures      int
	lastSuccessAt            *time.Time
	lastFailureAt            *time.Time
	lastError                string
	unhealthyThreshold       int
	recentLatencies          []time.Duration
	degradedLatencyThreshold time.Duration
	nowFn                    func() time.Time
}

func NewProgramHealth(program string, unhealthyThreshold int) *ProgramHealth {
	if unhealthyThreshold <= 0 {
		unhealthyThreshold = DefaultUnhealthyThreshold
	}
	return &ProgramHealth{
		program:                  program,
		status:                   HealthStatusUnknown,
		unhealthyThreshold:       unhealthyThreshold,
		recentLatencies:          make([]time.Duration, 0, latencyWindowSize),
		degradedLatencyThreshold: DefaultDegradedLatencyThreshold,
		nowFn:                    time.Now,
	}
}

// RecordSuccess records a successful run and returns true if it is a
// recovery from the unhealthy state.
func (h *ProgramHealth) RecordSuccess(latency time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowFn()
	wasUnhealthy := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &now
	h.lastError = ""
	h.recordLatency(latency)
	if h.isLatencyDegraded() {
		h.status = HealthStatusDegraded
	} else {
		h.status = HealthStatusHealthy
	}
	return wasUnhealthy
}

// RecordFailure records a failed run. Returns true if the program
// transitioned to unhealthy on this call.
func (h *ProgramHealth) RecordFailure(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.nowFn()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	if err != nil {
		h.lastError = err.Error()
	}
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		return true
	}
	return false
}

// Must be called with mu held.
func (h *ProgramHealth) recordLatency(d time.Duration) {
	if len(h.recentLatencies) >= latencyWindowSize {
		h.recentLatencies = h.recentLatencies[1:]
	}
	h.recentLatencies = append(h.recentLatencies, d)
}

// Must be called with mu held.
func (h *ProgramHealth) isLatencyDegraded() bool {
	if len(h.recentLatencies) < 2 {
		return false
	}
	return h.percentileLatency(95) > h.degradedLatencyThreshold
}

// Must be called with mu held.
func (h *ProgramHealth) percentileLatency(pct int) time.Duration {
	n := len(h.recentLatencies)
	if n == 0 {
		return 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, h.recentLatencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (pct*n - 1) / 100
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func (h *ProgramHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Program:             h.program,
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
		LastError:           h.lastError,
	}
}

// HealthSnapshot is a point-in-time view of program health (JSON-safe).
type HealthSnapshot struct {
	Program             string     `json:"program"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}

// HealthRegistry holds one ProgramHealth per program seen.
type HealthRegistry struct {
	mu                 sync.Mutex
	programs           map[string]*ProgramHealth
	unhealthyThreshold int
}

func NewHealthRegistry(unhealthyThreshold int) *HealthRegistry {
	return &HealthRegistry{
		programs:           make(map[string]*ProgramHealth),
		unhealthyThreshold: unhealthyThreshold,
	}
}

func (r *HealthRegistry) Get(program string) *ProgramHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.programs[program]
	if !ok {
		h = NewProgramHealth(program, r.unhealthyThreshold)
		r.programs[program] = h
	}
	return h
}

// Snapshots returns every program's health sorted by program.
func (r *HealthRegistry) Snapshots() []HealthSnapshot {
	r.mu.Lock()
	programs := make([]*ProgramHealth, 0, len(r.programs))
	for _, h := range r.programs {
		programs = append(programs, h)
	}
	r.mu.Unlock()

	out := make([]HealthSnapshot, 0, len(programs))
	for _, h := range programs {
		out = append(out, h.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Program < out[j].Program })
	return out
}
