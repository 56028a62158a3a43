// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package embedding

import (
	"sync"
	"time"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// DefaultHealthCooldown is how long a provider reports unavailable after
// its most recent failure.
const DefaultHealthCooldown = 30 * time.Second

// HealthStatus is a point-in-time snapshot of provider health.
type HealthStatus struct {
	Available           bool       `json:"available"`
	FailureCount        int64      `json:"failure_count"`
	ConsecutiveFailures int64      `json:"consecutive_failures,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
}

// HealthTracker records embed outcomes for GET /health. After a failure the
// provider reports unavailable until a call succeeds or the cooldown since
// the last failure elapses. Health is advisory: callers still attempt
// every embed.
type HealthTracker struct {
	cooldown time.Duration

	mu          sync.RWMutex
	now         func() time.Time
	failures    int64
	consecutive int64
	lastFailure time.Time
	lastErr     string
}

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, tserr.Errorf(tserr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{cooldown: cooldown, now: time.Now}, nil
}

// coolingLocked reports whether the tracker is inside a failure cooldown.
// Caller holds h.mu.
func (h *HealthTracker) coolingLocked() bool {
	return h.consecutive > 0 && h.now().Sub(h.lastFailure) < h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.coolingLocked()
}

// RecordSuccess ends any cooldown.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.consecutive = 0
	h.mu.Unlock()
}

// RecordFailure starts a cooldown. err may be nil.
func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.failures++
	h.consecutive++
	h.lastFailure = h.now()
	if err != nil {
		h.lastErr = err.Error()
	}
}

// SetNowFunc overrides the clock. Tests only.
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.now = fn
	h.mu.Unlock()
}

// Status returns a snapshot that holds no references to tracker state.
func (h *HealthTracker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := HealthStatus{
		Available:           !h.coolingLocked(),
		FailureCount:        h.failures,
		ConsecutiveFailures: h.consecutive,
		LastError:           h.lastErr,
	}
	if h.failures > 0 {
		at := h.lastFailure
		s.LastFailureAt = &at
	}
	if h.consecutive > 0 {
		until := h.lastFailure.Add(h.cooldown)
		s.CooldownUntil = &until
	}
	return s
}
