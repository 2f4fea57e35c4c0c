package scheduler

import (
	"slices"
	"sync"
	"time"
)

// Components tracked by the scheduler.
const (
	ComponentPublisher = "publisher"
	ComponentStore     = "store"
	ComponentDispatch  = "dispatch"
)

// HealthStatus represents the health of a component.
type HealthStatus struct {
	Healthy     bool
	LastCheck   time.Time
	LastSuccess time.Time
	LastError   error
	Message     string
}

// Health tracks the health of the scheduler's components.
type Health struct {
	mu         sync.RWMutex
	components map[string]*HealthStatus
}

// NewHealth creates a new health tracker.
func NewHealth() *Health {
	return &Health{
		components: make(map[string]*HealthStatus),
	}
}

// update applies fn to the named component, creating it if needed.
func (h *Health) update(component string, fn func(s *HealthStatus, now time.Time)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.components[component]
	if !ok {
		s = &HealthStatus{}
		h.components[component] = s
	}
	fn(s, time.Now())
}

// SetHealthy marks a component as healthy.
func (h *Health) SetHealthy(component, message string) {
	h.update(component, func(s *HealthStatus, now time.Time) {
		s.Healthy = true
		s.LastCheck = now
		s.LastSuccess = now
		s.LastError = nil
		s.Message = message
	})
}

// SetUnhealthy marks a component as unhealthy. LastSuccess is kept.
func (h *Health) SetUnhealthy(component string, err error) {
	h.update(component, func(s *HealthStatus, now time.Time) {
		s.Healthy = false
		s.LastCheck = now
		s.LastError = err
		s.Message = err.Error()
	})
}

// GetStatus returns a copy of a component's status, or nil if unknown.
func (h *Health) GetStatus(component string) *HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if s, ok := h.components[component]; ok {
		c := *s
		return &c
	}
	return nil
}

// Unhealthy returns the sorted names of unhealthy components.
func (h *Health) Unhealthy() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var names []string
	for name, s := range h.components {
		if !s.Healthy {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// IsOverallHealthy returns true if all components are healthy.
func (h *Health) IsOverallHealthy() bool {
	return len(h.Unhealthy()) == 0
}
