package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component or service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health describes the health of an individual component.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// ServiceHealth describes the overall health of the service.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Components []Health     `json:"components,omitempty"`
}

// Probe is a named asynchronous health check. A nil return means healthy.
type Probe func(ctx context.Context) error

// HealthRegistry holds named probes and aggregates their results.
type HealthRegistry struct {
	service string
	timeout time.Duration

	mu     sync.Mutex
	probes map[string]Probe
}

// NewHealthRegistry creates a registry. timeout bounds each probe; zero
// defaults to 5 seconds.
func NewHealthRegistry(service string, timeout time.Duration) *HealthRegistry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthRegistry{
		service: service,
		timeout: timeout,
		probes:  make(map[string]Probe),
	}
}

// Register adds or replaces a named probe.
func (hr *HealthRegistry) Register(name string, probe Probe) {
	hr.mu.Lock()
	hr.probes[name] = probe
	hr.mu.Unlock()
}

// Check runs all probes concurrently, each bounded by the registry timeout,
// and aggregates the results. Any failing probe degrades the overall status
// to down.
func (hr *HealthRegistry) Check(ctx context.Context) ServiceHealth {
	hr.mu.Lock()
	names := make([]string, 0, len(hr.probes))
	probes := make(map[string]Probe, len(hr.probes))
	for name, p := range hr.probes {
		names = append(names, name)
		probes[name] = p
	}
	hr.mu.Unlock()
	sort.Strings(names)

	results := make([]Health, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string, probe Probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, hr.timeout)
			defer cancel()

			if err := probe(probeCtx); err != nil {
				results[i] = Health{Name: name, Status: HealthStatusDown, Message: err.Error()}
				return
			}
			results[i] = Health{Name: name, Status: HealthStatusUp}
		}(i, name, probes[name])
	}
	wg.Wait()

	sh := ServiceHealth{Service: hr.service, Status: HealthStatusUp, Components: results}
	for _, h := range results {
		if h.Status == HealthStatusDown {
			sh.Status = HealthStatusDown
			break
		}
	}
	return sh
}
