package observability

import (
	"sync"
	"time"
)

// OperationStats aggregates outcomes for one guarded operation.
type OperationStats struct {
	Calls         int64   `json:"calls"`
	Successes     int64   `json:"successes"`
	Failures      int64   `json:"failures"`
	RateLimited   int64   `json:"rate_limited"`
	CircuitOpen   int64   `json:"circuit_open"`
	TotalSeconds  float64 `json:"total_seconds"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

// counterSet keeps in-process aggregates for the admin metrics endpoint.
type counterSet struct {
	mu    sync.Mutex
	stats map[string]*OperationStats
}

func newCounterSet() *counterSet {
	return &counterSet{stats: make(map[string]*OperationStats)}
}

func (cs *counterSet) get(operation string) *OperationStats {
	st, ok := cs.stats[operation]
	if !ok {
		st = &OperationStats{}
		cs.stats[operation] = st
	}
	return st
}

func (cs *counterSet) recordCall(operation string, success bool, duration time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	st := cs.get(operation)
	st.Calls++
	if success {
		st.Successes++
	} else {
		st.Failures++
	}
	st.TotalSeconds += duration.Seconds()
	st.AvgDurationMS = st.TotalSeconds / float64(st.Calls) * 1000
}

func (cs *counterSet) recordRejection(operation, kind string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	st := cs.get(operation)
	switch kind {
	case "rate_limited":
		st.RateLimited++
	case "circuit_open":
		st.CircuitOpen++
	}
}

func (cs *counterSet) snapshot() map[string]OperationStats {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := make(map[string]OperationStats, len(cs.stats))
	for op, st := range cs.stats {
		out[op] = *st
	}
	return out
}

func (cs *counterSet) reset() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.stats = make(map[string]*OperationStats)
}
