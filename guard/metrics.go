package guard

import (
	"context"
	"time"
)

// MetricsSink receives resilience events. The guard layer only emits; any
// aggregation happens in the sink.
type MetricsSink interface {
	// RecordCall reports one underlying invocation of a guarded operation.
	RecordCall(ctx context.Context, operation string, success bool, duration time.Duration)
	// RecordRejection reports a fast-fail rejection ("rate_limited" or
	// "circuit_open") that never reached the operation.
	RecordRejection(ctx context.Context, operation string, kind string)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) RecordCall(context.Context, string, bool, time.Duration) {}

func (NopMetrics) RecordRejection(context.Context, string, string) {}
