// Package core implements the order notification cycle: resolve the farmers
// on an order, look up their device tokens, build messages with the
// configured strategies, fan the sends out, and record delivery on the
// order.
package core

import (
	"context"
	"time"

	"ordernotify/internal/types"
)

// MetricResult categorizes a delivery outcome for metrics reporting.
type MetricResult string

const (
	MetricSuccess MetricResult = "success"
	MetricFailed  MetricResult = "failed"
)

// CycleResult categorizes how a processing cycle ended.
type CycleResult string

const (
	CycleNotified     CycleResult = "notified"
	CycleSkipped      CycleResult = "skipped"
	CycleMalformed    CycleResult = "malformed"
	CycleRecordFailed CycleResult = "record_failed"
)

// NotificationMetrics abstracts telemetry for the notifier. Implementations
// must not return errors; a metrics outage never affects delivery.
type NotificationMetrics interface {
	RecordDelivery(ctx context.Context, target types.TargetKind, class types.RecipientClass, result MetricResult)
	RecordLatency(ctx context.Context, target types.TargetKind, duration time.Duration)
	RecordUnreachable(ctx context.Context, count int)
	RecordCycle(ctx context.Context, result CycleResult, duration time.Duration)
	RecordEventLag(ctx context.Context, trigger string, lag time.Duration)
}

// Recipients is the output of the Recipient Resolver.
type Recipients struct {
	FarmerIDs []string
	BuyerName string
}

// TokenResult is the outcome of one farmer token lookup. Found is false when
// the farmer has no record or no registered device; Err is set only when the
// read itself failed.
type TokenResult struct {
	FarmerID string
	Token    string
	Found    bool
	Err      error
}

// DeliveryOutcome is the result of one push send.
type DeliveryOutcome struct {
	Recipient  string               `json:"recipient"`
	Class      types.RecipientClass `json:"class"`
	Target     string               `json:"target"`
	Status     types.DeliveryStatus `json:"status"`
	DeliveryID string               `json:"delivery_id,omitempty"`
	Err        error                `json:"-"`
	Error      string               `json:"error,omitempty"`
	Duration   time.Duration        `json:"duration_ns"`
}

// CycleReport summarizes one processing cycle.
type CycleReport struct {
	OrderID     string            `json:"order_id"`
	CycleID     string            `json:"cycle_id"`
	Skipped     bool              `json:"skipped,omitempty"`
	FarmerIDs   []string          `json:"farmer_ids,omitempty"`
	Unreachable []string          `json:"unreachable,omitempty"`
	Outcomes    []DeliveryOutcome `json:"outcomes,omitempty"`
	Recorded    bool              `json:"recorded"`
}

// Failed returns the outcomes whose send failed.
func (r *CycleReport) Failed() []DeliveryOutcome {
	var failed []DeliveryOutcome
	for _, o := range r.Outcomes {
		if o.Status == types.DeliveryStatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// NopMetrics discards all metrics.
type NopMetrics struct{}

var _ NotificationMetrics = NopMetrics{}

func (NopMetrics) RecordDelivery(context.Context, types.TargetKind, types.RecipientClass, MetricResult) {
}
func (NopMetrics) RecordLatency(context.Context, types.TargetKind, time.Duration) {}
func (NopMetrics) RecordUnreachable(context.Context, int)                         {}
func (NopMetrics) RecordCycle(context.Context, CycleResult, time.Duration)        {}
func (NopMetrics) RecordEventLag(context.Context, string, time.Duration)          {}

// MultiMetrics fans every call out to each wrapped implementation.
type MultiMetrics []NotificationMetrics

var _ NotificationMetrics = MultiMetrics(nil)

func (m MultiMetrics) RecordDelivery(ctx context.Context, target types.TargetKind, class types.RecipientClass, result MetricResult) {
	for _, mm := range m {
		mm.RecordDelivery(ctx, target, class, result)
	}
}

func (m MultiMetrics) RecordLatency(ctx context.Context, target types.TargetKind, d time.Duration) {
	for _, mm := range m {
		mm.RecordLatency(ctx, target, d)
	}
}

func (m MultiMetrics) RecordUnreachable(ctx context.Context, count int) {
	for _, mm := range m {
		mm.RecordUnreachable(ctx, count)
	}
}

func (m MultiMetrics) RecordCycle(ctx context.Context, result CycleResult, d time.Duration) {
	for _, mm := range m {
		mm.RecordCycle(ctx, result, d)
	}
}

func (m MultiMetrics) RecordEventLag(ctx context.Context, trigger string, lag time.Duration) {
	for _, mm := range m {
		mm.RecordEventLag(ctx, trigger, lag)
	}
}
