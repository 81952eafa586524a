package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ordernotify/internal/types"
)

// Dispatcher delivers messages through a PushSender. It never retries; each
// message gets exactly one send attempt.
type Dispatcher struct {
	sender  types.PushSender
	metrics NotificationMetrics
	clock   types.Clock
	limit   int
	logger  types.Logger
}

// NewDispatcher creates a Dispatcher with at most limit sends in flight.
func NewDispatcher(sender types.PushSender, metrics NotificationMetrics, clock types.Clock, limit int, logger types.Logger) *Dispatcher {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if limit <= 0 {
		limit = DefaultFanoutLimit
	}
	return &Dispatcher{
		sender:  sender,
		metrics: metrics,
		clock:   clock,
		limit:   limit,
		logger:  logger,
	}
}

// Dispatch sends every message concurrently and waits for all of them. The
// outcome slice is parallel to msgs. A failed send does not affect the
// others.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []*types.NotificationMessage) []DeliveryOutcome {
	outcomes := make([]DeliveryOutcome, len(msgs))

	var g errgroup.Group
	g.SetLimit(d.limit)

	for i, msg := range msgs {
		g.Go(func() error {
			outcomes[i] = d.send(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Broadcast sends a single topic message.
func (d *Dispatcher) Broadcast(ctx context.Context, msg *types.NotificationMessage) DeliveryOutcome {
	return d.send(ctx, msg)
}

func (d *Dispatcher) send(ctx context.Context, msg *types.NotificationMessage) DeliveryOutcome {
	outcome := DeliveryOutcome{
		Recipient: msg.Recipient,
		Class:     msg.Class,
		Target:    msg.Target.LogValue(),
	}
	kind := msg.Target.Kind()

	if err := msg.Validate(); err != nil {
		appErr := types.NewAppErrorWithDetails(types.ErrCodeDeliveryFailure, "message is not deliverable", err,
			map[string]any{"recipient": msg.Recipient, "target": outcome.Target})
		d.logger.Error("refusing to send invalid message",
			"recipient", msg.Recipient,
			"target", outcome.Target,
			"error", err.Error(),
		)
		d.metrics.RecordDelivery(ctx, kind, msg.Class, MetricFailed)
		return failedOutcome(outcome, appErr)
	}

	start := d.clock.Now()
	id, err := d.sender.Send(ctx, msg)
	outcome.Duration = d.clock.Now().Sub(start)
	d.metrics.RecordLatency(ctx, kind, outcome.Duration)

	if err != nil {
		appErr := types.NewAppErrorWithDetails(types.ErrCodeDeliveryFailure, "push send failed", err,
			map[string]any{"recipient": msg.Recipient, "target": outcome.Target})
		d.logger.Error("push delivery failed",
			"recipient", msg.Recipient,
			"class", string(msg.Class),
			"target", outcome.Target,
			"upstream_code", string(types.CodeOf(err)),
			"error", err.Error(),
		)
		d.metrics.RecordDelivery(ctx, kind, msg.Class, MetricFailed)
		return failedOutcome(outcome, appErr)
	}

	outcome.Status = types.DeliveryStatusSent
	outcome.DeliveryID = id
	d.logger.Info("push delivered",
		"recipient", msg.Recipient,
		"class", string(msg.Class),
		"target", outcome.Target,
		"delivery_id", id,
	)
	d.metrics.RecordDelivery(ctx, kind, msg.Class, MetricSuccess)
	return outcome
}

func failedOutcome(o DeliveryOutcome, err *types.AppError) DeliveryOutcome {
	o.Status = types.DeliveryStatusFailed
	o.Err = err
	o.Error = err.Error()
	return o
}
