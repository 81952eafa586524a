package app

import (
	"context"
	"errors"
	"fmt"

	"ordernotify/internal/events"
	"ordernotify/internal/notifications/core"
	"ordernotify/internal/types"
)

// Transport names, used as the metrics trigger dimension and as the
// dead-letter source attribute.
const (
	TriggerSQS    = "sqs"
	TriggerPubSub = "pubsub"
	TriggerHTTP   = "http"
)

// Processor runs one notification cycle. *core.OrderNotifier implements it.
type Processor interface {
	Process(ctx context.Context, event types.OrderEvent) (*core.CycleReport, error)
}

// EventHandler is the transport-independent part of event handling: decode,
// run the cycle, and forward rejected events to the dead-letter sink.
//
// Transports acknowledge an event when the returned error is nil or
// Permanent, and redeliver it otherwise (notably on record_update_failure).
type EventHandler struct {
	processor Processor
	decoder   *events.Decoder
	dlq       types.DeadLetterSink
	metrics   core.NotificationMetrics
	clock     types.Clock
	trigger   string
	logger    types.Logger
}

// NewEventHandler creates an EventHandler for one transport.
func NewEventHandler(
	processor Processor,
	dlq types.DeadLetterSink,
	metrics core.NotificationMetrics,
	clock types.Clock,
	trigger string,
	logger types.Logger,
) *EventHandler {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &EventHandler{
		processor: processor,
		decoder:   events.NewDecoder(),
		dlq:       dlq,
		metrics:   metrics,
		clock:     clock,
		trigger:   trigger,
		logger:    logger.With("trigger", trigger),
	}
}

// HandleBody decodes a raw transport body and handles the event. The report
// is nil when the body could not be decoded; undecodable bodies are not
// dead-lettered since there is no event to forward.
func (h *EventHandler) HandleBody(ctx context.Context, body []byte, meta events.Meta) (*core.CycleReport, error) {
	event, err := h.decoder.Decode(body, meta)
	if err != nil {
		h.logger.Error("discarding undecodable order event",
			"event_id", meta.EventID,
			"code", string(types.CodeOf(err)),
			"error", err.Error(),
		)
		return nil, err
	}
	return h.Handle(ctx, event)
}

// Handle runs the notification cycle for a decoded event.
func (h *EventHandler) Handle(ctx context.Context, event types.OrderEvent) (*core.CycleReport, error) {
	if !event.OccurredAt.IsZero() {
		h.metrics.RecordEventLag(ctx, h.trigger, h.clock.Now().Sub(event.OccurredAt))
	}

	report, err := h.processor.Process(ctx, event)
	if err == nil {
		return report, nil
	}

	if Permanent(err) && h.dlq != nil {
		if dlqErr := h.dlq.Publish(ctx, event, err); dlqErr != nil {
			// Not permanent, so the transport redelivers rather than lose the event.
			return report, fmt.Errorf("forward rejected order %s: %w", event.OrderID, dlqErr)
		}
		h.logger.Warn("order event forwarded to dead-letter queue",
			"order_id", event.OrderID,
			"event_id", event.EventID,
			"code", string(types.CodeOf(err)),
		)
	}
	return report, err
}

// Permanent reports whether err means the event can never be notified, so
// redelivering it is pointless.
func Permanent(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Code {
	case types.ErrCodeMalformedOrder, types.ErrCodeValidationMissingID, types.ErrCodeValidationPayload:
		return true
	default:
		return false
	}
}
