package core

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ordernotify/internal/types"
)

// NotifierConfig holds the collaborators and settings of an OrderNotifier.
type NotifierConfig struct {
	Store    types.DocumentStore
	Sender   types.PushSender
	Builders []MessageBuilder
	Metrics  NotificationMetrics
	Clock    types.Clock
	Logger   types.Logger

	OrdersCollection  string
	FarmersCollection string
	BuyersCollection  string

	FanoutLimit int
	// SkipAlreadyNotified makes the cycle a no-op when the order is already
	// marked notified, either in the event snapshot or in the stored order.
	SkipAlreadyNotified bool

	// NewCycleID overrides cycle id generation. Defaults to a random UUID.
	NewCycleID func() string
}

// OrderNotifier runs one notification cycle per order-created event.
type OrderNotifier struct {
	store      types.DocumentStore
	orders     string
	resolver   *RecipientResolver
	tokens     *TokenLookup
	builders   []MessageBuilder
	dispatcher *Dispatcher
	recorder   *DeliveryRecorder
	metrics    NotificationMetrics
	clock      types.Clock
	logger     types.Logger

	skipAlreadyNotified bool
	newCycleID          func() string
}

// NewOrderNotifier wires the cycle components from cfg.
func NewOrderNotifier(cfg NotifierConfig) (*OrderNotifier, error) {
	if cfg.Store == nil {
		return nil, errors.New("notifier requires a document store")
	}
	if cfg.Sender == nil {
		return nil, errors.New("notifier requires a push sender")
	}
	if cfg.Logger == nil {
		return nil, errors.New("notifier requires a logger")
	}
	if len(cfg.Builders) == 0 {
		return nil, errors.New("notifier requires at least one message builder")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.NewCycleID == nil {
		cfg.NewCycleID = uuid.NewString
	}

	return &OrderNotifier{
		store:               cfg.Store,
		orders:              cfg.OrdersCollection,
		resolver:            NewRecipientResolver(cfg.Store, cfg.BuyersCollection, cfg.Logger),
		tokens:              NewTokenLookup(cfg.Store, cfg.FarmersCollection, cfg.FanoutLimit, cfg.Logger),
		builders:            cfg.Builders,
		dispatcher:          NewDispatcher(cfg.Sender, cfg.Metrics, cfg.Clock, cfg.FanoutLimit, cfg.Logger),
		recorder:            NewDeliveryRecorder(cfg.Store, cfg.OrdersCollection),
		metrics:             cfg.Metrics,
		clock:               cfg.Clock,
		logger:              cfg.Logger,
		skipAlreadyNotified: cfg.SkipAlreadyNotified,
		newCycleID:          cfg.NewCycleID,
	}, nil
}

// Process runs the notification cycle for one order-created event.
//
// A malformed order returns a malformed_order error with nothing sent and
// the order left unmarked. Delivery failures are reported per recipient in
// the CycleReport and never fail the cycle. Once every send has been
// attempted the order is marked notified; a failure to do so is returned as
// a record_update_failure error.
func (n *OrderNotifier) Process(ctx context.Context, event types.OrderEvent) (*CycleReport, error) {
	start := n.clock.Now()
	report := &CycleReport{OrderID: event.OrderID, CycleID: n.newCycleID()}

	ctx = types.WithCycleID(ctx, report.CycleID)
	logger := n.logger.With("order_id", event.OrderID, "cycle_id", report.CycleID)

	order, err := ParseOrder(event.OrderID, event.Document)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			logger.Error("invalid order data, not notifying",
				"code", string(appErr.Code),
				"details", appErr.Details,
			)
		}
		n.metrics.RecordCycle(ctx, CycleMalformed, n.clock.Now().Sub(start))
		return report, err
	}

	if n.skipAlreadyNotified && n.alreadyNotified(ctx, order, logger) {
		logger.Info("order already notified, skipping")
		report.Skipped = true
		n.metrics.RecordCycle(ctx, CycleSkipped, n.clock.Now().Sub(start))
		return report, nil
	}

	var direct, topic []MessageBuilder
	for _, b := range n.builders {
		if b.Strategy().IsTopic() {
			topic = append(topic, b)
		} else {
			direct = append(direct, b)
		}
	}

	in := BuildInput{Order: order, Now: n.clock.Now()}

	if len(direct) > 0 {
		recipients := n.resolver.Resolve(ctx, order)
		in.BuyerName = recipients.BuyerName
		in.Tokens = n.tokens.LookupAll(ctx, recipients.FarmerIDs)
		report.FarmerIDs = recipients.FarmerIDs

		for _, tr := range in.Tokens {
			if !tr.Found {
				report.Unreachable = append(report.Unreachable, tr.FarmerID)
			}
		}
		if len(report.Unreachable) > 0 {
			n.metrics.RecordUnreachable(ctx, len(report.Unreachable))
		}

		var msgs []*types.NotificationMessage
		for _, b := range direct {
			msgs = append(msgs, b.Build(in)...)
		}
		report.Outcomes = append(report.Outcomes, n.dispatcher.Dispatch(ctx, msgs)...)
	}

	for _, b := range topic {
		for _, msg := range b.Build(in) {
			report.Outcomes = append(report.Outcomes, n.dispatcher.Broadcast(ctx, msg))
		}
	}

	if err := n.recorder.MarkNotified(ctx, order.ID); err != nil {
		logger.Error("failed to record notification on order", "error", err.Error())
		n.metrics.RecordCycle(ctx, CycleRecordFailed, n.clock.Now().Sub(start))
		return report, err
	}
	report.Recorded = true

	logger.Info("order notification cycle complete",
		"farmers", len(report.FarmerIDs),
		"unreachable", len(report.Unreachable),
		"sent", len(report.Outcomes)-len(report.Failed()),
		"failed", len(report.Failed()),
	)
	n.metrics.RecordCycle(ctx, CycleNotified, n.clock.Now().Sub(start))
	return report, nil
}

// alreadyNotified checks the event snapshot first, then the stored order.
// A trigger snapshot carries the creation state, so redeliveries are only
// caught by the stored flag. A failed read is logged and treated as not
// notified.
func (n *OrderNotifier) alreadyNotified(ctx context.Context, order *types.Order, logger types.Logger) bool {
	if order.NotificationSent {
		return true
	}
	doc, found, err := n.store.Get(ctx, n.orders, order.ID)
	if err != nil {
		logger.Warn("could not read stored order, notifying anyway", "error", err.Error())
		return false
	}
	if !found {
		return false
	}
	sent, _ := doc[types.FieldNotificationSent].(bool)
	return sent
}
