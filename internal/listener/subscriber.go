package listener

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"

	"ordernotify/internal/app"
	"ordernotify/internal/events"
	"ordernotify/internal/types"
)

// AttrContentEncoding is the message attribute naming the body encoding.
const AttrContentEncoding = "content-encoding"

// Subscriber pulls order events from a Pub/Sub subscription.
//
// A message is acked when its cycle completed or when the event can never be
// notified (it has been dead-lettered by then). Other failures nack it so
// Pub/Sub redelivers.
type Subscriber struct {
	sub     *pubsub.Subscriber
	handler EventHandler
	logger  types.Logger
}

// NewSubscriber creates a Subscriber for subscription, an id or a full
// projects/.../subscriptions/... name. maxOutstanding bounds the number of
// cycles in flight.
func NewSubscriber(client *pubsub.Client, subscription string, maxOutstanding int, handler EventHandler, logger types.Logger) *Subscriber {
	sub := client.Subscriber(subscription)
	if maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	}
	return &Subscriber{
		sub:     sub,
		handler: handler,
		logger:  logger.With("subscription", subscription),
	}
}

// Run receives until ctx is cancelled. Cancellation is not an error.
func (s *Subscriber) Run(ctx context.Context) error {
	s.logger.Info("pubsub subscriber started")
	err := s.sub.Receive(ctx, s.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	s.logger.Info("pubsub subscriber stopped")
	return nil
}

func (s *Subscriber) handle(ctx context.Context, msg *pubsub.Message) {
	meta := events.Meta{
		ContentEncoding: msg.Attributes[AttrContentEncoding],
		EventID:         msg.ID,
		OccurredAt:      msg.PublishTime,
	}

	_, err := s.handler.HandleBody(ctx, msg.Data, meta)
	if err != nil && !app.Permanent(err) {
		s.logger.Warn("order event failed, requesting redelivery",
			"message_id", msg.ID,
			"code", string(types.CodeOf(err)),
			"error", err.Error(),
		)
		msg.Nack()
		return
	}
	msg.Ack()
}
