// Package queue forwards order events that can never be notified to an SQS
// dead-letter queue for inspection.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"ordernotify/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DeadLetterPublisher sends rejected order events to a dead-letter queue.
// The message body is the original event; the rejection reason travels in
// message attributes.
type DeadLetterPublisher struct {
	client   SQSSender
	queueURL string
	source   string
	logger   types.Logger
}

var _ types.DeadLetterSink = (*DeadLetterPublisher)(nil)

// NewDeadLetterPublisher creates a publisher for queueURL. source names the
// transport the event arrived on ("sqs", "pubsub", "http").
func NewDeadLetterPublisher(client SQSSender, queueURL, source string, logger types.Logger) *DeadLetterPublisher {
	return &DeadLetterPublisher{
		client:   client,
		queueURL: queueURL,
		source:   source,
		logger:   logger,
	}
}

// Publish forwards event with the error that rejected it.
func (p *DeadLetterPublisher) Publish(ctx context.Context, event types.OrderEvent, cause error) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal order event: %w", err)
	}

	code := string(types.CodeOf(cause))
	if code == "" {
		code = string(types.ErrCodeInternalUnexpected)
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"error_code": stringAttr(code),
			"order_id":   stringAttr(event.OrderID),
			"source":     stringAttr(p.source),
		},
	}
	if reason != "" {
		input.MessageAttributes["reason"] = stringAttr(reason)
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("queue: failed to send order %s to dead-letter queue: %w", event.OrderID, err)
	}

	p.logger.Info("order event sent to dead-letter queue",
		"order_id", event.OrderID,
		"error_code", code,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}

func stringAttr(v string) sqsTypes.MessageAttributeValue {
	return sqsTypes.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

// DiscardSink drops rejected events after logging them. Used when no
// dead-letter queue is configured.
type DiscardSink struct {
	Logger types.Logger
}

var _ types.DeadLetterSink = DiscardSink{}

func (d DiscardSink) Publish(_ context.Context, event types.OrderEvent, cause error) error {
	d.Logger.Warn("no dead-letter queue configured, dropping order event",
		"order_id", event.OrderID,
		"error_code", string(types.CodeOf(cause)),
	)
	return nil
}
