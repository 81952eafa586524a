// Package main is the entrypoint for the Order Worker Lambda function.
//
// The Order Worker consumes order-created events from an SQS queue and runs
// one notification cycle per event: resolve the order's farmers and buyer,
// send the configured push notifications, and mark the order notified.
//
// Cold Start (main):
//  1. Load AWS SDK configuration and resolve configuration (env, .env, SSM).
//  2. Initialize the structured logger.
//  3. Build the document store, profile cache, push sender, metrics and
//     notifier (internal/app).
//  4. Register the handler and call lambda.Start, or read one SQS event from
//     stdin when APP_ENV=local.
//
// Handler flow, for each SQS record:
//  1. Decode the order event (plain or Firestore-typed JSON, optionally zstd).
//  2. Run the notification cycle.
//  3. Completed cycles and events that can never succeed (malformed orders,
//     which are forwarded to the dead-letter queue) are acknowledged. Other
//     failures, such as a failed notificationSent update, are reported in
//     batchItemFailures so SQS redelivers only that record.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"ordernotify/internal/app"
	"ordernotify/internal/config"
	orderevents "ordernotify/internal/events"
	"ordernotify/internal/logging"
	"ordernotify/internal/notifications/core"
	"ordernotify/internal/types"
)

// attrContentEncoding is the SQS message attribute naming the body encoding.
// Compressed bodies are base64-encoded, since SQS bodies are text.
const attrContentEncoding = "content-encoding"

// eventHandler is the slice of *app.EventHandler the worker uses.
type eventHandler interface {
	HandleBody(ctx context.Context, body []byte, meta orderevents.Meta) (*core.CycleReport, error)
}

// Handler holds the dependencies for the order worker Lambda handler.
type Handler struct {
	events eventHandler
	logger types.Logger
}

// Handle processes an SQS event containing one or more order events.
// Records are processed independently; only retryable failures are returned
// in batchItemFailures.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage returns an error only when the record should be redelivered.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	meta := orderevents.Meta{
		ContentEncoding: messageAttribute(record, attrContentEncoding),
		EventID:         record.MessageId,
	}
	if sent, ok := record.Attributes["SentTimestamp"]; ok {
		if t, err := parseMillisTimestamp(sent); err == nil {
			meta.OccurredAt = t
		}
	}

	body := []byte(record.Body)
	if meta.ContentEncoding != "" && !strings.EqualFold(meta.ContentEncoding, "identity") {
		decoded, err := base64.StdEncoding.DecodeString(record.Body)
		if err != nil {
			// Permanent parse failure: acknowledge.
			h.logger.Error("compressed SQS body is not base64",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			return nil
		}
		body = decoded
	}

	report, err := h.events.HandleBody(ctx, body, meta)
	if err != nil {
		if app.Permanent(err) {
			return nil
		}
		return err
	}

	if report != nil && len(report.Failed()) > 0 {
		h.logger.Warn("order notified with failed deliveries",
			"order_id", report.OrderID,
			"cycle_id", report.CycleID,
			"failed", len(report.Failed()),
		)
	}
	return nil
}

func messageAttribute(record events.SQSMessage, name string) string {
	attr, ok := record.MessageAttributes[name]
	if !ok || attr.StringValue == nil {
		return ""
	}
	return *attr.StringValue
}

// parseMillisTimestamp parses a millisecond-epoch string such as the SQS
// SentTimestamp attribute.
func parseMillisTimestamp(ms string) (time.Time, error) {
	millis, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}

	cfg, err := config.LoadConfig(config.NewSSMProviderFromConfig(awsCfg))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	awsCfg = app.AWSConfig(awsCfg, cfg.AWS)

	logger := logging.New(cfg.LogLevel).With(
		"service", cfg.Service,
		"component", "order-worker",
		"version", cfg.Build.Version,
	)
	logger.Info("Order Worker Lambda initializing (cold start)", "environment", cfg.Environment)

	a, err := app.New(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer a.Close()

	handler := &Handler{
		events: a.EventHandler(app.TriggerSQS),
		logger: logger,
	}

	// Local mode: read a JSON SQS event from stdin instead of starting the
	// Lambda runtime.
	// Usage: echo '{"Records":[{"messageId":"1","body":"{\"order_id\":\"O1\",...}"}]}' | go run ./cmd/order-worker
	if cfg.Environment == "local" {
		return runLocal(ctx, handler, os.Stdin, logger)
	}

	lambda.Start(handler.Handle)
	return nil
}

func runLocal(ctx context.Context, handler *Handler, in io.Reader, logger types.Logger) error {
	logger.Info("APP_ENV=local: reading SQS event from stdin")
	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}

	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(payload, &sqsEvent); err != nil {
		return fmt.Errorf("parsing stdin as SQS event: %w", err)
	}

	response, err := handler.Handle(ctx, sqsEvent)
	if err != nil {
		return fmt.Errorf("handler execution failed: %w", err)
	}
	if len(response.BatchItemFailures) > 0 {
		respJSON, _ := json.MarshalIndent(response, "", "  ")
		fmt.Fprintln(os.Stderr, string(respJSON))
	}
	logger.Info("Handler execution completed",
		"records_processed", len(sqsEvent.Records),
		"failures", len(response.BatchItemFailures),
	)
	return nil
}
