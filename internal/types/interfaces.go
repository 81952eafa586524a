package types

import (
	"context"
	"time"
)

// DocumentStore is the document database the notifier reads profiles from
// and records delivery on. Implementations: Firestore, Postgres JSONB, and a
// Redis read-through decorator.
type DocumentStore interface {
	// Get returns the record at collection/id. found is false when the record
	// does not exist; that is not an error.
	Get(ctx context.Context, collection, id string) (doc Document, found bool, err error)

	// Update sets the given fields on an existing record as one atomic write.
	// Values equal to ServerTimestamp are replaced with the store's clock.
	// Updating a record that does not exist is an error.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
}

// PushSender delivers one NotificationMessage and returns the provider's
// delivery id.
type PushSender interface {
	Send(ctx context.Context, msg *NotificationMessage) (string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// DeadLetterSink receives order events that can never be notified, together
// with the error that rejected them.
type DeadLetterSink interface {
	Publish(ctx context.Context, event OrderEvent, cause error) error
}
