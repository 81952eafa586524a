// Package external adapts push delivery providers to types.PushSender. Each
// provider maps its own failures onto upstream AppError codes so the
// dispatcher and circuit breaker can treat them uniformly.
package external

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"ordernotify/internal/types"
)

// FCMClient is the subset of *messaging.Client used by FCMSender.
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMClientConfig identifies the Firebase project to send through.
type FCMClientConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// NewFCMClient creates a Firebase Cloud Messaging client. Without explicit
// credentials it uses application default credentials.
func NewFCMClient(ctx context.Context, cfg FCMClientConfig) (*messaging.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("fcm: failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: failed to create messaging client: %w", err)
	}
	return client, nil
}

// FCMSender delivers notifications through Firebase Cloud Messaging.
type FCMSender struct {
	client FCMClient
}

var _ types.PushSender = (*FCMSender)(nil)

// NewFCMSender creates an FCMSender over an FCM client.
func NewFCMSender(client FCMClient) *FCMSender {
	return &FCMSender{client: client}
}

// Send delivers msg and returns the FCM message name.
func (s *FCMSender) Send(ctx context.Context, msg *types.NotificationMessage) (string, error) {
	id, err := s.client.Send(ctx, toFCMMessage(msg))
	if err != nil {
		return "", mapFCMError(err)
	}
	return id, nil
}

func toFCMMessage(msg *types.NotificationMessage) *messaging.Message {
	m := &messaging.Message{
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data:  msg.Data,
		Topic: msg.Target.Topic,
		Token: msg.Target.Token,
	}
	if msg.AndroidSound != "" {
		m.Android = &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: msg.AndroidSound},
		}
	}
	return m
}

// mapFCMError translates FCM errors into domain AppErrors.
//
//   - unregistered or invalid token → ErrCodeUpstreamInvalidToken
//   - quota exceeded → ErrCodeUpstreamRateLimited
//   - unavailable or internal → ErrCodeUpstreamUnavailable
//   - other → ErrCodeUpstreamPushProvider
func mapFCMError(err error) error {
	switch {
	case messaging.IsUnregistered(err), messaging.IsInvalidArgument(err), messaging.IsSenderIDMismatch(err):
		return types.NewAppError(types.ErrCodeUpstreamInvalidToken,
			fmt.Sprintf("FCM rejected the target: %v", err), err)
	case messaging.IsQuotaExceeded(err):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("FCM quota exceeded: %v", err), err)
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("FCM unavailable: %v", err), err)
	default:
		return types.NewAppError(types.ErrCodeUpstreamPushProvider,
			fmt.Sprintf("FCM error: %v", err), err)
	}
}
