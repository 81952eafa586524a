package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"ordernotify/internal/types"
)

// SNSAPI defines the subset of the SNS client used by SNSSender.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers notifications through Amazon SNS mobile push. Topic
// targets are published to TopicARNPrefix+topic; token targets are treated
// as platform endpoint ARNs.
type SNSSender struct {
	api            SNSAPI
	topicARNPrefix string
}

var _ types.PushSender = (*SNSSender)(nil)

// NewSNSSender creates an SNSSender from an AWS config.
func NewSNSSender(awsCfg aws.Config, topicARNPrefix string) *SNSSender {
	return NewSNSSenderWithAPI(sns.NewFromConfig(awsCfg), topicARNPrefix)
}

// NewSNSSenderWithAPI creates an SNSSender with a pre-configured SNSAPI.
func NewSNSSenderWithAPI(api SNSAPI, topicARNPrefix string) *SNSSender {
	return &SNSSender{api: api, topicARNPrefix: topicARNPrefix}
}

// gcmPayload is the FCM-shaped body SNS forwards to Android endpoints.
type gcmPayload struct {
	Notification gcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type gcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

// Send publishes msg and returns the SNS message id.
func (s *SNSSender) Send(ctx context.Context, msg *types.NotificationMessage) (string, error) {
	body, err := snsMessage(msg)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode SNS message", err)
	}

	input := &sns.PublishInput{
		Message:          aws.String(body),
		MessageStructure: aws.String("json"),
	}
	if msg.Target.Topic != "" {
		input.TopicArn = aws.String(s.topicARNPrefix + msg.Target.Topic)
	} else {
		input.TargetArn = aws.String(msg.Target.Token)
	}

	out, err := s.api.Publish(ctx, input)
	if err != nil {
		return "", mapSNSError(err)
	}
	return aws.ToString(out.MessageId), nil
}

func snsMessage(msg *types.NotificationMessage) (string, error) {
	gcm, err := json.Marshal(gcmPayload{
		Notification: gcmNotification{Title: msg.Title, Body: msg.Body, Sound: msg.AndroidSound},
		Data:         msg.Data,
	})
	if err != nil {
		return "", err
	}
	envelope, err := json.Marshal(map[string]string{
		"default": msg.Body,
		"GCM":     string(gcm),
	})
	if err != nil {
		return "", err
	}
	return string(envelope), nil
}

// mapSNSError translates SNS errors into domain AppErrors.
func mapSNSError(err error) error {
	var disabled *snstypes.EndpointDisabledException
	var notFound *snstypes.NotFoundException
	if errors.As(err, &disabled) || errors.As(err, &notFound) {
		return types.NewAppError(types.ErrCodeUpstreamInvalidToken,
			fmt.Sprintf("SNS endpoint rejected: %v", err), err)
	}

	var throttled *snstypes.ThrottledException
	if errors.As(err, &throttled) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("SNS rate limit exceeded: %v", err), err)
	}

	var internal *snstypes.InternalErrorException
	if errors.As(err, &internal) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("SNS internal error: %v", err), err)
	}

	return types.NewAppError(types.ErrCodeUpstreamPushProvider,
		fmt.Sprintf("SNS error: %v", err), err)
}
