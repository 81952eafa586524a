package external

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"

	"ordernotify/internal/config"
	"ordernotify/internal/types"
)

// Push provider names accepted by PUSH_PROVIDER.
const (
	ProviderFCM = "fcm"
	ProviderSNS = "sns"
	ProviderLog = "log"
)

// NewPushSender builds the configured provider's sender. Real providers are
// wrapped in a circuit breaker; the log provider is not.
func NewPushSender(ctx context.Context, cfg config.PushConfig, awsCfg aws.Config, logger types.Logger) (types.PushSender, error) {
	var sender types.PushSender

	switch cfg.Provider {
	case ProviderLog:
		logger.Info("initializing push sender in STUB mode")
		return NewLogSender(logger.With("mode", "stub")), nil
	case ProviderFCM:
		client, err := NewFCMClient(ctx, FCMClientConfig{
			ProjectID:       cfg.FCMProjectID,
			CredentialsJSON: cfg.FCMCredentialsJSON.Unmask(),
		})
		if err != nil {
			return nil, err
		}
		sender = NewFCMSender(client)
	case ProviderSNS:
		sender = NewSNSSender(awsCfg, cfg.SNSTopicARNPrefix)
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.Provider)
	}

	logger.Info("initializing push sender", "provider", cfg.Provider)
	return NewBreakerSender(sender, BreakerSettings{
		Name:        cfg.Provider,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, logger), nil
}
