// Package config defines the configuration of the order notifier.
// Configuration is loaded once at process start (Lambda cold start or listener
// boot) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"ordernotify/internal/types"
)

// SecretString is an alias for types.SecretString so config consumers do not
// need to import types for it.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// sub-config they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"ordernotify"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Store         StoreConfig
	Push          PushConfig
	Notify        NotifyConfig
	AWS           AWSConfig
	Cache         CacheConfig
	Listener      ListenerConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// StoreConfig selects and configures the document store holding orders and
// profiles.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"firestore" validate:"oneof=firestore postgres"`

	// Firestore
	ProjectID       string       `envconfig:"GCP_PROJECT_ID" validate:"required_if=Backend firestore"`
	DatabaseID      string       `envconfig:"FIRESTORE_DATABASE" default:"(default)"`
	CredentialsJSON SecretString `envconfig:"GOOGLE_CREDENTIALS_JSON"` // Empty means Application Default Credentials

	// Postgres
	DatabaseURL     SecretString  `envconfig:"DATABASE_URL" validate:"required_if=Backend postgres"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`

	// Collection names differ between deployments (e.g. users vs users_chopdirect).
	OrdersCollection  string `envconfig:"ORDERS_COLLECTION" default:"orders" validate:"required"`
	FarmersCollection string `envconfig:"FARMERS_COLLECTION" default:"farmers" validate:"required"`
	BuyersCollection  string `envconfig:"BUYERS_COLLECTION" default:"users_chopdirect" validate:"required"`
}

// PushConfig selects and configures the push delivery provider.
type PushConfig struct {
	Provider string `envconfig:"PUSH_PROVIDER" default:"fcm" validate:"oneof=fcm sns log"`

	// FCM. Empty credentials fall back to the store credentials, then ADC.
	FCMProjectID       string       `envconfig:"FCM_PROJECT_ID"`
	FCMCredentialsJSON SecretString `envconfig:"FCM_CREDENTIALS_JSON"`

	// SNS. Topic names are appended to the prefix to form the topic ARN;
	// device tokens are SNS platform endpoint ARNs.
	SNSTopicARNPrefix string `envconfig:"SNS_TOPIC_ARN_PREFIX" validate:"required_if=Provider sns"`

	// Circuit breaker around the provider.
	BreakerMaxFailures uint32        `envconfig:"PUSH_BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	BreakerOpenTimeout time.Duration `envconfig:"PUSH_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// NotifyConfig controls which messages are produced for an order.
type NotifyConfig struct {
	Strategies        []types.BuilderStrategy `envconfig:"NOTIFY_STRATEGIES" default:"direct_farmer,topic_summary" validate:"min=1,dive,oneof=topic_summary farmers_topic direct_farmer"`
	OrderUpdatesTopic string                  `envconfig:"ORDER_UPDATES_TOPIC" default:"order_updates" validate:"required"`
	FarmersTopic      string                  `envconfig:"FARMERS_TOPIC" default:"farmers" validate:"required"`
	FanoutLimit       int                     `envconfig:"NOTIFY_FANOUT_LIMIT" default:"16" validate:"min=1,max=256"`

	// SkipAlreadyNotified makes a redelivered event a no-op when the order's
	// notificationSent flag is true in the event snapshot or in the stored
	// order. Trigger snapshots hold the creation state, so the stored order
	// is read before any send.
	SkipAlreadyNotified bool `envconfig:"NOTIFY_SKIP_ALREADY_SENT" default:"true"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// DeadLetterQueueURL receives malformed order events. Empty disables forwarding.
	DeadLetterQueueURL string `envconfig:"SQS_DLQ" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// CacheConfig configures the Redis read-through cache for farmer and buyer
// profiles. An empty RedisURL disables caching.
type CacheConfig struct {
	RedisURL   SecretString  `envconfig:"REDIS_URL"`
	ProfileTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"5m"`
	KeyPrefix  string        `envconfig:"PROFILE_CACHE_PREFIX" default:"ordernotify:profile:"`
}

// ListenerConfig configures the long-running listener (HTTP ingress and
// Pub/Sub subscriber).
type ListenerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Subscription    string        `envconfig:"PUBSUB_SUBSCRIPTION"`
	PubSubProjectID string        `envconfig:"PUBSUB_PROJECT_ID"` // Defaults to GCP_PROJECT_ID
	MaxOutstanding  int           `envconfig:"PUBSUB_MAX_OUTSTANDING" default:"10" validate:"min=1"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace  string `envconfig:"METRIC_NAMESPACE" default:"OrderNotify"`
	EnableCloudWatch bool   `envconfig:"ENABLE_CLOUDWATCH_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)

// PubSubProject returns the project hosting the listener's subscription.
func (c *Config) PubSubProject() string {
	if c.Listener.PubSubProjectID != "" {
		return c.Listener.PubSubProjectID
	}
	return c.Store.ProjectID
}
