// Package app wires the notifier's platform clients from configuration.
// Both entrypoints build their dependencies here, once at startup, and inject
// them; nothing below this package reaches for globals.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sony/gobreaker/v2"

	"ordernotify/internal/cache"
	"ordernotify/internal/config"
	"ordernotify/internal/db"
	"ordernotify/internal/external"
	fsstore "ordernotify/internal/firestore"
	"ordernotify/internal/notifications/core"
	"ordernotify/internal/queue"
	"ordernotify/internal/types"
)

// healthDocID is read by the store probe. A missing document is healthy.
const healthDocID = "healthcheck"

// App holds the long-lived dependencies of a running process.
type App struct {
	Config   *config.Config
	Notifier *core.OrderNotifier
	Store    types.DocumentStore
	Sender   types.PushSender
	Metrics  core.NotificationMetrics
	Registry *prometheus.Registry
	Probes   []Probe
	Logger   types.Logger

	sqs     queue.SQSSender
	closers []func() error
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*options)

type options struct {
	store      types.DocumentStore
	sender     types.PushSender
	cloudWatch core.CloudWatchClient
	sqs        queue.SQSSender
}

// WithStore uses store instead of the configured backend.
func WithStore(store types.DocumentStore) Option {
	return func(o *options) { o.store = store }
}

// WithSender uses sender instead of the configured push provider.
func WithSender(sender types.PushSender) Option {
	return func(o *options) { o.sender = sender }
}

// WithCloudWatch uses client for CloudWatch metrics when they are enabled.
func WithCloudWatch(client core.CloudWatchClient) Option {
	return func(o *options) { o.cloudWatch = client }
}

// WithSQS uses client for dead-letter forwarding when a queue is configured.
func WithSQS(client queue.SQSSender) Option {
	return func(o *options) { o.sqs = client }
}

// New builds the store (optionally behind the profile cache), push sender,
// metrics and notifier described by cfg. On error, anything already opened
// is closed.
func New(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger types.Logger, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Logger:   logger,
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Store = o.store
	if a.Store == nil {
		if a.Store, err = a.openStore(ctx); err != nil {
			return nil, err
		}
	}

	if redisURL := cfg.Cache.RedisURL.Unmask(); redisURL != "" {
		rdb, err := cache.NewClient(redisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		a.Probes = append(a.Probes, NewProbe("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		a.Store = cache.NewCachedStore(a.Store, rdb, cache.Options{
			TTL:         cfg.Cache.ProfileTTL,
			KeyPrefix:   cfg.Cache.KeyPrefix,
			Collections: []string{cfg.Store.BuyersCollection},
		}, logger)
		logger.Info("buyer profile cache enabled", "ttl", cfg.Cache.ProfileTTL.String())
	}

	a.Sender = o.sender
	if a.Sender == nil {
		if a.Sender, err = external.NewPushSender(ctx, PushConfig(cfg), awsCfg, logger); err != nil {
			return nil, err
		}
	}
	if b, ok := a.Sender.(*external.BreakerSender); ok {
		a.Probes = append(a.Probes, breakerProbe(b))
	}

	a.Registry.MustRegister(collectors.NewGoCollector())
	metrics := core.MultiMetrics{core.NewPrometheusNotificationMetrics(a.Registry)}
	if cfg.Observability.EnableCloudWatch {
		cw := o.cloudWatch
		if cw == nil {
			cw = cloudwatch.NewFromConfig(awsCfg)
		}
		metrics = append(metrics, core.NewCloudWatchNotificationMetrics(cw, cfg.Observability.MetricNamespace, logger))
	}
	a.Metrics = metrics

	if cfg.AWS.DeadLetterQueueURL != "" {
		a.sqs = o.sqs
		if a.sqs == nil {
			a.sqs = sqs.NewFromConfig(awsCfg)
		}
	}

	builders, err := core.NewBuilders(cfg.Notify.Strategies, core.TopicNames{
		OrderUpdates: cfg.Notify.OrderUpdatesTopic,
		Farmers:      cfg.Notify.FarmersTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("configure message builders: %w", err)
	}

	a.Notifier, err = core.NewOrderNotifier(core.NotifierConfig{
		Store:               a.Store,
		Sender:              a.Sender,
		Builders:            builders,
		Metrics:             a.Metrics,
		Logger:              logger,
		OrdersCollection:    cfg.Store.OrdersCollection,
		FarmersCollection:   cfg.Store.FarmersCollection,
		BuyersCollection:    cfg.Store.BuyersCollection,
		FanoutLimit:         cfg.Notify.FanoutLimit,
		SkipAlreadyNotified: cfg.Notify.SkipAlreadyNotified,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("order notifier initialized",
		"store", cfg.Store.Backend,
		"push_provider", cfg.Push.Provider,
		"strategies", cfg.Notify.Strategies,
		"dead_letter", cfg.AWS.DeadLetterQueueURL != "",
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (types.DocumentStore, error) {
	sc := a.Config.Store
	switch sc.Backend {
	case "postgres":
		pool, err := db.NewPool(ctx, db.PoolConfig{
			DatabaseURL:     sc.DatabaseURL.Unmask(),
			MaxConns:        sc.MaxConns,
			MaxConnLifetime: sc.MaxConnLifetime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Probes = append(a.Probes, NewProbe("postgres", pool.Ping))

		repo := db.NewDocumentRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case "firestore", "":
		client, err := fsstore.NewClient(ctx, fsstore.ClientConfig{
			ProjectID:       sc.ProjectID,
			DatabaseID:      sc.DatabaseID,
			CredentialsJSON: sc.CredentialsJSON.Unmask(),
		})
		if err != nil {
			return nil, err
		}
		store, err := fsstore.NewStore(client, a.Logger)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.Probes = append(a.Probes, NewProbe("firestore", func(ctx context.Context) error {
			_, _, err := store.Get(ctx, sc.OrdersCollection, healthDocID)
			return err
		}))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

// PushConfig returns cfg.Push with FCM project and credentials defaulted
// from the store settings.
func PushConfig(cfg *config.Config) config.PushConfig {
	pc := cfg.Push
	if pc.FCMProjectID == "" {
		pc.FCMProjectID = cfg.Store.ProjectID
	}
	if !pc.FCMCredentialsJSON.IsSet() {
		pc.FCMCredentialsJSON = cfg.Store.CredentialsJSON
	}
	return pc
}

// DeadLetter returns the sink for events rejected on the given transport.
// Without a configured queue, rejected events are logged and dropped.
func (a *App) DeadLetter(trigger string) types.DeadLetterSink {
	if a.sqs == nil {
		return queue.DiscardSink{Logger: a.Logger}
	}
	return queue.NewDeadLetterPublisher(a.sqs, a.Config.AWS.DeadLetterQueueURL, trigger, a.Logger)
}

// EventHandler returns a handler for events arriving on the given transport.
func (a *App) EventHandler(trigger string) *EventHandler {
	return NewEventHandler(a.Notifier, a.DeadLetter(trigger), a.Metrics, nil, trigger, a.Logger)
}

// Close releases everything New opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// AWSConfig applies the region and LocalStack endpoint overrides to base.
func AWSConfig(base aws.Config, c config.AWSConfig) aws.Config {
	cfg := base.Copy()
	if c.Region != "" {
		cfg.Region = c.Region
	}
	if c.EndpointURL != "" {
		cfg.BaseEndpoint = aws.String(c.EndpointURL)
	}
	return cfg
}

// breakerProbe reports the push provider unhealthy while its breaker is open.
func breakerProbe(b *external.BreakerSender) Probe {
	return NewProbe("push_breaker", func(context.Context) error {
		if state := b.State(); state == gobreaker.StateOpen {
			return fmt.Errorf("push circuit breaker is %s", state)
		}
		return nil
	})
}

// Probe is a named dependency health check.
type Probe struct {
	name  string
	check func(ctx context.Context) error
}

// NewProbe creates a Probe.
func NewProbe(name string, check func(ctx context.Context) error) Probe {
	return Probe{name: name, check: check}
}

func (p Probe) Name() string                    { return p.name }
func (p Probe) Check(ctx context.Context) error { return p.check(ctx) }
