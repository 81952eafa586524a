// Package main is the entrypoint for the long-running order listener.
//
// The listener receives order-created events from a Pub/Sub pull
// subscription (when PUBSUB_SUBSCRIPTION is set) and from POST /events, and
// serves GET /health and GET /metrics. Both ingress paths share one notifier
// and one set of platform clients. SIGINT or SIGTERM stops receiving and
// shuts the HTTP server down gracefully.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub/v2"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"ordernotify/internal/app"
	"ordernotify/internal/config"
	"ordernotify/internal/listener"
	"ordernotify/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}

	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProviderFromConfig(awsCfg)
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	awsCfg = app.AWSConfig(awsCfg, cfg.AWS)

	base := logging.New(cfg.LogLevel)
	logger := base.With(
		"service", cfg.Service,
		"component", "order-listener",
		"version", cfg.Build.Version,
	)
	logger.Info("order listener starting",
		"environment", cfg.Environment,
		"commit", cfg.Build.Commit,
		"port", cfg.Listener.Port,
	)

	a, err := app.New(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to close dependencies", "error", err.Error())
		}
	}()

	srv, err := newServer(a, base.Slog().With("service", cfg.Service, "component", "order-listener"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, ":"+cfg.Listener.Port, cfg.Listener.ShutdownTimeout)
	})

	if cfg.Listener.Subscription != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSubProject(), pubsubClientOptions(cfg)...)
		if err != nil {
			return fmt.Errorf("creating pubsub client: %w", err)
		}
		defer client.Close()

		sub := listener.NewSubscriber(client, cfg.Listener.Subscription, cfg.Listener.MaxOutstanding,
			a.EventHandler(app.TriggerPubSub), logger)
		g.Go(func() error {
			return sub.Run(gctx)
		})
	} else {
		logger.Info("no PUBSUB_SUBSCRIPTION configured, serving HTTP ingress only")
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("order listener stopped cleanly")
	return nil
}

// newServer builds the HTTP surface over the app's HTTP event handler,
// Prometheus registry and dependency probes.
func newServer(a *app.App, logger *slog.Logger) (*listener.Server, error) {
	probes := make([]listener.HealthProbe, len(a.Probes))
	for i, p := range a.Probes {
		probes[i] = p
	}
	srv, err := listener.NewServer(a.EventHandler(app.TriggerHTTP), a.Registry, logger, probes...)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP server: %w", err)
	}
	return srv, nil
}

// pubsubClientOptions reuses the store's service account when one is set;
// otherwise Application Default Credentials apply.
func pubsubClientOptions(cfg *config.Config) []option.ClientOption {
	creds := cfg.Store.CredentialsJSON.Unmask()
	if creds == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
}
