package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"ordernotify/internal/types"
)

// testSecretProvider is a configurable mock for SSM resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// testDeps uses the real environment but routes writes through t.Setenv so
// resolved values are cleaned up after the test.
func testDeps(t *testing.T) loaderDeps {
	t.Helper()
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv: func(key, value string) error {
			t.Setenv(key, value)
			return nil
		},
		environ: os.Environ,
	}
}

// unsetForTest removes a variable for the duration of the test.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

// setLocalTestEnv sets the minimum environment for a valid local Config.
func setLocalTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STORE_BACKEND", "firestore")
	t.Setenv("GCP_PROJECT_ID", "chopdirect-test")
	t.Setenv("PUSH_PROVIDER", "fcm")
	unsetForTest(t, "NOTIFY_STRATEGIES")
	unsetForTest(t, "SQS_DLQ")
	unsetForTest(t, "DATABASE_URL")
	unsetForTest(t, "REDIS_URL")
}

func TestLoadConfigLocalDefaults(t *testing.T) {
	setLocalTestEnv(t)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want local", cfg.Environment)
	}
	if cfg.Store.OrdersCollection != "orders" || cfg.Store.FarmersCollection != "farmers" || cfg.Store.BuyersCollection != "users_chopdirect" {
		t.Errorf("unexpected collection defaults: %+v", cfg.Store)
	}
	if cfg.Notify.OrderUpdatesTopic != "order_updates" || cfg.Notify.FarmersTopic != "farmers" {
		t.Errorf("unexpected topic defaults: %+v", cfg.Notify)
	}
	want := []types.BuilderStrategy{types.StrategyDirectFarmer, types.StrategyTopicSummary}
	if len(cfg.Notify.Strategies) != len(want) {
		t.Fatalf("Strategies = %v, want %v", cfg.Notify.Strategies, want)
	}
	for i := range want {
		if cfg.Notify.Strategies[i] != want[i] {
			t.Errorf("Strategies[%d] = %q, want %q", i, cfg.Notify.Strategies[i], want[i])
		}
	}
	if !cfg.Notify.SkipAlreadyNotified {
		t.Error("SkipAlreadyNotified should default to true")
	}
	if cfg.Notify.FanoutLimit != 16 {
		t.Errorf("FanoutLimit = %d, want 16", cfg.Notify.FanoutLimit)
	}
	if cfg.Push.BreakerMaxFailures != 5 || cfg.Push.BreakerOpenTimeout != 30*time.Second {
		t.Errorf("unexpected breaker defaults: %+v", cfg.Push)
	}
	if cfg.Cache.ProfileTTL != 5*time.Minute {
		t.Errorf("ProfileTTL = %v, want 5m", cfg.Cache.ProfileTTL)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want dev", cfg.Build.Version)
	}
	if cfg.PubSubProject() != "chopdirect-test" {
		t.Errorf("PubSubProject() = %q, want GCP project fallback", cfg.PubSubProject())
	}
}

func TestLoadConfigSetsUTC(t *testing.T) {
	setLocalTestEnv(t)

	time.Local = time.FixedZone("Test", 3600)
	if _, err := LoadConfig(nil); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if time.Local != time.UTC {
		t.Errorf("time.Local = %v, want UTC", time.Local)
	}
}

func TestLoadConfigStrategiesOverride(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("NOTIFY_STRATEGIES", "farmers_topic")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.Notify.Strategies) != 1 || cfg.Notify.Strategies[0] != types.StrategyFarmersTopic {
		t.Errorf("Strategies = %v, want [farmers_topic]", cfg.Notify.Strategies)
	}
}

func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown environment", "APP_ENV", "qa"},
		{"unknown strategy", "NOTIFY_STRATEGIES", "direct_farmer,sms"},
		{"unknown store backend", "STORE_BACKEND", "dynamo"},
		{"postgres without url", "STORE_BACKEND", "postgres"},
		{"sns without topic prefix", "PUSH_PROVIDER", "sns"},
		{"dlq not a url", "SQS_DLQ", "not a url"},
		{"fanout limit zero", "NOTIFY_FANOUT_LIMIT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLocalTestEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig(nil)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("Type = %q, want %q", cfgErr.Type, ErrValidation)
			}
		})
	}
}

func TestLoadConfigParsingFailure(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("PROFILE_CACHE_TTL", "five minutes")

	_, err := LoadConfig(nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrParsing {
		t.Fatalf("expected parsing ConfigError, got %v", err)
	}
}

func TestLoadConfigSSMResolution(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL_SSM_PARAM", "/prod/ordernotify/database/url")
	t.Setenv("REDIS_URL_SSM_PARAM", "/prod/ordernotify/redis/url")

	provider := &testSecretProvider{
		values: map[string]string{
			"/prod/ordernotify/database/url": "postgres://notifier:pw@rds.internal:5432/orders",
			"/prod/ordernotify/redis/url":    "redis://cache.internal:6379/0",
		},
	}

	cfg, err := loadConfigWithDeps(provider, testDeps(t))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}

	if cfg.Store.DatabaseURL.Unmask() != "postgres://notifier:pw@rds.internal:5432/orders" {
		t.Errorf("DatabaseURL not resolved from SSM: %q", cfg.Store.DatabaseURL.Unmask())
	}
	if cfg.Cache.RedisURL.Unmask() != "redis://cache.internal:6379/0" {
		t.Errorf("RedisURL not resolved from SSM: %q", cfg.Cache.RedisURL.Unmask())
	}
	if provider.callCount != 1 {
		t.Errorf("provider.callCount = %d, want 1", provider.callCount)
	}
	if len(provider.calledWith) != 2 {
		t.Errorf("provider called with %d keys, want 2", len(provider.calledWith))
	}
}

func TestLoadConfigSSMSkippedForLocal(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("SOME_SECRET_SSM_PARAM", "/local/some/path")

	provider := &testSecretProvider{values: map[string]string{"/local/some/path": "x"}}
	if _, err := loadConfigWithDeps(provider, testDeps(t)); err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if provider.callCount != 0 {
		t.Errorf("provider should not be called in local mode, got %d calls", provider.callCount)
	}
}

func TestLoadConfigSSMDirectEnvWins(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("REDIS_URL", "redis://direct:6379")
	t.Setenv("REDIS_URL_SSM_PARAM", "/dev/ordernotify/redis/url")

	provider := &testSecretProvider{values: map[string]string{"/dev/ordernotify/redis/url": "redis://ssm:6379"}}
	cfg, err := loadConfigWithDeps(provider, testDeps(t))
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if cfg.Cache.RedisURL.Unmask() != "redis://direct:6379" {
		t.Errorf("RedisURL = %q, want direct env value", cfg.Cache.RedisURL.Unmask())
	}
	if provider.callCount != 0 {
		t.Errorf("provider should not be called when every target is set, got %d", provider.callCount)
	}
}

func TestLoadConfigSSMRequiresProvider(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("REDIS_URL_SSM_PARAM", "/staging/ordernotify/redis/url")

	_, err := loadConfigWithDeps(nil, testDeps(t))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrSSMResolution {
		t.Fatalf("expected SSM ConfigError, got %v", err)
	}
	if !strings.Contains(cfgErr.Message, "REDIS_URL") {
		t.Errorf("message should name REDIS_URL, got %q", cfgErr.Message)
	}
}

func TestLoadConfigSSMProviderError(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("REDIS_URL_SSM_PARAM", "/prod/ordernotify/redis/url")

	providerErr := errors.New("AccessDenied")
	_, err := loadConfigWithDeps(&testSecretProvider{err: providerErr}, testDeps(t))
	if !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error in chain, got %v", err)
	}
}

func TestLoadConfigSSMMissingParameter(t *testing.T) {
	setLocalTestEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("REDIS_URL_SSM_PARAM", "/prod/ordernotify/redis/url")

	_, err := loadConfigWithDeps(&testSecretProvider{values: map[string]string{}}, testDeps(t))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrMissingEnv {
		t.Fatalf("expected missing-env ConfigError, got %v", err)
	}
}

func TestConfigErrorFormat(t *testing.T) {
	withErr := &ConfigError{Type: ErrParsing, Message: "bad", Err: errors.New("boom")}
	if withErr.Error() != "[PARSING_FAILED] bad: boom" {
		t.Errorf("Error() = %q", withErr.Error())
	}
	bare := &ConfigError{Type: ErrValidation, Message: "bad"}
	if bare.Error() != "[VALIDATION_FAILED] bad" {
		t.Errorf("Error() = %q", bare.Error())
	}
}
