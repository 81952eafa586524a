package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	"ordernotify/internal/app"
	"ordernotify/internal/config"
	"ordernotify/internal/logging"
	"ordernotify/internal/types"
)

// memStore is an in-memory types.DocumentStore.
type memStore struct {
	mu      sync.Mutex
	docs    map[string]types.Document
	updates map[string]map[string]any
}

func (s *memStore) Get(_ context.Context, collection, id string) (types.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[collection+"/"+id]
	return doc, ok, nil
}

func (s *memStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[collection+"/"+id] = fields
	return nil
}

func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORE_BACKEND", "firestore")
	t.Setenv("GCP_PROJECT_ID", "chopdirect-test")
	t.Setenv("PUSH_PROVIDER", "log")
	t.Setenv("ENABLE_CLOUDWATCH_METRICS", "false")
	t.Setenv("REDIS_URL", "")
	t.Setenv("SQS_DLQ", "")
}

// buildTestApp loads configuration the way main does and wires the app over
// an in-memory store.
func buildTestApp(t *testing.T) (*app.App, *memStore) {
	t.Helper()
	setTestEnv(t)

	cfg, err := config.LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	store := &memStore{
		docs: map[string]types.Document{
			cfg.Store.FarmersCollection + "/F1": {"fcmToken": "tok-F1"},
			cfg.Store.BuyersCollection + "/B1":  {"name": "Ada"},
		},
		updates: map[string]map[string]any{},
	}

	a, err := app.New(context.Background(), cfg, aws.Config{}, logging.Nop(), app.WithStore(store))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewServer_HealthEndpoint(t *testing.T) {
	a, _ := buildTestApp(t)

	srv, err := newServer(a, testLogger())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestNewServer_ExposesAppProbes(t *testing.T) {
	a, _ := buildTestApp(t)
	a.Probes = append(a.Probes, app.NewProbe("firestore", func(context.Context) error {
		return errors.New("unavailable")
	}))

	srv, err := newServer(a, testLogger())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "firestore") {
		t.Errorf("expected the failing component in the body, got %s", rec.Body.String())
	}
}

func TestNewServer_PostEventRunsCycle(t *testing.T) {
	a, store := buildTestApp(t)

	srv, err := newServer(a, testLogger())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	payload := `{"order_id":"O1","document":{"buyerId":"B1","items":[{"farmerId":"F1"}]}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		OrderID string `json:"order_id"`
		Sent    int    `json:"sent"`
		Failed  int    `json:"failed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode event response: %v", err)
	}
	if body.OrderID != "O1" || body.Sent != 2 || body.Failed != 0 {
		t.Errorf("unexpected summary %+v", body)
	}
	if _, ok := store.updates[a.Config.Store.OrdersCollection+"/O1"]; !ok {
		t.Error("expected the order to be marked notified")
	}
}

func TestNewServer_MetricsEndpoint(t *testing.T) {
	a, _ := buildTestApp(t)

	srv, err := newServer(a, testLogger())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}

func TestPubsubClientOptions(t *testing.T) {
	cfg := &config.Config{}
	if opts := pubsubClientOptions(cfg); len(opts) != 0 {
		t.Errorf("expected no options without credentials, got %d", len(opts))
	}

	cfg.Store.CredentialsJSON = config.SecretString(`{"type":"service_account"}`)
	if opts := pubsubClientOptions(cfg); len(opts) != 1 {
		t.Errorf("expected one credentials option, got %d", len(opts))
	}
}
