package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ordernotify/internal/types"
)

// mockClock implements types.Clock for deterministic testing.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

// mockLogger implements types.Logger and keeps the messages it was given.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *mockLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *mockLogger) With(args ...any) types.Logger { return l }

// memStore is an in-memory types.DocumentStore.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]map[string]types.Document
	getErrs   map[string]error // keyed by collection/id
	updateErr error
	gets      []string
	updates   []storeUpdate
}

type storeUpdate struct {
	collection string
	id         string
	fields     map[string]any
}

func newMemStore() *memStore {
	return &memStore{
		docs:    make(map[string]map[string]types.Document),
		getErrs: make(map[string]error),
	}
}

func (s *memStore) put(collection, id string, doc types.Document) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]types.Document)
	}
	s.docs[collection][id] = doc
}

func (s *memStore) Get(_ context.Context, collection, id string) (types.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := collection + "/" + id
	s.gets = append(s.gets, key)
	if err := s.getErrs[key]; err != nil {
		return nil, false, err
	}
	doc, ok := s.docs[collection][id]
	return doc, ok, nil
}

func (s *memStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, storeUpdate{collection: collection, id: id, fields: fields})
	return s.updateErr
}

// mockSender records every message and fails sends to the listed tokens.
type mockSender struct {
	mu       sync.Mutex
	sent     []*types.NotificationMessage
	failFor  map[string]error
	failAll  error
	sequence int
}

func (s *mockSender) Send(_ context.Context, msg *types.NotificationMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	if s.failAll != nil {
		return "", s.failAll
	}
	if err := s.failFor[msg.Target.Token]; err != nil {
		return "", err
	}
	s.sequence++
	return fmt.Sprintf("projects/demo/messages/%d", s.sequence), nil
}

func (s *mockSender) sentTo(kind types.TargetKind) []*types.NotificationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.NotificationMessage
	for _, m := range s.sent {
		if m.Target.Kind() == kind {
			out = append(out, m)
		}
	}
	return out
}

// recordingMetrics counts NotificationMetrics calls.
type recordingMetrics struct {
	mu          sync.Mutex
	deliveries  map[MetricResult]int
	latencies   int
	unreachable int
	cycles      []CycleResult
	lags        []string
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{deliveries: make(map[MetricResult]int)}
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, _ types.TargetKind, _ types.RecipientClass, result MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries[result]++
}

func (m *recordingMetrics) RecordLatency(context.Context, types.TargetKind, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *recordingMetrics) RecordUnreachable(_ context.Context, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unreachable += count
}

func (m *recordingMetrics) RecordCycle(_ context.Context, result CycleResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, result)
}

func (m *recordingMetrics) RecordEventLag(_ context.Context, trigger string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lags = append(m.lags, trigger)
}

var errStaleToken = errors.New("registration-token-not-registered")

// orderDoc builds an order document with one item per farmer id.
func orderDoc(buyerID string, farmerIDs ...string) types.Document {
	items := make([]any, 0, len(farmerIDs))
	for i, id := range farmerIDs {
		items = append(items, map[string]any{
			"farmerId":  id,
			"productId": fmt.Sprintf("P%d", i+1),
			"quantity":  int64(1),
		})
	}
	return types.Document{
		"buyerId": buyerID,
		"items":   items,
	}
}
