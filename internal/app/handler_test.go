package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordernotify/internal/events"
	"ordernotify/internal/logging"
	"ordernotify/internal/notifications/core"
	"ordernotify/internal/types"
)

type stubProcessor struct {
	err    error
	events []types.OrderEvent
}

func (p *stubProcessor) Process(_ context.Context, event types.OrderEvent) (*core.CycleReport, error) {
	p.events = append(p.events, event)
	return &core.CycleReport{OrderID: event.OrderID}, p.err
}

type recordingSink struct {
	mu     sync.Mutex
	err    error
	events []types.OrderEvent
	causes []error
}

func (s *recordingSink) Publish(_ context.Context, event types.OrderEvent, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.causes = append(s.causes, cause)
	return s.err
}

type lagMetrics struct {
	core.NopMetrics
	triggers []string
	lags     []time.Duration
}

func (m *lagMetrics) RecordEventLag(_ context.Context, trigger string, lag time.Duration) {
	m.triggers = append(m.triggers, trigger)
	m.lags = append(m.lags, lag)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func malformed() error {
	return types.NewAppError(types.ErrCodeMalformedOrder, "order has no items list", nil)
}

func TestEventHandler_Success(t *testing.T) {
	proc := &stubProcessor{}
	sink := &recordingSink{}
	h := NewEventHandler(proc, sink, nil, nil, TriggerSQS, logging.Nop())

	report, err := h.Handle(context.Background(), types.OrderEvent{OrderID: "O1"})

	require.NoError(t, err)
	assert.Equal(t, "O1", report.OrderID)
	assert.Empty(t, sink.events)
}

func TestEventHandler_MalformedIsDeadLettered(t *testing.T) {
	proc := &stubProcessor{err: malformed()}
	sink := &recordingSink{}
	h := NewEventHandler(proc, sink, nil, nil, TriggerPubSub, logging.Nop())

	_, err := h.Handle(context.Background(), types.OrderEvent{OrderID: "O1"})

	require.Error(t, err)
	assert.True(t, Permanent(err))
	require.Len(t, sink.events, 1)
	assert.Equal(t, "O1", sink.events[0].OrderID)
	assert.True(t, types.IsCode(sink.causes[0], types.ErrCodeMalformedOrder))
}

func TestEventHandler_DeadLetterFailureIsRetryable(t *testing.T) {
	proc := &stubProcessor{err: malformed()}
	sink := &recordingSink{err: errors.New("sqs down")}
	h := NewEventHandler(proc, sink, nil, nil, TriggerSQS, logging.Nop())

	_, err := h.Handle(context.Background(), types.OrderEvent{OrderID: "O1"})

	require.Error(t, err)
	assert.False(t, Permanent(err), "a lost dead-letter forward must be redelivered")
}

func TestEventHandler_RecordFailureIsRetryable(t *testing.T) {
	proc := &stubProcessor{err: types.NewAppError(types.ErrCodeRecordUpdateFailure, "update failed", nil)}
	sink := &recordingSink{}
	h := NewEventHandler(proc, sink, nil, nil, TriggerSQS, logging.Nop())

	report, err := h.Handle(context.Background(), types.OrderEvent{OrderID: "O1"})

	require.Error(t, err)
	assert.NotNil(t, report)
	assert.False(t, Permanent(err))
	assert.Empty(t, sink.events)
}

func TestEventHandler_RecordsEventLag(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 5, 0, time.UTC)
	metrics := &lagMetrics{}
	h := NewEventHandler(&stubProcessor{}, nil, metrics, fixedClock{now}, TriggerHTTP, logging.Nop())

	_, err := h.Handle(context.Background(), types.OrderEvent{OrderID: "O1", OccurredAt: now.Add(-5 * time.Second)})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), types.OrderEvent{OrderID: "O2"})
	require.NoError(t, err)

	assert.Equal(t, []string{TriggerHTTP}, metrics.triggers)
	assert.Equal(t, []time.Duration{5 * time.Second}, metrics.lags)
}

func TestEventHandler_HandleBody(t *testing.T) {
	proc := &stubProcessor{}
	h := NewEventHandler(proc, nil, nil, nil, TriggerSQS, logging.Nop())

	_, err := h.HandleBody(context.Background(), []byte(`{"order_id":"O9","document":{"items":[]}}`), events.Meta{EventID: "m-1"})

	require.NoError(t, err)
	require.Len(t, proc.events, 1)
	assert.Equal(t, "O9", proc.events[0].OrderID)
	assert.Equal(t, "m-1", proc.events[0].EventID)
}

func TestEventHandler_HandleBody_Undecodable(t *testing.T) {
	proc := &stubProcessor{}
	sink := &recordingSink{}
	h := NewEventHandler(proc, sink, nil, nil, TriggerSQS, logging.Nop())

	report, err := h.HandleBody(context.Background(), []byte("not json"), events.Meta{})

	assert.Nil(t, report)
	assert.True(t, Permanent(err))
	assert.Empty(t, proc.events)
	assert.Empty(t, sink.events)
}

func TestPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"malformed", malformed(), true},
		{"missing id", types.NewAppError(types.ErrCodeValidationMissingID, "x", nil), true},
		{"bad payload", types.NewAppError(types.ErrCodeValidationPayload, "x", nil), true},
		{"record failure", types.NewAppError(types.ErrCodeRecordUpdateFailure, "x", nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Permanent(tt.err))
		})
	}
}
