package external

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"ordernotify/internal/types"
)

// stubSender returns err for every send and counts calls.
type stubSender struct {
	calls int
	err   error
}

func (s *stubSender) Send(context.Context, *types.NotificationMessage) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "ok", nil
}

// nopLogger implements types.Logger as a no-op for tests.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (nopLogger) Warn(string, ...any)        {}
func (l nopLogger) With(...any) types.Logger { return l }

var testMsg = &types.NotificationMessage{Title: "x", Target: types.TopicTarget("order_updates")}

func TestBreakerSender_OpensAfterConsecutiveFailures(t *testing.T) {
	next := &stubSender{err: types.NewAppError(types.ErrCodeUpstreamUnavailable, "down", nil)}
	b := NewBreakerSender(next, BreakerSettings{Name: "test", MaxFailures: 3, OpenTimeout: time.Minute}, nopLogger{})

	for i := 0; i < 3; i++ {
		_, _ = b.Send(context.Background(), testMsg)
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	_, err := b.Send(context.Background(), testMsg)
	if !types.IsCode(err, types.ErrCodeUpstreamUnavailable) {
		t.Errorf("expected upstream_unavailable, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Error("expected ErrOpenState in the chain")
	}
	if next.calls != 3 {
		t.Errorf("open breaker should not call the provider, got %d calls", next.calls)
	}
}

func TestBreakerSender_InvalidTokensDoNotTrip(t *testing.T) {
	next := &stubSender{err: types.NewAppError(types.ErrCodeUpstreamInvalidToken, "unregistered", nil)}
	b := NewBreakerSender(next, BreakerSettings{Name: "test", MaxFailures: 2}, nopLogger{})

	for i := 0; i < 5; i++ {
		_, err := b.Send(context.Background(), testMsg)
		if !types.IsCode(err, types.ErrCodeUpstreamInvalidToken) {
			t.Fatalf("expected the provider error to pass through, got %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("expected closed breaker, got %s", b.State())
	}
	if next.calls != 5 {
		t.Errorf("expected 5 provider calls, got %d", next.calls)
	}
}

func TestBreakerSender_Success(t *testing.T) {
	b := NewBreakerSender(&stubSender{}, BreakerSettings{}, nopLogger{})

	id, err := b.Send(context.Background(), testMsg)
	if err != nil || id != "ok" {
		t.Errorf("Send() = (%q, %v)", id, err)
	}
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(nopLogger{})

	first, _ := s.Send(context.Background(), testMsg)
	second, _ := s.Send(context.Background(), testMsg)

	if first != "log-1" || second != "log-2" {
		t.Errorf("ids = %q, %q", first, second)
	}
}
