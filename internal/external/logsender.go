package external

import (
	"context"
	"fmt"
	"sync/atomic"

	"ordernotify/internal/types"
)

// LogSender implements PushSender by logging each message instead of
// delivering it. Used with PUSH_PROVIDER=log so the notifier can run
// locally without provider credentials.
type LogSender struct {
	logger types.Logger
	seq    atomic.Int64
}

var _ types.PushSender = (*LogSender)(nil)

// NewLogSender creates a LogSender.
func NewLogSender(logger types.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg *types.NotificationMessage) (string, error) {
	id := fmt.Sprintf("log-%d", s.seq.Add(1))
	s.logger.Info("stub: push send",
		"delivery_id", id,
		"target", msg.Target.LogValue(),
		"title", msg.Title,
		"body", msg.Body,
		"data", msg.Data,
	)
	return id, nil
}
