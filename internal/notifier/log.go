package notifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/ucademy/orderflow/internal/domain/notification"
)

var _ notification.Sink = (*LogSink)(nil)

// LogSink writes events to the application log. It is the default sink when
// no broker is configured, keeping local runs free of infrastructure.
type LogSink struct {
	lg *zap.Logger
}

// NewLogSink creates a LogSink over the given logger.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

// Emit logs the event.
func (s *LogSink) Emit(_ context.Context, ev notification.Event) error {
	s.lg.Info("notification",
		zap.String("recipient", ev.RecipientID),
		zap.String("kind", string(ev.Kind)),
		zap.String("message", ev.Message),
		zap.String("link", ev.Link))
	return nil
}
