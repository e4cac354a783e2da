// Package notify holds the delivery sinks behind the notification
// dispatcher.  Actual SMS/e-mail delivery is downstream of the NATS sink.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
)

// LogSink writes each notification to the logger.  It is the default sink
// when no broker is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, n service.Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"person_id", n.PersonID,
		"to", n.Phone,
		"message", n.Message,
	)
	return nil
}

// Multi fans a notification out to every sink.  All sinks are tried; their
// errors are joined.
type Multi []service.Sink

func (m Multi) Send(ctx context.Context, n service.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
