package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
)

const (
	NotificationsStreamName  = "NOTIFICATIONS"
	DefaultSubjectPrefix     = "notifications"
	notificationsMaxAge      = 72 * time.Hour
	notificationsDuplicateIn = 2 * time.Minute
)

// NATSSink publishes notifications to JetStream under <prefix>.<kind> for
// an external delivery service to consume.
type NATSSink struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

func NewNATSSink(natsURL, prefix string) (*NATSSink, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("biopass-server"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &NATSSink{nc: nc, js: js, prefix: prefix}, nil
}

// EnsureStream creates or updates the notifications stream.  Retries for a
// while to ride out broker startup.
func (s *NATSSink) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        NotificationsStreamName,
		Subjects:    []string{s.prefix + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      notificationsMaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  notificationsDuplicateIn,
		Description: "Registration and check-in notifications awaiting delivery",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := s.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// Subject returns the subject a notification of kind is published on.
func (s *NATSSink) Subject(kind service.NotificationKind) string {
	return s.prefix + "." + string(kind)
}

func (s *NATSSink) Send(ctx context.Context, n service.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := s.js.Publish(ctx, s.Subject(n.Kind), payload, jetstream.WithMsgID(MessageID(n))); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// MessageID de-duplicates republished notifications within the stream's
// duplicate window.
func MessageID(n service.Notification) string {
	id := string(n.Kind) + ":" + n.PersonID
	if n.EventID != 0 {
		id += ":" + strconv.FormatInt(n.EventID, 10)
	}
	return id
}

// Ping reports whether the broker connection is up.  It satisfies
// store.Pinger so /readyz can probe it alongside the store.
func (s *NATSSink) Ping(_ context.Context) error {
	if !s.nc.IsConnected() {
		return fmt.Errorf("nats not connected (status %s)", s.nc.Status())
	}
	return nil
}

func (s *NATSSink) Close() {
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
	}
}
