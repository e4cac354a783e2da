package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

type NotificationKind string

const (
	NotificationRegistered NotificationKind = "registered"
	NotificationCheckedIn  NotificationKind = "checked_in"
)

// Notification is handed to a Notifier after a registration or a first
// check-in of the day.  Phone is normalised to a leading "+".
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	PersonID   string           `json:"person_id"`
	Name       string           `json:"name"`
	Phone      string           `json:"phone"`
	Email      string           `json:"email"`
	Message    string           `json:"message"`
	OccurredAt time.Time        `json:"occurred_at"`
	EventID    int64            `json:"event_id,omitempty"`
}

// Notifier must not block the caller and has no failure mode visible to it.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Sink delivers one notification.  Dispatcher workers call Send.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}

func registeredNotification(p store.PersonRecord) Notification {
	return Notification{
		Kind:       NotificationRegistered,
		PersonID:   p.PersonID,
		Name:       p.Name,
		Phone:      NormalizePhone(p.Phone),
		Email:      p.Email,
		Message:    fmt.Sprintf("Welcome %s, you are registered with code %s.", p.Name, p.RegistrationCode),
		OccurredAt: p.EnrolledAt,
	}
}

func checkedInNotification(p store.PersonRecord, ev store.AttendanceRecord, loc *time.Location) Notification {
	return Notification{
		Kind:       NotificationCheckedIn,
		PersonID:   p.PersonID,
		Name:       p.Name,
		Phone:      NormalizePhone(p.Phone),
		Email:      p.Email,
		Message:    fmt.Sprintf("Attendance marked for %s at %s.", p.Name, ev.RecordedAt.In(loc).Format("2006-01-02 15:04")),
		OccurredAt: ev.RecordedAt,
		EventID:    ev.EventID,
	}
}

// NormalizePhone prefixes a "+" when the number lacks one.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return "+" + phone
}

// DispatcherConfig holds the parameters for NewDispatcher.
type DispatcherConfig struct {
	// QueueSize bounds the buffered notifications.  Defaults to 256.
	QueueSize int

	// Workers is the number of goroutines calling the sink.  Defaults to 2.
	Workers int

	// SendTimeout bounds a single Sink.Send.  Defaults to 10s.
	SendTimeout time.Duration
}

// Dispatcher is a Notifier backed by a bounded queue and a pool of workers.
// Notify never blocks: when the queue is full the notification is dropped
// and counted.
type Dispatcher struct {
	sink    Sink
	queue   chan Notification
	workers int
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sink:    sink,
		queue:   make(chan Notification, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.SendTimeout,
		logger:  logger,
	}
}

// Start launches the workers.  ctx is the parent of every Send context.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(context.WithoutCancel(ctx))
	}
	d.logger.Info("notification dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

// Stop refuses new notifications, drains the queue and waits for workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) Notify(_ context.Context, n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(n, "dispatcher stopped")
		return
	}

	select {
	case d.queue <- n:
		observability.NotifyQueueDepth.Set(float64(len(d.queue)))
	default:
		d.drop(n, "queue full")
	}
}

func (d *Dispatcher) drop(n Notification, reason string) {
	observability.Notifications.WithLabelValues(string(n.Kind), "dropped").Inc()
	d.logger.Warn("notification dropped", "kind", n.Kind, "person_id", n.PersonID, "reason", reason)
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		observability.NotifyQueueDepth.Set(float64(len(d.queue)))
		d.send(ctx, n)
	}
}

func (d *Dispatcher) send(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sink.Send(ctx, n); err != nil {
		observability.Notifications.WithLabelValues(string(n.Kind), "failed").Inc()
		d.logger.Error("notification failed", "kind", n.Kind, "person_id", n.PersonID, "error", err)
		return
	}
	observability.Notifications.WithLabelValues(string(n.Kind), "sent").Inc()
}
