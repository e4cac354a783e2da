package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

// HealthMonitor periodically pings the store and publishes the result to
// the store_up gauge and to any registered listeners (the gRPC health
// server, /readyz).  It runs as a background goroutine and is safe to stop
// via its context or the Stop method.
type HealthMonitor struct {
	pinger   store.Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	healthy atomic.Bool

	mu        sync.Mutex
	listeners []func(healthy bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// HealthConfig holds the parameters for NewHealthMonitor.
type HealthConfig struct {
	// Interval between probes.  Defaults to 15s.
	Interval time.Duration

	// Timeout bounds a single probe.  Defaults to 3s.
	Timeout time.Duration
}

// NewHealthMonitor creates a monitor but does not start it.
func NewHealthMonitor(p store.Pinger, cfg HealthConfig, logger *slog.Logger) *HealthMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthMonitor{
		pinger:   p,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// OnChange registers fn to be called after every probe.  Register before
// Start.
func (m *HealthMonitor) OnChange(fn func(healthy bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Healthy reports the result of the last probe.
func (m *HealthMonitor) Healthy() bool {
	return m.healthy.Load()
}

// Check probes the store now and publishes the result.
func (m *HealthMonitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	ok := err == nil
	was := m.healthy.Swap(ok)

	if ok {
		observability.StoreUp.Set(1)
		if !was {
			m.logger.Info("store reachable")
		}
	} else {
		observability.StoreUp.Set(0)
		m.logger.Error("store probe failed", "error", err)
	}

	m.mu.Lock()
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ok)
	}
	return ok
}

// Start begins the probe loop with an immediate probe.  The loop exits
// when ctx is cancelled or Stop is called.
func (m *HealthMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
	m.logger.Info("store health monitor started", "interval", m.interval.String())
}

// Stop signals the monitor to exit and waits for it to finish.
func (m *HealthMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
