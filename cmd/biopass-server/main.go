package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	_ "time/tzdata"

	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/notify"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/service"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store/memory"
	"github.com/BrandonDHaskell/Biopass/server/internal/biopass/store/postgres"
	sqlitestore "github.com/BrandonDHaskell/Biopass/server/internal/biopass/store/sqlite"
	"github.com/BrandonDHaskell/Biopass/server/internal/config"
	"github.com/BrandonDHaskell/Biopass/server/internal/db"
	"github.com/BrandonDHaskell/Biopass/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Biopass/server/internal/httpapi"
	"github.com/BrandonDHaskell/Biopass/server/internal/observability"
)

type ledgerStore interface {
	store.PersonStore
	store.AttendanceStore
	store.Pinger
}

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (optional)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "biopass-server: %v\n", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	calendar, err := service.LoadCalendar(cfg.Ledger.TimeZone)
	if err != nil {
		return err
	}

	// Store
	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Notifications
	sinks := notify.Multi{notify.LogSink{Logger: logger}}
	var broker store.Pinger

	if cfg.Notify.NATSURL != "" {
		natsSink, err := notify.NewNATSSink(cfg.Notify.NATSURL, cfg.Notify.SubjectPrefix)
		if err != nil {
			return err
		}
		defer natsSink.Close()
		if err := natsSink.EnsureStream(ctx); err != nil {
			return err
		}
		sinks = append(sinks, natsSink)
		broker = natsSink
		logger.Info("publishing notifications to nats", "url", cfg.Notify.NATSURL, "prefix", cfg.Notify.SubjectPrefix)
	}

	var liveFeed http.Handler
	var hub *notify.Hub
	if cfg.Notify.LiveFeed {
		hub = notify.NewHub(logger)
		sinks = append(sinks, hub)
		liveFeed = hub
	}

	dispatcher := service.NewDispatcher(sinks, service.DispatcherConfig{
		QueueSize: cfg.Notify.QueueSize,
		Workers:   cfg.Notify.Workers,
	}, logger)

	// Services
	registry, err := service.NewIdentityRegistry(st, dispatcher, service.RegistryConfig{
		PhonePattern: cfg.Validation.PhonePattern,
	}, logger)
	if err != nil {
		return err
	}
	ledger := service.NewLedger(registry, st, dispatcher, service.LedgerConfig{Calendar: calendar}, logger)
	query := service.NewQueryEngine(registry, st, st)

	monitor := service.NewHealthMonitor(st, service.HealthConfig{Interval: cfg.Health.ProbeInterval()}, logger)

	// Transports
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.Server.HTTPAddr,
		Registry: registry,
		Ledger:   ledger,
		Query:    query,
		Store:    st,
		Broker:   broker,
		LiveFeed: liveFeed,
	})

	var grpcSrv *grpcapi.Server
	var grpcLis net.Listener
	if cfg.Server.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcSrv = grpcapi.NewServer(logger)
		monitor.OnChange(grpcSrv.SetHealthy)
	}

	dispatcher.Start(ctx)
	monitor.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	if hub != nil {
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr, "env", cfg.Server.Env,
			"driver", cfg.Database.Driver, "time_zone", calendar.Location().String())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			return grpcSrv.Serve(grpcLis)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if grpcSrv != nil {
			grpcSrv.Stop(shutdownCtx)
		}
		monitor.Stop()
		// Drain after HTTP so in-flight check-ins still queue their SMS.
		dispatcher.Stop()
		return err
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledgerStore, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil

	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres ready", "host", cfg.Database.Host, "db", cfg.Database.Name)
		return pg, pg.Close, nil

	default:
		conn, err := db.Open(ctx, db.Config{Path: cfg.Database.SQLitePath, Env: cfg.Server.Env})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Server.Env == "dev" && cfg.Database.SeedDev {
			if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
				_ = conn.Close()
				return nil, nil, err
			}
			logger.Info("seeded dev student", "registration_code", "DEV0001", "biometric_key", 1)
		}
		writer := db.NewWorker(conn)
		logger.Info("sqlite ready", "path", cfg.Database.SQLitePath)
		return sqlitestore.New(conn, writer), func() {
			writer.Close()
			_ = conn.Close()
		}, nil
	}
}
