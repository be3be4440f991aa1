package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"formintake/internal/health"
	"formintake/internal/platform/config"
	"formintake/internal/platform/database"
	"formintake/internal/platform/logger"
	platformmetrics "formintake/internal/platform/metrics"
	redisclient "formintake/internal/platform/redis"
	"formintake/internal/registration/cache"
	"formintake/internal/registration/events"
	"formintake/internal/registration/handler"
	"formintake/internal/registration/metrics"
	"formintake/internal/registration/migrate"
	"formintake/internal/registration/service"
	"formintake/internal/registration/store"
	httptransport "formintake/internal/transport/http"
)

// registrationStore is what every storage backend offers.
type registrationStore interface {
	cache.Store
}

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   registrationStore
	router  http.Handler
	closers []func() error
}

func newApp(cfg config.Config) *app {
	return &app{cfg: cfg, logger: logger.New(cfg.Log)}
}

// buildApp opens storage, runs the startup migration and wires the HTTP surface.
// A migration failure aborts startup.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := newApp(cfg)
	log := a.logger

	registry := platformmetrics.New()
	m := metrics.NewWithRegisterer(registry)

	st, err := a.openStore(ctx, m)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	cached, err := a.wrapCache(ctx, st)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = cached

	svcOpts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, events.WithLogger(log))
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start event publisher: %w", err)
		}
		a.closers = append(a.closers, func() error { pub.Close(); return nil })
		svcOpts = append(svcOpts, service.WithPublisher(pub))
	}

	svc := service.New(a.store, svcOpts...)
	a.router = httptransport.NewRouter(httptransport.Deps{
		Logger:        log,
		Registrations: handler.New(svc, log, m),
		Health:        health.New(a.store, log),
		Metrics:       registry.Handler(),
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context, m *metrics.Metrics) (registrationStore, error) {
	var (
		db     *sql.DB
		target migrate.Target
		st     registrationStore
		err    error
	)
	switch a.cfg.Database.Driver {
	case config.DriverMemory:
		a.logger.Warn("using in-memory storage; records are lost on restart")
		return store.NewInMemory(), nil
	case config.DriverSQLite:
		db, err = database.OpenSQLite(ctx, a.cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		target, st = migrate.NewSQLiteTarget(db), store.NewSQLite(db)
	case config.DriverPostgres:
		db, err = database.OpenPostgres(ctx, a.cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		target, st = migrate.NewPostgresTarget(db), store.NewPostgres(db)
	default:
		return nil, fmt.Errorf("unknown database driver %q", a.cfg.Database.Driver)
	}
	a.closers = append(a.closers, db.Close)

	mgr := migrate.New(target, migrate.WithLogger(a.logger), migrate.WithMetrics(m))
	if err := mgr.EnsureLatest(ctx); err != nil {
		a.logger.ErrorContext(ctx, "schema migration failed", "error", err)
		return nil, err
	}
	return st, nil
}

// migrateOnly brings the schema up to date and releases the database handle,
// whether or not the migration succeeded.
func (a *app) migrateOnly(ctx context.Context) (err error) {
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err := a.openStore(ctx, nil); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "schema up to date", "driver", a.cfg.Database.Driver)
	return nil
}

// wrapCache adds a read-through cache in front of durable stores. Redis is used
// when configured, otherwise an in-process cache.
func (a *app) wrapCache(ctx context.Context, st registrationStore) (registrationStore, error) {
	if a.cfg.Database.Driver == config.DriverMemory || a.cfg.Cache.TTL <= 0 {
		return st, nil
	}
	var backend cache.Backend
	client, err := redisclient.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		a.closers = append(a.closers, client.Close)
		backend = cache.NewRedisBackend(client.Client)
	} else {
		backend = cache.NewMemoryBackend(a.cfg.Cache.TTL, 2*a.cfg.Cache.TTL)
	}
	return cache.New(st, backend, a.cfg.Cache.TTL, cache.WithLogger(a.logger)), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
