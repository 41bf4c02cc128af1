package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/m3rciful/videoshop/core/bootstrap"
	"github.com/m3rciful/videoshop/core/cmd"
	"github.com/m3rciful/videoshop/core/logger"
	tg "github.com/m3rciful/videoshop/core/telegram"
	"github.com/m3rciful/videoshop/core/telegram/middleware"
	"github.com/m3rciful/videoshop/core/telegram/router"
	tgsender "github.com/m3rciful/videoshop/core/telegram/sender"
	"github.com/m3rciful/videoshop/internal/broadcast"
	"github.com/m3rciful/videoshop/internal/dedupe"
	"github.com/m3rciful/videoshop/internal/httpserver"
	"github.com/m3rciful/videoshop/internal/metrics"
	"github.com/m3rciful/videoshop/internal/purchase"
	"github.com/m3rciful/videoshop/internal/store"
	"github.com/m3rciful/videoshop/internal/wizard"
	"github.com/m3rciful/videoshop/migrations"
)

// App holds the wired shop.
type App struct {
	cfg *Config

	db         *sqlx.DB
	redis      *dedupe.Redis
	store      *store.Store
	metrics    *metrics.Metrics
	dispatcher *tgsender.Dispatcher
	messenger  *messenger
	handlers   *handlers
	wizard     *wizard.Machine
	http       *httpserver.Server
}

// Bootstrap initializes logging, storage and every collaborator of the bot.
func Bootstrap(ctx context.Context, carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	opts := bootstrap.Options{Config: &cfg.Core}
	if cfg.Store.Driver == StoreSQL {
		opts.Database = &cfg.Database
		opts.Migrations = migrations.FS
	}
	res, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB, messenger: &messenger{}}
	if err := a.wire(ctx); err != nil {
		a.closeInfra()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.cfg

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(reg, cfg.MetricsNamespace)

	persister, err := a.persister()
	if err != nil {
		return err
	}
	a.store, err = store.Open(ctx, a.metrics.InstrumentPersister(persister))
	if err != nil {
		return err
	}

	var guard dedupe.Guard = dedupe.NewMemory(time.Duration(cfg.Redis.TTLHours) * time.Hour)
	if cfg.Redis.Enabled() {
		a.redis, err = dedupe.DialRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		guard = a.redis
		logger.Info(ctx, "app", "dedupe", slog.String("backend", "redis"))
	}

	a.dispatcher = tgsender.NewDispatcher(tgsender.Options{
		QueueSize:    cfg.Sender.QueueSize,
		Workers:      cfg.Sender.Workers,
		MaxRetries:   cfg.Sender.MaxRetries,
		RetryBackoff: time.Duration(cfg.Sender.RetryBackoff) * time.Millisecond,
		Observe:      a.metrics.ObserveSend,
	})

	caster := broadcast.New(broadcast.Options{
		Audience: a.store,
		Sender:   a.messenger,
		Queue:    a.dispatcher,
		Metrics:  a.metrics,
		OnDone: func(r broadcast.Result) {
			logger.Info(context.Background(), "app", "broadcast.done",
				slog.String("job_id", r.JobID),
				slog.Int("count", r.Total),
				slog.Int("sent", r.Sent),
				slog.Int("failed", r.Failed),
			)
		},
	})
	a.wizard = wizard.NewMachine(a.store, caster, a.metrics)

	a.handlers = &handlers{
		cfg:   &cfg.Core,
		store: a.store,
		workflow: purchase.New(purchase.Options{
			Catalog:   a.store,
			Messenger: a.messenger,
			Guard:     guard,
			Metrics:   a.metrics,
		}),
		wizard: a.wizard,
		auth:   adminAuth{store: a.store, cfg: &cfg.Core},
	}

	checks := map[string]httpserver.Check{}
	if a.db != nil {
		checks["database"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	if cfg.HTTP.Addr != "" {
		a.http = httpserver.New(cfg.HTTP.Addr, reg, checks)
	}
	return nil
}

func (a *App) persister() (store.Persister, error) {
	switch a.cfg.Store.Driver {
	case StoreSQL:
		if a.db == nil {
			return nil, errors.New("app: sql store requires a database")
		}
		return store.NewSQLPersister(a.db, a.cfg.Database.Driver)
	default:
		return store.NewFilePersister(a.cfg.Store.Path), nil
	}
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	fb := fallbacks{}
	reg := tg.NewRegistry()
	reg.SetCallbackNotFound(fb.UnknownCallback())
	reg.SetTextFallback(fb.UnknownText())

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		Auth:     a.handlers.auth,
		OnReject: fb.AdminRejected(),
	})
	if err := a.handlers.register(reg, adminOnly); err != nil {
		return tg.RunOptions{}, err
	}

	var routes []tg.Route
	routes = append(routes, router.CommandRoutes(reg, router.CommandRouteOptions{
		Auth:          a.handlers.auth,
		OnAdminReject: fb.AdminRejected(),
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{NotFound: fb.UnknownCallback()}))
	routes = append(routes, router.MessageRoutes(
		wizardRoute{machine: a.wizard, auth: a.handlers.auth},
		reg,
		router.MessageOptions{UnknownText: fb.UnknownText(), UnknownMedia: fb.UnknownMedia()},
	)...)
	routes = append(routes, router.PaymentRoutes(a.handlers)...)

	mws := tg.DefaultMiddlewares(&a.cfg.Core, fb.RateLimited())
	mws = append(mws,
		tg.Middleware{Name: "update_metrics", Use: countUpdates(a.metrics)},
		tg.Middleware{Name: "track_users", Use: trackUsers(a.store)},
	)

	return tg.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Dispatcher:  a.dispatcher,
		Middlewares: mws,
		Routes:      routes,
		OnError:     fb.Failure,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.messenger.attach(rt.Bot)
	if a.http == nil {
		return nil
	}
	go func() {
		if err := a.http.Start(); err != nil {
			logger.Error(ctx, "http", "http.listen", slog.String("status", "fail"), logger.Err(err))
		}
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	var errs []error
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := a.closeInfra(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeInfra() error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
		a.db = nil
	}
	return errors.Join(errs...)
}

var _ cmd.TelegramApp = (*App)(nil)
