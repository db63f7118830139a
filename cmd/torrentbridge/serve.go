package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/torrentbridge/handler"
	"github.com/dmitrymomot/torrentbridge/modules/content"
	"github.com/dmitrymomot/torrentbridge/modules/popup"
	"github.com/dmitrymomot/torrentbridge/pkg/httpserver"
	"github.com/dmitrymomot/torrentbridge/pkg/logger"
	"github.com/dmitrymomot/torrentbridge/pkg/notifications"
	"github.com/dmitrymomot/torrentbridge/pkg/redis"
	"github.com/dmitrymomot/torrentbridge/pkg/requestid"
	"github.com/dmitrymomot/torrentbridge/pkg/secrets"
	"github.com/dmitrymomot/torrentbridge/pkg/store"
	"github.com/dmitrymomot/torrentbridge/svc/authfetch"
	"github.com/dmitrymomot/torrentbridge/svc/downloads"
	"github.com/dmitrymomot/torrentbridge/svc/host"
	"github.com/dmitrymomot/torrentbridge/svc/runtime"
	"github.com/dmitrymomot/torrentbridge/svc/session"
	"github.com/dmitrymomot/torrentbridge/svc/state"
)

const credentialsPurpose = "saved-password"

// app is the wired daemon.
type app struct {
	log         *slog.Logger
	store       store.Store
	notes       *notifications.BroadcastNotifier
	downloads   *host.DirDownloads
	interceptor *content.Interceptor
	watcher     *downloads.Watcher
	api         *API
	closers     []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// build wires every component against cfg.
func build(ctx context.Context, cfg Config, log *slog.Logger) (*app, error) {
	a := &app{log: log}
	checks := map[string]httpserver.Check{}

	st, err := openStore(ctx, cfg, log, a, checks)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = st
	if err := state.SeedServerURL(ctx, st, cfg.ServerURL); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("seed server url: %w", err)
	}

	client := host.NewHTTPClient(cfg.HTTPTimeout)
	client.Transport = requestid.Transport(nil)

	a.notes = notifications.NewBroadcastNotifier(32)
	a.closers = append(a.closers, a.notes.Close)
	notifier := notifications.NewMultiNotifier(
		[]notifications.Notifier{notifications.NewLogNotifier(log), a.notes},
		notifications.WithMultiNotifierLogger(log),
	)

	caps := host.Capabilities{Storage: st, Network: client, Notifications: notifier}
	if cfg.DownloadDir != "" {
		dl, err := host.NewDirDownloads(cfg.DownloadDir, cfg.DownloadPollInterval, host.WithDownloadsLogger(log))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.downloads = dl
		caps.Downloads = dl
	}

	sessionOpts := []session.Option{session.WithLogger(log)}
	if cfg.CredentialsKey != "" {
		key, err := secrets.ParseKey(cfg.CredentialsKey)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("credentials key: %w", err)
		}
		box, err := secrets.NewBox(key, credentialsPurpose)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("credentials key: %w", err)
		}
		sessionOpts = append(sessionOpts, session.WithCredentialsBox(box))
	}

	mgr := session.NewManager(caps, sessionOpts...)
	fetch := authfetch.New(caps, mgr, authfetch.WithLogger(log))
	bus := runtime.NewBus(runtime.NewRouter(caps, fetch, mgr, runtime.WithRouterLogger(log)), log)
	errHandler := handler.NewErrorHandler(log)

	a.interceptor = content.NewInterceptor(caps, bus, content.WithLogger(log), content.WithErrorHandler(errHandler))
	a.watcher = downloads.NewWatcher(caps, fetch, downloads.WithLogger(log))
	ctrl := popup.NewController(caps, mgr, bus, popup.WithLogger(log), popup.WithErrorHandler(errHandler))

	checks["store"] = func(ctx context.Context) error {
		_, err := st.Get(ctx, state.KeyServerURL)
		return err
	}

	a.api = &API{
		Runtime:      runtime.Handler(bus, errHandler),
		Content:      a.interceptor,
		Popup:        ctrl,
		Notes:        a.notes,
		Store:        st,
		Health:       httpserver.HealthHandler(log, 5*time.Second, checks),
		ErrorHandler: errHandler,
	}
	return a, nil
}

func openStore(ctx context.Context, cfg Config, log *slog.Logger, a *app, checks map[string]httpserver.Check) (store.Store, error) {
	opts := []store.Option{store.WithPrefix(cfg.StorePrefix), store.WithLogger(log)}

	switch cfg.StoreDriver {
	case DriverMemory:
		s := store.NewMemoryStore(opts...)
		a.closers = append(a.closers, s.Close)
		return s, nil
	case DriverSQLite:
		s, err := store.OpenSQLite(cfg.SQLiteDSN, opts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	case DriverRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		checks["redis"] = redis.Healthcheck(client)
		s, err := store.NewRedisStore(ctx, client, opts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.StoreDriver)
	}
}

// run starts the background loops and the HTTP server and blocks until ctx
// is cancelled or one of them fails.
func (a *app) run(ctx context.Context, srv *httpserver.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	a.interceptor.Start(ctx)

	g.Go(func() error { return srv.Run(ctx, a.api.Router()) })
	if a.downloads != nil {
		g.Go(func() error { return a.downloads.Run(ctx) })
	}
	g.Go(func() error { return a.watcher.Run(ctx) })
	g.Go(func() error {
		store.Watch(ctx, a.store, func(c store.Changes) {
			a.log.DebugContext(ctx, "state changed", logger.Keys(c.Keys()))
		})
		return nil
	})

	return g.Wait()
}

func serve(ctx context.Context, cfg Config, log *slog.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("shutdown", logger.Error(err))
		}
	}()

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return a.run(ctx, srv)
}
