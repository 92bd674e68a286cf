// Package app wires configuration, storage, the engine service and the
// event publishers into one handle shared by the liferpg binaries.
package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/JamesPrial/liferpg/internal/config"
	"github.com/JamesPrial/liferpg/internal/engine"
	"github.com/JamesPrial/liferpg/internal/notify"
	"github.com/JamesPrial/liferpg/internal/session"
	"github.com/JamesPrial/liferpg/internal/storage"
)

// App is an opened liferpg instance. Close releases the store and the NATS
// connection.
type App struct {
	Config  *config.Config
	Service *engine.Service
	Session *session.Session
	User    *engine.User

	store  engine.Store
	bridge *notify.Bridge
	logger *log.Logger
}

// Open takes a resolved configuration (see config.Load). It opens the store,
// seeds the default categories, signs in cfg.User and, when cfg.NATSURL is
// set, connects the NATS bridge. A NATS failure is logged and the app runs
// without the bridge.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Session: session.New(),
		store:   store,
		logger:  logger,
	}

	if cfg.Debug {
		logger.Printf("opened %s store (timezone %s)", cfg.Storage.Backend, cfg.Location())
	}

	opts := []engine.Option{
		engine.WithLocation(cfg.Location()),
		engine.WithLogger(logger),
		engine.WithPublisher(a.Session),
	}
	if cfg.NATSURL != "" {
		bridge, err := notify.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Printf("NATS bridge disabled: %v", err)
		} else {
			a.bridge = bridge
			opts = append(opts, engine.WithPublisher(bridge))
		}
	}
	a.Service = engine.NewService(store, opts...)

	if _, err := a.Service.SeedDefaultCategories(ctx); err != nil {
		a.Close()
		return nil, err
	}
	user, err := a.Service.EnsureUser(ctx, cfg.User)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to sign in %q: %w", cfg.User, err)
	}
	a.User = user
	a.Session.Set(user)
	return a, nil
}

// Close flushes and closes the NATS bridge, closes the session and the store.
func (a *App) Close() error {
	if a.bridge != nil {
		if err := a.bridge.Flush(); err != nil {
			a.logger.Printf("NATS flush: %v", err)
		}
		a.bridge.Close()
	}
	a.Session.Close()
	return a.store.Close()
}
