package app

import (
	"context"
	"fmt"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/dispatch"
	"github.com/abdulachik/postbot/internal/notify"
	"github.com/abdulachik/postbot/internal/publisher"
	"github.com/abdulachik/postbot/internal/scheduler"
)

// App is the main application container holding all dependencies.
type App struct {
	Config    *config.Config
	Store     *db.Store
	Publisher publisher.Publisher
	Notifier  notify.Notifier
	Executor  *dispatch.Executor
}

// New creates a new application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Create database connection
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	pub, err := publisher.New(publisher.Config{
		Platform: cfg.PublishPlatform,
		X: publisher.XConfig{
			AccessToken: cfg.XAccessToken,
			BaseURL:     cfg.XAPIBaseURL,
		},
		Bluesky: publisher.BlueskyConfig{
			Handle:      cfg.BlueskyHandle,
			AppPassword: cfg.BlueskyAppPassword,
			BaseURL:     cfg.BlueskyBaseURL,
		},
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	notifier := notify.New(cfg.NotifyWebhookURL)

	exec := dispatch.New(dispatch.Config{
		Store:     store,
		Publisher: pub,
		Notifier:  notifier,
		Timeout:   cfg.PublishTimeout,
	})

	return &App{
		Config:    cfg,
		Store:     store,
		Publisher: pub,
		Notifier:  notifier,
		Executor:  exec,
	}, nil
}

// Scheduler builds the scheduling loop over the app's store and executor.
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Store:      a.Store,
		Executor:   a.Executor,
		Publisher:  a.Publisher,
		Interval:   a.Config.DispatchInterval,
		StaleAfter: a.Config.ClaimStaleAfter,
	})
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
