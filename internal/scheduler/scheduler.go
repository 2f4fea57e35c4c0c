package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/dispatch"
	"github.com/abdulachik/postbot/internal/publisher"
	"github.com/robfig/cron/v3"
)

// DefaultInterval is the time between ticks.
const DefaultInterval = time.Minute

// Store is the read side of the post store used by the scheduler.
type Store interface {
	ListDuePosts(ctx context.Context, now time.Time) ([]db.Post, error)
	ListStaleClaims(ctx context.Context, before time.Time) ([]db.Post, error)
}

// Scheduler finds due posts on a fixed cadence and hands them to the
// dispatch executor.
type Scheduler struct {
	store      Store
	executor   *dispatch.Executor
	publisher  publisher.Publisher
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	health     *Health
}

// Config holds scheduler configuration.
type Config struct {
	Store      Store
	Executor   *dispatch.Executor
	Publisher  publisher.Publisher // used for the startup credential check
	Interval   time.Duration
	StaleAfter time.Duration // claims older than this are reported at startup
	Now        func() time.Time
}

// New creates a new scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		store:      cfg.Store,
		executor:   cfg.Executor,
		publisher:  cfg.Publisher,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		now:        cfg.Now,
		health:     NewHealth(),
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Run ticks once immediately and then on every interval until ctx is
// cancelled. It waits for a running tick to finish and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("starting scheduler", "interval", s.interval)

	s.checkPublisher(ctx)
	s.reportStaleClaims(ctx)

	// Catch up on posts that came due while the process was down.
	s.runTick(ctx)

	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.runTick(ctx)
	}))
	c.Start()

	<-ctx.Done()
	slog.Info("scheduler shutting down")
	<-c.Stop().Done()

	return ctx.Err()
}

// Tick dispatches every post due at the current time, earliest first. Only
// a failure to list due posts is returned; per-post failures are recorded
// on the posts and counted in the report.
func (s *Scheduler) Tick(ctx context.Context) (dispatch.Report, error) {
	now := s.now()

	due, err := s.store.ListDuePosts(ctx, now)
	if err != nil {
		s.health.SetUnhealthy(ComponentStore, err)
		return dispatch.Report{}, fmt.Errorf("list due posts: %w", err)
	}
	s.health.SetHealthy(ComponentStore, "listed due posts")

	if len(due) == 0 {
		slog.Debug("no posts due", "now", now)
		return dispatch.Report{}, nil
	}

	slog.Info("dispatching due posts", "count", len(due))
	report := s.executor.DispatchAll(ctx, due)

	if report.StoreErrors > 0 {
		s.health.SetUnhealthy(ComponentDispatch,
			fmt.Errorf("%d of %d posts could not be recorded", report.StoreErrors, report.Total()))
	} else {
		s.health.SetHealthy(ComponentDispatch, fmt.Sprintf("dispatched %d posts", report.Total()))
	}

	slog.Info("tick complete",
		"posted", report.Posted,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"store_errors", report.StoreErrors,
	)
	return report, nil
}

func (s *Scheduler) runTick(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("tick failed", "error", err)
	}
	s.logHealth()
}

// logHealth warns about every component still unhealthy after a tick.
func (s *Scheduler) logHealth() {
	if s.health.IsOverallHealthy() {
		return
	}
	for _, name := range s.health.Unhealthy() {
		st := s.health.GetStatus(name)
		if st == nil {
			continue
		}
		slog.Warn("component unhealthy",
			"component", name,
			"error", st.Message,
			"last_success", st.LastSuccess,
		)
	}
}

// checkPublisher verifies credentials for health reporting only. An
// unconfigured publisher runs in simulation mode and is not an error.
func (s *Scheduler) checkPublisher(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	if !s.publisher.Configured() {
		slog.Warn("publisher not configured, posts will be simulated", "platform", s.publisher.Platform())
		s.health.SetHealthy(ComponentPublisher, "simulated")
		return
	}

	id, err := s.publisher.VerifyCredentials(ctx)
	if err != nil {
		s.health.SetUnhealthy(ComponentPublisher, err)
		slog.Error("failed to verify publisher credentials",
			"platform", s.publisher.Platform(),
			"error", err,
		)
		return
	}
	s.health.SetHealthy(ComponentPublisher, "authenticated as "+id.Username)
	slog.Info("publisher authenticated", "platform", s.publisher.Platform(), "username", id.Username)
}

// reportStaleClaims logs posts left claimed by an earlier run. They are not
// retried automatically because they may already have been published.
func (s *Scheduler) reportStaleClaims(ctx context.Context) {
	if s.staleAfter <= 0 {
		return
	}
	stale, err := s.store.ListStaleClaims(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		slog.Warn("failed to list stale claims", "error", err)
		return
	}
	for _, p := range stale {
		slog.Warn("post stuck in dispatch, check the platform and run 'post release' if it was not published",
			"post_id", p.ID,
			"claimed_at", p.ClaimedAt.Time,
		)
	}
}

// Health returns the health tracker.
func (s *Scheduler) Health() *Health {
	return s.health
}
