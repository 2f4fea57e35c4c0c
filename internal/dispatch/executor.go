// Package dispatch performs single publish attempts for due posts and
// records their outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/notify"
	"github.com/abdulachik/postbot/internal/post"
	"github.com/abdulachik/postbot/internal/publisher"
)

// DefaultTimeout bounds a single publish call when none is configured.
const DefaultTimeout = 30 * time.Second

// Store is the part of the post store the executor writes to.
type Store interface {
	ClaimPost(ctx context.Context, id int64, now time.Time) (db.Post, bool, error)
	UpdatePostStatus(ctx context.Context, arg db.UpdatePostStatusParams) error
}

// Outcome is the result of dispatching one post.
type Outcome int

const (
	// OutcomePosted means the post was published and recorded as posted.
	OutcomePosted Outcome = iota
	// OutcomeFailed means the attempt failed and the post was recorded as failed.
	OutcomeFailed
	// OutcomeSkipped means the post could not be claimed when its turn came.
	OutcomeSkipped
	// OutcomeStoreError means the store could not be updated. A post left
	// claimed is not retried until an operator releases it.
	OutcomeStoreError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePosted:
		return "posted"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeStoreError:
		return "store_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Report tallies the outcomes of a batch.
type Report struct {
	Posted      int
	Failed      int
	Skipped     int
	StoreErrors int
}

// Add counts one outcome.
func (r *Report) Add(o Outcome) {
	switch o {
	case OutcomePosted:
		r.Posted++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeStoreError:
		r.StoreErrors++
	}
}

// Total is the number of posts in the batch.
func (r Report) Total() int {
	return r.Posted + r.Failed + r.Skipped + r.StoreErrors
}

// Executor dispatches posts one at a time.
type Executor struct {
	store     Store
	publisher publisher.Publisher
	notifier  notify.Notifier
	timeout   time.Duration
	now       func() time.Time
}

// Config holds executor dependencies.
type Config struct {
	Store     Store
	Publisher publisher.Publisher
	Notifier  notify.Notifier // optional
	Timeout   time.Duration   // per publish call, defaults to DefaultTimeout
	Now       func() time.Time
}

// New creates a new executor.
func New(cfg Config) *Executor {
	e := &Executor{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		notifier:  cfg.Notifier,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// DispatchAll dispatches posts in order. A failure on one post never stops
// the rest of the batch. Cancelling ctx stops before the next post; posts
// not yet attempted stay scheduled.
func (e *Executor) DispatchAll(ctx context.Context, posts []db.Post) Report {
	var report Report
	for _, p := range posts {
		if ctx.Err() != nil {
			break
		}
		report.Add(e.Dispatch(ctx, p))
	}
	return report
}

// Dispatch claims the post, makes exactly one publish attempt and records the
// resulting status. The published content comes from the claimed row, not
// from listed.
func (e *Executor) Dispatch(ctx context.Context, listed db.Post) Outcome {
	log := slog.With("post_id", listed.ID)

	p, claimed, err := e.store.ClaimPost(ctx, listed.ID, e.now())
	if err != nil {
		log.Error("failed to claim post", "error", err)
		return OutcomeStoreError
	}
	if !claimed {
		log.Debug("post not claimable, skipping")
		return OutcomeSkipped
	}

	// The outcome is recorded even when shutdown cancels ctx mid-publish.
	recordCtx := context.WithoutCancel(ctx)

	media, err := p.DecodeMediaURLs()
	if err != nil {
		return e.fail(recordCtx, log, p, err)
	}

	result, err := e.publish(ctx, p.Content, media)
	if err != nil {
		return e.fail(recordCtx, log, p, err)
	}

	err = e.store.UpdatePostStatus(recordCtx, db.UpdatePostStatusParams{
		ID:       p.ID,
		Status:   post.StatusPosted,
		RemoteID: result.RemoteID,
	})
	if err != nil {
		// The post stays claimed so it is not published a second time.
		log.Error("published but failed to record status",
			"remote_id", result.RemoteID,
			"error", err,
		)
		return OutcomeStoreError
	}

	log.Info("post published",
		"platform", e.publisher.Platform(),
		"remote_id", result.RemoteID,
		"url", result.URL,
		"simulated", result.Simulated,
	)
	return OutcomePosted
}

// publish runs one publisher call under the per-call timeout and turns a
// panic into an error.
func (e *Executor) publish(ctx context.Context, content string, media []string) (result *publisher.Result, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("publisher panic: %v", r)
		}
	}()

	result, err = e.publisher.Publish(ctx, content, media)
	if err != nil {
		return nil, err
	}
	if result == nil || result.RemoteID == "" {
		return nil, errors.New("publisher returned no remote id")
	}
	return result, nil
}

func (e *Executor) fail(ctx context.Context, log *slog.Logger, p db.Post, cause error) Outcome {
	msg := cause.Error()
	if msg == "" {
		msg = "unknown error"
	}

	log.Warn("dispatch failed", "error", msg)

	err := e.store.UpdatePostStatus(ctx, db.UpdatePostStatusParams{
		ID:           p.ID,
		Status:       post.StatusFailed,
		ErrorMessage: msg,
	})
	if err != nil {
		log.Error("failed to record dispatch failure", "error", err)
		return OutcomeStoreError
	}

	if e.notifier != nil {
		n := notify.Notification{
			Subject: fmt.Sprintf("post %d failed to publish", p.ID),
			Body:    msg,
			PostID:  p.ID,
		}
		if err := e.notifier.Send(ctx, n); err != nil {
			log.Warn("failed to send failure notification", "error", err)
		}
	}
	return OutcomeFailed
}
