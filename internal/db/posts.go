package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abdulachik/postbot/internal/post"
)

// CreatePost validates and stores a new draft or scheduled post.
func (s *Store) CreatePost(ctx context.Context, arg CreatePostParams) (Post, error) {
	if arg.Status == "" {
		arg.Status = post.StatusScheduled
	}
	if err := post.ValidateNew(arg.Content, arg.Status, arg.ScheduledAt); err != nil {
		return Post{}, err
	}
	media, err := encodeMediaURLs(arg.MediaURLs)
	if err != nil {
		return Post{}, err
	}

	p, err := s.insertPost(ctx, insertPostParams{
		Content:     arg.Content,
		MediaUrls:   media,
		ScheduledAt: nullMillis(arg.ScheduledAt),
		Status:      arg.Status,
		Now:         time.Now(),
	})
	if err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

// UpdatePostFields applies a user edit. Posted posts and posts with an
// outstanding dispatch claim are rejected unchanged.
func (s *Store) UpdatePostFields(ctx context.Context, id int64, edit post.Edit) (Post, error) {
	var updated Post
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		q := s.WithTx(tx)
		cur, err := q.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if cur.ClaimedAt.Valid {
			return post.ErrInFlight
		}

		target, err := post.ValidateEdit(cur.Status, cur.ScheduledTime(), edit)
		if err != nil {
			return err
		}

		arg := updatePostFieldsParams{
			ID:           id,
			Content:      cur.Content,
			MediaUrls:    cur.MediaUrls,
			ScheduledAt:  nullMillis(cur.ScheduledTime()),
			Status:       target,
			ErrorMessage: cur.ErrorMessage,
			Now:          time.Now(),
		}
		if edit.Content != nil {
			arg.Content = *edit.Content
		}
		if edit.MediaURLs != nil {
			if arg.MediaUrls, err = encodeMediaURLs(*edit.MediaURLs); err != nil {
				return err
			}
		}
		if edit.ScheduledAt != nil {
			arg.ScheduledAt = nullMillis(edit.ScheduledAt)
		}
		// The error message belongs to the failed state only.
		if target != post.StatusFailed {
			arg.ErrorMessage = sql.NullString{}
		}

		if err := q.updatePostFields(ctx, arg); err != nil {
			return fmt.Errorf("update post %d: %w", id, err)
		}
		updated, err = q.GetPost(ctx, id)
		return err
	})
	if err != nil {
		return Post{}, err
	}
	return updated, nil
}

// UpdatePostStatus records a dispatch outcome and clears the claim. Only the
// scheduled -> posted and scheduled -> failed transitions are accepted.
func (s *Store) UpdatePostStatus(ctx context.Context, arg UpdatePostStatusParams) error {
	if err := post.ValidateOutcome(arg.Status, arg.RemoteID, arg.ErrorMessage); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		q := s.WithTx(tx)
		cur, err := q.GetPost(ctx, arg.ID)
		if err != nil {
			return err
		}
		if err := post.CheckTransition(post.ActorDispatcher, cur.Status, arg.Status); err != nil {
			return err
		}
		if err := q.updatePostStatus(ctx, arg, time.Now()); err != nil {
			return fmt.Errorf("update status of post %d: %w", arg.ID, err)
		}
		return nil
	})
}

// DeletePost removes a post. Posts being dispatched cannot be deleted.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		q := s.WithTx(tx)
		cur, err := q.GetPost(ctx, id)
		if err != nil {
			return err
		}
		if cur.ClaimedAt.Valid {
			return post.ErrInFlight
		}
		return q.deletePost(ctx, id)
	})
}
