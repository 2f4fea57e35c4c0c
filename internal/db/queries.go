package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abdulachik/postbot/internal/post"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries runs the post queries against a connection or transaction.
type Queries struct {
	db DBTX
}

// New creates Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const postColumns = `id, content, media_urls, scheduled_at, status, remote_id, error_message, claimed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (Post, error) {
	var (
		p                      Post
		scheduledAt, claimedAt sql.NullInt64
		createdAt, updatedAt   int64
	)
	err := row.Scan(
		&p.ID,
		&p.Content,
		&p.MediaUrls,
		&scheduledAt,
		&p.Status,
		&p.RemoteID,
		&p.ErrorMessage,
		&claimedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return Post{}, err
	}
	p.ScheduledAt = nullTime(scheduledAt)
	p.ClaimedAt = nullTime(claimedAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func (q *Queries) listPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getPost = `SELECT ` + postColumns + ` FROM posts WHERE id = ?`

// GetPost returns the post with the given id or post.ErrNotFound.
func (q *Queries) GetPost(ctx context.Context, id int64) (Post, error) {
	p, err := scanPost(q.db.QueryRowContext(ctx, getPost, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, fmt.Errorf("%w: id %d", post.ErrNotFound, id)
	}
	return p, err
}

const listDuePosts = `SELECT ` + postColumns + ` FROM posts
WHERE status = 'scheduled' AND scheduled_at <= ? AND claimed_at IS NULL
ORDER BY scheduled_at ASC, id ASC`

// ListDuePosts returns unclaimed scheduled posts whose time is at or before
// now, earliest first. Ties keep insertion order.
func (q *Queries) ListDuePosts(ctx context.Context, now time.Time) ([]Post, error) {
	return q.listPosts(ctx, listDuePosts, toMillis(now))
}

const listAllPosts = `SELECT ` + postColumns + ` FROM posts
ORDER BY scheduled_at DESC, id DESC`

// ListPosts returns every post, latest scheduled first.
func (q *Queries) ListPosts(ctx context.Context) ([]Post, error) {
	return q.listPosts(ctx, listAllPosts)
}

const listUpcomingPosts = `SELECT ` + postColumns + ` FROM posts
WHERE status = 'scheduled' AND scheduled_at > ?
ORDER BY scheduled_at ASC, id ASC`

// ListUpcomingPosts returns scheduled posts that are not yet due.
func (q *Queries) ListUpcomingPosts(ctx context.Context, now time.Time) ([]Post, error) {
	return q.listPosts(ctx, listUpcomingPosts, toMillis(now))
}

const listStaleClaims = `SELECT ` + postColumns + ` FROM posts
WHERE claimed_at IS NOT NULL AND claimed_at <= ?
ORDER BY claimed_at ASC, id ASC`

// ListStaleClaims returns posts claimed at or before the cutoff that never
// had their outcome recorded.
func (q *Queries) ListStaleClaims(ctx context.Context, before time.Time) ([]Post, error) {
	return q.listPosts(ctx, listStaleClaims, toMillis(before))
}

const claimPost = `UPDATE posts SET claimed_at = ?, updated_at = ?
WHERE id = ? AND status = 'scheduled' AND claimed_at IS NULL AND scheduled_at <= ?
RETURNING ` + postColumns

// ClaimPost marks a due scheduled post as being dispatched and returns the
// row as it stands at claim time. It returns false when another dispatcher
// holds the claim or the post is not a due scheduled post.
func (q *Queries) ClaimPost(ctx context.Context, id int64, now time.Time) (Post, bool, error) {
	ms := toMillis(now)
	p, err := scanPost(q.db.QueryRowContext(ctx, claimPost, ms, ms, id, ms))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, false, nil
	}
	if err != nil {
		return Post{}, false, err
	}
	return p, true, nil
}

const releaseClaim = `UPDATE posts SET claimed_at = NULL, updated_at = ?
WHERE id = ? AND claimed_at IS NOT NULL`

// ReleaseClaim clears a dispatch claim so the post becomes eligible again.
func (q *Queries) ReleaseClaim(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, releaseClaim, toMillis(time.Now()), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := q.GetPost(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

const countPostsByStatus = `SELECT status, COUNT(*) FROM posts GROUP BY status ORDER BY status`

// CountPostsByStatus returns the number of posts per status.
func (q *Queries) CountPostsByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := q.db.QueryContext(ctx, countPostsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const insertPost = `INSERT INTO posts (content, media_urls, scheduled_at, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + postColumns

type insertPostParams struct {
	Content     string
	MediaUrls   sql.NullString
	ScheduledAt sql.NullInt64
	Status      post.Status
	Now         time.Time
}

func (q *Queries) insertPost(ctx context.Context, arg insertPostParams) (Post, error) {
	ms := toMillis(arg.Now)
	row := q.db.QueryRowContext(ctx, insertPost,
		arg.Content,
		arg.MediaUrls,
		arg.ScheduledAt,
		arg.Status,
		ms,
		ms,
	)
	return scanPost(row)
}

const updatePostFields = `UPDATE posts
SET content = ?, media_urls = ?, scheduled_at = ?, status = ?, error_message = ?, updated_at = ?
WHERE id = ?`

type updatePostFieldsParams struct {
	ID           int64
	Content      string
	MediaUrls    sql.NullString
	ScheduledAt  sql.NullInt64
	Status       post.Status
	ErrorMessage sql.NullString
	Now          time.Time
}

func (q *Queries) updatePostFields(ctx context.Context, arg updatePostFieldsParams) error {
	_, err := q.db.ExecContext(ctx, updatePostFields,
		arg.Content,
		arg.MediaUrls,
		arg.ScheduledAt,
		arg.Status,
		arg.ErrorMessage,
		toMillis(arg.Now),
		arg.ID,
	)
	return err
}

const updatePostStatus = `UPDATE posts
SET status = ?, remote_id = ?, error_message = ?, claimed_at = NULL, updated_at = ?
WHERE id = ?`

func (q *Queries) updatePostStatus(ctx context.Context, arg UpdatePostStatusParams, now time.Time) error {
	_, err := q.db.ExecContext(ctx, updatePostStatus,
		arg.Status,
		nullString(arg.RemoteID),
		nullString(arg.ErrorMessage),
		toMillis(now),
		arg.ID,
	)
	return err
}

const deletePost = `DELETE FROM posts WHERE id = ?`

func (q *Queries) deletePost(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deletePost, id)
	return err
}
