package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/abdulachik/postbot/internal/post"
)

// Post is a stored post record.
type Post struct {
	ID           int64
	Content      string
	MediaUrls    sql.NullString // JSON array of URLs
	ScheduledAt  sql.NullTime
	Status       post.Status
	RemoteID     sql.NullString
	ErrorMessage sql.NullString
	ClaimedAt    sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DecodeMediaURLs parses the stored media URL list. A missing value decodes
// to an empty list.
func (p Post) DecodeMediaURLs() ([]string, error) {
	if !p.MediaUrls.Valid || p.MediaUrls.String == "" {
		return []string{}, nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(p.MediaUrls.String), &urls); err != nil {
		return nil, fmt.Errorf("parse media urls: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return urls, nil
}

// ScheduledTime returns the scheduled time or nil for unscheduled drafts.
func (p Post) ScheduledTime() *time.Time {
	if !p.ScheduledAt.Valid {
		return nil
	}
	t := p.ScheduledAt.Time
	return &t
}

// CreatePostParams holds the fields of a new post.
type CreatePostParams struct {
	Content     string
	MediaURLs   []string
	ScheduledAt *time.Time
	Status      post.Status
}

// UpdatePostStatusParams records the outcome of a dispatch.
type UpdatePostStatusParams struct {
	ID           int64
	Status       post.Status
	RemoteID     string
	ErrorMessage string
}

// StatusCount is the number of posts in a status.
type StatusCount struct {
	Status post.Status
	Count  int64
}

func encodeMediaURLs(urls []string) (sql.NullString, error) {
	if len(urls) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode media urls: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// Timestamps are stored as unix milliseconds so that ordering and the
// due-time comparison are plain integer comparisons.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullTime(ms sql.NullInt64) sql.NullTime {
	if !ms.Valid {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: fromMillis(ms.Int64), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
