package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/db/dbtest"
	"github.com/abdulachik/postbot/internal/post"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhen(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"now", now},
		{"+30m", now.Add(30 * time.Minute)},
		{"+1h30m", now.Add(90 * time.Minute)},
		{"2026-11-02T09:00:00Z", time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)},
		{"2026-11-02 09:00", time.Date(2026, 11, 2, 9, 0, 0, 0, time.Local)},
		{"2026-11-02T09:00", time.Date(2026, 11, 2, 9, 0, 0, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWhen(tt.in, now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}

	for _, bad := range []string{"", "tomorrow", "+soon", "02/11/2026"} {
		_, err := parseWhen(bad, now)
		assert.Error(t, err, bad)
	}
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildEdit(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	t.Run("only changed flags", func(t *testing.T) {
		e, err := buildEdit(editOptions{Content: "new", SetContent: true, At: "ignored"}, now)
		require.NoError(t, err)
		require.NotNil(t, e.Content)
		assert.Equal(t, "new", *e.Content)
		assert.Nil(t, e.ScheduledAt)
		assert.Nil(t, e.MediaURLs)
		assert.Nil(t, e.Status)
	})

	t.Run("schedule and status", func(t *testing.T) {
		e, err := buildEdit(editOptions{At: "+1h", SetAt: true, Status: "scheduled", SetStatus: true}, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), *e.ScheduledAt)
		assert.Equal(t, post.StatusScheduled, *e.Status)
	})

	t.Run("clear media", func(t *testing.T) {
		e, err := buildEdit(editOptions{ClearMedia: true}, now)
		require.NoError(t, err)
		require.NotNil(t, e.MediaURLs)
		assert.Empty(t, *e.MediaURLs)
	})

	t.Run("conflicting media flags", func(t *testing.T) {
		_, err := buildEdit(editOptions{ClearMedia: true, SetMedia: true, Media: []string{"a"}}, now)
		assert.Error(t, err)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := buildEdit(editOptions{Status: "publishing", SetStatus: true}, now)
		assert.ErrorIs(t, err, post.ErrInvalidStatus)
	})

	t.Run("nothing to edit", func(t *testing.T) {
		_, err := buildEdit(editOptions{}, now)
		assert.Error(t, err)
	})
}

func TestCreateAndListPosts(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	now := time.Now()

	var out bytes.Buffer
	require.NoError(t, createPost(ctx, store, &out, "Launch day!", createOptions{At: "+1h"}, now))
	assert.Contains(t, out.String(), "Post 1")
	assert.Contains(t, out.String(), "scheduled")

	out.Reset()
	require.NoError(t, createPost(ctx, store, &out, "Someday", createOptions{Draft: true}, now))
	assert.Contains(t, out.String(), "draft")

	out.Reset()
	err := createPost(ctx, store, &out, "No time", createOptions{}, now)
	require.Error(t, err)
	assert.True(t, post.IsValidation(err))

	out.Reset()
	require.NoError(t, listPosts(ctx, store, &out, ""))
	assert.Contains(t, out.String(), "Launch day!")
	assert.Contains(t, out.String(), "Someday")

	out.Reset()
	require.NoError(t, listPosts(ctx, store, &out, "draft"))
	assert.NotContains(t, out.String(), "Launch day!")
	assert.Contains(t, out.String(), "Someday")

	assert.Error(t, listPosts(ctx, store, &out, "publishing"))
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	store, err := db.NewStore(ctx, filepath.Join(t.TempDir(), "postbot.db"))
	require.NoError(t, err)
	defer store.Close()

	var out bytes.Buffer
	require.NoError(t, migrate(ctx, store, &out, false))
	assert.Contains(t, out.String(), "pending  001_create_posts.sql")
	assert.Contains(t, out.String(), "1 migrations pending.")

	out.Reset()
	require.NoError(t, migrate(ctx, store, &out, true))
	assert.Contains(t, out.String(), "applied  001_create_posts.sql")
	assert.Contains(t, out.String(), "up to date")
}

func TestWriteStats(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	now := time.Now()

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	for _, at := range []time.Time{past, future} {
		_, err := store.CreatePost(ctx, db.CreatePostParams{Content: "x", ScheduledAt: &at})
		require.NoError(t, err)
	}
	early := now.Add(-2 * time.Hour)
	stuck, err := store.CreatePost(ctx, db.CreatePostParams{Content: "stuck", ScheduledAt: &early})
	require.NoError(t, err)
	_, ok, err := store.ClaimPost(ctx, stuck.ID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	var out bytes.Buffer
	require.NoError(t, writeStats(ctx, store, &out, now, 10*time.Minute))

	s := out.String()
	assert.Contains(t, s, "Total: 3")
	assert.Contains(t, s, "scheduled: 3")
	assert.Contains(t, s, "Due now: 1")
	assert.Contains(t, s, "Upcoming: 1")
	assert.Contains(t, s, "Stuck in dispatch")
	assert.Contains(t, s, "post 3 claimed")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	assert.Equal(t, "a b", preview("a\n  b"))

	long := preview("ääääääääääääääääääääääääääääääääääääääääääää")
	assert.Equal(t, previewLength, len([]rune(long)))
}
