package publisher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		platform string
		want     string
	}{
		{"", "x"},
		{"x", "x"},
		{"Twitter", "x"},
		{"bluesky", "bluesky"},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			p, err := New(Config{Platform: tt.platform})
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Platform())
		})
	}

	_, err := New(Config{Platform: "myspace"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "myspace")
}

func TestSimulatedPublish(t *testing.T) {
	ctx := context.Background()
	publishers := []Publisher{
		NewXPublisher(XConfig{}),
		NewBlueskyPublisher(BlueskyConfig{}),
	}

	for _, p := range publishers {
		t.Run(p.Platform(), func(t *testing.T) {
			assert.False(t, p.Configured())

			first, err := p.Publish(ctx, "hello", nil)
			require.NoError(t, err)
			second, err := p.Publish(ctx, "hello", nil)
			require.NoError(t, err)

			assert.True(t, first.Simulated)
			assert.True(t, second.Simulated)
			assert.True(t, IsSimulated(first.RemoteID))
			assert.True(t, strings.HasPrefix(second.RemoteID, SimulatedPrefix))
			assert.NotEqual(t, first.RemoteID, second.RemoteID)
			// UUIDv7 suffixes sort by creation time.
			assert.Less(t, first.RemoteID, second.RemoteID)
		})
	}
}

func TestRecentPosts_NotConfigured(t *testing.T) {
	for _, p := range []Publisher{NewXPublisher(XConfig{}), NewBlueskyPublisher(BlueskyConfig{})} {
		t.Run(p.Platform(), func(t *testing.T) {
			posts, err := p.RecentPosts(context.Background(), 10)
			require.NoError(t, err)
			assert.NotNil(t, posts)
			assert.Empty(t, posts)
		})
	}
}

func TestRecentCount(t *testing.T) {
	assert.Equal(t, DefaultRecentCount, recentCount(0))
	assert.Equal(t, DefaultRecentCount, recentCount(-3))
	assert.Equal(t, 3, recentCount(3))
	assert.Equal(t, MaxRecentCount, recentCount(500))
}

func TestVerifyCredentials_NotConfigured(t *testing.T) {
	ctx := context.Background()

	_, err := NewXPublisher(XConfig{}).VerifyCredentials(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewBlueskyPublisher(BlueskyConfig{Handle: "only.handle"}).VerifyCredentials(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestIsSimulated(t *testing.T) {
	assert.True(t, IsSimulated("sim_0190"))
	assert.False(t, IsSimulated("1790000000000000000"))
	assert.False(t, IsSimulated("at://did:plc:x/app.bsky.feed.post/abc"))
}

func TestLoadMedia(t *testing.T) {
	ctx := context.Background()

	t.Run("local file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pic.png")
		require.NoError(t, os.WriteFile(path, pngBytes, 0o644))

		m, err := loadMedia(ctx, nil, path)
		require.NoError(t, err)
		assert.Equal(t, "pic.png", m.Name)
		assert.Equal(t, "image/png", m.ContentType)
		assert.Equal(t, pngBytes, m.Data)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadMedia(ctx, nil, filepath.Join(t.TempDir(), "nope.png"))
		assert.Error(t, err)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := loadMedia(ctx, nil, "ftp://example.com/a.png")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ftp")
	})
}

// pngBytes is the 8-byte PNG signature followed by padding, enough for
// content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
