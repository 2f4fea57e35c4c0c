// Package publisher sends post content to external social platforms.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// SimulatedPrefix marks remote ids generated locally in simulation mode.
	SimulatedPrefix = "sim_"

	// MaxMedia is the most attachments either platform accepts on one post.
	MaxMedia = 4

	// DefaultRecentCount is how many timeline posts RecentPosts returns
	// when asked for zero or fewer.
	DefaultRecentCount = 10

	// MaxRecentCount is the largest page either platform serves.
	MaxRecentCount = 100
)

// ErrNotConfigured is returned when verifying a publisher without credentials.
var ErrNotConfigured = errors.New("publisher credentials not configured")

// Result is a successful publish.
type Result struct {
	RemoteID  string
	URL       string
	Simulated bool
}

// Identity is the account a publisher posts as.
type Identity struct {
	ID       string
	Username string
	Name     string
}

// RecentPost is a post already on the account's timeline.
type RecentPost struct {
	ID        string
	Text      string
	URL       string
	CreatedAt time.Time
	Likes     int
	Reposts   int
	Replies   int
}

// Publisher publishes posts to a social platform.
type Publisher interface {
	// Platform returns the name of the platform.
	Platform() string

	// Configured reports whether credentials are present. Unconfigured
	// publishers simulate every publish.
	Configured() bool

	// VerifyCredentials checks the account without posting anything.
	VerifyCredentials(ctx context.Context) (*Identity, error)

	// Publish uploads any media and then posts content. A media failure
	// fails the whole publish and nothing is posted.
	Publish(ctx context.Context, content string, mediaURLs []string) (*Result, error)

	// RecentPosts returns up to count of the account's latest posts, newest
	// first. Unconfigured publishers return an empty list.
	RecentPosts(ctx context.Context, count int) ([]RecentPost, error)
}

// Config selects and configures a publisher.
type Config struct {
	Platform string // "x" (default) or "bluesky"
	X        XConfig
	Bluesky  BlueskyConfig
}

// New creates the publisher named by cfg.Platform.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(cfg.Platform) {
	case "", "x", "twitter":
		return NewXPublisher(cfg.X), nil
	case "bluesky":
		return NewBlueskyPublisher(cfg.Bluesky), nil
	default:
		return nil, fmt.Errorf("unknown publish platform %q (must be 'x' or 'bluesky')", cfg.Platform)
	}
}

// IsSimulated reports whether remoteID came from simulation mode.
func IsSimulated(remoteID string) bool {
	return strings.HasPrefix(remoteID, SimulatedPrefix)
}

// simulate returns a successful result without contacting the platform.
// UUIDv7 ids are time-ordered and never repeat within a process.
func simulate(platform, content string) (*Result, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate simulated id: %w", err)
	}
	remoteID := SimulatedPrefix + id.String()

	slog.Warn("publisher not configured, simulating post",
		"platform", platform,
		"remote_id", remoteID,
		"chars", len([]rune(content)),
	)

	return &Result{RemoteID: remoteID, Simulated: true}, nil
}

// recentCount clamps a requested timeline size to what the platforms serve.
func recentCount(n int) int {
	switch {
	case n <= 0:
		return DefaultRecentCount
	case n > MaxRecentCount:
		return MaxRecentCount
	}
	return n
}

func checkMediaCount(urls []string) error {
	if len(urls) > MaxMedia {
		return fmt.Errorf("too many media attachments: %d (max %d)", len(urls), MaxMedia)
	}
	return nil
}
