// Package publishertest provides a recording Publisher for tests.
package publishertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/abdulachik/postbot/internal/publisher"
)

// Call is one recorded Publish invocation.
type Call struct {
	Content   string
	MediaURLs []string
}

// Fake is a Publisher that records calls. With no PublishFunc every publish
// succeeds with a sequential remote id.
type Fake struct {
	PublishFunc func(ctx context.Context, content string, mediaURLs []string) (*publisher.Result, error)
	VerifyErr   error
	Recent      []publisher.RecentPost
	RecentErr   error

	mu    sync.Mutex
	calls []Call
}

var _ publisher.Publisher = (*Fake)(nil)

func (f *Fake) Platform() string { return "fake" }

func (f *Fake) Configured() bool { return true }

func (f *Fake) VerifyCredentials(ctx context.Context) (*publisher.Identity, error) {
	if f.VerifyErr != nil {
		return nil, f.VerifyErr
	}
	return &publisher.Identity{ID: "1", Username: "fake", Name: "Fake"}, nil
}

func (f *Fake) Publish(ctx context.Context, content string, mediaURLs []string) (*publisher.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Content: content, MediaURLs: mediaURLs})
	n := len(f.calls)
	f.mu.Unlock()

	if f.PublishFunc != nil {
		return f.PublishFunc(ctx, content, mediaURLs)
	}
	return &publisher.Result{RemoteID: fmt.Sprintf("fake_%d", n)}, nil
}

func (f *Fake) RecentPosts(ctx context.Context, count int) ([]publisher.RecentPost, error) {
	if f.RecentErr != nil {
		return nil, f.RecentErr
	}
	n := min(max(count, 0), len(f.Recent))
	return append([]publisher.RecentPost{}, f.Recent[:n]...), nil
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
