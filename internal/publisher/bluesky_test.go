package publisher

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlueskyPublisher(t *testing.T) {
	p := NewBlueskyPublisher(BlueskyConfig{
		Handle:      "test.bsky.social",
		AppPassword: "test-password",
	})

	assert.NotNil(t, p)
	assert.Equal(t, "test.bsky.social", p.handle)
	assert.Equal(t, blueskyDefaultBaseURL, p.baseURL)
	assert.True(t, p.Configured())
}

func TestBlueskyPublisher_Platform(t *testing.T) {
	p := NewBlueskyPublisher(BlueskyConfig{})
	assert.Equal(t, "bluesky", p.Platform())
	assert.False(t, p.Configured())
}

// fakePDS is a minimal XRPC server for the endpoints the publisher uses.
type fakePDS struct {
	t        *testing.T
	sessions atomic.Int32
	expireN  atomic.Int32 // number of createRecord calls to reject as expired
	records  atomic.Int32
	lastText atomic.Value
	embedded atomic.Bool
}

func (f *fakePDS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))

		var req createSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "test-password" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
			return
		}

		n := f.sessions.Add(1)
		json.NewEncoder(w).Encode(createSessionResponse{
			DID:       "did:plc:test123",
			Handle:    req.Identifier,
			AccessJwt: "jwt-" + string(rune('0'+n)),
		})
	})
	mux.HandleFunc("/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "image/png", r.Header.Get("Content-Type"))
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"blob":{"$type":"blob","ref":{"$link":"bafk"},"mimeType":"image/png","size":24}}`))
	})
	mux.HandleFunc("/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		if f.expireN.Load() > 0 {
			f.expireN.Add(-1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"ExpiredToken","message":"Token has expired"}`))
			return
		}

		var req createRecordRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(f.t, "did:plc:test123", req.Repo)
		assert.Equal(f.t, blueskyPostCollection, req.Collection)
		f.lastText.Store(req.Record.Text)
		f.embedded.Store(req.Record.Embed != nil && len(req.Record.Embed.Images) == 1)
		f.records.Add(1)

		json.NewEncoder(w).Encode(createRecordResponse{
			URI: "at://did:plc:test123/app.bsky.feed.post/3kabc",
			CID: "bafyrei",
		})
	})
	mux.HandleFunc("/app.bsky.feed.getAuthorFeed", func(w http.ResponseWriter, r *http.Request) {
		if f.expireN.Load() > 0 {
			f.expireN.Add(-1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"ExpiredToken","message":"Token has expired"}`))
			return
		}
		assert.Equal(f.t, "did:plc:test123", r.URL.Query().Get("actor"))
		assert.Equal(f.t, "2", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"feed":[
			{"post":{"uri":"at://did:plc:test123/app.bsky.feed.post/3kaaa","author":{"handle":"test.bsky.social"},
				"record":{"text":"mine","createdAt":"2026-10-17T09:00:00Z"},"likeCount":5,"repostCount":1,"replyCount":2}},
			{"post":{"uri":"at://did:plc:other/app.bsky.feed.post/3kbbb","author":{"handle":"other.bsky.social"},
				"record":{"text":"theirs","createdAt":"2026-10-16T09:00:00Z"}},
				"reason":{"$type":"app.bsky.feed.defs#reasonRepost"}}
		]}`))
	})
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngBytes)
	})
	return mux
}

func TestBlueskyPublisher_VerifyCredentials(t *testing.T) {
	pds := &fakePDS{t: t}
	server := httptest.NewServer(pds.handler())
	defer server.Close()

	t.Run("successful authentication", func(t *testing.T) {
		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		id, err := p.VerifyCredentials(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "did:plc:test123", id.ID)
		assert.Equal(t, "test.bsky.social", id.Username)
		// Verifying does not cache a session.
		assert.Empty(t, p.accessToken)
	})

	t.Run("authentication failure", func(t *testing.T) {
		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "wrong", BaseURL: server.URL})
		_, err := p.VerifyCredentials(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid identifier or password")
	})
}

func TestBlueskyPublisher_Publish(t *testing.T) {
	t.Run("posts text", func(t *testing.T) {
		pds := &fakePDS{t: t}
		server := httptest.NewServer(pds.handler())
		defer server.Close()

		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		res, err := p.Publish(context.Background(), "hello", nil)
		require.NoError(t, err)

		assert.Equal(t, "at://did:plc:test123/app.bsky.feed.post/3kabc", res.RemoteID)
		assert.Equal(t, "https://bsky.app/profile/test.bsky.social/post/3kabc", res.URL)
		assert.Equal(t, "hello", pds.lastText.Load())
		assert.False(t, pds.embedded.Load())
	})

	t.Run("embeds uploaded images", func(t *testing.T) {
		pds := &fakePDS{t: t}
		server := httptest.NewServer(pds.handler())
		defer server.Close()

		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		_, err := p.Publish(context.Background(), "look", []string{server.URL + "/img.png"})
		require.NoError(t, err)
		assert.True(t, pds.embedded.Load())
	})

	t.Run("renews an expired session once", func(t *testing.T) {
		pds := &fakePDS{t: t}
		pds.expireN.Store(1)
		server := httptest.NewServer(pds.handler())
		defer server.Close()

		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		_, err := p.Publish(context.Background(), "hello", nil)
		require.NoError(t, err)
		assert.Equal(t, int32(2), pds.sessions.Load())
		assert.Equal(t, int32(1), pds.records.Load())
	})

	t.Run("reuses the session", func(t *testing.T) {
		pds := &fakePDS{t: t}
		server := httptest.NewServer(pds.handler())
		defer server.Close()

		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		for i := 0; i < 3; i++ {
			_, err := p.Publish(context.Background(), "hello", nil)
			require.NoError(t, err)
		}
		assert.Equal(t, int32(1), pds.sessions.Load())
	})
}

func TestBlueskyPublisher_RecentPosts(t *testing.T) {
	t.Run("skips reposts", func(t *testing.T) {
		pds := &fakePDS{t: t}
		server := httptest.NewServer(pds.handler())
		defer server.Close()

		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		posts, err := p.RecentPosts(context.Background(), 2)
		require.NoError(t, err)
		require.Len(t, posts, 1)

		assert.Equal(t, "at://did:plc:test123/app.bsky.feed.post/3kaaa", posts[0].ID)
		assert.Equal(t, "mine", posts[0].Text)
		assert.Equal(t, "https://bsky.app/profile/test.bsky.social/post/3kaaa", posts[0].URL)
		assert.Equal(t, 5, posts[0].Likes)
		assert.Equal(t, 1, posts[0].Reposts)
		assert.Equal(t, 2, posts[0].Replies)
	})

	t.Run("renews an expired session once", func(t *testing.T) {
		pds := &fakePDS{t: t}
		pds.expireN.Store(1)
		server := httptest.NewServer(pds.handler())
		defer server.Close()

		p := NewBlueskyPublisher(BlueskyConfig{Handle: "test.bsky.social", AppPassword: "test-password", BaseURL: server.URL})
		posts, err := p.RecentPosts(context.Background(), 2)
		require.NoError(t, err)
		assert.Len(t, posts, 1)
		assert.Equal(t, int32(2), pds.sessions.Load())
	})
}

func TestSplitURI(t *testing.T) {
	tests := []struct {
		uri      string
		expected []string
	}{
		{
			uri:      "at://did:plc:xyz/app.bsky.feed.post/abc123",
			expected: []string{"did:plc:xyz", "app.bsky.feed.post", "abc123"},
		},
		{
			uri:      "did:plc:xyz/collection/rkey",
			expected: []string{"did:plc:xyz", "collection", "rkey"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			result := splitURI(tt.uri)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Integration test - requires Bluesky credentials
func TestBlueskyPublisher_Integration(t *testing.T) {
	handle := os.Getenv("BLUESKY_HANDLE")
	password := os.Getenv("BLUESKY_APP_PASSWORD")

	if handle == "" || password == "" {
		t.Skip("BLUESKY_HANDLE and BLUESKY_APP_PASSWORD not set")
	}

	p := NewBlueskyPublisher(BlueskyConfig{
		Handle:      handle,
		AppPassword: password,
	})

	// Verification only; publishing from tests would spam the account.
	id, err := p.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)
}
