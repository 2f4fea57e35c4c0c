package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	blueskyDefaultBaseURL = "https://bsky.social/xrpc"
	blueskyPostCollection = "app.bsky.feed.post"
)

// errSessionExpired is returned when the access JWT needs refreshing.
var errSessionExpired = errors.New("bluesky session expired")

// BlueskyPublisher posts to Bluesky via the AT Protocol.
type BlueskyPublisher struct {
	httpClient  *http.Client
	baseURL     string
	handle      string
	appPassword string

	mu          sync.Mutex
	accessToken string
	did         string
}

// BlueskyConfig holds configuration for the Bluesky publisher.
type BlueskyConfig struct {
	Handle      string
	AppPassword string
	BaseURL     string // defaults to https://bsky.social/xrpc
}

// NewBlueskyPublisher creates a new Bluesky publisher.
func NewBlueskyPublisher(cfg BlueskyConfig) *BlueskyPublisher {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = blueskyDefaultBaseURL
	}
	return &BlueskyPublisher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     baseURL,
		handle:      cfg.Handle,
		appPassword: cfg.AppPassword,
	}
}

// Platform returns the platform name.
func (b *BlueskyPublisher) Platform() string {
	return "bluesky"
}

// Configured reports whether a handle and app password are set.
func (b *BlueskyPublisher) Configured() bool {
	return b.handle != "" && b.appPassword != ""
}

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionResponse struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// VerifyCredentials opens a session and returns the account it belongs to.
func (b *BlueskyPublisher) VerifyCredentials(ctx context.Context) (*Identity, error) {
	if !b.Configured() {
		return nil, fmt.Errorf("bluesky: %w", ErrNotConfigured)
	}
	session, err := b.createSession(ctx)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: session.DID, Username: session.Handle, Name: session.Handle}, nil
}

func (b *BlueskyPublisher) createSession(ctx context.Context) (*createSessionResponse, error) {
	body, err := json.Marshal(createSessionRequest{
		Identifier: b.handle,
		Password:   b.appPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/com.atproto.server.createSession", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var session createSessionResponse
	if err := b.do(req, &session); err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	slog.Debug("authenticated with Bluesky",
		"handle", session.Handle,
		"did", session.DID,
	)
	return &session, nil
}

// session returns a cached access token and DID, logging in if needed.
func (b *BlueskyPublisher) session(ctx context.Context) (token, did string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.accessToken != "" {
		return b.accessToken, b.did, nil
	}

	s, err := b.createSession(ctx)
	if err != nil {
		return "", "", err
	}
	b.accessToken = s.AccessJwt
	b.did = s.DID
	return b.accessToken, b.did, nil
}

func (b *BlueskyPublisher) resetSession() {
	b.mu.Lock()
	b.accessToken = ""
	b.did = ""
	b.mu.Unlock()
}

type createRecordRequest struct {
	Repo       string     `json:"repo"`
	Collection string     `json:"collection"`
	Record     postRecord `json:"record"`
}

type postRecord struct {
	Type      string       `json:"$type"`
	Text      string       `json:"text"`
	CreatedAt string       `json:"createdAt"`
	Langs     []string     `json:"langs,omitempty"`
	Embed     *imagesEmbed `json:"embed,omitempty"`
}

type imagesEmbed struct {
	Type   string       `json:"$type"`
	Images []embedImage `json:"images"`
}

type embedImage struct {
	Alt   string          `json:"alt"`
	Image json.RawMessage `json:"image"`
}

type createRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type uploadBlobResponse struct {
	Blob json.RawMessage `json:"blob"`
}

// Publish uploads images as blobs and then creates the post record. An
// expired session is renewed once.
func (b *BlueskyPublisher) Publish(ctx context.Context, content string, mediaURLs []string) (*Result, error) {
	if !b.Configured() {
		return simulate(b.Platform(), content)
	}
	if err := checkMediaCount(mediaURLs); err != nil {
		return nil, err
	}

	result, err := b.publish(ctx, content, mediaURLs)
	if errors.Is(err, errSessionExpired) {
		slog.Info("Bluesky session expired, logging in again")
		b.resetSession()
		result, err = b.publish(ctx, content, mediaURLs)
	}
	return result, err
}

func (b *BlueskyPublisher) publish(ctx context.Context, content string, mediaURLs []string) (*Result, error) {
	token, did, err := b.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	record := postRecord{
		Type:      blueskyPostCollection,
		Text:      content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Langs:     []string{"en"},
	}

	if len(mediaURLs) > 0 {
		embed := &imagesEmbed{Type: "app.bsky.embed.images"}
		for _, u := range mediaURLs {
			blob, err := b.uploadBlob(ctx, token, u)
			if err != nil {
				return nil, fmt.Errorf("upload media: %w", err)
			}
			embed.Images = append(embed.Images, embedImage{Image: blob})
		}
		record.Embed = embed
	}

	body, err := json.Marshal(createRecordRequest{
		Repo:       did,
		Collection: blueskyPostCollection,
		Record:     record,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/com.atproto.repo.createRecord", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var created createRecordResponse
	if err := b.do(req, &created); err != nil {
		return nil, fmt.Errorf("post failed: %w", err)
	}

	// at://did:plc:xxx/app.bsky.feed.post/rkey -> https://bsky.app/profile/handle/post/rkey
	postURL := ""
	if parts := splitURI(created.URI); len(parts) >= 3 {
		postURL = fmt.Sprintf("https://bsky.app/profile/%s/post/%s", b.handle, parts[len(parts)-1])
	}

	slog.Info("posted to Bluesky",
		"uri", created.URI,
		"url", postURL,
	)

	return &Result{
		RemoteID: created.URI,
		URL:      postURL,
	}, nil
}

type authorFeedResponse struct {
	Feed []struct {
		Post struct {
			URI    string `json:"uri"`
			Author struct {
				Handle string `json:"handle"`
			} `json:"author"`
			Record struct {
				Text      string    `json:"text"`
				CreatedAt time.Time `json:"createdAt"`
			} `json:"record"`
			LikeCount   int `json:"likeCount"`
			RepostCount int `json:"repostCount"`
			ReplyCount  int `json:"replyCount"`
		} `json:"post"`
		Reason json.RawMessage `json:"reason"`
	} `json:"feed"`
}

// RecentPosts fetches the account's latest posts from its author feed.
// Reposts of other accounts are left out.
func (b *BlueskyPublisher) RecentPosts(ctx context.Context, count int) ([]RecentPost, error) {
	if !b.Configured() {
		return []RecentPost{}, nil
	}
	count = recentCount(count)

	posts, err := b.recentPosts(ctx, count)
	if errors.Is(err, errSessionExpired) {
		slog.Info("Bluesky session expired, logging in again")
		b.resetSession()
		posts, err = b.recentPosts(ctx, count)
	}
	return posts, err
}

func (b *BlueskyPublisher) recentPosts(ctx context.Context, count int) ([]RecentPost, error) {
	token, did, err := b.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	q := url.Values{}
	q.Set("actor", did)
	q.Set("limit", strconv.Itoa(count))
	q.Set("filter", "posts_no_replies")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.baseURL+"/app.bsky.feed.getAuthorFeed?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var feed authorFeedResponse
	if err := b.do(req, &feed); err != nil {
		return nil, fmt.Errorf("fetch recent posts: %w", err)
	}

	posts := make([]RecentPost, 0, len(feed.Feed))
	for _, item := range feed.Feed {
		if len(item.Reason) > 0 && string(item.Reason) != "null" {
			continue
		}
		p := item.Post
		rp := RecentPost{
			ID:        p.URI,
			Text:      p.Record.Text,
			CreatedAt: p.Record.CreatedAt,
			Likes:     p.LikeCount,
			Reposts:   p.RepostCount,
			Replies:   p.ReplyCount,
		}
		if parts := splitURI(p.URI); len(parts) >= 3 {
			rp.URL = fmt.Sprintf("https://bsky.app/profile/%s/post/%s", p.Author.Handle, parts[len(parts)-1])
		}
		posts = append(posts, rp)
	}
	return posts, nil
}

func (b *BlueskyPublisher) uploadBlob(ctx context.Context, token, rawURL string) (json.RawMessage, error) {
	media, err := loadMedia(ctx, b.httpClient, rawURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(media.ContentType, "image/") {
		return nil, fmt.Errorf("media %s: bluesky accepts images only, got %s", rawURL, media.ContentType)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.baseURL+"/com.atproto.repo.uploadBlob", bytes.NewReader(media.Data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", media.ContentType)
	req.Header.Set("Authorization", "Bearer "+token)

	var resp uploadBlobResponse
	if err := b.do(req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Blob) == 0 {
		return nil, fmt.Errorf("upload blob: response missing blob")
	}
	return resp.Blob, nil
}

type xrpcError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b *BlueskyPublisher) do(req *http.Request, out any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var xe xrpcError
		_ = json.Unmarshal(respBody, &xe)
		if xe.Error == "ExpiredToken" || (resp.StatusCode == http.StatusUnauthorized && req.Header.Get("Authorization") != "") {
			return errSessionExpired
		}
		msg := xe.Message
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// splitURI splits an AT Protocol URI into its non-empty path parts.
func splitURI(uri string) []string {
	uri = strings.TrimPrefix(uri, "at://")
	return strings.FieldsFunc(uri, func(r rune) bool { return r == '/' })
}
