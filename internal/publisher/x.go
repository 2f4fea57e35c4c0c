package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const xDefaultBaseURL = "https://api.x.com"

// XPublisher posts to X through the v2 API using an OAuth 2.0 user-context
// access token.
type XPublisher struct {
	apiClient   *http.Client
	mediaClient *http.Client
	baseURL     string
	configured  bool
}

// XConfig holds configuration for the X publisher.
type XConfig struct {
	AccessToken string
	BaseURL     string // defaults to https://api.x.com
}

// NewXPublisher creates a new X publisher. Without an access token it runs
// in simulation mode.
func NewXPublisher(cfg XConfig) *XPublisher {
	base := &http.Client{Timeout: 30 * time.Second}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = xDefaultBaseURL
	}

	apiClient := base
	if cfg.AccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		apiClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.AccessToken,
			TokenType:   "Bearer",
		}))
	}

	return &XPublisher{
		apiClient:   apiClient,
		mediaClient: base,
		baseURL:     baseURL,
		configured:  cfg.AccessToken != "",
	}
}

// Platform returns the platform name.
func (x *XPublisher) Platform() string {
	return "x"
}

// Configured reports whether an access token is set.
func (x *XPublisher) Configured() bool {
	return x.configured
}

type xUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type xUserResponse struct {
	Data xUser `json:"data"`
}

// VerifyCredentials fetches the authenticated account.
func (x *XPublisher) VerifyCredentials(ctx context.Context) (*Identity, error) {
	if !x.configured {
		return nil, fmt.Errorf("x: %w", ErrNotConfigured)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, x.baseURL+"/2/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var resp xUserResponse
	if err := x.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	return &Identity{
		ID:       resp.Data.ID,
		Username: resp.Data.Username,
		Name:     resp.Data.Name,
	}, nil
}

// xMinTimelinePage is the smallest max_results the timeline endpoint accepts.
const xMinTimelinePage = 5

type xTimelineResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			RetweetCount int `json:"retweet_count"`
			ReplyCount   int `json:"reply_count"`
			LikeCount    int `json:"like_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// RecentPosts fetches the authenticated account's latest posts.
func (x *XPublisher) RecentPosts(ctx context.Context, count int) ([]RecentPost, error) {
	if !x.configured {
		return []RecentPost{}, nil
	}
	count = recentCount(count)

	me, err := x.VerifyCredentials(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("max_results", strconv.Itoa(max(count, xMinTimelinePage)))
	q.Set("tweet.fields", "created_at,public_metrics")
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", x.baseURL, url.PathEscape(me.ID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var resp xTimelineResponse
	if err := x.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("fetch recent posts: %w", err)
	}

	posts := make([]RecentPost, 0, min(len(resp.Data), count))
	for _, t := range resp.Data {
		if len(posts) == count {
			break
		}
		posts = append(posts, RecentPost{
			ID:        t.ID,
			Text:      t.Text,
			URL:       "https://x.com/" + me.Username + "/status/" + t.ID,
			CreatedAt: t.CreatedAt,
			Likes:     t.PublicMetrics.LikeCount,
			Reposts:   t.PublicMetrics.RetweetCount,
			Replies:   t.PublicMetrics.ReplyCount,
		})
	}
	return posts, nil
}

type xCreatePostRequest struct {
	Text  string        `json:"text"`
	Media *xPostMediaIn `json:"media,omitempty"`
}

type xPostMediaIn struct {
	MediaIDs []string `json:"media_ids"`
}

type xCreatePostResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// Publish uploads media and creates the post.
func (x *XPublisher) Publish(ctx context.Context, content string, mediaURLs []string) (*Result, error) {
	if !x.configured {
		return simulate(x.Platform(), content)
	}
	if err := checkMediaCount(mediaURLs); err != nil {
		return nil, err
	}

	var mediaIDs []string
	for _, u := range mediaURLs {
		id, err := x.uploadMedia(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("upload media: %w", err)
		}
		mediaIDs = append(mediaIDs, id)
	}

	reqBody := xCreatePostRequest{Text: content}
	if len(mediaIDs) > 0 {
		reqBody.Media = &xPostMediaIn{MediaIDs: mediaIDs}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp xCreatePostResponse
	if err := x.doJSON(req, &resp); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("create post: response missing id")
	}

	slog.Info("posted to X", "id", resp.Data.ID, "media", len(mediaIDs))

	return &Result{
		RemoteID: resp.Data.ID,
		URL:      "https://x.com/i/web/status/" + resp.Data.ID,
	}, nil
}

type xMediaUploadResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (x *XPublisher) uploadMedia(ctx context.Context, rawURL string) (string, error) {
	media, err := loadMedia(ctx, x.mediaClient, rawURL)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("media_category", xMediaCategory(media.ContentType)); err != nil {
		return "", fmt.Errorf("write form: %w", err)
	}
	if err := w.WriteField("media_type", media.ContentType); err != nil {
		return "", fmt.Errorf("write form: %w", err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, media.Name))
	h.Set("Content-Type", media.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("write form: %w", err)
	}
	if _, err := part.Write(media.Data); err != nil {
		return "", fmt.Errorf("write form: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("write form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/2/media/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp xMediaUploadResponse
	if err := x.doJSON(req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("media upload response missing id")
	}

	slog.Debug("uploaded media to X", "url", rawURL, "media_id", resp.Data.ID)
	return resp.Data.ID, nil
}

func xMediaCategory(contentType string) string {
	switch {
	case contentType == "image/gif":
		return "tweet_gif"
	case strings.HasPrefix(contentType, "video/"):
		return "tweet_video"
	default:
		return "tweet_image"
	}
}

// xErrorResponse covers both the problem-details and errors[] shapes the
// API returns.
type xErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (x *XPublisher) doJSON(req *http.Request, out any) error {
	resp, err := x.apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, xErrorMessage(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func xErrorMessage(body []byte) string {
	var e xErrorResponse
	if err := json.Unmarshal(body, &e); err == nil {
		switch {
		case e.Detail != "":
			return e.Detail
		case len(e.Errors) > 0 && e.Errors[0].Message != "":
			return e.Errors[0].Message
		case e.Title != "":
			return e.Title
		}
	}
	return strings.TrimSpace(string(body))
}
