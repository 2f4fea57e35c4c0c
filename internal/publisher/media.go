package publisher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

// maxMediaBytes caps a single attachment download.
const maxMediaBytes = 15 << 20

// mediaFile is an attachment loaded into memory ready for upload.
type mediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// loadMedia fetches an http(s) URL or reads a local file path.
func loadMedia(ctx context.Context, client *http.Client, raw string) (*mediaFile, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse media url %q: %w", raw, err)
	}

	var (
		data        []byte
		contentType string
		name        = path.Base(u.Path)
	)

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
		if err != nil {
			return nil, fmt.Errorf("create media request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download media %s: %w", raw, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download media %s: status %d", raw, resp.StatusCode)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read media %s: %w", raw, err)
		}
		contentType = resp.Header.Get("Content-Type")
	case "", "file":
		p := u.Path
		if u.Scheme == "" {
			p = raw
		}
		data, err = os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read media %s: %w", raw, err)
		}
	default:
		return nil, fmt.Errorf("unsupported media url scheme %q", u.Scheme)
	}

	if len(data) > maxMediaBytes {
		return nil, fmt.Errorf("media %s exceeds %d bytes", raw, maxMediaBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media %s is empty", raw)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if name == "" || name == "." || name == "/" {
		name = "media"
	}

	return &mediaFile{Name: name, ContentType: contentType, Data: data}, nil
}
