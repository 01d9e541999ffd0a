package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxBodyBytes caps a single HTTP dataset file.
const maxBodyBytes = 256 << 20

// ErrTooLarge means a fetched file exceeded the size limit and was not read.
var ErrTooLarge = errors.New("dataset file too large")

// Source fetches raw dataset files by slash-separated path.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads dataset files from a local directory.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean("/" + name)
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// HTTPSource fetches dataset files relative to a base URL.
type HTTPSource struct {
	base    *url.URL
	client  *http.Client
	maxBody int64
}

func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{base: u, client: &http.Client{Timeout: timeout}, maxBody: maxBodyBytes}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	ref, err := url.Parse(strings.TrimPrefix(path.Clean("/"+name), "/"))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s: unexpected status %s", name, resp.Status)
	}
	// Read one byte past the limit so an oversized body is reported instead
	// of parsed truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", name, err)
	}
	if int64(len(data)) > s.maxBody {
		return nil, fmt.Errorf("%s: over %d bytes: %w", name, s.maxBody, ErrTooLarge)
	}
	return data, nil
}
