// Package hub resolves pretrained checkpoint artifacts (vocab.txt,
// model.onnx) from the HuggingFace hub into a local cache directory.
package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	internal "github.com/ZanzyTHEbar/bertune/bertune"
)

const defaultBaseURL = "https://huggingface.co"

// FetchError represents a non-2xx response while downloading an artifact.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Client downloads checkpoint files with optional Bearer auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken sets a hub access token for gated repos.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithBaseURL overrides the hub endpoint (tests, mirrors).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// New creates a hub client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Checkpoint is the local layout of a resolved pretrained model.
type Checkpoint struct {
	Dir       string
	VocabPath string
	ModelPath string
}

// Resolve ensures vocab.txt and model.onnx for repo exist under destDir,
// downloading whichever is missing. Already-cached files are kept as is.
func (c *Client) Resolve(ctx context.Context, repo, destDir string) (*Checkpoint, error) {
	if destDir == "" {
		destDir = filepath.Join(internal.DefaultModelDir, filepath.Base(repo))
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	ckpt := &Checkpoint{
		Dir:       destDir,
		VocabPath: filepath.Join(destDir, internal.DefaultVocabFile),
		ModelPath: filepath.Join(destDir, internal.DefaultModelFile),
	}
	artifacts := []struct {
		remote string
		local  string
	}{
		{internal.DefaultVocabFile, ckpt.VocabPath},
		{"onnx/" + internal.DefaultModelFile, ckpt.ModelPath},
	}
	for _, a := range artifacts {
		if _, err := os.Stat(a.local); err == nil {
			continue
		}
		if err := c.fetch(ctx, repo, a.remote, a.local); err != nil {
			// The flat layout is common for older ONNX exports.
			if filepath.Base(a.remote) == internal.DefaultModelFile && a.remote != internal.DefaultModelFile {
				if err2 := c.fetch(ctx, repo, internal.DefaultModelFile, a.local); err2 == nil {
					continue
				}
			}
			return nil, err
		}
	}
	return ckpt, nil
}

// fetch downloads one repo file via the hub resolve endpoint, writing through
// a temp file so partial downloads never land at the final path.
func (c *Client) fetch(ctx context.Context, repo, file, dest string) error {
	url := fmt.Sprintf("%s/%s/resolve/main/%s", c.baseURL, repo, file)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return fmt.Errorf("short download for %s: %d of %d bytes", url, written, resp.ContentLength)
	}
	return os.Rename(tmp.Name(), dest)
}
