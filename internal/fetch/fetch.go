// Package fetch downloads web pages and extracts readable text.
// The search pipeline uses HTML for the result page and Text for the
// per-result snippets.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/quincekit/quince/internal/httpkit"
)

// DefaultTimeout is the HTTP request timeout for fetching pages.
const DefaultTimeout = 30 * time.Second

// DefaultMaxBytes is the maximum response body size (5 MB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// DefaultMaxChars is the default character limit for extracted text.
const DefaultMaxChars = 50000

// Fetcher downloads pages over a shared HTTP client.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	maxChars int
	logger   *slog.Logger
}

// New creates a Fetcher with default settings.
func New(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: httpkit.NewClient(
			httpkit.WithTimeout(DefaultTimeout),
		),
		maxBytes: DefaultMaxBytes,
		maxChars: DefaultMaxChars,
		logger:   logger.With("component", "fetch"),
	}
}

// HTML downloads the URL and returns the raw response body.
func (f *Fetcher) HTML(ctx context.Context, rawURL string) (string, error) {
	body, _, err := f.get(ctx, rawURL)
	return body, err
}

// Text downloads the URL and returns its readable text content,
// stripped of navigation, ads, and other boilerplate. Extraction goes
// through readability first, falling back to a plain DOM text walk for
// pages readability cannot parse. Output is truncated to the
// character limit.
func (f *Fetcher) Text(ctx context.Context, rawURL string) (string, error) {
	body, finalURL, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}

	article, err := readability.FromReader(strings.NewReader(body), finalURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return truncateUTF8(cleanWhitespace(article.TextContent), f.maxChars), nil
	}

	_, text := extractHTML(body)
	return truncateUTF8(text, f.maxChars), nil
}

// get performs the request and returns (body, final URL after
// redirects, error).
func (f *Fetcher) get(ctx context.Context, rawURL string) (string, *url.URL, error) {
	if rawURL == "" {
		return "", nil, fmt.Errorf("fetch: url is required")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("fetch: invalid url: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpkit.DrainAndClose(resp.Body, 4096)
		return "", nil, fmt.Errorf("fetch: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	limited := io.LimitReader(resp.Body, f.maxBytes)
	body, err := io.ReadAll(limited)
	if err != nil {
		return "", nil, fmt.Errorf("fetch: read response: %w", err)
	}

	return string(body), resp.Request.URL, nil
}

// truncateUTF8 truncates a string to maxChars runes without breaking a
// multi-byte character.
func truncateUTF8(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	count := 0
	for i := range s {
		if count >= maxChars {
			return s[:i]
		}
		count++
	}
	return s
}
