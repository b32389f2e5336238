// Package scrape fetches a job posting and reduces it to visible text.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/DCbrown/interview-ai-app/internal/apperr"
	"github.com/DCbrown/interview-ai-app/internal/metrics"
)

const defaultMaxBytes = 2 << 20

var (
	ErrInvalidURL = errors.New("invalid URL")
	ErrEmptyText  = errors.New("no text content extracted")
)

// Client fetches pages over HTTP.
type Client struct {
	HTTPClient *http.Client
	MaxBytes   int64
	UserAgent  string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		MaxBytes:   defaultMaxBytes,
		UserAgent:  "Mozilla/5.0 (compatible; interview-ai-app/1.0)",
	}
}

// Fetch downloads rawURL and returns its visible text. Failures are *apperr.Error of KindScrape.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	const op = "scrape.Fetch"
	u, err := ValidateURL(rawURL)
	if err != nil {
		return "", apperr.New(apperr.KindScrape, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", apperr.New(apperr.KindScrape, op, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.DefaultMetrics.RecordProviderCall("scrape", "fetch", err, time.Since(start).Seconds())
		return "", apperr.New(apperr.KindScrape, op, fmt.Errorf("fetch %s: %w", u.Host, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("fetch %s: status %d", u.Host, resp.StatusCode)
		metrics.DefaultMetrics.RecordProviderCall("scrape", "fetch", err, time.Since(start).Seconds())
		return "", apperr.New(apperr.KindScrape, op, err)
	}
	metrics.DefaultMetrics.RecordProviderCall("scrape", "fetch", nil, time.Since(start).Seconds())

	text, err := ExtractText(io.LimitReader(resp.Body, c.MaxBytes))
	if err != nil {
		return "", apperr.New(apperr.KindScrape, op, err)
	}
	if text == "" {
		return "", apperr.New(apperr.KindScrape, op, ErrEmptyText)
	}
	return text, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"template": true,
	"head":     true,
}

// ExtractText walks an HTML document and joins its visible text with single spaces.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				parts = append(parts, s)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.Join(parts, " "), nil
}
