// Package fetch retrieves web pages over HTTP for indexing. Every URL is
// validated before the request and again on each redirect hop.
package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/pageai/urlsafe"
)

// Result contains the outcome of a page fetch.
type Result struct {
	Body        []byte
	StatusCode  int
	ContentType string // media type without parameters
	FinalURL    string // after redirects
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // HTTP timeout. Default: 15s.
	MaxBytes int64         // Max response body size. Default: urlsafe.MaxResponseBody.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch and on redirects.
	// Default: urlsafe.ValidateURL.
	URLValidator func(string) error
	// RequireHTML rejects responses whose Content-Type is not HTML/XHTML.
	RequireHTML bool
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = urlsafe.MaxResponseBody
	}
	if c.UserAgent == "" {
		c.UserAgent = "pageai/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = urlsafe.ValidateURL
	}
}

// Fetcher performs HTTP page retrieval with SSRF protection on redirects.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked (SSRF): %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a page. The URL is validated before any connection is
// opened; a blocked URL never produces an outbound request.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("URL blocked (SSRF): %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("http %d", resp.StatusCode)
	}

	mediaType := contentMediaType(resp.Header.Get("Content-Type"))
	if f.config.RequireHTML && !isHTMLType(mediaType) {
		return &Result{StatusCode: resp.StatusCode, ContentType: mediaType},
			fmt.Errorf("not an HTML page: %s", mediaType)
	}

	body, err := urlsafe.LimitedReadAll(resp.Body, f.config.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Result{
		Body:        body,
		StatusCode:  resp.StatusCode,
		ContentType: mediaType,
		FinalURL:    finalURL,
	}, nil
}

func contentMediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

func isHTMLType(mediaType string) bool {
	switch mediaType {
	case "text/html", "application/xhtml+xml", "":
		// An absent Content-Type is treated as HTML; plenty of small
		// sites omit the header.
		return true
	}
	return false
}
