package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hazyhaar/pageai/extract"
	"github.com/hazyhaar/pageai/fetch"
	"github.com/hazyhaar/pageai/redact"
	"github.com/hazyhaar/pageai/urlsafe"
)

// fetchPageResponse is the wire shape for /api/fetch-page. The html field
// carries the markdown digest, not raw markup; clients store it as the
// page snapshot.
type fetchPageResponse struct {
	HTML        string `json:"html,omitempty"`
	Title       string `json:"title,omitempty"`
	OriginalURL string `json:"originalUrl,omitempty"`
	URL         string `json:"url,omitempty"`
	Error       string `json:"error,omitempty"`
	Success     bool   `json:"success"`
}

// handleFetchPage fetches a URL server-side, digests it, and stores the
// snapshot. Blocked URLs fail with 400 before any outbound request.
func (s *Service) handleFetchPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, 400, map[string]string{"error": "URL is required"})
		return
	}

	if err := s.validate(req.URL); err != nil {
		msg := "Access to this domain is not allowed"
		if errors.Is(err, urlsafe.ErrUnsafeScheme) {
			msg = "Only HTTP and HTTPS URLs are supported"
		} else if !errors.Is(err, urlsafe.ErrBlockedHost) && !errors.Is(err, urlsafe.ErrSSRF) {
			msg = "Invalid URL format"
		}
		writeJSON(w, 400, map[string]string{"error": msg})
		return
	}

	// Log only the domain, never the full URL.
	if u, err := url.Parse(req.URL); err == nil {
		s.reqLogger(r.Context()).Info("fetching page", "domain", u.Hostname())
	}

	result, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		if strings.Contains(err.Error(), "not an HTML page") {
			writeJSON(w, 400, map[string]string{
				"error":       "URL does not return HTML content",
				"contentType": result.ContentType,
			})
			return
		}
		writeJSON(w, 500, fetchPageResponse{
			Error:   fetchErrorMessage(err, result),
			URL:     req.URL,
			Success: false,
		})
		return
	}

	snapshot := s.digest(r.Context(), req.URL, string(result.Body))

	rec, err := s.store.Load(r.Context(), req.URL)
	if err == nil {
		rec.Snapshot = snapshot
		if saveErr := s.store.Save(r.Context(), rec); saveErr != nil {
			s.logger.Warn("snapshot save failed", "error", saveErr)
		}
	}

	writeJSON(w, 200, fetchPageResponse{
		HTML:        snapshot.Markdown,
		Title:       snapshot.Title,
		OriginalURL: req.URL,
		Success:     true,
	})
}

// indexPage fetches, digests, and stores one page. Used by in-process
// callers; the HTTP handler keeps its own wire-level error mapping.
func (s *Service) indexPage(ctx context.Context, pageURL string) (*extract.Snapshot, error) {
	if err := s.validate(pageURL); err != nil {
		return nil, err
	}
	result, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	snapshot := s.digest(ctx, pageURL, string(result.Body))

	rec, err := s.store.Load(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	rec.Snapshot = snapshot
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// digest builds the stored snapshot for a fetched page. Pages with no
// extractable body text are retried in the headless browser when one is
// configured. Server-side digests are scrubbed whole: headings, lists,
// and alt text go to external providers too, so every section gets the
// same redaction as the body.
func (s *Service) digest(ctx context.Context, pageURL, rawHTML string) *extract.Snapshot {
	snapshot := extract.Page(rawHTML)
	if !snapshot.HasMainContent() && s.renderer != nil {
		rendered, err := s.renderer.Fetch(ctx, pageURL)
		if err != nil {
			s.reqLogger(ctx).Warn("browser render failed", "error", err)
		} else if rs := extract.Page(rendered); rs.HasMainContent() {
			snapshot = rs
		}
	}
	snapshot.Title = redact.Redact(snapshot.Title)
	snapshot.Markdown = redact.Redact(snapshot.Markdown)
	return snapshot
}

// fetchErrorMessage maps fetch failures to the messages clients display.
func fetchErrorMessage(err error, result *fetch.Result) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return "Request timed out"
	case strings.Contains(err.Error(), "no such host"):
		return "Domain not found"
	case strings.Contains(err.Error(), "connection refused"):
		return "Connection refused"
	case result != nil && result.StatusCode != 0:
		return fmt.Sprintf("HTTP %d: %s", result.StatusCode, http.StatusText(result.StatusCode))
	}
	return err.Error()
}
