// Package browserfetch renders JavaScript-heavy pages in headless Chrome
// and returns the resulting DOM as HTML. It is the fallback path for pages
// whose server response carries no usable content.
package browserfetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pageai/urlsafe"
)

// Config configures the renderer.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// NavigateTimeout bounds navigation plus load wait. Default: 30s.
	NavigateTimeout time.Duration

	// URLValidator validates URLs before navigation.
	// Default: urlsafe.ValidateURL.
	URLValidator func(string) error

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.URLValidator == nil {
		c.URLValidator = urlsafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer owns one Chrome connection and opens a stealth tab per fetch.
type Renderer struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New creates a Renderer. Chrome is launched lazily on the first fetch.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Fetch navigates to a URL in a fresh stealth tab, waits for load, and
// returns the rendered outer HTML. The URL is validated before navigation.
func (r *Renderer) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := r.cfg.URLValidator(pageURL); err != nil {
		return "", fmt.Errorf("URL blocked (SSRF): %w", err)
	}

	b, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return "", fmt.Errorf("browserfetch: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browserfetch: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		// A slow page may still have rendered enough to extract.
		r.cfg.Logger.Warn("browserfetch: wait load timeout", "url", pageURL, "error", err)
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browserfetch: read DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close shuts down Chrome.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return nil
}

func (r *Renderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("browserfetch: renderer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true)
		// Anti-detection flags.
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browserfetch: launch: %w", err)
		}
		wsURL = u
		r.lnch = l
		r.cfg.Logger.Info("browserfetch: launched local chrome", "url", wsURL)
	} else {
		r.cfg.Logger.Info("browserfetch: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browserfetch: connect: %w", err)
	}
	r.browser = b
	return b, nil
}
