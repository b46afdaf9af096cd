// Package relay is the server side of the system: it forwards provider
// requests with the API keys attached, fetches and digests pages on behalf
// of clients, and serves the conversation store.
//
// Clients never hold provider credentials; the relay injects them per
// upstream and strips everything else.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/hazyhaar/pageai/browserfetch"
	"github.com/hazyhaar/pageai/chat"
	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/fetch"
	"github.com/hazyhaar/pageai/provider"
	"github.com/hazyhaar/pageai/urlsafe"
)

const maxRequestBody = 10 << 20

// Upstream endpoints. Overridable for tests.
var (
	openAIURL    = "https://api.openai.com/v1/chat/completions"
	anthropicURL = "https://api.anthropic.com/v1/messages"
	geminiURL    = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"
	grokURL      = "https://api.x.ai/v1/chat/completions"
)

// Service holds the relay's dependencies. It also implements
// chat.Dispatcher, so in-process callers (MCP tools, the CLI) reach
// providers without an HTTP hop through the relay's own listener.
type Service struct {
	cfg      *Config
	logger   *slog.Logger
	store    *convo.Store
	fetcher  *fetch.Fetcher
	renderer pageRenderer
	client   *http.Client
	validate func(string) error
}

// pageRenderer is the headless-browser fallback for pages whose static
// HTML carries no extractable text.
type pageRenderer interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// New creates a relay Service.
func New(cfg *Config, store *convo.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:    cfg,
		logger: logger,
		store:  store,
		fetcher: fetch.New(fetch.Config{
			Timeout:     cfg.FetchTimeout,
			RequireHTML: true,
		}),
		client:   &http.Client{Timeout: cfg.UpstreamTimeout},
		validate: urlsafe.ValidateURL,
	}
	if cfg.BrowserFallback {
		s.renderer = browserfetch.New(browserfetch.Config{
			RemoteURL: cfg.BrowserURL,
			Logger:    logger,
		})
	}
	return s
}

// Store exposes the conversation store for in-process callers.
func (s *Service) Store() *convo.Store { return s.store }

// Close releases the headless browser, if one was started.
func (s *Service) Close() error {
	if c, ok := s.renderer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// upstreamError carries the status the client should see.
type upstreamError struct {
	status int
	msg    string
}

func (e *upstreamError) Error() string { return e.msg }

// forward sends one provider request upstream with credentials attached
// and returns the upstream response body.
func (s *Service) forward(ctx context.Context, name provider.Name, body []byte) ([]byte, error) {
	url, key, err := s.upstream(name)
	if err != nil {
		return nil, err
	}

	body, err = s.transformBody(name, body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch name {
	case provider.Anthropic:
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
	case provider.Gemini:
		req.Header.Set("x-goog-api-key", key)
	case provider.Generic:
		// Self-hosted endpoint, no auth header.
	default:
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, &upstreamError{status: http.StatusGatewayTimeout,
				msg: fmt.Sprintf("request to %s timed out", name)}
		}
		return nil, fmt.Errorf("upstream %s: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &upstreamError{status: resp.StatusCode,
			msg: string(bytes.TrimSpace(respBody))}
	}
	return respBody, nil
}

// upstream maps a provider to its endpoint and API key.
func (s *Service) upstream(name provider.Name) (url, key string, err error) {
	k := s.cfg.Keys
	switch name {
	case provider.OpenAI:
		url, key = openAIURL, k.OpenAI
	case provider.Anthropic:
		url, key = anthropicURL, k.Anthropic
	case provider.Gemini:
		url, key = geminiURL, k.Gemini
	case provider.Grok:
		url, key = grokURL, k.Grok
	case provider.Generic:
		if s.cfg.GenericURL == "" {
			return "", "", &upstreamError{status: http.StatusBadRequest,
				msg: "generic provider not configured"}
		}
		return s.cfg.GenericURL, "", nil
	default:
		return "", "", &upstreamError{status: http.StatusBadRequest,
			msg: fmt.Sprintf("unknown provider %q", name)}
	}
	if key == "" {
		return "", "", &upstreamError{status: http.StatusBadRequest,
			msg: fmt.Sprintf("%s API key not set", name)}
	}
	return url, key, nil
}

// transformBody rewrites client bodies for upstreams whose shape differs
// from what clients send. OpenAI and Anthropic bodies pass through.
func (s *Service) transformBody(name provider.Name, body []byte) ([]byte, error) {
	switch name {
	case provider.Gemini:
		return reduceGeminiBody(body)
	case provider.Grok:
		return rebuildGrokBody(body)
	}
	return body, nil
}

// reduceGeminiBody strips the request down to {contents}; the upstream
// rejects unknown fields. A bare prompt is wrapped into contents.
func reduceGeminiBody(body []byte) ([]byte, error) {
	var req struct {
		Contents json.RawMessage `json:"contents"`
		Prompt   string          `json:"prompt"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &upstreamError{status: http.StatusBadRequest, msg: "invalid request body"}
	}
	if len(req.Contents) == 0 && req.Prompt != "" {
		return json.Marshal(map[string]any{
			"contents": []map[string]any{
				{"parts": []map[string]string{{"text": req.Prompt}}},
			},
		})
	}
	return json.Marshal(map[string]json.RawMessage{"contents": req.Contents})
}

// rebuildGrokBody re-issues the request with the relay's own model and
// sampling settings, keeping only valid messages.
func rebuildGrokBody(body []byte) ([]byte, error) {
	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &upstreamError{status: http.StatusBadRequest, msg: "invalid request body"}
	}

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	var messages []msg
	for _, m := range req.Messages {
		if m.Role != "" && m.Content != "" {
			messages = append(messages, msg(m))
		}
	}
	if len(messages) == 0 {
		if req.Prompt == "" {
			return nil, &upstreamError{status: http.StatusBadRequest,
				msg: "either 'messages' or 'prompt' must be provided"}
		}
		messages = []msg{{Role: "user", Content: req.Prompt}}
	}

	return json.Marshal(map[string]any{
		"model":       "grok-3",
		"messages":    messages,
		"temperature": 0.7,
		"max_tokens":  1000,
	})
}

// Dispatch implements chat.Dispatcher for in-process callers.
func (s *Service) Dispatch(ctx context.Context, cfg provider.Config, body []byte) ([]byte, error) {
	respBody, err := s.forward(ctx, cfg.Name, body)
	if err != nil {
		var ue *upstreamError
		if errors.As(err, &ue) {
			return nil, &chat.ProviderError{
				Provider: cfg.Name,
				Status:   ue.status,
				Err:      errors.New(ue.msg),
			}
		}
		return nil, err
	}
	return respBody, nil
}
