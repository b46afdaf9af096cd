// Package chat assembles provider requests from a question, a page
// snapshot, and conversation history, dispatches exactly one request, and
// normalizes the provider response into an answer string.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/extract"
	"github.com/hazyhaar/pageai/provider"
)

// maxHistory bounds how many prior turns travel with each request,
// oldest dropped first. Applied uniformly to every provider.
const maxHistory = 10

// systemPreamble is the fixed instructional part of every system prompt.
const systemPreamble = `You are an expert on the following web page. By default, answer questions using only the information in the page. If the user's question clearly requests outside information, research, or a comparison to outside info, you may use your own knowledge, but always try as hard as possible to relate your answer to the page content.

Always format your responses using proper markdown: headers to organize sections, bold for key points, bullet or numbered lists for takeaways and steps, code formatting for technical terms, and blockquotes for important notes.`

// ProviderError reports a failed dispatch: network failure, non-2xx
// status, or an undecodable response body.
type ProviderError struct {
	Provider provider.Name
	Status   int // 0 when the request never completed
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Dispatcher sends one provider-native request body and returns the
// provider-native response body. Implementations decide how the request
// reaches the provider (relay HTTP hop, or in-process forwarding).
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg provider.Config, body []byte) ([]byte, error)
}

// RelayDispatcher posts request bodies to a relay service, the normal
// client-side path. The relay enforces the upstream timeout; no additional
// timeout is applied here.
type RelayDispatcher struct {
	BaseURL string
	Client  *http.Client
}

func (d *RelayDispatcher) Dispatch(ctx context.Context, cfg provider.Config, body []byte) ([]byte, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+cfg.Path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", cfg.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider: cfg.Name,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%s", bytes.TrimSpace(respBody)),
		}
	}
	return respBody, nil
}

// Orchestrator turns questions into answers. It borrows the record's
// messages and snapshot to build one request and never mutates them.
type Orchestrator struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator over the given dispatcher.
func NewOrchestrator(d Dispatcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{dispatcher: d, logger: logger}
}

// Ask sends one question and returns the normalized answer.
//
// crossPage is an extension point for referencing another page's digest;
// no current caller populates it.
func (o *Orchestrator) Ask(ctx context.Context, question string, snapshot *extract.Snapshot, history []convo.Message, name provider.Name, crossPage string) (string, error) {
	cfg := provider.For(name)

	systemPrompt := systemPreamble + "\n\nPAGE CONTENT:\n"
	if snapshot != nil {
		systemPrompt += snapshot.Markdown
	}
	if crossPage != "" {
		systemPrompt += "\n\n---\n" + crossPage
	}

	turns := trimTurns(history)
	body, err := json.Marshal(cfg.Build(systemPrompt, turns, question))
	if err != nil {
		return "", &ProviderError{Provider: name, Err: fmt.Errorf("encode request: %w", err)}
	}

	o.logger.Debug("chat: dispatching question", "provider", name, "turns", len(turns))
	respBody, err := o.dispatcher.Dispatch(ctx, cfg, body)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return "", pe
		}
		return "", &ProviderError{Provider: name, Err: err}
	}

	answer, err := cfg.Extract(respBody)
	if err != nil {
		return "", &ProviderError{Provider: name, Err: err}
	}
	return answer, nil
}

// trimTurns filters history to real user/bot turns and keeps the most
// recent maxHistory of them.
func trimTurns(history []convo.Message) []provider.Turn {
	var turns []provider.Turn
	for _, m := range history {
		if m.Role == convo.RoleUser || m.Role == convo.RoleBot {
			turns = append(turns, provider.Turn{Role: m.Role, Content: m.Content})
		}
	}
	if len(turns) > maxHistory {
		turns = turns[len(turns)-maxHistory:]
	}
	return turns
}
