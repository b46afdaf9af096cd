package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pageai/chat"
	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/provider"
)

// RegisterMCP registers the page tools on an MCP server. All tools run
// in-process against the relay's store and dispatcher, no HTTP hop.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerIndexTool(srv)
	s.registerAskTool(srv)
	s.registerHistoryTool(srv)
	s.registerClearTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// registerTool wires a typed endpoint into the MCP server: decode
// arguments, run, marshal the result as text content. Tool failures are
// reported in-band, never as protocol errors.
func registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint func(ctx context.Context, args json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := endpoint(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- page_index ---

func (s *Service) registerIndexTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "page_index",
		Description: "Fetch a web page, build its content digest, and store it for questioning.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to index"},
		}, []string{"url"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		if req.URL == "" {
			return nil, fmt.Errorf("url is required")
		}
		snapshot, err := s.indexPage(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"url":   convo.PageKey(req.URL),
			"title": snapshot.Title,
		}, nil
	})
}

// --- page_ask ---

func (s *Service) registerAskTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "page_ask",
		Description: "Ask a question about an indexed page. The page must be indexed first with page_index.",
		InputSchema: inputSchema(map[string]any{
			"url":      map[string]any{"type": "string", "description": "Indexed page URL"},
			"question": map[string]any{"type": "string", "description": "Question to ask"},
			"provider": map[string]any{"type": "string", "description": "openai, anthropic, gemini, grok, or generic (default openai)"},
		}, []string{"url", "question"}),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req struct {
			URL      string `json:"url"`
			Question string `json:"question"`
			Provider string `json:"provider"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		if req.URL == "" || req.Question == "" {
			return nil, fmt.Errorf("url and question are required")
		}
		name := provider.OpenAI
		if req.Provider != "" {
			var err error
			if name, err = provider.Parse(req.Provider); err != nil {
				return nil, err
			}
		}

		rec, err := s.store.Load(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		if rec.Snapshot == nil {
			return nil, fmt.Errorf("page not indexed: %s", req.URL)
		}

		rec.AppendUser(req.Question)
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, err
		}

		orch := chat.NewOrchestrator(s, s.logger)
		answer, err := orch.Ask(ctx, req.Question, rec.Snapshot, rec.Messages, name, "")
		if err != nil {
			rec.AppendBot("Error: " + err.Error())
			if saveErr := s.store.Save(ctx, rec); saveErr != nil {
				s.logger.Warn("save after ask failure", "error", saveErr)
			}
			return nil, err
		}

		rec.AppendBot(answer)
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, err
		}
		return map[string]any{"answer": answer, "provider": string(name)}, nil
	})
}

// --- page_history ---

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "page_history",
		Description: "List indexed pages, or return the conversation for one page when url is given.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL (omit to list all pages)"},
		}, nil),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req struct {
			URL string `json:"url"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, err
			}
		}

		if req.URL != "" {
			rec, err := s.store.Load(ctx, req.URL)
			if err != nil {
				return nil, err
			}
			rec.Normalize()
			return map[string]any{
				"url":      convo.PageURL(rec.Key),
				"messages": rec.Messages,
			}, nil
		}

		records, err := s.store.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		pages := []map[string]any{}
		for _, rec := range records {
			title := ""
			if rec.Snapshot != nil {
				title = rec.Snapshot.Title
			}
			pages = append(pages, map[string]any{
				"url":   convo.PageURL(rec.Key),
				"title": title,
				"turns": len(rec.Turns()),
			})
		}
		return map[string]any{"pages": pages}, nil
	})
}

// --- page_clear ---

func (s *Service) registerClearTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "page_clear",
		Description: "Clear one page's conversation (url given) or delete every stored page (all=true).",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL to clear"},
			"all": map[string]any{"type": "boolean", "description": "Delete every stored page"},
		}, nil),
	}

	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var req struct {
			URL string `json:"url"`
			All bool   `json:"all"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &req); err != nil {
				return nil, err
			}
		}
		switch {
		case req.All:
			if err := s.store.ClearAll(ctx); err != nil {
				return nil, err
			}
		case req.URL != "":
			if err := s.store.ClearOne(ctx, req.URL); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("either url or all=true is required")
		}
		return map[string]string{"status": "cleared"}, nil
	})
}
