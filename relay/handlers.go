package relay

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/provider"
	"github.com/hazyhaar/pageai/render"
)

// Router builds the relay's HTTP surface.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.traceID)
	r.Use(maxBody(maxRequestBody))
	if s.cfg.Auth.PasswordHash != "" {
		r.Use(s.requireBasicAuth)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Post("/api/{provider}", s.handleProvider)
	r.Get("/api/{provider}/ping", s.handlePing)
	r.Post("/api/fetch-page", s.handleFetchPage)

	r.Get("/api/pages", s.handleListPages)
	r.Get("/api/pages/conversation", s.handleConversation)
	r.Delete("/api/pages/conversation", s.handleClearOne)
	r.Delete("/api/pages", s.handleClearAll)

	return r
}

// handleProvider forwards a provider-native body upstream and relays the
// response verbatim. Upstream failures keep their status code.
func (s *Service) handleProvider(w http.ResponseWriter, r *http.Request) {
	name, err := provider.Parse(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, 400, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, 400, err)
		return
	}

	s.reqLogger(r.Context()).Info("question asked", "provider", name)

	respBody, err := s.forward(r.Context(), name, body)
	if err != nil {
		var ue *upstreamError
		if errors.As(err, &ue) {
			writeJSON(w, ue.status, map[string]string{"error": ue.msg})
			return
		}
		writeError(w, 500, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	w.Write(respBody)
}

// handlePing reports whether the provider's key is configured, without
// touching the upstream.
func (s *Service) handlePing(w http.ResponseWriter, r *http.Request) {
	name, err := provider.Parse(chi.URLParam(r, "provider"))
	if err != nil {
		w.WriteHeader(400)
		return
	}
	if _, _, err := s.upstream(name); err != nil {
		w.WriteHeader(400)
		return
	}
	w.WriteHeader(200)
}

// handleListPages returns every indexed page, most useful for history UIs.
func (s *Service) handleListPages(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.LoadAll(r.Context())
	if err != nil {
		writeError(w, 500, err)
		return
	}
	type page struct {
		URL   string `json:"url"`
		Title string `json:"title"`
		Turns int    `json:"turns"`
	}
	pages := []page{}
	for _, rec := range records {
		p := page{URL: convo.PageURL(rec.Key), Turns: len(rec.Turns())}
		if rec.Snapshot != nil {
			p.Title = rec.Snapshot.Title
		}
		pages = append(pages, p)
	}
	writeJSON(w, 200, pages)
}

// handleConversation returns one page's messages, marker included.
// format=html renders the conversation as a standalone page, bot
// markdown converted and sanitized.
func (s *Service) handleConversation(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, 400, map[string]string{"error": "url is required"})
		return
	}
	rec, err := s.store.Load(r.Context(), url)
	if err != nil {
		writeError(w, 500, err)
		return
	}
	rec.Normalize()
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		io.WriteString(w, conversationHTML(rec))
		return
	}
	messages := rec.Messages
	if messages == nil {
		messages = []convo.Message{}
	}
	writeJSON(w, 200, map[string]any{
		"url":      convo.PageURL(rec.Key),
		"messages": messages,
	})
}

// conversationHTML renders a conversation as a minimal HTML document.
// Bot answers are markdown; user and marker messages are plain text.
func conversationHTML(rec *convo.Record) string {
	title := convo.PageURL(rec.Key)
	if rec.Snapshot != nil && rec.Snapshot.Title != "" {
		title = rec.Snapshot.Title
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&sb, "<title>%s</title></head>\n<body>\n", html.EscapeString(title))
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(title))
	for _, m := range rec.Messages {
		var body string
		if m.Role == convo.RoleBot {
			rendered, err := render.HTML(m.Content)
			if err != nil {
				rendered = "<p>" + html.EscapeString(m.Content) + "</p>"
			}
			body = rendered
		} else {
			body = "<p>" + html.EscapeString(m.Content) + "</p>"
		}
		fmt.Fprintf(&sb, "<section class=\"message %s\">\n%s</section>\n",
			html.EscapeString(m.Role), body)
	}
	sb.WriteString("</body></html>\n")
	return sb.String()
}

// handleClearOne empties one page's conversation, keeping its snapshot.
func (s *Service) handleClearOne(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeJSON(w, 400, map[string]string{"error": "url is required"})
		return
	}
	if err := s.store.ClearOne(r.Context(), url); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "cleared"})
}

// handleClearAll wipes the whole store.
func (s *Service) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(r.Context()); err != nil {
		writeError(w, 500, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "cleared"})
}

// requireBasicAuth enforces HTTP Basic auth against the configured bcrypt
// hash.
func (s *Service) requireBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Auth.Username)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(s.cfg.Auth.PasswordHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="pageai"`)
			writeJSON(w, 401, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
