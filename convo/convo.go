// Package convo models per-page conversations: the message log, the page
// snapshot, and the derived "page indexed" marker message.
//
// Records are keyed by page identity (URL minus fragment) under a fixed
// storage namespace. The marker message is a convenience entry recomputed
// on every save and render; it is never treated as durable truth.
package convo

import (
	"strings"

	"github.com/hazyhaar/pageai/extract"
)

// KeyPrefix namespaces page-conversation entries in the backing store.
// Keys outside the namespace are ignored.
const KeyPrefix = "pageAI_"

// MarkerContent is the text of the synthetic leading marker message.
const MarkerContent = "Page indexed successfully!"

// Message roles.
const (
	RoleUser   = "user"
	RoleBot    = "bot"
	RoleSystem = "system"
)

// KindPageIndexed marks the synthetic leading marker message.
const KindPageIndexed = "page-indexed-link"

// Message is one conversation entry. The sequence is append-only except for
// the leading marker, which is derived.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

// IsMarker reports whether m is the synthetic page-indexed marker.
func (m Message) IsMarker() bool {
	return m.Role == RoleSystem && m.Kind == KindPageIndexed
}

// Record is one page's conversation plus its snapshot.
type Record struct {
	Key      string            `json:"key"`
	Messages []Message         `json:"messages"`
	Snapshot *extract.Snapshot `json:"snapshot,omitempty"`
}

// PageKey derives the storage identity of a page URL: the URL with any
// fragment suffix stripped, used directly (not hashed).
func PageKey(pageURL string) string {
	url, _, _ := strings.Cut(pageURL, "#")
	return url
}

// StorageKey returns the namespaced key a record is stored under.
func StorageKey(pageURL string) string {
	return KeyPrefix + PageKey(pageURL)
}

// PageURL recovers the page URL from a storage key.
func PageURL(storageKey string) string {
	return strings.TrimPrefix(storageKey, KeyPrefix)
}

// HasTurns reports whether any user or bot message exists in the record.
func (r *Record) HasTurns() bool {
	for _, m := range r.Messages {
		if m.Role == RoleUser || m.Role == RoleBot {
			return true
		}
	}
	return false
}

// Normalize enforces the marker invariant: the marker sits at index 0 iff
// the record holds no user/bot message, with URL and title reflecting the
// current page. Called before every save and before rendering.
func (r *Record) Normalize() {
	title := extract.NoTitle
	if r.Snapshot != nil && r.Snapshot.Title != "" {
		title = r.Snapshot.Title
	}
	marker := Message{
		Role:    RoleSystem,
		Kind:    KindPageIndexed,
		Content: MarkerContent,
		URL:     PageURL(r.Key),
		Title:   title,
	}

	if r.HasTurns() {
		if len(r.Messages) > 0 && r.Messages[0].IsMarker() {
			r.Messages = r.Messages[1:]
		}
		return
	}
	if len(r.Messages) == 0 || !r.Messages[0].IsMarker() {
		r.Messages = append([]Message{marker}, r.Messages...)
		return
	}
	// Marker already present: refresh URL/title in case the page changed.
	r.Messages[0] = marker
}

// AppendUser appends a user question and re-normalizes.
func (r *Record) AppendUser(content string) {
	r.Messages = append(r.Messages, Message{Role: RoleUser, Content: content})
	r.Normalize()
}

// AppendBot appends a bot answer (or visible error text) and re-normalizes.
func (r *Record) AppendBot(content string) {
	r.Messages = append(r.Messages, Message{Role: RoleBot, Content: content})
	r.Normalize()
}

// Turns returns only the real user/bot messages, oldest first.
func (r *Record) Turns() []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Role == RoleUser || m.Role == RoleBot {
			out = append(out, m)
		}
	}
	return out
}
