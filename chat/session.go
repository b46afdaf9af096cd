package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/extract"
	"github.com/hazyhaar/pageai/provider"
)

// ErrBusy is returned when a question is submitted while another is in
// flight for the same session. Callers are expected to disable submission
// during that window; this is the backstop.
var ErrBusy = errors.New("chat: a question is already in flight")

// Session is the per-tab state machine: the current page key, its loaded
// record, and the busy flag. It is the single writer for its page key; the
// orchestrator and store hold no locks of their own.
type Session struct {
	store *convo.Store
	orch  *Orchestrator

	pageURL string
	record  *convo.Record
	busy    bool
}

// NewSession creates a session bound to a store and orchestrator.
func NewSession(store *convo.Store, orch *Orchestrator) *Session {
	return &Session{store: store, orch: orch}
}

// Record returns the currently loaded record, normalized for rendering.
func (s *Session) Record() *convo.Record {
	if s.record != nil {
		s.record.Normalize()
	}
	return s.record
}

// PageURL returns the page the session currently points at.
func (s *Session) PageURL() string { return s.pageURL }

// Index extracts a snapshot from raw HTML, attaches it to the page's
// record (replacing any previous snapshot), and persists the result. It
// also switches the session to that page, which invalidates any answer
// still in flight for the previous one.
func (s *Session) Index(ctx context.Context, pageURL, rawHTML string) error {
	rec, err := s.store.Load(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	rec.Snapshot = extract.Page(rawHTML)
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	s.pageURL = convo.PageKey(pageURL)
	s.record = rec
	return nil
}

// Open loads an existing record without re-indexing, for pages selected
// from history.
func (s *Session) Open(ctx context.Context, pageURL string) error {
	rec, err := s.store.Load(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	s.pageURL = convo.PageKey(pageURL)
	s.record = rec
	return nil
}

// Ask submits one question: append the user turn and save, dispatch, then
// append the answer (or the visible error text) and save. The question is
// always persisted before the answer. If the session navigated to another
// page while the answer was in flight, the answer is discarded rather than
// appended to the wrong conversation.
func (s *Session) Ask(ctx context.Context, question string, name provider.Name) (string, error) {
	if s.busy {
		return "", ErrBusy
	}
	if s.record == nil {
		return "", errors.New("chat: no page indexed")
	}
	s.busy = true
	defer func() { s.busy = false }()

	askedURL := s.pageURL
	rec := s.record

	rec.AppendUser(question)
	if err := s.store.Save(ctx, rec); err != nil {
		// Storage failure: drop the unsaved turn so memory matches disk.
		rec.Messages = rec.Messages[:len(rec.Messages)-1]
		rec.Normalize()
		return "", err
	}

	answer, askErr := s.orch.Ask(ctx, question, rec.Snapshot, rec.Messages, name, "")

	if s.pageURL != askedURL {
		// Navigated away mid-flight: the answer belongs to a stale key.
		if askErr != nil {
			return "", askErr
		}
		return "", fmt.Errorf("chat: page changed while waiting for answer")
	}

	if askErr != nil {
		rec.AppendBot("Error: " + askErr.Error())
		if saveErr := s.store.Save(ctx, rec); saveErr != nil {
			return "", errors.Join(askErr, saveErr)
		}
		return "", askErr
	}

	rec.AppendBot(answer)
	if err := s.store.Save(ctx, rec); err != nil {
		return answer, err
	}
	return answer, nil
}

// ClearPage empties the current page's conversation, keeping the snapshot.
func (s *Session) ClearPage(ctx context.Context) error {
	if s.pageURL == "" {
		return nil
	}
	if err := s.store.ClearOne(ctx, s.pageURL); err != nil {
		return err
	}
	rec, err := s.store.Load(ctx, s.pageURL)
	if err != nil {
		return err
	}
	s.record = rec
	return nil
}
