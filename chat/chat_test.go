package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/extract"
	"github.com/hazyhaar/pageai/provider"
)

// fakeDispatcher records the last request and plays back a scripted
// response or error.
type fakeDispatcher struct {
	lastCfg  provider.Config
	lastBody []byte
	resp     []byte
	err      error
	calls    int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, cfg provider.Config, body []byte) ([]byte, error) {
	f.calls++
	f.lastCfg = cfg
	f.lastBody = body
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func answerBody(text string) []byte {
	return []byte(fmt.Sprintf(`{"choices":[{"message":{"content":%q}}]}`, text))
}

func decodeChatRequest(t *testing.T, body []byte) struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
} {
	t.Helper()
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("decode dispatched body: %v", err)
	}
	return req
}

func TestAsk_SystemPromptCarriesPageContent(t *testing.T) {
	fd := &fakeDispatcher{resp: answerBody("ok")}
	o := NewOrchestrator(fd, nil)
	snap := &extract.Snapshot{Title: "Hi", Markdown: "# Page Title\nHi\n\n## Main Content\nhello world"}

	answer, err := o.Ask(context.Background(), "what?", snap, nil, provider.OpenAI, "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "ok" {
		t.Errorf("answer = %q", answer)
	}
	req := decodeChatRequest(t, fd.lastBody)
	sys := req.Messages[0]
	if sys.Role != "system" {
		t.Fatalf("first message role = %q", sys.Role)
	}
	if !strings.Contains(sys.Content, "PAGE CONTENT:\n# Page Title") {
		t.Errorf("system prompt missing page digest: %q", sys.Content)
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != "user" || last.Content != "what?" {
		t.Errorf("final message = %+v", last)
	}
}

func TestAsk_TrimsHistoryToLastTen(t *testing.T) {
	// 15 prior turns: only the last 10 may travel, plus system and question.
	var history []convo.Message
	for i := 1; i <= 15; i++ {
		role := convo.RoleUser
		if i%2 == 0 {
			role = convo.RoleBot
		}
		history = append(history, convo.Message{Role: role, Content: fmt.Sprintf("t%d", i)})
	}
	// A marker must never count as a turn.
	history = append([]convo.Message{{
		Role: convo.RoleSystem, Kind: convo.KindPageIndexed, Content: convo.MarkerContent,
	}}, history...)

	fd := &fakeDispatcher{resp: answerBody("ok")}
	o := NewOrchestrator(fd, nil)
	if _, err := o.Ask(context.Background(), "q", &extract.Snapshot{Markdown: "m"}, history, provider.OpenAI, ""); err != nil {
		t.Fatal(err)
	}

	req := decodeChatRequest(t, fd.lastBody)
	if got := len(req.Messages); got != 12 {
		t.Fatalf("message count = %d, want 12 (system + 10 turns + question)", got)
	}
	if req.Messages[1].Content != "t6" {
		t.Errorf("oldest kept turn = %q, want t6", req.Messages[1].Content)
	}
	if req.Messages[10].Content != "t15" {
		t.Errorf("newest kept turn = %q, want t15", req.Messages[10].Content)
	}
}

func TestAsk_NoAnswerIsNotAnError(t *testing.T) {
	fd := &fakeDispatcher{resp: []byte(`{"choices":[]}`)}
	o := NewOrchestrator(fd, nil)
	answer, err := o.Ask(context.Background(), "q", &extract.Snapshot{Markdown: "m"}, nil, provider.OpenAI, "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != provider.NoAnswer {
		t.Errorf("answer = %q, want %q", answer, provider.NoAnswer)
	}
}

func TestAsk_ProviderErrorSurfacesStatus(t *testing.T) {
	fd := &fakeDispatcher{err: &ProviderError{
		Provider: provider.Anthropic,
		Status:   502,
		Err:      errors.New("upstream unavailable"),
	}}
	o := NewOrchestrator(fd, nil)
	_, err := o.Ask(context.Background(), "q", &extract.Snapshot{Markdown: "m"}, nil, provider.Anthropic, "")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Status != 502 || pe.Provider != provider.Anthropic {
		t.Errorf("provider error = %+v", pe)
	}
}

func TestAsk_WrapsPlainDispatchErrors(t *testing.T) {
	fd := &fakeDispatcher{err: errors.New("connection refused")}
	o := NewOrchestrator(fd, nil)
	_, err := o.Ask(context.Background(), "q", &extract.Snapshot{Markdown: "m"}, nil, provider.Grok, "")
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Provider != provider.Grok || pe.Status != 0 {
		t.Errorf("provider error = %+v", pe)
	}
}

func newTestSession(fd *fakeDispatcher) (*Session, *convo.Store) {
	store := convo.NewStore(convo.NewMemoryKV())
	return NewSession(store, NewOrchestrator(fd, nil)), store
}

const sessionHTML = `<html><head><title>Doc</title></head><body><p>hello there</p></body></html>`

func TestSession_IndexThenAskPersistsBothTurns(t *testing.T) {
	ctx := context.Background()
	fd := &fakeDispatcher{resp: answerBody("an answer")}
	sess, store := newTestSession(fd)

	if err := sess.Index(ctx, "https://example.com/a#frag", sessionHTML); err != nil {
		t.Fatal(err)
	}
	if sess.PageURL() != "https://example.com/a" {
		t.Errorf("page url = %q", sess.PageURL())
	}

	answer, err := sess.Ask(ctx, "what does it say?", provider.OpenAI)
	if err != nil {
		t.Fatal(err)
	}
	if answer != "an answer" {
		t.Errorf("answer = %q", answer)
	}

	rec, err := store.Load(ctx, "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	turns := rec.Turns()
	if len(turns) != 2 {
		t.Fatalf("turns = %+v", turns)
	}
	if turns[0].Role != convo.RoleUser || turns[0].Content != "what does it say?" {
		t.Errorf("user turn = %+v", turns[0])
	}
	if turns[1].Role != convo.RoleBot || turns[1].Content != "an answer" {
		t.Errorf("bot turn = %+v", turns[1])
	}
}

func TestSession_AskWithoutIndexFails(t *testing.T) {
	sess, _ := newTestSession(&fakeDispatcher{resp: answerBody("x")})
	if _, err := sess.Ask(context.Background(), "q", provider.OpenAI); err == nil {
		t.Error("ask before index succeeded")
	}
}

func TestSession_DispatchErrorIsRecordedVisibly(t *testing.T) {
	ctx := context.Background()
	fd := &fakeDispatcher{err: &ProviderError{Provider: provider.OpenAI, Status: 500, Err: errors.New("boom")}}
	sess, store := newTestSession(fd)
	if err := sess.Index(ctx, "https://example.com/b", sessionHTML); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Ask(ctx, "q", provider.OpenAI); err == nil {
		t.Fatal("dispatch error not returned")
	}

	rec, err := store.Load(ctx, "https://example.com/b")
	if err != nil {
		t.Fatal(err)
	}
	turns := rec.Turns()
	if len(turns) != 2 {
		t.Fatalf("turns = %+v", turns)
	}
	if turns[1].Role != convo.RoleBot || !strings.HasPrefix(turns[1].Content, "Error: ") {
		t.Errorf("error turn = %+v", turns[1])
	}
}

func TestSession_StaleAnswerIsDiscarded(t *testing.T) {
	ctx := context.Background()
	sess, store := newTestSession(nil)
	if err := sess.Index(ctx, "https://example.com/first", sessionHTML); err != nil {
		t.Fatal(err)
	}

	// Dispatcher that navigates the session away mid-flight.
	nav := &navigatingDispatcher{sess: sess, next: "https://example.com/second"}
	sess.orch = NewOrchestrator(nav, nil)

	if _, err := sess.Ask(ctx, "q", provider.OpenAI); err == nil {
		t.Fatal("stale answer accepted")
	}

	// The question was persisted before dispatch; no answer followed it.
	rec, err := store.Load(ctx, "https://example.com/first")
	if err != nil {
		t.Fatal(err)
	}
	turns := rec.Turns()
	if len(turns) != 1 || turns[0].Role != convo.RoleUser {
		t.Errorf("turns = %+v", turns)
	}
	// The new page's conversation stays untouched.
	rec2, err := store.Load(ctx, "https://example.com/second")
	if err != nil {
		t.Fatal(err)
	}
	if rec2.HasTurns() {
		t.Errorf("answer leaked into new page: %+v", rec2.Messages)
	}
}

type navigatingDispatcher struct {
	sess *Session
	next string
}

func (d *navigatingDispatcher) Dispatch(ctx context.Context, _ provider.Config, _ []byte) ([]byte, error) {
	if err := d.sess.Index(ctx, d.next, sessionHTML); err != nil {
		return nil, err
	}
	return answerBody("late answer"), nil
}

func TestSession_ClearPageKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	fd := &fakeDispatcher{resp: answerBody("a")}
	sess, store := newTestSession(fd)
	if err := sess.Index(ctx, "https://example.com/c", sessionHTML); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Ask(ctx, "q", provider.OpenAI); err != nil {
		t.Fatal(err)
	}
	if err := sess.ClearPage(ctx); err != nil {
		t.Fatal(err)
	}

	rec, err := store.Load(ctx, "https://example.com/c")
	if err != nil {
		t.Fatal(err)
	}
	if rec.HasTurns() {
		t.Errorf("turns survive clear: %+v", rec.Messages)
	}
	if rec.Snapshot == nil || rec.Snapshot.Title != "Doc" {
		t.Errorf("snapshot lost: %+v", rec.Snapshot)
	}
	// The marker reappears once the turns are gone.
	if len(rec.Messages) == 0 || !rec.Messages[0].IsMarker() {
		t.Errorf("marker missing after clear: %+v", rec.Messages)
	}
}
