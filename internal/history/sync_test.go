package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"ChatSync/internal/api"
	"ChatSync/internal/cache"
	"ChatSync/internal/scrape"
	"ChatSync/internal/session"
)

type fakeClient struct {
	mu       sync.Mutex
	saves    []api.SaveHistoryRequest
	statuses map[string]bool
	titles   map[string]string
	deleted  []string
	sessions map[string]*session.Session
	recent   []session.SessionSummary
	err      error
	block    chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		statuses: map[string]bool{},
		titles:   map[string]string{},
		sessions: map[string]*session.Session{},
	}
}

func (f *fakeClient) SaveHistory(ctx context.Context, req api.SaveHistoryRequest) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saves = append(f.saves, req)
	return nil
}

func (f *fakeClient) SetSessionStatus(ctx context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = active
	return f.err
}

func (f *fakeClient) RecentSessions(ctx context.Context) ([]session.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.recent, nil
}

func (f *fakeClient) Session(ctx context.Context, id string) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[id]
	if !ok {
		return nil, &api.Error{Status: 404, Message: "session not found"}
	}
	return sess, nil
}

func (f *fakeClient) DeleteSession(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClient) SetSessionTitle(ctx context.Context, id, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.titles[id] = title
	return nil
}

func (f *fakeClient) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSync(opts ...Option) (*Sync, *fakeClient, *session.Transcript) {
	client := newFakeClient()
	tr := session.NewTranscript()
	return New(client, tr, testLogger(), opts...), client, tr
}

func TestSaveWithoutSessionSkipsNetwork(t *testing.T) {
	s, client, tr := newTestSync()
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})

	err := s.SaveChatHistory(context.Background())
	if !errors.Is(err, ErrNoSession) || !IsBenign(err) {
		t.Fatalf("err=%v want ErrNoSession", err)
	}
	if client.saveCount() != 0 {
		t.Fatal("no request expected")
	}
}

func TestSaveWithoutMessagesSkipsNetwork(t *testing.T) {
	s, client, _ := newTestSync()
	s.SetSessionID("s1")

	err := s.SaveChatHistory(context.Background())
	if !errors.Is(err, ErrNothingToSave) || !IsBenign(err) {
		t.Fatalf("err=%v want ErrNothingToSave", err)
	}
	if client.saveCount() != 0 {
		t.Fatal("no request expected")
	}
}

func TestSaveSendsBatchWithModel(t *testing.T) {
	s, client, tr := newTestSync()
	s.SetSessionID("s1")
	tr.SetActiveModel("claude")
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})
	tr.Append(session.Message{Role: session.RoleAssistant, Content: "Hi", Model: "claude"})

	if err := s.SaveChatHistory(context.Background()); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}
	req := client.saves[0]
	if req.SessionID != "s1" || req.Model != "claude" || len(req.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestSaveFailureIsReturned(t *testing.T) {
	s, client, tr := newTestSync()
	s.SetSessionID("s1")
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})
	client.err = &api.Error{Status: 500, Message: "db down"}

	err := s.SaveChatHistory(context.Background())
	if err == nil || IsBenign(err) {
		t.Fatalf("err=%v want backend failure", err)
	}
	if api.Message(err, "") != "db down" {
		t.Fatalf("message=%q", api.Message(err, ""))
	}
}

func TestPreconditionsWithoutSession(t *testing.T) {
	s, _, _ := newTestSync()
	ctx := context.Background()

	if err := s.UpdateSessionStatus(ctx, true); !errors.Is(err, ErrNoSession) {
		t.Fatalf("UpdateSessionStatus err=%v", err)
	}
	if err := s.UpdateTitle(ctx, "x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("UpdateTitle err=%v", err)
	}
}

func TestLoadChatHistoriesErrors(t *testing.T) {
	s, client, _ := newTestSync()
	client.err = api.ErrAuthRequired
	if _, err := s.LoadChatHistories(context.Background()); !errors.Is(err, api.ErrAuthRequired) {
		t.Fatalf("err=%v want ErrAuthRequired", err)
	}

	client.err = api.ErrInvalidData
	if _, err := s.LoadChatHistories(context.Background()); !errors.Is(err, api.ErrInvalidData) {
		t.Fatalf("err=%v want ErrInvalidData", err)
	}

	client.err = nil
	client.recent = []session.SessionSummary{{ID: "a"}, {ID: "b"}}
	got, err := s.LoadChatHistories(context.Background())
	if err != nil || len(got) != 2 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestLoadChatSession(t *testing.T) {
	s, client, tr := newTestSync()
	s.SetSessionID("old")
	tr.Append(session.Message{Role: session.RoleUser, Content: "old message"})
	client.sessions["s2"] = &session.Session{
		ID:       "s2",
		Messages: []session.Message{{Role: session.RoleUser, Content: "stored"}},
	}

	sess, err := s.LoadChatSession(context.Background(), "s2")
	if err != nil {
		t.Fatalf("LoadChatSession: %v", err)
	}
	if sess.ID != "s2" || s.SessionID() != "s2" {
		t.Fatalf("current=%q", s.SessionID())
	}
	if !client.statuses["s2"] {
		t.Fatal("loaded session should be marked active")
	}
	if msgs := tr.Messages(); len(msgs) != 1 || msgs[0].Content != "stored" {
		t.Fatalf("transcript=%+v", msgs)
	}

	_, err = s.LoadChatSession(context.Background(), "missing")
	if err == nil || !strings.Contains(err.Error(), "session not found") {
		t.Fatalf("err=%v should carry the backend message", err)
	}
	if s.SessionID() != "s2" {
		t.Fatal("failed load must not change the current session")
	}
}

func TestDeleteCurrentSessionClearsID(t *testing.T) {
	s, client, tr := newTestSync()
	s.SetSessionID("s1")
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})
	if err := s.SaveChatHistory(context.Background()); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}

	if err := s.DeleteSession(context.Background(), "other"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if s.SessionID() != "s1" {
		t.Fatal("deleting another session must keep the current id")
	}
	if tr.Len() != 1 {
		t.Fatal("deleting another session must keep the transcript")
	}
	if err := s.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if s.SessionID() != "" {
		t.Fatal("deleting the current session should clear the id")
	}
	if tr.Len() != 0 {
		t.Fatalf("transcript should be cleared, has %d messages", tr.Len())
	}
	if s.lastSaved.Matches(cache.Fingerprint("s1", "", []session.Message{{Role: session.RoleUser, Content: "Hello"}})) {
		t.Fatal("last saved fingerprint should be cleared")
	}
	if len(client.deleted) != 2 {
		t.Fatalf("deleted=%v", client.deleted)
	}
}

func TestNewSession(t *testing.T) {
	s, _, tr := newTestSync()
	tr.Append(session.Message{Role: session.RoleUser, Content: "x"})

	id := s.NewSession()
	if id == "" || s.SessionID() != id {
		t.Fatalf("NewSession id=%q current=%q", id, s.SessionID())
	}
	if tr.Len() != 0 {
		t.Fatal("new session should start with an empty transcript")
	}
	if other := s.NewSession(); other == id {
		t.Fatal("ids should be unique")
	}
}

func TestGenerateChatTitle(t *testing.T) {
	s, client, tr := newTestSync()
	ctx := context.Background()

	title, err := s.GenerateChatTitle(ctx)
	if title != DefaultTitle || !errors.Is(err, ErrNoSession) {
		t.Fatalf("no session: %q %v", title, err)
	}

	s.SetSessionID("s1")
	tr.Append(session.Message{Role: session.RoleAssistant, Content: "Welcome!"})
	title, err = s.GenerateChatTitle(ctx)
	if title != DefaultTitle || err != nil {
		t.Fatalf("no user message: %q %v", title, err)
	}
	if len(client.titles) != 0 {
		t.Fatal("placeholder title must not be stored")
	}

	long := strings.Repeat("abcdefghij", 4)
	tr.Append(session.Message{Role: session.RoleUser, Content: long})
	title, err = s.GenerateChatTitle(ctx)
	if err != nil {
		t.Fatalf("GenerateChatTitle: %v", err)
	}
	want := long[:30] + "..."
	if title != want || client.titles["s1"] != want {
		t.Fatalf("title=%q stored=%q want %q", title, client.titles["s1"], want)
	}
}

func TestTruncateTitle(t *testing.T) {
	if got := TruncateTitle("  short  "); got != "short" {
		t.Fatalf("got %q", got)
	}
	exact := strings.Repeat("x", 30)
	if got := TruncateTitle(exact); got != exact {
		t.Fatalf("30 runes should not be cut: %q", got)
	}
	multi := strings.Repeat("é", 31)
	if got := TruncateTitle(multi); got != strings.Repeat("é", 30)+"..." {
		t.Fatalf("rune-aware cut failed: %q", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartAutoSaveTwiceKeepsOneLoop(t *testing.T) {
	s, _, _ := newTestSync(WithInterval(5 * time.Millisecond))
	ctx := context.Background()

	s.StartAutoSave(ctx)
	s.StartAutoSave(ctx)
	if n := s.loops.Load(); n != 1 {
		t.Fatalf("running loops=%d want 1", n)
	}
	if !s.AutoSaveRunning() {
		t.Fatal("auto-save should be running")
	}

	s.StopAutoSave()
	s.StopAutoSave()
	if s.AutoSaveRunning() {
		t.Fatal("auto-save should be stopped")
	}
}

func TestAutoSaveSkipsUnchangedTranscript(t *testing.T) {
	s, client, tr := newTestSync(WithInterval(5 * time.Millisecond))
	s.SetSessionID("s1")
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})

	s.StartAutoSave(context.Background())
	defer s.StopAutoSave()

	waitFor(t, "first auto-save", func() bool { return client.saveCount() == 1 })
	time.Sleep(40 * time.Millisecond)
	if n := client.saveCount(); n != 1 {
		t.Fatalf("unchanged transcript saved %d times", n)
	}

	tr.Append(session.Message{Role: session.RoleAssistant, Content: "Hi"})
	waitFor(t, "save after change", func() bool { return client.saveCount() == 2 })
}

func TestAutoSaveWithoutSessionDoesNothing(t *testing.T) {
	s, client, tr := newTestSync(WithInterval(5 * time.Millisecond))
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})

	s.StartAutoSave(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.StopAutoSave()

	if client.saveCount() != 0 {
		t.Fatal("no save expected without a session id")
	}
}

func TestAutoSaveSkipsWhileSaveInFlight(t *testing.T) {
	s, client, tr := newTestSync(WithInterval(5 * time.Millisecond))
	s.SetSessionID("s1")
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})
	client.block = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- s.SaveChatHistory(context.Background()) }()
	waitFor(t, "explicit save to start", func() bool { return s.inFlight.Load() == 1 })

	s.StartAutoSave(context.Background())
	time.Sleep(30 * time.Millisecond)
	if n := s.inFlight.Load(); n != 1 {
		t.Fatalf("in-flight saves=%d want 1 (ticks should skip)", n)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}
	s.StopAutoSave()
	if n := client.saveCount(); n != 1 {
		t.Fatalf("saves=%d want 1", n)
	}
}

func TestSaveFromPageSnapshot(t *testing.T) {
	page, err := scrape.Parse(strings.NewReader(`<select id="model-select"><option value="deepseek">DeepSeek</option></select>
<div id="chat-messages">
  <div class="message user">Summarize this</div>
  <div class="message assistant"><span class="model-name">DeepSeek-V3</span>Done.</div>
</div>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	client := newFakeClient()
	s := New(client, page, testLogger())
	s.SetSessionID("snap")

	if err := s.SaveChatHistory(context.Background()); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}
	req := client.saves[0]
	if req.Model != "deepseek" || len(req.Messages) != 2 {
		t.Fatalf("unexpected save: %+v", req)
	}
	if req.Messages[1].Model != session.ModelDeepSeek || req.Messages[1].Content != "Done." {
		t.Fatalf("assistant message=%+v", req.Messages[1])
	}
}

func TestSaveRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	s, _, tr := newTestSync(WithTracer(tp.Tracer("test")))
	s.SetSessionID("s1")
	tr.SetActiveModel("claude")
	tr.Append(session.Message{Role: session.RoleUser, Content: "Hello"})

	if err := s.SaveChatHistory(context.Background()); err != nil {
		t.Fatalf("SaveChatHistory: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "history.save" {
		t.Fatalf("spans=%v", spans)
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["chat.session_id"].AsString() != "s1" || attrs["chat.model"].AsString() != "claude" || attrs["chat.message_count"].AsInt64() != 1 {
		t.Fatalf("attributes=%v", spans[0].Attributes())
	}
}
