package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ChatSync/internal/api"
	"ChatSync/internal/cache"
	"ChatSync/internal/session"
)

var (
	// ErrNoSession means no current session id is set
	ErrNoSession = errors.New("no current session")

	// ErrNothingToSave means the message source is empty
	ErrNothingToSave = errors.New("no messages to save")
)

// IsBenign reports whether err is an unmet precondition rather than a failure
func IsBenign(err error) bool {
	return errors.Is(err, ErrNoSession) || errors.Is(err, ErrNothingToSave)
}

// MessageSource supplies the conversation to persist
type MessageSource interface {
	Messages() []session.Message
	ActiveModel() string
}

// Transcript is a MessageSource that can also be replaced wholesale when a
// stored session is loaded.
type Transcript interface {
	MessageSource
	Reset(msgs []session.Message)
}

// Client is the part of the backend API the sync needs
type Client interface {
	SaveHistory(ctx context.Context, req api.SaveHistoryRequest) error
	SetSessionStatus(ctx context.Context, id string, active bool) error
	RecentSessions(ctx context.Context) ([]session.SessionSummary, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	DeleteSession(ctx context.Context, id string) error
	SetSessionTitle(ctx context.Context, id, title string) error
}

// Sync keeps a transcript in step with the backend's session store
type Sync struct {
	client Client
	logger *slog.Logger

	mu        sync.RWMutex
	sessionID string
	source    MessageSource

	interval   time.Duration
	now        func() time.Time
	yearWindow int

	loopMu    sync.Mutex
	stopLoop  context.CancelFunc
	loopDone  chan struct{}
	loops     atomic.Int32
	inFlight  atomic.Int32
	lastSaved cache.LastSaved
	saveCount metric.Int64Counter
	tracer    trace.Tracer
}

// Option customizes a Sync
type Option func(*Sync)

// WithInterval sets the auto-save period
func WithInterval(d time.Duration) Option {
	return func(s *Sync) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now for date grouping
func WithClock(now func() time.Time) Option {
	return func(s *Sync) { s.now = now }
}

// WithMeter sets the meter used for the save counter
func WithMeter(meter metric.Meter) Option {
	return func(s *Sync) {
		s.saveCount = newSaveCounter(meter)
	}
}

// WithTracer sets the tracer used for save spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Sync) { s.tracer = tracer }
}

// New creates a Sync reading messages from source
func New(client Client, source MessageSource, logger *slog.Logger, opts ...Option) *Sync {
	s := &Sync{
		client:     client,
		source:     source,
		logger:     logger,
		interval:   DefaultAutoSaveInterval,
		now:        time.Now,
		yearWindow: DefaultYearWindow,
		saveCount:  newSaveCounter(otel.Meter("chatsync/history")),
		tracer:     otel.Tracer("chatsync/history"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newSaveCounter(meter metric.Meter) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		"chatsync.saves",
		metric.WithDescription("Chat history save attempts by result"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return counter
}

func (s *Sync) countSave(ctx context.Context, result string) {
	if s.saveCount == nil {
		return
	}
	s.saveCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// SetSessionID replaces the current session id
func (s *Sync) SetSessionID(id string) {
	s.mu.Lock()
	changed := s.sessionID != id
	s.sessionID = id
	s.mu.Unlock()

	if changed {
		s.lastSaved.Clear()
		s.logger.Info("current session changed", "session_id", id)
	}
}

// SessionID returns the current session id, "" if none
func (s *Sync) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// NewSession starts a fresh session with a generated id
func (s *Sync) NewSession() string {
	id := uuid.NewString()
	s.SetSessionID(id)
	if t, ok := s.messageSource().(Transcript); ok {
		t.Reset(nil)
	}
	return id
}

func (s *Sync) messageSource() MessageSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// SaveChatHistory uploads every message of the source for the current
// session. ErrNoSession and ErrNothingToSave are returned before any request.
func (s *Sync) SaveChatHistory(ctx context.Context) error {
	return s.save(ctx)
}

func (s *Sync) save(ctx context.Context) error {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	id := s.SessionID()
	if id == "" {
		s.logger.Debug("nothing to save: no current session")
		return ErrNoSession
	}

	src := s.messageSource()
	messages := src.Messages()
	if len(messages) == 0 {
		s.logger.Debug("nothing to save: no messages", "session_id", id)
		return ErrNothingToSave
	}
	model := src.ActiveModel()

	ctx, span := s.tracer.Start(ctx, "history.save",
		trace.WithAttributes(
			attribute.String("chat.session_id", id),
			attribute.String("chat.model", model),
			attribute.Int("chat.message_count", len(messages)),
		),
	)
	defer span.End()

	err := s.client.SaveHistory(ctx, api.SaveHistoryRequest{
		SessionID: id,
		Messages:  messages,
		Model:     model,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.logger.Error("failed to save chat history", "session_id", id, "error", err)
		s.countSave(ctx, "failed")
		return fmt.Errorf("save chat history: %w", err)
	}

	s.lastSaved.Store(cache.Fingerprint(id, model, messages))
	s.countSave(ctx, "ok")
	s.logger.Info("chat history saved", "session_id", id, "count", len(messages))
	return nil
}

// UpdateSessionStatus marks the current session active or inactive
func (s *Sync) UpdateSessionStatus(ctx context.Context, active bool) error {
	id := s.SessionID()
	if id == "" {
		return ErrNoSession
	}
	if err := s.client.SetSessionStatus(ctx, id, active); err != nil {
		s.logger.Error("failed to update session status", "session_id", id, "active", active, "error", err)
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// LoadChatHistories lists the user's recent sessions
func (s *Sync) LoadChatHistories(ctx context.Context) ([]session.SessionSummary, error) {
	sessions, err := s.client.RecentSessions(ctx)
	if err != nil {
		s.logger.Error("failed to load chat histories", "error", err)
		return nil, fmt.Errorf("load chat histories: %w", err)
	}
	s.logger.Info("loaded chat histories", "count", len(sessions))
	return sessions, nil
}

// LoadChatSession fetches a session, makes it current, marks it active on the
// backend and replaces the transcript with its messages.
func (s *Sync) LoadChatSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.client.Session(ctx, id)
	if err != nil {
		s.logger.Error("failed to load chat session", "session_id", id, "error", err)
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	s.SetSessionID(sess.ID)
	if t, ok := s.messageSource().(Transcript); ok {
		t.Reset(sess.Messages)
		s.lastSaved.Store(cache.Fingerprint(sess.ID, t.ActiveModel(), sess.Messages))
	}

	if err := s.UpdateSessionStatus(ctx, true); err != nil {
		s.logger.Warn("loaded session but could not mark it active", "session_id", sess.ID, "error", err)
	}
	return sess, nil
}

// DeleteSession removes a session. Deleting the current one clears the
// current session id and the transcript.
func (s *Sync) DeleteSession(ctx context.Context, id string) error {
	if err := s.client.DeleteSession(ctx, id); err != nil {
		s.logger.Error("failed to delete session", "session_id", id, "error", err)
		return fmt.Errorf("delete session: %w", err)
	}

	if s.SessionID() == id {
		s.SetSessionID("")
		if t, ok := s.messageSource().(Transcript); ok {
			t.Reset(nil)
		}
	}

	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// UpdateTitle renames the current session
func (s *Sync) UpdateTitle(ctx context.Context, title string) error {
	id := s.SessionID()
	if id == "" {
		return ErrNoSession
	}
	if err := s.client.SetSessionTitle(ctx, id, title); err != nil {
		s.logger.Error("failed to update title", "session_id", id, "error", err)
		return fmt.Errorf("update title: %w", err)
	}
	return nil
}
