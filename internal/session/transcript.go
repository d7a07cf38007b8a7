package session

import (
	"strings"
	"sync"
)

// Transcript is the in-memory record of the visible conversation. It is the
// single source for both rendering and save requests.
type Transcript struct {
	mu          sync.RWMutex
	messages    []Message
	activeModel string
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message to the end of the transcript
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of all messages in order
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Reset replaces the contents, e.g. after a different session was loaded.
func (t *Transcript) Reset(msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = make([]Message, len(msgs))
	copy(t.messages, msgs)
}

// SetActiveModel records the model currently selected for replies
func (t *Transcript) SetActiveModel(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeModel = model
}

// ActiveModel returns the selected model, or "" if none was selected
func (t *Transcript) ActiveModel() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeModel
}

// FirstUserMessage returns the trimmed content of the first non-empty user message.
func (t *Transcript) FirstUserMessage() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return FirstUserMessage(t.messages)
}

// FirstUserMessage scans msgs for the first user message with content
func FirstUserMessage(msgs []Message) (string, bool) {
	for _, m := range msgs {
		if m.Role != RoleUser {
			continue
		}
		if content := strings.TrimSpace(m.Content); content != "" {
			return content, true
		}
	}
	return "", false
}
