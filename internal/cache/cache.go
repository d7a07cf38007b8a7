package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"ChatSync/internal/session"
)

// Fingerprint generates a content key from a message batch
func Fingerprint(sessionID, model string, messages []session.Message) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(model))
	for _, msg := range messages {
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Model))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// LastSaved remembers the fingerprint of the last batch the backend accepted
type LastSaved struct {
	mu  sync.Mutex
	key string
}

// Matches reports whether key equals the last stored fingerprint
func (l *LastSaved) Matches(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.key != "" && l.key == key
}

// Store records key as the last saved fingerprint
func (l *LastSaved) Store(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.key = key
}

// Clear forgets the stored fingerprint
func (l *LastSaved) Clear() {
	l.Store("")
}
