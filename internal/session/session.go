package session

import (
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	ModelClaude   = "claude"
	ModelGPT      = "gpt"
	ModelGemini   = "gemini"
	ModelDeepSeek = "deepseek"

	// DefaultModel is used for labels that match no known model.
	DefaultModel = ModelGPT
)

var knownModels = []string{ModelClaude, ModelGPT, ModelGemini, ModelDeepSeek}

// Message represents a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// Session represents a chat session as stored by the backend
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
	IsActive  bool      `json:"is_active"`
	Title     string    `json:"title"`
}

// SessionSummary is one entry of the recent sessions list
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active"`
	MessageCount int       `json:"message_count"`
}

// SessionGroup is a named recency bucket of sessions
type SessionGroup struct {
	Name     string           `json:"name"`
	Sessions []SessionSummary `json:"sessions"`
}

// NormalizeModel maps a free-form model label such as "Claude-3" onto one of
// the known model tags. Empty labels stay empty.
func NormalizeModel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return ""
	}
	for _, m := range knownModels {
		if strings.Contains(label, m) {
			return m
		}
	}
	if strings.Contains(label, "openai") || strings.HasPrefix(label, "o1") {
		return ModelGPT
	}
	return DefaultModel
}
