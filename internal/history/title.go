package history

import (
	"context"
	"strings"
	"unicode/utf8"

	"ChatSync/internal/session"
)

const (
	// DefaultTitle is used when no title can be derived
	DefaultTitle = "New Chat"

	titleMaxRunes = 30
	titleEllipsis = "..."
)

// TruncateTitle cuts s to 30 runes and marks the cut with an ellipsis
func TruncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= titleMaxRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:titleMaxRunes]) + titleEllipsis
}

// GenerateChatTitle derives a title from the first user message and stores it
// on the current session. Without a current session it returns DefaultTitle
// and ErrNoSession; without a user message it returns DefaultTitle and
// stores nothing.
func (s *Sync) GenerateChatTitle(ctx context.Context) (string, error) {
	if s.SessionID() == "" {
		return DefaultTitle, ErrNoSession
	}

	first, ok := session.FirstUserMessage(s.messageSource().Messages())
	if !ok {
		return DefaultTitle, nil
	}

	title := TruncateTitle(first)
	if err := s.UpdateTitle(ctx, title); err != nil {
		return title, err
	}
	return title, nil
}
