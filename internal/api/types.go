package api

import (
	"ChatSync/internal/session"
)

// ID is a string-or-number identifier, as in session payloads
type ID = session.ID

// SaveHistoryRequest represents the request body for POST /api/chat/history
type SaveHistoryRequest struct {
	SessionID string            `json:"session_id"`
	Messages  []session.Message `json:"messages"`
	Model     string            `json:"model,omitempty"`
}

// SessionStatusRequest represents the request body for POST /api/chat/session/{id}/status
type SessionStatusRequest struct {
	IsActive bool `json:"is_active"`
}

// SessionTitleRequest represents the request body for POST /api/chat/session/{id}/title
type SessionTitleRequest struct {
	Title string `json:"title"`
}

// LoginResponse represents the cookie-session response from POST /api/login
type LoginResponse struct {
	SessionValid bool   `json:"session_valid"`
	UserID       ID     `json:"user_id"`
	Role         string `json:"role"`
	Message      string `json:"message,omitempty"`
}

// TokenResponse represents the token-flow response from POST /api/login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}

// UserProfile represents the response from GET /api/me
type UserProfile struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
}
