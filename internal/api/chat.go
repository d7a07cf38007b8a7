package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ChatSync/internal/session"
)

// SaveHistory uploads a batch of messages for a session
func (c *Client) SaveHistory(ctx context.Context, req SaveHistoryRequest) error {
	body, err := jsonBody(req)
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:          "save_history",
		method:      http.MethodPost,
		path:        "/api/chat/history",
		body:        body,
		contentType: "application/json",
		auth:        true,
	}, nil)
}

// SetSessionStatus marks a session active or inactive
func (c *Client) SetSessionStatus(ctx context.Context, id string, active bool) error {
	body, err := jsonBody(SessionStatusRequest{IsActive: active})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:          "session_status",
		method:      http.MethodPost,
		path:        sessionPath(id, "/status"),
		body:        body,
		contentType: "application/json",
		auth:        true,
	}, nil)
}

// RecentSessions lists the current user's sessions. The response must be a
// JSON array; anything else is ErrInvalidData.
func (c *Client) RecentSessions(ctx context.Context) ([]session.SessionSummary, error) {
	body, err := c.send(ctx, request{
		op:     "recent_sessions",
		method: http.MethodGet,
		path:   "/api/chat/recent-sessions",
		auth:   true,
	})
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: session list is not an array", ErrInvalidData)
	}

	var sessions []session.SessionSummary
	if err := json.Unmarshal(trimmed, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return sessions, nil
}

// Session fetches one session with its messages
func (c *Client) Session(ctx context.Context, id string) (*session.Session, error) {
	var sess session.Session
	err := c.do(ctx, request{
		op:     "get_session",
		method: http.MethodGet,
		path:   sessionPath(id, ""),
		auth:   true,
	}, &sess)
	if err != nil {
		return nil, err
	}
	if sess.ID == "" {
		sess.ID = id
	}
	return &sess, nil
}

// DeleteSession removes a session
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, request{
		op:     "delete_session",
		method: http.MethodDelete,
		path:   sessionPath(id, ""),
		auth:   true,
	}, nil)
}

// SetSessionTitle renames a session
func (c *Client) SetSessionTitle(ctx context.Context, id, title string) error {
	body, err := jsonBody(SessionTitleRequest{Title: title})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:          "session_title",
		method:      http.MethodPost,
		path:        sessionPath(id, "/title"),
		body:        body,
		contentType: "application/json",
		auth:        true,
	}, nil)
}
