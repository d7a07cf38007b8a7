package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// Login posts form-encoded credentials. The session cookie the backend sets
// is kept in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp LoginResponse
	err := c.do(ctx, request{
		op:          "login",
		method:      http.MethodPost,
		path:        "/api/login",
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginForToken posts multipart credentials and returns the issued bearer token
func (c *Client) LoginForToken(ctx context.Context, username, password string) (*TokenResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("username", username); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if err := w.WriteField("password", password); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	var resp TokenResponse
	err := c.do(ctx, request{
		op:          "login_token",
		method:      http.MethodPost,
		path:        "/api/login",
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access_token in login response", ErrInvalidData)
	}
	return &resp, nil
}

// Me fetches the authenticated user's profile
func (c *Client) Me(ctx context.Context) (*UserProfile, error) {
	var profile UserProfile
	err := c.do(ctx, request{
		op:     "me",
		method: http.MethodGet,
		path:   "/api/me",
		auth:   true,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
