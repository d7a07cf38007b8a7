package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ChatSync/internal/api"
	"ChatSync/internal/storage"
)

// ErrNotImplemented is returned by RefreshToken; the backend issues no refresh tokens
var ErrNotImplemented = errors.New("token refresh not implemented")

// Navigator moves the user to another page of the application
type Navigator interface {
	Navigate(path string)
}

// State is the signed-in identity. It is the only writer of the persistent
// credential keys.
type State struct {
	store  storage.Store
	nav    Navigator
	logger *slog.Logger

	mu     sync.RWMutex
	token  string
	userID string
	role   string
}

// NewState captures the token and cached identity from store
func NewState(store storage.Store, nav Navigator, logger *slog.Logger) (*State, error) {
	s := &State{store: store, nav: nav, logger: logger}

	var err error
	if s.token, _, err = store.Get(storage.KeyAccessToken); err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if s.userID, _, err = store.Get(storage.KeyUserID); err != nil {
		return nil, fmt.Errorf("failed to load user id: %w", err)
	}
	if s.role, _, err = store.Get(storage.KeyUserRole); err != nil {
		return nil, fmt.Errorf("failed to load user role: %w", err)
	}
	return s, nil
}

// Token implements api.TokenSource
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *State) IsLoggedIn() bool {
	return s.Token() != ""
}

// UserInfo returns the cached id/role pair
func (s *State) UserInfo() UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return UserInfo{ID: s.userID, Role: s.role}
}

func (s *State) HasRole(role string) bool {
	return s.UserInfo().Role == role
}

// IsAdmin checks the role claim of the current token
func (s *State) IsAdmin() bool {
	info, ok := DecodeUserInfo(s.Token())
	return ok && info.Role == RoleAdmin
}

// SetToken stores a freshly issued token and the identity decoded from it
func (s *State) SetToken(token string) error {
	info, ok := DecodeUserInfo(token)
	if !ok {
		info = &UserInfo{}
	}

	if err := s.store.Set(storage.KeyAccessToken, token); err != nil {
		return err
	}
	if err := s.SetIdentity(info.ID, info.Role); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.logger.Info("stored access token", "user_id", info.ID, "role", info.Role)
	return nil
}

// SetIdentity stores the user id and role, e.g. after a cookie-session login
func (s *State) SetIdentity(userID, role string) error {
	if err := s.store.Set(storage.KeyUserID, userID); err != nil {
		return err
	}
	if err := s.store.Set(storage.KeyUserRole, role); err != nil {
		return err
	}

	s.mu.Lock()
	s.userID, s.role = userID, role
	s.mu.Unlock()
	return nil
}

// ClearIdentity forgets the user id and role but keeps the token
func (s *State) ClearIdentity() error {
	if err := s.store.Delete(storage.KeyUserID, storage.KeyUserRole); err != nil {
		return err
	}
	s.mu.Lock()
	s.userID, s.role = "", ""
	s.mu.Unlock()
	return nil
}

// Logout clears stored credentials and returns to the root page
func (s *State) Logout() {
	if err := s.store.Delete(storage.KeyAccessToken, storage.KeyUserID, storage.KeyUserRole); err != nil {
		s.logger.Error("failed to clear credentials", "error", err)
	}

	s.mu.Lock()
	s.token, s.userID, s.role = "", "", ""
	s.mu.Unlock()

	s.logger.Info("logged out")
	if s.nav != nil {
		s.nav.Navigate("/")
	}
}

// LoadUserInfo fetches the profile of the signed-in user. An unauthorized
// response logs the user out.
func (s *State) LoadUserInfo(ctx context.Context, client *api.Client) (*api.UserProfile, error) {
	profile, err := client.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.logger.Warn("token rejected, logging out")
			s.Logout()
		}
		return nil, fmt.Errorf("failed to load user info: %w", err)
	}

	if err := s.SetIdentity(string(profile.ID), profile.Role); err != nil {
		s.logger.Warn("failed to cache user info", "error", err)
	}
	return profile, nil
}

// RefreshToken is not supported by the backend
func (s *State) RefreshToken(ctx context.Context) error {
	return ErrNotImplemented
}

// Login performs the token login flow and returns the issued token. It does
// not touch any State; callers pass the token to State.SetToken.
func Login(ctx context.Context, client *api.Client, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required")
	}
	resp, err := client.LoginForToken(ctx, username, password)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	return resp.AccessToken, nil
}
