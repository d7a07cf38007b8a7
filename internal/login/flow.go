package login

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ChatSync/internal/api"
	"ChatSync/internal/storage"
)

const (
	// LandingPath is where a successful login navigates
	LandingPath = "/chat"

	DefaultRedirectDelay = time.Second
	ThrottleWindow       = time.Second
	ThrottleLockout      = 5 * time.Second
)

const (
	msgMissingCredentials = "Please enter both username and password"
	msgLoggingIn          = "Logging in..."
	msgSubmit             = "Log in"
	msgLoginFailed        = "Login failed, please try again"
	msgInvalidSession     = "Login failed: the server did not confirm the session"
	msgNetwork            = "Network error, please check your connection and try again"
	msgSuccess            = "Login successful, redirecting..."
	msgRateLimited        = "Too many login attempts, please wait 5 seconds"
)

// ErrMissingCredentials is returned when username or password is empty
var ErrMissingCredentials = errors.New("missing username or password")

// ErrInvalidSession is returned when the backend answered 2xx without confirming the session
var ErrInvalidSession = errors.New("session not confirmed by server")

// View is the login form as seen by the flow
type View interface {
	ShowError(msg string)
	ShowSuccess(msg string)
	SetSubmitEnabled(enabled bool)
	SetSubmitLabel(label string)
}

// Navigator moves the user to another page
type Navigator interface {
	Navigate(path string)
}

// Identity receives the user id and role after a confirmed login
type Identity interface {
	SetIdentity(userID, role string) error
	ClearIdentity() error
}

// Credentials are the two form fields
type Credentials struct {
	Username string
	Password string
}

// Flow handles login form submissions
type Flow struct {
	client   *api.Client
	identity Identity
	session  storage.Store
	view     View
	nav      Navigator
	logger   *slog.Logger

	now           func() time.Time
	redirectDelay time.Duration
	lockout       time.Duration
	afterFunc     func(time.Duration, func())
}

// Option customizes a Flow
type Option func(*Flow)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// WithRedirectDelay sets the pause between the success message and navigation
func WithRedirectDelay(d time.Duration) Option {
	return func(f *Flow) { f.redirectDelay = d }
}

// WithAfterFunc replaces time.AfterFunc for the throttle re-enable timer
func WithAfterFunc(fn func(time.Duration, func())) Option {
	return func(f *Flow) { f.afterFunc = fn }
}

// NewFlow creates a login flow. sessionStore holds the throttle keys.
func NewFlow(client *api.Client, identity Identity, sessionStore storage.Store, view View, nav Navigator, logger *slog.Logger, opts ...Option) *Flow {
	f := &Flow{
		client:        client,
		identity:      identity,
		session:       sessionStore,
		view:          view,
		nav:           nav,
		logger:        logger,
		now:           time.Now,
		redirectDelay: DefaultRedirectDelay,
		lockout:       ThrottleLockout,
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Submit handles one form submission. Failures are shown on the view and
// returned; the submit control is re-enabled on every failure after the
// request was started.
func (f *Flow) Submit(ctx context.Context, creds Credentials) error {
	f.recordAttempt()

	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		f.view.ShowError(msgMissingCredentials)
		return ErrMissingCredentials
	}

	f.view.SetSubmitEnabled(false)
	f.view.SetSubmitLabel(msgLoggingIn)

	if err := f.identity.ClearIdentity(); err != nil {
		f.logger.Warn("failed to clear stored identity", "error", err)
	}

	resp, err := f.client.Login(ctx, username, creds.Password)
	if err != nil {
		f.logger.Error("login request failed", "username", username, "error", err)
		msg := msgLoginFailed
		if errors.Is(err, api.ErrNetwork) {
			msg = msgNetwork
		} else if m := api.Message(err, ""); m != "" {
			msg = m
		}
		f.fail(msg)
		return err
	}

	if !resp.SessionValid {
		f.logger.Warn("login response without valid session", "username", username)
		msg := msgInvalidSession
		if resp.Message != "" {
			msg = resp.Message
		}
		f.fail(msg)
		return ErrInvalidSession
	}

	if err := f.identity.SetIdentity(string(resp.UserID), resp.Role); err != nil {
		f.logger.Error("failed to store identity", "error", err)
	}
	if err := f.session.Delete(storage.KeyLoginVisitCount, storage.KeyLastLoginVisit); err != nil {
		f.logger.Warn("failed to reset visit counters", "error", err)
	}

	f.logger.Info("login succeeded", "user_id", string(resp.UserID), "role", resp.Role)
	f.view.ShowSuccess(msgSuccess)

	if f.redirectDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.redirectDelay):
		}
	}
	f.nav.Navigate(LandingPath)
	return nil
}

func (f *Flow) fail(msg string) {
	f.view.ShowError(msg)
	f.view.SetSubmitEnabled(true)
	f.view.SetSubmitLabel(msgSubmit)
}

func (f *Flow) recordAttempt() {
	ts := strconv.FormatInt(f.now().UnixMilli(), 10)
	if err := f.session.Set(storage.KeyLastLoginAttempt, ts); err != nil {
		f.logger.Warn("failed to record login attempt", "error", err)
	}
}

// CheckThrottle is the page-load guard. It counts the visit and, if the last
// attempt was less than a second ago, disables submit for five seconds.
// It reports whether the form was throttled.
func (f *Flow) CheckThrottle() bool {
	now := f.now()
	f.countVisit(now)

	raw, ok, err := f.session.Get(storage.KeyLastLoginAttempt)
	if err != nil || !ok {
		return false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false
	}

	since := now.Sub(time.UnixMilli(ms))
	if since < 0 || since >= ThrottleWindow {
		return false
	}

	f.logger.Warn("login throttled", "since_ms", since.Milliseconds())
	f.view.SetSubmitEnabled(false)
	f.view.ShowError(msgRateLimited)
	f.afterFunc(f.lockout, func() {
		f.view.SetSubmitEnabled(true)
	})
	return true
}

func (f *Flow) countVisit(now time.Time) {
	count := 0
	if raw, ok, _ := f.session.Get(storage.KeyLoginVisitCount); ok {
		count, _ = strconv.Atoi(raw)
	}
	if err := f.session.Set(storage.KeyLoginVisitCount, strconv.Itoa(count+1)); err != nil {
		f.logger.Warn("failed to record login visit", "error", err)
	}
	if err := f.session.Set(storage.KeyLastLoginVisit, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		f.logger.Warn("failed to record login visit", "error", err)
	}
}
