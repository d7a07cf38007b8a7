package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"ChatSync/internal/api"
	"ChatSync/internal/auth"
	"ChatSync/internal/config"
	"ChatSync/internal/history"
	"ChatSync/internal/login"
	"ChatSync/internal/session"
	"ChatSync/internal/storage"
)

// Console is the terminal front end
type Console struct {
	config     config.Config
	logger     *slog.Logger
	p          *printer
	state      *auth.State
	client     *api.Client
	transcript *session.Transcript
	sync       *history.Sync
	login      *login.Flow
	view       *loginView
	renderer   *transcriptRenderer

	mu   sync.Mutex
	page string
}

// Option customizes a Console
type Option func(*consoleOptions)

type consoleOptions struct {
	syncOpts  []history.Option
	loginOpts []login.Option
	apiOpts   []api.Option
}

// WithSyncOptions passes options to the history sync
func WithSyncOptions(opts ...history.Option) Option {
	return func(o *consoleOptions) { o.syncOpts = append(o.syncOpts, opts...) }
}

// WithLoginOptions passes options to the login flow
func WithLoginOptions(opts ...login.Option) Option {
	return func(o *consoleOptions) { o.loginOpts = append(o.loginOpts, opts...) }
}

// WithAPIOptions passes options to the API client
func WithAPIOptions(opts ...api.Option) Option {
	return func(o *consoleOptions) { o.apiOpts = append(o.apiOpts, opts...) }
}

// New wires the console. store holds the persistent credential keys.
func New(cfg config.Config, store storage.Store, logger *slog.Logger, out io.Writer, opts ...Option) (*Console, error) {
	var o consoleOptions
	for _, opt := range opts {
		opt(&o)
	}

	p := &printer{out: out}
	c := &Console{
		config:     cfg,
		logger:     logger,
		p:          p,
		transcript: session.NewTranscript(),
		view:       newLoginView(p),
		renderer:   newTranscriptRenderer(p),
		page:       "/",
	}

	state, err := auth.NewState(store, c, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth state: %w", err)
	}
	c.state = state

	apiOpts := append([]api.Option{api.WithTimeout(cfg.RequestTimeout)}, o.apiOpts...)
	client, err := api.New(cfg.BaseURL, state, logger, apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	c.client = client

	syncOpts := append([]history.Option{history.WithInterval(cfg.AutoSaveInterval)}, o.syncOpts...)
	c.sync = history.New(client, c.transcript, logger, syncOpts...)
	c.login = login.NewFlow(client, state, storage.NewMemory(), c.view, c, logger, o.loginOpts...)

	return c, nil
}

// Navigate implements auth.Navigator and login.Navigator
func (c *Console) Navigate(path string) {
	c.mu.Lock()
	c.page = path
	c.mu.Unlock()
	c.view.reset()

	c.logger.Info("navigate", "path", path)
	switch path {
	case login.LandingPath:
		c.p.print(infoColor, "→ chat\n")
	case "/":
		c.p.print(infoColor, "→ signed out\n")
	default:
		c.p.print(infoColor, "→ %s\n", path)
	}
}

// Page returns the last navigation target
func (c *Console) Page() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Run reads lines from in until EOF, /quit or ctx ends
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.p.print(headerColor, "=== ChatSync ===\n")
	c.p.print(nil, "Backend: %s\n", c.config.BaseURL)
	if info := c.state.UserInfo(); c.state.IsLoggedIn() {
		c.p.print(nil, "Signed in as user %s (%s)\n", info.ID, info.Role)
	}

	if c.config.SessionID != "" {
		if err := c.openSession(ctx, c.config.SessionID); err != nil {
			c.p.print(errorColor, "Could not open session: %s\n", api.Message(err, err.Error()))
		}
	}
	c.p.print(nil, "Type /help for commands, /quit to exit\n\n")

	c.sync.StartAutoSave(ctx)
	defer c.sync.StopAutoSave()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			input := strings.TrimSpace(line)
			if input == "" {
				continue
			}

			if strings.HasPrefix(input, "/") {
				shouldQuit, err := c.handleCommand(ctx, input)
				if err != nil {
					c.p.print(errorColor, "Error: %s\n", api.Message(err, err.Error()))
					c.logger.Error("command error", "command", strings.Fields(input)[0], "error", err)
				}
				if shouldQuit {
					break loop
				}
				continue
			}

			c.addMessage(session.Message{Role: session.RoleUser, Content: input})
		}
	}

	// save on exit even when ctx was cancelled
	if err := c.sync.SaveChatHistory(context.WithoutCancel(ctx)); err != nil && !history.IsBenign(err) {
		c.logger.Error("failed to save session on exit", "error", err)
		return err
	}

	c.p.print(nil, "Goodbye!\n")
	return nil
}

func (c *Console) addMessage(msg session.Message) {
	c.transcript.Append(msg)
	c.renderer.render(msg)
}

func (c *Console) openSession(ctx context.Context, id string) error {
	sess, err := c.sync.LoadChatSession(ctx, id)
	if err != nil {
		return err
	}
	title := sess.Title
	if title == "" {
		title = history.DefaultTitle
	}
	c.p.print(headerColor, "Session %s: %s\n", sess.ID, title)
	for _, msg := range sess.Messages {
		c.renderer.render(msg)
	}
	return nil
}
