package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ChatSync/internal/auth"
	"ChatSync/internal/history"
	"ChatSync/internal/login"
	"ChatSync/internal/scrape"
	"ChatSync/internal/session"
)

var errUsage = errors.New("invalid arguments")

func usage(format string) error {
	return fmt.Errorf("%w, usage: %s", errUsage, format)
}

func (c *Console) handleCommand(ctx context.Context, input string) (bool, error) {
	parts := strings.Fields(input)
	command := parts[0]
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, command))

	switch command {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		c.printHelp()

	case "/login":
		if len(args) != 2 {
			return false, usage("/login <username> <password>")
		}
		if c.login.CheckThrottle() {
			return false, nil
		}
		if !c.view.SubmitEnabled() {
			c.p.print(infoColor, "Login is temporarily disabled\n")
			return false, nil
		}
		err := c.login.Submit(ctx, login.Credentials{Username: args[0], Password: args[1]})
		if err == nil {
			c.startSession()
		}
		// the view has already shown the failure
		return false, nil

	case "/token-login":
		if len(args) != 2 {
			return false, usage("/token-login <username> <password>")
		}
		token, err := auth.Login(ctx, c.client, args[0], args[1])
		if err != nil {
			return false, err
		}
		if err := c.state.SetToken(token); err != nil {
			return false, err
		}
		info := c.state.UserInfo()
		c.p.print(successColor, "Signed in as user %s (%s)\n", info.ID, info.Role)
		c.startSession()

	case "/logout":
		if err := c.sync.SaveChatHistory(ctx); err != nil && !history.IsBenign(err) {
			c.logger.Warn("could not save before logout", "error", err)
		}
		c.sync.SetSessionID("")
		c.transcript.Reset(nil)
		c.state.Logout()

	case "/whoami":
		profile, err := c.state.LoadUserInfo(ctx, c.client)
		if err != nil {
			return false, err
		}
		c.p.print(nil, "User:  %s (id %s)\n", profile.Username, profile.ID)
		if profile.Email != "" {
			c.p.print(nil, "Email: %s\n", profile.Email)
		}
		c.p.print(nil, "Role:  %s\n", profile.Role)
		if c.state.IsAdmin() {
			c.p.print(headerColor, "Administrator\n")
		}

	case "/status":
		c.printStatus()

	case "/new":
		if err := c.sync.SaveChatHistory(ctx); err != nil && !history.IsBenign(err) {
			return false, err
		}
		id := c.sync.NewSession()
		c.p.print(successColor, "Started session %s\n", id)

	case "/sessions":
		sessions, err := c.sync.LoadChatHistories(ctx)
		if err != nil {
			return false, err
		}
		c.printSessions(c.sync.GroupSessionsByDate(sessions))

	case "/open":
		if len(args) != 1 {
			return false, usage("/open <session-id>")
		}
		if err := c.sync.SaveChatHistory(ctx); err != nil && !history.IsBenign(err) {
			c.logger.Warn("could not save before switching session", "error", err)
		}
		return false, c.openSession(ctx, args[0])

	case "/delete":
		if len(args) != 1 {
			return false, usage("/delete <session-id>")
		}
		if err := c.sync.DeleteSession(ctx, args[0]); err != nil {
			return false, err
		}
		c.p.print(successColor, "Deleted session %s\n", args[0])

	case "/title":
		if rest == "" {
			title, err := c.sync.GenerateChatTitle(ctx)
			if err != nil {
				return false, err
			}
			c.p.print(successColor, "Title: %s\n", title)
			return false, nil
		}
		if err := c.sync.UpdateTitle(ctx, rest); err != nil {
			return false, err
		}
		c.p.print(successColor, "Title: %s\n", rest)

	case "/save":
		err := c.sync.SaveChatHistory(ctx)
		switch {
		case errors.Is(err, history.ErrNoSession):
			c.p.print(infoColor, "No current session, use /new first\n")
		case errors.Is(err, history.ErrNothingToSave):
			c.p.print(infoColor, "Nothing to save\n")
		case err != nil:
			return false, err
		default:
			c.p.print(successColor, "Saved %d messages\n", c.transcript.Len())
		}

	case "/reply":
		if rest == "" {
			return false, usage("/reply <text>")
		}
		c.addMessage(session.Message{
			Role:    session.RoleAssistant,
			Content: rest,
			Model:   session.NormalizeModel(c.transcript.ActiveModel()),
		})

	case "/model":
		if len(args) == 0 {
			c.p.print(nil, "Active model: %s\n", c.transcript.ActiveModel())
			return false, nil
		}
		c.transcript.SetActiveModel(rest)
		c.p.print(nil, "Active model: %s (%s)\n", rest, session.NormalizeModel(rest))

	case "/import":
		if len(args) != 1 {
			return false, usage("/import <file.html>")
		}
		page, err := scrape.ParseFile(args[0])
		if err != nil {
			return false, err
		}
		msgs := page.Messages()
		c.transcript.Reset(msgs)
		if model := page.ActiveModel(); model != "" {
			c.transcript.SetActiveModel(model)
		}
		c.p.print(successColor, "Imported %d messages from %s\n", len(msgs), args[0])
		for _, msg := range msgs {
			c.renderer.render(msg)
		}

	default:
		c.p.print(errorColor, "Unknown command: %s (try /help)\n", command)
	}

	return false, nil
}

// startSession begins a new session after sign-in unless one is open
func (c *Console) startSession() {
	if c.sync.SessionID() != "" {
		return
	}
	id := c.sync.NewSession()
	c.p.print(infoColor, "Session %s\n", id)
}

func (c *Console) printHelp() {
	c.p.print(headerColor, "Commands:\n")
	c.p.print(nil, `  /login <user> <password>        Sign in with a session cookie
  /token-login <user> <password>  Sign in with a bearer token
  /logout                         Sign out and clear stored credentials
  /whoami                         Show the signed-in user
  /status                         Show session and auto-save state
  /new                            Start a new session
  /sessions                       List recent sessions by date
  /open <id>                      Load a stored session
  /delete <id>                    Delete a stored session
  /title [text]                   Rename the session, generated when empty
  /save                           Save the current session now
  /reply <text>                   Add an assistant message
  /model [name]                   Show or set the active model
  /import <file.html>             Replace the transcript with a saved chat page
  /quit                           Save and exit
`)
}

func (c *Console) printStatus() {
	id := c.sync.SessionID()
	if id == "" {
		id = "(none)"
	}
	c.p.print(nil, "Page:      %s\n", c.Page())
	c.p.print(nil, "Signed in: %t\n", c.state.IsLoggedIn())
	c.p.print(nil, "Session:   %s\n", id)
	c.p.print(nil, "Messages:  %d\n", c.transcript.Len())
	c.p.print(nil, "Model:     %s\n", c.transcript.ActiveModel())
	c.p.print(nil, "Auto-save: %t\n", c.sync.AutoSaveRunning())
}

func (c *Console) printSessions(groups []session.SessionGroup) {
	if len(groups) == 0 {
		c.p.print(infoColor, "No recent sessions\n")
		return
	}
	current := c.sync.SessionID()
	for _, g := range groups {
		c.p.print(headerColor, "%s\n", g.Name)
		for _, s := range g.Sessions {
			marker := " "
			if s.ID == current {
				marker = "*"
			}
			title := s.Title
			if title == "" {
				title = history.DefaultTitle
			}
			c.p.print(nil, " %s %s  %s  (%d messages)\n", marker, s.ID, title, s.MessageCount)
		}
	}
}
