package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"ChatSync/internal/session"
)

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgHiBlack)
	userColor    = color.New(color.FgCyan, color.Bold)
	botColor     = color.New(color.FgMagenta, color.Bold)
	headerColor  = color.New(color.FgYellow, color.Bold)
)

// printer serializes writes; timers print from their own goroutines
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) print(c *color.Color, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c == nil {
		fmt.Fprintf(p.out, format, args...)
		return
	}
	c.Fprintf(p.out, format, args...)
}

// loginView renders the login form state as terminal lines
type loginView struct {
	p *printer

	mu      sync.Mutex
	enabled bool
	label   string
}

func newLoginView(p *printer) *loginView {
	return &loginView{p: p, enabled: true, label: "Log in"}
}

func (v *loginView) ShowError(msg string) {
	v.p.print(errorColor, "✗ %s\n", msg)
}

func (v *loginView) ShowSuccess(msg string) {
	v.p.print(successColor, "✓ %s\n", msg)
}

func (v *loginView) SetSubmitEnabled(enabled bool) {
	v.mu.Lock()
	changed := v.enabled != enabled
	v.enabled = enabled
	v.mu.Unlock()

	if changed && enabled {
		v.p.print(infoColor, "(login available again)\n")
	}
}

func (v *loginView) SetSubmitLabel(label string) {
	v.mu.Lock()
	v.label = label
	v.mu.Unlock()
	v.p.print(infoColor, "%s\n", label)
}

// reset restores a fresh form, as after a page change
func (v *loginView) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.enabled = true
	v.label = "Log in"
}

func (v *loginView) SubmitEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

// transcriptRenderer prints messages, rendering assistant markdown with glamour
type transcriptRenderer struct {
	p        *printer
	markdown *glamour.TermRenderer
}

func newTranscriptRenderer(p *printer) *transcriptRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		r = nil
	}
	return &transcriptRenderer{p: p, markdown: r}
}

func (r *transcriptRenderer) render(msg session.Message) {
	if msg.Role == session.RoleUser {
		r.p.print(userColor, "You: ")
		r.p.print(nil, "%s\n", msg.Content)
		return
	}

	name := "Assistant"
	if msg.Model != "" {
		name = msg.Model
	}
	r.p.print(botColor, "%s:\n", name)

	text := msg.Content
	if r.markdown != nil {
		if out, err := r.markdown.Render(msg.Content); err == nil {
			text = out
		}
	}
	r.p.print(nil, "%s\n", text)
}
