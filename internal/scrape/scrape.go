package scrape

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"ChatSync/internal/session"
)

var (
	containerSel = cascadia.MustCompile("#chat-messages")
	messageSel   = cascadia.MustCompile(".message")
	labelSel     = cascadia.MustCompile(".model-name")
	modelSelect  = cascadia.MustCompile("select#model-select")
	selectedOpt  = cascadia.MustCompile("option[selected]")
	anyOpt       = cascadia.MustCompile("option")
)

// Page is a snapshot of a rendered chat page
type Page struct {
	messages    []session.Message
	activeModel string
}

// Messages returns the extracted messages in page order
func (p *Page) Messages() []session.Message {
	out := make([]session.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// ActiveModel returns the value of the page's model selector, "" if absent
func (p *Page) ActiveModel() string {
	return p.activeModel
}

// ParseFile reads a saved chat page from disk
func ParseFile(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse extracts messages and the selected model from an HTML document.
// Missing elements yield an empty page, not an error.
func Parse(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	page := &Page{activeModel: selectedModel(doc)}

	container := containerSel.MatchFirst(doc)
	if container == nil {
		return page, nil
	}
	for _, n := range messageSel.MatchAll(container) {
		if msg, ok := ExtractMessage(n); ok {
			page.messages = append(page.messages, msg)
		}
	}
	return page, nil
}

// ExtractMessage reads one message element. Elements with class "user" are
// user messages, everything else is an assistant message whose nested
// .model-name label becomes the model tag and is left out of the content.
func ExtractMessage(n *html.Node) (session.Message, bool) {
	msg := session.Message{Role: session.RoleAssistant}
	if hasClass(n, "user") {
		msg.Role = session.RoleUser
	}

	var skip *html.Node
	if msg.Role == session.RoleAssistant {
		if label := labelSel.MatchFirst(n); label != nil {
			msg.Model = session.NormalizeModel(textOf(label, nil))
			skip = label
		}
	}

	msg.Content = textOf(n, skip)
	if msg.Content == "" {
		return msg, false
	}
	return msg, true
}

func selectedModel(doc *html.Node) string {
	sel := modelSelect.MatchFirst(doc)
	if sel == nil {
		return ""
	}
	opt := selectedOpt.MatchFirst(sel)
	if opt == nil {
		opt = anyOpt.MatchFirst(sel)
	}
	if opt == nil {
		return ""
	}
	if v, ok := attr(opt, "value"); ok {
		return strings.TrimSpace(v)
	}
	return textOf(opt, nil)
}

// textOf concatenates the text below n, leaving out the subtree at skip
func textOf(n *html.Node, skip *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c == skip {
			return
		}
		switch {
		case c.Type == html.TextNode:
			b.WriteString(c.Data)
		case c.Type == html.ElementNode && c.Data == "br":
			b.WriteString("\n")
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
