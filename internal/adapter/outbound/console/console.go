// Package console renders guard notifications, navigations and the current
// principal on a terminal.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Sentinel-Gate/sessionguard/internal/i18n"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

var levelTags = map[outbound.Level]string{
	outbound.LevelSuccess: "[ok]",
	outbound.LevelInfo:    "[info]",
	outbound.LevelWarning: "[warn]",
	outbound.LevelError:   "[error]",
}

// Notifier writes localized notifications, one per line.
type Notifier struct {
	mu      sync.Mutex
	w       io.Writer
	catalog *i18n.Catalog
}

// NewNotifier creates a Notifier writing to w.
func NewNotifier(w io.Writer, catalog *i18n.Catalog) *Notifier {
	return &Notifier{w: w, catalog: catalog}
}

// Notify implements outbound.Notifier.
func (n *Notifier) Notify(ctx context.Context, note outbound.Notification) {
	tag, ok := levelTags[note.Level]
	if !ok {
		tag = "[" + string(note.Level) + "]"
	}
	text := n.catalog.T(note.ID, note.Data)

	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.w, "%s %s\n", tag, text)
}

// Navigator records navigations and publishes them on a channel so the
// hosting command can end the current surface.
type Navigator struct {
	mu      sync.Mutex
	w       io.Writer
	last    string
	targets chan string
}

// NewNavigator creates a Navigator writing to w.
func NewNavigator(w io.Writer) *Navigator {
	return &Navigator{w: w, targets: make(chan string, 8)}
}

// Navigate implements outbound.Navigator. It never blocks: when nobody is
// draining Targets the oldest unread target is kept.
func (n *Navigator) Navigate(ctx context.Context, target string) {
	n.mu.Lock()
	n.last = target
	_, _ = fmt.Fprintf(n.w, "-> %s\n", target)
	n.mu.Unlock()

	select {
	case n.targets <- target:
	default:
	}
}

// Targets delivers every navigation target.
func (n *Navigator) Targets() <-chan string {
	return n.targets
}

// Last returns the most recent target, or "" when none.
func (n *Navigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Presenter prints the principal's display name and email.
type Presenter struct {
	mu      sync.Mutex
	w       io.Writer
	catalog *i18n.Catalog
}

// NewPresenter creates a Presenter writing to w.
func NewPresenter(w io.Writer, catalog *i18n.Catalog) *Presenter {
	return &Presenter{w: w, catalog: catalog}
}

// Present implements outbound.PrincipalPresenter.
func (p *Presenter) Present(ctx context.Context, principal []byte) {
	name, email := DisplayName(principal)
	if name == "" {
		name = p.catalog.T("presenter.default_name", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if email != "" {
		_, _ = fmt.Fprintf(p.w, "%s <%s>\n", name, email)
		return
	}
	_, _ = fmt.Fprintln(p.w, name)
}

// DisplayName picks username, then name, and the email from a principal
// document. Missing or non-string fields come back empty.
func DisplayName(principal []byte) (name, email string) {
	var fields map[string]any
	if err := json.Unmarshal(principal, &fields); err != nil {
		return "", ""
	}
	for _, key := range []string{"username", "name"} {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			name = s
			break
		}
	}
	if s, ok := fields["email"].(string); ok {
		email = s
	}
	return name, email
}

// Compile-time interface verification.
var (
	_ outbound.Notifier           = (*Notifier)(nil)
	_ outbound.Navigator          = (*Navigator)(nil)
	_ outbound.PrincipalPresenter = (*Presenter)(nil)
)
