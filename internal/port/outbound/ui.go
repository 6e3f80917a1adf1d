// Package outbound defines the outbound port interfaces through which the
// guard services reach the host surface and the authority.
package outbound

import (
	"context"
	"net/http"
)

// Level is the severity of a user-facing notification.
type Level string

// Notification levels.
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message for the user. ID is a message
// catalog key; Data fills its template. Adapters localize and render it.
type Notification struct {
	Level Level
	ID    string
	Data  map[string]any
}

// Notifier surfaces transient user-visible messages. Implementations must
// not block on user interaction.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Navigator moves the host surface to another named target (for example
// "login.html"). Navigation is the end of the current surface's life.
type Navigator interface {
	Navigate(ctx context.Context, target string)
}

// PrincipalPresenter shows the authenticated principal on a protected surface.
// The principal is the opaque JSON document returned by the authority.
type PrincipalPresenter interface {
	Present(ctx context.Context, principal []byte)
}

// HTTPDoer sends HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}
