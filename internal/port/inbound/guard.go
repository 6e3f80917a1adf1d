// Package inbound defines the inbound port the CLI and embedding hosts call.
package inbound

import (
	"context"
	"net/http"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

// SessionGuard is the inbound port of the session core.
type SessionGuard interface {
	// Login exchanges an email and password for a session.
	Login(ctx context.Context, email, password string) (session.Session, error)

	// Logout ends the session, notifying the authority on a best-effort basis.
	Logout(ctx context.Context) error

	// Status returns the current session and whether it is authenticated.
	Status() (session.Session, bool)

	// Send performs an authenticated request against the authority.
	Send(ctx context.Context, method, target string, header http.Header, body []byte) (*http.Response, error)

	// Enforce applies the page guard to pagePath. False means a redirect to
	// the login surface has been scheduled.
	Enforce(ctx context.Context, pagePath string) bool

	// OnVisible, OnOnline and OnOffline report host connectivity events.
	OnVisible()
	OnOnline(ctx context.Context)
	OnOffline(ctx context.Context)

	// Close stops background work and waits for it to finish.
	Close() error
}
