package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

// Notification message IDs used by the page guard.
const (
	MsgAccessDenied  = "session.access_denied"
	MsgAlreadyActive = "session.already_active"
)

// DefaultLoginRedirectDelay is the pause before leaving the login surface.
const DefaultLoginRedirectDelay = 1500 * time.Millisecond

// PageGuardConfig configures PageGuard.
type PageGuardConfig struct {
	Protected          guard.PageSet
	LoginTarget        string
	HomeTarget         string
	DenyRedirectDelay  time.Duration
	LoginRedirectDelay time.Duration
	HeartbeatInterval  time.Duration
}

// PageGuard decides, when a surface starts, whether it may stay.
type PageGuard struct {
	store      *session.Store
	heartbeat  *Heartbeat
	notifier   outbound.Notifier
	presenter  outbound.PrincipalPresenter
	redirector *Redirector
	cfg        PageGuardConfig
	login      guard.PageSet
	logger     *slog.Logger
}

// NewPageGuard creates a PageGuard. presenter may be nil.
func NewPageGuard(
	store *session.Store,
	heartbeat *Heartbeat,
	notifier outbound.Notifier,
	presenter outbound.PrincipalPresenter,
	redirector *Redirector,
	cfg PageGuardConfig,
	logger *slog.Logger,
) *PageGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageGuard{
		store:      store,
		heartbeat:  heartbeat,
		notifier:   notifier,
		presenter:  presenter,
		redirector: redirector,
		cfg:        cfg,
		login:      guard.NewPageSet(cfg.LoginTarget),
		logger:     logger,
	}
}

// Enforce returns false, after notifying the user and scheduling navigation
// to the login target, when pagePath is protected and there is no valid
// session. On a protected page with a valid session it presents the
// principal and arms the heartbeat. Unprotected pages always pass.
func (p *PageGuard) Enforce(ctx context.Context, pagePath string) bool {
	if !p.cfg.Protected.Contains(pagePath) {
		return true
	}

	snap, ok := p.store.Snapshot()
	if !ok {
		p.logger.Info("access denied to protected page", "page", pagePath)
		p.notifier.Notify(ctx, outbound.Notification{
			Level: outbound.LevelError,
			ID:    MsgAccessDenied,
		})
		p.redirector.Schedule(ctx, p.cfg.LoginTarget, p.cfg.DenyRedirectDelay, nil)
		return false
	}

	if p.presenter != nil {
		p.presenter.Present(ctx, snap.Principal)
	}
	p.heartbeat.Start(p.cfg.HeartbeatInterval)
	p.logger.Debug("protected page allowed", "page", pagePath, "session_tag", snap.Tag)
	return true
}

// RedirectAuthenticated moves a user who already holds a valid session off
// the login surface. It returns true when a redirect was scheduled.
func (p *PageGuard) RedirectAuthenticated(ctx context.Context, pagePath string) bool {
	if !p.login.Contains(pagePath) || !p.store.IsAuthenticated() {
		return false
	}
	p.notifier.Notify(ctx, outbound.Notification{
		Level: outbound.LevelInfo,
		ID:    MsgAlreadyActive,
	})
	p.redirector.Schedule(ctx, p.cfg.HomeTarget, p.cfg.LoginRedirectDelay, nil)
	return true
}
