package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

// Reason says why the session left the authenticated state.
type Reason string

// Expiry reasons.
const (
	ReasonRejected     Reason = "rejected"      // authority answered 401
	ReasonVerifyFailed Reason = "verify_failed" // verify returned another non-2xx
	ReasonUnreachable  Reason = "unreachable"   // verify got no response
	ReasonLogout       Reason = "logout"        // user asked to log out
)

// Default redirect delays.
const (
	DefaultExpiryRedirectDelay = 2 * time.Second
	DefaultLogoutRedirectDelay = 1 * time.Second
)

// Notification message IDs used by the expiry coordinator.
const (
	MsgSessionExpired   = "session.expired"
	MsgSessionLoggedOut = "session.logged_out"
)

// ExpiryConfig configures ExpiryCoordinator.
type ExpiryConfig struct {
	LoginTarget         string
	LogoutPath          string
	ExpiryRedirectDelay time.Duration
	LogoutRedirectDelay time.Duration
}

// ExpiryCoordinator runs the single transition from authenticated to logged
// out. Concurrent requests collapse into one: exactly one clear, one
// notification and one navigation per transition.
type ExpiryCoordinator struct {
	store      *session.Store
	notifier   outbound.Notifier
	redirector *Redirector
	cfg        ExpiryConfig
	metrics    *Metrics
	logger     *slog.Logger

	// inProgress is held from the winning Expire/Logout until its
	// navigation has been issued.
	inProgress atomic.Bool
	gateway    atomic.Pointer[Gateway]
}

// NewExpiryCoordinator creates an ExpiryCoordinator.
func NewExpiryCoordinator(
	store *session.Store,
	notifier outbound.Notifier,
	redirector *Redirector,
	cfg ExpiryConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *ExpiryCoordinator {
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = DefaultLogoutPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryCoordinator{
		store:      store,
		notifier:   notifier,
		redirector: redirector,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// UseGateway sets the gateway Logout uses to notify the authority.
// The gateway itself is built with this coordinator as its Expirer.
func (c *ExpiryCoordinator) UseGateway(g *Gateway) {
	c.gateway.Store(g)
}

// Expire clears the session, notifies the user and schedules navigation to
// the login target. cred is the credential the failing call was made with;
// the transition runs only while the store still holds it, so a failure that
// arrives after the session was cleared or replaced is a no-op. It returns
// true for the caller that performed the transition and false for every
// other caller.
func (c *ExpiryCoordinator) Expire(ctx context.Context, reason Reason, cred string) bool {
	if !c.inProgress.CompareAndSwap(false, true) {
		c.metrics.expirySuppressed()
		c.logger.Debug("expiry already in progress", "reason", reason)
		return false
	}
	ctx = context.WithoutCancel(ctx)

	tag := c.store.Tag()
	if !c.store.ClearIfCurrent(ctx, cred) {
		c.release()
		c.metrics.expiryStale()
		c.logger.Debug("ignoring failure for a credential no longer in use",
			"reason", reason,
			"credential_fp", credential.Fingerprint(cred),
		)
		return false
	}
	c.metrics.expiryTransition(reason)
	c.logger.Warn("session expired", "reason", reason, "session_tag", tag)

	c.notifier.Notify(ctx, outbound.Notification{
		Level: outbound.LevelError,
		ID:    MsgSessionExpired,
		Data:  map[string]any{"Reason": string(reason)},
	})
	c.redirector.Schedule(ctx, c.cfg.LoginTarget, c.cfg.ExpiryRedirectDelay, c.release)
	return true
}

// Logout ends the session on request. The authority is told on a best-effort
// basis; its failures are logged and ignored. Logout shares the expiry latch,
// so a 401 from the logout call itself cannot start a second transition.
func (c *ExpiryCoordinator) Logout(ctx context.Context) bool {
	if !c.inProgress.CompareAndSwap(false, true) {
		c.metrics.expirySuppressed()
		c.logger.Debug("logout ignored, transition already in progress")
		return false
	}

	if g := c.gateway.Load(); g != nil && c.store.IsAuthenticated() {
		resp, err := g.Send(ctx, c.cfg.LogoutPath, RequestOptions{Method: "POST"})
		if err != nil {
			c.logger.Warn("authority logout failed", "error", err)
		} else {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				c.logger.Warn("authority logout returned non-success status", "status", resp.StatusCode)
			}
		}
	}

	ctx = context.WithoutCancel(ctx)
	tag := c.store.Tag()
	c.store.Clear(ctx)
	c.metrics.expiryTransition(ReasonLogout)
	c.logger.Info("logged out", "session_tag", tag)

	c.notifier.Notify(ctx, outbound.Notification{
		Level: outbound.LevelSuccess,
		ID:    MsgSessionLoggedOut,
	})
	c.redirector.Schedule(ctx, c.cfg.LoginTarget, c.cfg.LogoutRedirectDelay, c.release)
	return true
}

// InProgress reports whether a transition is running.
func (c *ExpiryCoordinator) InProgress() bool {
	return c.inProgress.Load()
}

func (c *ExpiryCoordinator) release() {
	c.inProgress.Store(false)
}

// Close cancels any pending navigation and waits for one in progress.
// Used at process shutdown.
func (c *ExpiryCoordinator) Close() {
	c.redirector.Close()
}
