package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
)

// DefaultHeartbeatInterval is the verify period when none is configured.
const DefaultHeartbeatInterval = 5 * time.Minute

// Trigger names what caused a verification.
type Trigger string

// Verification triggers.
const (
	TriggerTimer   Trigger = "timer"
	TriggerVisible Trigger = "visible"
	TriggerOnline  Trigger = "online"
	TriggerManual  Trigger = "manual"
)

// Connectivity message IDs.
const (
	MsgConnectionRestored = "connection.restored"
	MsgConnectionLost     = "connection.lost"
)

// HeartbeatConfig configures Heartbeat.
type HeartbeatConfig struct {
	VerifyPath string
	// KeepSessionOnConnectionError keeps the session when the authority is
	// unreachable: the failure is logged and the next tick tries again.
	// By default an unreachable authority ends the session.
	KeepSessionOnConnectionError bool
}

// Heartbeat periodically confirms the credential with the authority.
// At most one schedule runs at a time. Stop never waits for an in-flight
// verification, so it is safe to call from the expiry path.
type Heartbeat struct {
	store   *session.Store
	gateway *Gateway
	expirer Expirer
	cfg     HeartbeatConfig
	metrics *Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stop     chan struct{}
	interval time.Duration
	closed   bool
	wg       sync.WaitGroup
}

// NewHeartbeat creates a stopped Heartbeat.
func NewHeartbeat(
	store *session.Store,
	gateway *Gateway,
	expirer Expirer,
	cfg HeartbeatConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *Heartbeat {
	if cfg.VerifyPath == "" {
		cfg.VerifyPath = DefaultVerifyPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Heartbeat{
		store:   store,
		gateway: gateway,
		expirer: expirer,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start arms the schedule with the given interval (DefaultHeartbeatInterval
// when non-positive). A running schedule is stopped and replaced.
func (h *Heartbeat) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if h.stop != nil {
		close(h.stop)
	}
	stop := make(chan struct{})
	h.stop = stop
	h.interval = interval

	h.wg.Add(1)
	go h.loop(stop, interval)

	h.logger.Debug("heartbeat started", "interval", interval)
}

func (h *Heartbeat) loop(stop chan struct{}, interval time.Duration) {
	defer h.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			// A tick racing Stop must not verify.
			select {
			case <-stop:
				return
			default:
			}
			_ = h.Verify(h.ctx, TriggerTimer)
		}
	}
}

// Stop cancels future ticks. Idempotent.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
		h.logger.Debug("heartbeat stopped")
	}
}

// Running reports whether a schedule is armed.
func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop != nil
}

// Interval returns the interval of the current schedule, or 0 when stopped.
func (h *Heartbeat) Interval() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop == nil {
		return 0
	}
	return h.interval
}

// Trigger runs one verification in the background without touching the schedule.
func (h *Heartbeat) Trigger(trigger Trigger) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		_ = h.Verify(h.ctx, trigger)
	}()
}

// Close stops the schedule, cancels in-flight verifications and waits for
// every heartbeat goroutine to exit.
func (h *Heartbeat) Close() {
	h.mu.Lock()
	h.closed = true
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
}

// Verify asks the authority whether the credential is still accepted.
// Without a valid local session the check is skipped and nil returned.
// A rejection or failure hands the session to the expiry transition.
func (h *Heartbeat) Verify(ctx context.Context, trigger Trigger) error {
	if !h.store.IsAuthenticated() {
		h.metrics.heartbeatCheck(trigger, "skipped")
		h.logger.Debug("verify skipped, no valid session", "trigger", trigger)
		return nil
	}

	resp, cred, err := h.gateway.send(ctx, h.cfg.VerifyPath, RequestOptions{Method: http.MethodPost})
	switch {
	case err == nil:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			h.metrics.heartbeatCheck(trigger, "ok")
			h.logger.Debug("credential verified", "trigger", trigger)
			return nil
		}
		h.metrics.heartbeatCheck(trigger, "failed")
		h.logger.Warn("verify failed", "trigger", trigger, "status", resp.StatusCode)
		h.expirer.Expire(ctx, ReasonVerifyFailed, cred)
		return &guard.Error{Kind: guard.KindStatus, Op: "verify", Target: h.cfg.VerifyPath, Status: resp.StatusCode}

	case errors.Is(err, guard.ErrAuthExpired):
		// The gateway already ran the transition.
		h.metrics.heartbeatCheck(trigger, "rejected")
		return err

	case errors.Is(err, guard.ErrNotAuthenticated):
		// Cleared between the check above and the send.
		h.metrics.heartbeatCheck(trigger, "skipped")
		return nil

	case errors.Is(err, guard.ErrConnection):
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.metrics.heartbeatCheck(trigger, "unreachable")
		if h.cfg.KeepSessionOnConnectionError {
			h.logger.Warn("authority unreachable, will retry on next tick", "trigger", trigger)
		} else {
			h.expirer.Expire(ctx, ReasonUnreachable, cred)
		}
		return err

	default:
		h.metrics.heartbeatCheck(trigger, "error")
		return err
	}
}
