package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

// Redirector issues delayed navigations and tracks them so they can be
// cancelled on shutdown. Safe for concurrent use.
type Redirector struct {
	navigator outbound.Navigator
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[*time.Timer]func()
	closed  bool
	wg      sync.WaitGroup
}

// NewRedirector creates a Redirector that navigates through nav.
func NewRedirector(nav outbound.Navigator, logger *slog.Logger) *Redirector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redirector{
		navigator: nav,
		logger:    logger,
		pending:   make(map[*time.Timer]func()),
	}
}

// Schedule navigates to target after delay, then runs after (which may be
// nil). A non-positive delay navigates before returning. after also runs
// when the navigation is cancelled by Cancel or Close.
func (r *Redirector) Schedule(ctx context.Context, target string, delay time.Duration, after func()) {
	ctx = context.WithoutCancel(ctx)
	if after == nil {
		after = func() {}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		after()
		return
	}
	if delay <= 0 {
		r.mu.Unlock()
		r.navigate(ctx, target)
		after()
		return
	}

	r.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer r.wg.Done()
		r.mu.Lock()
		if _, ok := r.pending[t]; !ok {
			r.mu.Unlock()
			return
		}
		delete(r.pending, t)
		r.mu.Unlock()

		r.navigate(ctx, target)
		after()
	})
	r.pending[t] = after
	r.mu.Unlock()

	r.logger.Debug("navigation scheduled", "target", target, "delay", delay)
}

// Pending returns the number of scheduled navigations not yet issued.
func (r *Redirector) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Cancel drops every pending navigation.
func (r *Redirector) Cancel() {
	r.mu.Lock()
	var afters []func()
	for t, after := range r.pending {
		if t.Stop() {
			r.wg.Done()
		}
		afters = append(afters, after)
		delete(r.pending, t)
	}
	r.mu.Unlock()

	for _, after := range afters {
		after()
	}
}

// Close cancels pending navigations, refuses new ones and waits for any
// navigation already in progress.
func (r *Redirector) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Cancel()
	r.wg.Wait()
}

func (r *Redirector) navigate(ctx context.Context, target string) {
	r.logger.Info("navigating", "target", target)
	r.navigator.Navigate(ctx, target)
}
