package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

const testCredential = "abcdefghijk"

var testPrincipal = session.Principal(`{"id":1,"username":"admin","email":"admin@example.com"}`)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingNotifier collects notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	items []outbound.Notification
}

func (n *recordingNotifier) Notify(ctx context.Context, note outbound.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, note)
}

func (n *recordingNotifier) all() []outbound.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]outbound.Notification, len(n.items))
	copy(out, n.items)
	return out
}

func (n *recordingNotifier) count(id string) int {
	c := 0
	for _, note := range n.all() {
		if note.ID == id {
			c++
		}
	}
	return c
}

// recordingNavigator collects navigation targets and signals each one.
type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
	ch      chan string
}

func newRecordingNavigator() *recordingNavigator {
	return &recordingNavigator{ch: make(chan string, 64)}
}

func (n *recordingNavigator) Navigate(ctx context.Context, target string) {
	n.mu.Lock()
	n.targets = append(n.targets, target)
	n.mu.Unlock()
	n.ch <- target
}

func (n *recordingNavigator) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.targets))
	copy(out, n.targets)
	return out
}

func (n *recordingNavigator) wait(t *testing.T) string {
	t.Helper()
	select {
	case target := <-n.ch:
		return target
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for navigation")
		return ""
	}
}

// recordingPresenter remembers the last principal presented.
type recordingPresenter struct {
	mu        sync.Mutex
	principal []byte
	calls     int
}

func (p *recordingPresenter) Present(ctx context.Context, principal []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.principal = principal
	p.calls++
}

// harness wires the guard services against a fake authority.
type harness struct {
	server     *httptest.Server
	store      *session.Store
	notifier   *recordingNotifier
	navigator  *recordingNavigator
	redirector *Redirector
	expiry     *ExpiryCoordinator
	gateway    *Gateway
	heartbeat  *Heartbeat
	metrics    *Metrics
}

type harnessConfig struct {
	expiryDelay           time.Duration
	logoutDelay           time.Duration
	keepOnConnectionError bool
}

func newHarness(t *testing.T, handler http.Handler, hc harnessConfig) *harness {
	t.Helper()
	logger := testLogger()

	h := &harness{
		server:    httptest.NewServer(handler),
		notifier:  &recordingNotifier{},
		navigator: newRecordingNavigator(),
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}

	store, err := session.NewStore(context.Background(), memory.NewSlotStore(), credential.Default(), logger)
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	h.store = store

	h.redirector = NewRedirector(h.navigator, logger)
	h.expiry = NewExpiryCoordinator(store, h.notifier, h.redirector, ExpiryConfig{
		LoginTarget:         "login.html",
		ExpiryRedirectDelay: hc.expiryDelay,
		LogoutRedirectDelay: hc.logoutDelay,
	}, h.metrics, logger)
	h.gateway = NewGateway(store, h.server.URL, h.expiry,
		WithGatewayMetrics(h.metrics),
		WithGatewayLogger(logger),
	)
	h.expiry.UseGateway(h.gateway)
	h.heartbeat = NewHeartbeat(store, h.gateway, h.expiry, HeartbeatConfig{
		KeepSessionOnConnectionError: hc.keepOnConnectionError,
	}, h.metrics, logger)
	store.OnClear(h.heartbeat.Stop)

	t.Cleanup(func() {
		h.heartbeat.Close()
		h.expiry.Close()
		h.server.Close()
	})
	return h
}

func (h *harness) login(t *testing.T, cred string) {
	t.Helper()
	if !h.store.SetSession(context.Background(), cred, testPrincipal) {
		t.Fatal("SetSession() = false")
	}
}

// statusHandler answers every request with status and counts requests.
type statusHandler struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []*http.Request
}

func (s *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(context.Background()))
	status := s.status
	body := s.body
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *statusHandler) setStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *statusHandler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *statusHandler) last() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}
