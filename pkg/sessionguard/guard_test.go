package sessionguard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/inbound/authority"
	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/console"
	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
	"github.com/Sentinel-Gate/sessionguard/internal/i18n"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
	"github.com/Sentinel-Gate/sessionguard/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type notes struct {
	mu  sync.Mutex
	ids []string
}

func (n *notes) Notify(ctx context.Context, note outbound.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, note.ID)
}

func (n *notes) has(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, got := range n.ids {
		if got == id {
			return true
		}
	}
	return false
}

// startAuthority runs the development authority with one admin user.
func startAuthority(t *testing.T) *httptest.Server {
	t.Helper()
	users := memory.NewUserStore()
	if err := authority.SeedUsers(context.Background(), users, []directory.User{
		{ID: 1, Username: "admin", Email: "admin@example.com"},
	}, "adminpass"); err != nil {
		t.Fatal(err)
	}
	srv, err := authority.NewServer(authority.Config{
		SigningKey:  []byte("test-key"),
		TokenTTL:    time.Hour,
		LoginRate:   100,
		LoginBurst:  100,
		Collections: []string{"services"},
	}, users, memory.NewCollectionStore(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

func newTestGuard(t *testing.T, baseURL string, mutate func(*Options)) (*Guard, *notes, *console.Navigator) {
	t.Helper()
	n := &notes{}
	nav := console.NewNavigator(io.Discard)
	catalog, err := i18n.New("en")
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{
		BaseURL:        baseURL,
		ProtectedPages: []string{"admin.html", "users.html"},
		Notifier:       n,
		Navigator:      nav,
		Presenter:      console.NewPresenter(io.Discard, catalog),
		Registerer:     prometheus.NewRegistry(),
		Logger:         discardLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	g, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, n, nav
}

func waitTarget(t *testing.T, nav *console.Navigator) string {
	t.Helper()
	select {
	case target := <-nav.Targets():
		return target
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for navigation")
		return ""
	}
}

func TestGuard_LoginSendLogout(t *testing.T) {
	ts := startAuthority(t)
	g, n, nav := newTestGuard(t, ts.URL, nil)
	ctx := context.Background()

	if g.Enforce(ctx, "/admin.html") {
		t.Fatal("Enforce() allowed a protected page without a session")
	}
	if target := waitTarget(t, nav); target != "login.html" {
		t.Fatalf("denied page navigated to %q, want login.html", target)
	}

	sess, err := g.Login(ctx, " admin@example.com ", "adminpass")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if sess.Credential == "" || sess.Tag == "" {
		t.Fatalf("Login() session = %+v", sess)
	}
	if target := waitTarget(t, nav); target != "admin.html" {
		t.Errorf("login navigated to %q, want admin.html", target)
	}
	if !g.HeartbeatRunning() {
		t.Error("heartbeat should run after login")
	}

	var created map[string]string
	if err := g.SendJSON(ctx, http.MethodPost, "/services", map[string]any{"name": "Hosting"}, &created); err != nil {
		t.Fatalf("SendJSON() error: %v", err)
	}
	if created["id"] == "" {
		t.Errorf("create response = %v", created)
	}
	if err := g.Verify(ctx); err != nil {
		t.Errorf("Verify() error: %v", err)
	}
	if !g.Enforce(ctx, "/admin.html") {
		t.Error("Enforce() denied a protected page with a valid session")
	}

	if err := g.Logout(ctx); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if target := waitTarget(t, nav); target != "login.html" {
		t.Errorf("logout navigated to %q, want login.html", target)
	}
	if _, ok := g.Status(); ok {
		t.Error("Status() authenticated after logout")
	}
	if g.HeartbeatRunning() {
		t.Error("heartbeat should stop after logout")
	}
	if !n.has(service.MsgLoginSuccess) || !n.has(service.MsgSessionLoggedOut) {
		t.Errorf("notifications = %v", n.ids)
	}

	if err := g.Logout(ctx); !errors.Is(err, guard.ErrNotAuthenticated) {
		t.Errorf("second Logout() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestGuard_SendWithoutSession(t *testing.T) {
	ts := startAuthority(t)
	g, _, _ := newTestGuard(t, ts.URL, nil)

	_, err := g.Send(context.Background(), http.MethodGet, "/services", nil, nil)
	if !errors.Is(err, guard.ErrNotAuthenticated) {
		t.Errorf("Send() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestGuard_LoginRejected(t *testing.T) {
	ts := startAuthority(t)
	g, n, _ := newTestGuard(t, ts.URL, nil)

	_, err := g.Login(context.Background(), "admin@example.com", "wrong")
	if !errors.Is(err, guard.ErrRejected) {
		t.Fatalf("Login() error = %v, want ErrRejected", err)
	}
	if !n.has("login.status.401") {
		t.Errorf("notifications = %v, want login.status.401", n.ids)
	}
	if _, ok := g.Status(); ok {
		t.Error("rejected login must not create a session")
	}
}

func TestGuard_FileStorageSurvivesRestart(t *testing.T) {
	ts := startAuthority(t)
	path := filepath.Join(t.TempDir(), "session.json")
	withFile := func(o *Options) {
		o.Storage = StorageOptions{Driver: "file", Path: path}
	}

	first, _, _ := newTestGuard(t, ts.URL, withFile)
	sess, err := first.Login(context.Background(), "admin@example.com", "adminpass")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	_ = first.Close()

	second, _, _ := newTestGuard(t, ts.URL, withFile)
	got, ok := second.Status()
	if !ok || got.Credential != sess.Credential {
		t.Fatalf("restarted guard session = %+v (ok=%v), want credential from first run", got, ok)
	}
	if err := second.Verify(context.Background()); err != nil {
		t.Errorf("Verify() after restart error: %v", err)
	}
}

func TestGuard_RedisScopesAreIsolated(t *testing.T) {
	ts := startAuthority(t)
	mr := miniredis.RunT(t)
	withScope := func(scope string) func(*Options) {
		return func(o *Options) {
			o.Scope = scope
			o.Storage = StorageOptions{Driver: "redis", RedisAddr: mr.Addr()}
		}
	}

	a, _, _ := newTestGuard(t, ts.URL, withScope("tab-a"))

	if _, err := a.Login(context.Background(), "admin@example.com", "adminpass"); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if _, ok := a.Status(); !ok {
		t.Error("scope a should be authenticated")
	}

	b, _, _ := newTestGuard(t, ts.URL, withScope("tab-b"))
	if _, ok := b.Status(); ok {
		t.Error("scope b must not see scope a's session")
	}
}

func TestGuard_Connectivity(t *testing.T) {
	ts := startAuthority(t)
	g, n, _ := newTestGuard(t, ts.URL, nil)
	ctx := context.Background()

	g.OnOffline(ctx)
	g.OnOnline(ctx)
	g.OnVisible()

	if !n.has(service.MsgConnectionLost) || !n.has(service.MsgConnectionRestored) {
		t.Errorf("notifications = %v", n.ids)
	}
}

func TestGuard_UnreachableAuthorityOnVerify(t *testing.T) {
	tests := []struct {
		name     string
		keep     bool
		wantAuth bool
	}{
		{"zero options end the session", false, false},
		{"kept when asked", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := startAuthority(t)
			g, n, nav := newTestGuard(t, ts.URL, func(o *Options) { o.KeepSessionOnConnectionError = tt.keep })
			ctx := context.Background()

			if _, err := g.Login(ctx, "admin@example.com", "adminpass"); err != nil {
				t.Fatal(err)
			}
			waitTarget(t, nav)
			ts.Close()

			if err := g.Verify(ctx); !errors.Is(err, guard.ErrConnection) {
				t.Fatalf("Verify() error = %v, want ErrConnection", err)
			}
			if _, ok := g.Status(); ok != tt.wantAuth {
				t.Errorf("authenticated = %v, want %v", ok, tt.wantAuth)
			}
			if got := n.has(service.MsgSessionExpired); got == tt.wantAuth {
				t.Errorf("expired notification sent = %v, want %v", got, !tt.wantAuth)
			}
		})
	}
}

func TestGuard_RedirectAuthenticated(t *testing.T) {
	ts := startAuthority(t)
	g, n, nav := newTestGuard(t, ts.URL, func(o *Options) { o.LoginRedirectDelay = time.Millisecond })
	ctx := context.Background()

	if g.RedirectAuthenticated(ctx, "/login.html") {
		t.Fatal("RedirectAuthenticated() without a session should be false")
	}
	if _, err := g.Login(ctx, "admin@example.com", "adminpass"); err != nil {
		t.Fatal(err)
	}
	waitTarget(t, nav)

	if !g.RedirectAuthenticated(ctx, "/login.html") {
		t.Fatal("RedirectAuthenticated() with a session should be true")
	}
	if target := waitTarget(t, nav); target != "admin.html" {
		t.Errorf("navigated to %q, want admin.html", target)
	}
	if !n.has(service.MsgAlreadyActive) {
		t.Errorf("notifications = %v", n.ids)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Options{}); err == nil {
		t.Error("New() without BaseURL should fail")
	}
	_, err := New(context.Background(), Options{
		BaseURL: "http://127.0.0.1:1",
		Storage: StorageOptions{Driver: "etcd"},
		Logger:  discardLogger(),
	})
	if err == nil {
		t.Error("New() with unknown driver should fail")
	}
}
