package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
)

const testPassword = "adminpass"

// discardLogger returns a logger that discards all output (for tests)
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.SigningKey == nil {
		cfg.SigningKey = []byte("test-signing-key")
	}
	if cfg.LoginRate == 0 {
		cfg.LoginRate = 100
		cfg.LoginBurst = 100
	}
	if cfg.Collections == nil {
		cfg.Collections = []string{"services", "users"}
	}

	users := memory.NewUserStore()
	err := SeedUsers(context.Background(), users, []directory.User{
		{ID: 1, Username: "admin", Email: "admin@example.com"},
	}, testPassword)
	if err != nil {
		t.Fatalf("SeedUsers() error: %v", err)
	}

	s, err := NewServer(cfg, users, memory.NewCollectionStore(), discardLogger())
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "192.0.2.1:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"admin@example.com","password":"`+testPassword+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Token == "" || len(resp.User) == 0 {
		t.Fatalf("login response missing token or user: %s", rec.Body)
	}
	if bytes.Contains(resp.User, []byte("argon2id")) {
		t.Fatal("login response leaks the password hash")
	}
	return resp.Token
}

func TestServer_LoginVerifyLogout(t *testing.T) {
	s := newTestServer(t, Config{})

	token := login(t, s)

	if rec := do(t, s, http.MethodPost, "/auth/verify", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("verify before logout = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/auth/logout", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("logout = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/auth/verify", token, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("verify after logout = %d, want 401", rec.Code)
	}
	if got := testutil.ToFloat64(s.metrics.LoginsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("logins_total{result=ok} = %v, want 1", got)
	}
}

func TestServer_LoginFailures(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"not json", "email=a", http.StatusBadRequest},
		{"missing password", `{"email":"admin@example.com"}`, http.StatusBadRequest},
		{"unknown user", `{"email":"nobody@example.com","password":"x"}`, http.StatusUnauthorized},
		{"wrong password", `{"email":"admin@example.com","password":"nope"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/auth/login", "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %s", rec.Body)
			}
		})
	}
}

func TestServer_LoginRateLimited(t *testing.T) {
	s := newTestServer(t, Config{LoginRate: 0.001, LoginBurst: 1})

	body := `{"email":"admin@example.com","password":"nope"}`
	if rec := do(t, s, http.MethodPost, "/auth/login", "", body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt = %d, want 401", rec.Code)
	}
	rec := do(t, s, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second attempt = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

func TestServer_VerifyRejectsBadTokens(t *testing.T) {
	s := newTestServer(t, Config{})
	other := newTestServer(t, Config{SigningKey: []byte("another-key")})
	foreign := login(t, other)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"foreign signature", "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestServer_CollectionCRUD(t *testing.T) {
	s := newTestServer(t, Config{})
	token := login(t, s)

	rec := do(t, s, http.MethodPost, "/services", token, `{"name":"Hosting","price":10}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", rec.Code, rec.Body)
	}
	var created map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &created)
	id := created["id"]
	if id == "" {
		t.Fatal("create response missing id")
	}

	rec = do(t, s, http.MethodGet, "/services/"+id, token, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Hosting"`) {
		t.Fatalf("get = %d %s", rec.Code, rec.Body)
	}

	if rec = do(t, s, http.MethodPut, "/services/"+id, token, `{"name":"VPS"}`); rec.Code != http.StatusOK {
		t.Fatalf("update = %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/services", token, "")
	var list map[string][]recordView
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list["services"]) != 1 || !strings.Contains(string(list["services"][0].Data), "VPS") {
		t.Fatalf("list = %s", rec.Body)
	}

	if rec = do(t, s, http.MethodDelete, "/services/"+id, token, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec = do(t, s, http.MethodGet, "/services/"+id, token, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", rec.Code)
	}
}

func TestServer_CollectionsRequireToken(t *testing.T) {
	s := newTestServer(t, Config{})

	if rec := do(t, s, http.MethodGet, "/users", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("GET /users without token = %d, want 401", rec.Code)
	}
	token := login(t, s)
	if rec := do(t, s, http.MethodPost, "/users", token, "not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("POST /users with invalid body = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/orders", token, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured collection = %d, want 404", rec.Code)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Config{Version: "1.0.0"})
	login(t, s)

	rec := do(t, s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Version != "1.0.0" || health.Checks["rate_limiter"] == "" {
		t.Errorf("health = %+v", health)
	}

	rec = do(t, s, http.MethodGet, "/metrics", "", "")
	if !strings.Contains(rec.Body.String(), "sessionguard_authority_requests_total") {
		t.Error("metrics output missing requests_total")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	s := newTestServer(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s.Start(ctx)
	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
