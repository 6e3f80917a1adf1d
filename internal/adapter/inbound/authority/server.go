// Package authority is a development credential authority: it issues tokens,
// verifies and revokes them, and serves protected opaque collections. It
// stands in for the remote authority a guard talks to.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Config configures a Server.
type Config struct {
	SigningKey  []byte
	TokenTTL    time.Duration
	LoginRate   float64
	LoginBurst  int
	Collections []string
	Version     string
}

// Server is the development authority. It implements http.Handler.
type Server struct {
	users       directory.UserStore
	collections directory.CollectionStore
	issuer      *TokenIssuer
	limiter     *memory.RateLimiter
	revocations *memory.RevocationList
	health      *HealthChecker
	metrics     *Metrics
	registry    *prometheus.Registry
	logger      *slog.Logger
	handler     http.Handler
}

// NewServer creates a Server. Collections not named in cfg return 404.
func NewServer(cfg Config, users directory.UserStore, collections directory.CollectionStore, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	issuer, err := NewTokenIssuer(cfg.SigningKey, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	s := &Server{
		users:       users,
		collections: collections,
		issuer:      issuer,
		limiter:     memory.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		revocations: memory.NewRevocationList(),
		metrics:     NewMetrics(reg),
		registry:    reg,
		logger:      logger,
	}
	s.health = NewHealthChecker(s.limiter, s.revocations, cfg.Version)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/verify", s.handleVerify)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.Handle("GET /health", s.health.Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	for _, name := range cfg.Collections {
		name = strings.Trim(strings.TrimSpace(name), "/")
		if name == "" {
			continue
		}
		base := "/" + name
		mux.HandleFunc("GET "+base, s.requireToken(s.listRecords(name)))
		mux.HandleFunc("POST "+base, s.requireToken(s.createRecord(name)))
		mux.HandleFunc("GET "+base+"/{id}", s.requireToken(s.getRecord(name)))
		mux.HandleFunc("PUT "+base+"/{id}", s.requireToken(s.updateRecord(name)))
		mux.HandleFunc("DELETE "+base+"/{id}", s.requireToken(s.deleteRecord(name)))
	}

	s.handler = MetricsMiddleware(s.metrics)(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start launches the background cleanup goroutines. They stop when ctx is
// cancelled or Close is called.
func (s *Server) Start(ctx context.Context) {
	s.limiter.StartCleanup(ctx)
	s.revocations.StartCleanup(ctx)
}

// Close stops background goroutines.
func (s *Server) Close() error {
	s.limiter.Stop()
	s.revocations.Stop()
	return nil
}

// Registry returns the registry the authority's metrics are registered with.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// SeedUsers hashes password with argon2id and stores it for every user.
func SeedUsers(ctx context.Context, store directory.UserStore, users []directory.User, password string) error {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return err
	}
	for i := range users {
		u := users[i]
		u.PasswordHash = hash
		if err := store.Add(ctx, &u); err != nil {
			return err
		}
	}
	return nil
}

// --- auth handlers ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    *directory.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientKey(r)) {
		s.metrics.LoginsTotal.WithLabelValues("limited").Inc()
		s.metrics.RateLimitKeys.Set(float64(s.limiter.Size()))
		w.Header().Set("Retry-After", "1")
		s.respondError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	s.metrics.RateLimitKeys.Set(float64(s.limiter.Size()))

	var req loginRequest
	if err := s.readJSON(r, &req); err != nil {
		s.metrics.LoginsTotal.WithLabelValues("bad_request").Inc()
		s.respondError(w, http.StatusBadRequest, "no data sent")
		return
	}
	if req.Email == "" || req.Password == "" {
		s.metrics.LoginsTotal.WithLabelValues("bad_request").Inc()
		s.respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, directory.ErrUserNotFound) {
			s.logger.Error("user lookup failed", "error", err)
			s.respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil || !match {
		s.metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, claims, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("login succeeded", "user_id", user.ID, "jti", claims.ID)
	s.respondJSON(w, http.StatusOK, loginResponse{
		Message: "login successful",
		Token:   token,
		User:    user,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "token valid"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	tokenStr, ok := bearerToken(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "token missing or malformed")
		return
	}
	if claims, err := s.issuer.Parse(tokenStr); err == nil {
		s.revocations.Revoke(claims.ID, claims.ExpiresAt.Time)
		s.metrics.RevokedTokens.Set(float64(s.revocations.Size()))
		s.logger.Info("token revoked", "jti", claims.ID)
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// authenticate validates the bearer token and writes a 401 when it is not
// acceptable.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	tokenStr, ok := bearerToken(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "token missing or malformed")
		return "", false
	}
	claims, err := s.issuer.Parse(tokenStr)
	if err != nil || s.revocations.IsRevoked(claims.ID) {
		s.respondError(w, http.StatusUnauthorized, "token invalid or expired")
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.authenticate(w, r); !ok {
			return
		}
		next(w, r)
	}
}

// --- collection handlers ---

type recordView struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toView(r *directory.Record) recordView {
	return recordView{ID: r.ID, Data: r.Body, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func (s *Server) listRecords(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.collections.List(r.Context(), collection)
		if err != nil {
			s.logger.Error("list records failed", "collection", collection, "error", err)
			s.respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		views := make([]recordView, 0, len(records))
		for i := range records {
			views = append(views, toView(&records[i]))
		}
		s.respondJSON(w, http.StatusOK, map[string]any{collection: views})
	}
}

func (s *Server) createRecord(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.readBody(w, r)
		if !ok {
			return
		}
		now := time.Now().UTC()
		rec := &directory.Record{ID: uuid.NewString(), Body: body, CreatedAt: now, UpdatedAt: now}
		if err := s.collections.Add(r.Context(), collection, rec); err != nil {
			s.logger.Error("create record failed", "collection", collection, "error", err)
			s.respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.respondJSON(w, http.StatusCreated, map[string]string{"message": "created", "id": rec.ID})
	}
}

func (s *Server) getRecord(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := s.collections.Get(r.Context(), collection, r.PathValue("id"))
		if err != nil {
			s.recordError(w, collection, err)
			return
		}
		s.respondJSON(w, http.StatusOK, toView(rec))
	}
}

func (s *Server) updateRecord(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.readBody(w, r)
		if !ok {
			return
		}
		rec := &directory.Record{ID: r.PathValue("id"), Body: body, UpdatedAt: time.Now().UTC()}
		if err := s.collections.Update(r.Context(), collection, rec); err != nil {
			s.recordError(w, collection, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "updated"})
	}
}

func (s *Server) deleteRecord(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.collections.Delete(r.Context(), collection, r.PathValue("id")); err != nil {
			s.recordError(w, collection, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	}
}

func (s *Server) recordError(w http.ResponseWriter, collection string, err error) {
	if errors.Is(err, directory.ErrRecordNotFound) {
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}
	s.logger.Error("record operation failed", "collection", collection, "error", err)
	s.respondError(w, http.StatusInternalServerError, "internal server error")
}

// readBody reads an opaque JSON document. Writes a 400 and returns false when
// the body is empty or not JSON.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(data) == 0 || !json.Valid(data) {
		s.respondError(w, http.StatusBadRequest, "request body must be a JSON document")
		return nil, false
	}
	return json.RawMessage(data), true
}

// --- JSON helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// clientKey identifies the caller for rate limiting.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
