package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

// Notification message IDs used by the login flow.
const (
	MsgLoginSuccess       = "login.success"
	MsgLoginMissingFields = "login.missing_fields"
	MsgLoginInvalidEmail  = "login.invalid_email"
	MsgLoginFailed        = "login.failed"
	MsgLoginServerMessage = "login.server_message"
	MsgConnectionError    = "connection.error"
)

// loginStatusMessages maps authority statuses to a dedicated message.
// Other statuses fall back to the authority's text, then MsgLoginFailed.
var loginStatusMessages = map[int]string{
	http.StatusBadRequest:          "login.status.400",
	http.StatusUnauthorized:        "login.status.401",
	http.StatusForbidden:           "login.status.403",
	http.StatusNotFound:            "login.status.404",
	http.StatusTooManyRequests:     "login.status.429",
	http.StatusInternalServerError: "login.status.500",
	http.StatusServiceUnavailable:  "login.status.503",
}

// LoginStatusMessage returns the message ID for a rejected login.
func LoginStatusMessage(status int, authorityMsg string) string {
	if id, ok := loginStatusMessages[status]; ok {
		return id
	}
	if authorityMsg != "" {
		return MsgLoginServerMessage
	}
	return MsgLoginFailed
}

// LoginRequest is the user's login input.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// loginResponse is the authority's answer to a successful login.
type loginResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    json.RawMessage `json:"user"`
}

// LoginConfig configures LoginService.
type LoginConfig struct {
	BaseURL           string
	LoginPath         string
	HomeTarget        string
	RedirectDelay     time.Duration
	HeartbeatInterval time.Duration
}

// LoginService exchanges an email and password for a session.
type LoginService struct {
	store      *session.Store
	client     outbound.HTTPDoer
	heartbeat  *Heartbeat
	notifier   outbound.Notifier
	redirector *Redirector
	validate   *validator.Validate
	cfg        LoginConfig
	metrics    *Metrics
	logger     *slog.Logger
}

// NewLoginService creates a LoginService. client defaults to a plain
// *http.Client with a 10s timeout; the login call carries no credential.
func NewLoginService(
	store *session.Store,
	client outbound.HTTPDoer,
	heartbeat *Heartbeat,
	notifier outbound.Notifier,
	redirector *Redirector,
	cfg LoginConfig,
	metrics *Metrics,
	logger *slog.Logger,
) *LoginService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = DefaultLoginPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginService{
		store:      store,
		client:     client,
		heartbeat:  heartbeat,
		notifier:   notifier,
		redirector: redirector,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// Login validates req, calls the authority and, on success, stores the
// session, arms the heartbeat and schedules navigation to the home target.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (session.Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)

	if err := s.validateRequest(ctx, req); err != nil {
		s.metrics.loginAttempt("invalid")
		return session.Session{}, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return session.Session{}, fmt.Errorf("marshal login request: %w", err)
	}
	target := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + strings.TrimLeft(s.cfg.LoginPath, "/")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return session.Session{}, fmt.Errorf("build login request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.metrics.loginAttempt("connection")
		s.logger.Warn("login failed, authority unreachable", "error", err)
		s.notifier.Notify(ctx, outbound.Notification{Level: outbound.LevelError, ID: MsgConnectionError})
		return session.Session{}, &guard.Error{Kind: guard.KindConnection, Op: "login", Target: s.cfg.LoginPath, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		s.metrics.loginAttempt("connection")
		return session.Session{}, &guard.Error{Kind: guard.KindConnection, Op: "login", Target: s.cfg.LoginPath, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := authorityMessage(data)
		s.metrics.loginAttempt("rejected")
		s.logger.Info("login rejected", "status", resp.StatusCode)
		s.notifier.Notify(ctx, outbound.Notification{
			Level: outbound.LevelError,
			ID:    LoginStatusMessage(resp.StatusCode, msg),
			Data:  map[string]any{"Message": msg, "Status": strconv.Itoa(resp.StatusCode)},
		})
		return session.Session{}, &guard.Error{
			Kind:    guard.KindRejected,
			Op:      "login",
			Target:  s.cfg.LoginPath,
			Status:  resp.StatusCode,
			Message: msg,
		}
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		s.metrics.loginAttempt("error")
		return session.Session{}, fmt.Errorf("decode login response: %w", err)
	}

	if !s.store.SetSession(ctx, lr.Token, session.Principal(lr.User)) {
		s.metrics.loginAttempt("error")
		s.notifier.Notify(ctx, outbound.Notification{Level: outbound.LevelError, ID: MsgLoginFailed})
		return session.Session{}, &guard.Error{
			Kind:    guard.KindRejected,
			Op:      "login",
			Target:  s.cfg.LoginPath,
			Status:  resp.StatusCode,
			Message: "authority response is missing token or user",
		}
	}

	snap, _ := s.store.Snapshot()
	s.metrics.loginAttempt("ok")
	s.logger.Info("login succeeded",
		"session_tag", snap.Tag,
		"credential_fp", credential.Fingerprint(snap.Credential),
	)

	s.heartbeat.Start(s.cfg.HeartbeatInterval)
	s.notifier.Notify(ctx, outbound.Notification{Level: outbound.LevelSuccess, ID: MsgLoginSuccess})
	s.redirector.Schedule(ctx, s.cfg.HomeTarget, s.cfg.RedirectDelay, nil)
	return snap, nil
}

// validateRequest checks required fields and email syntax.
func (s *LoginService) validateRequest(ctx context.Context, req LoginRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return fmt.Errorf("validate login request: %w", err)
	}

	// Missing fields are reported before a malformed email.
	first := validationErrors[0]
	for _, fe := range validationErrors {
		if fe.Tag() == "required" {
			first = fe
			break
		}
	}

	msgID := MsgLoginMissingFields
	if first.Tag() == "email" {
		msgID = MsgLoginInvalidEmail
	}
	s.notifier.Notify(ctx, outbound.Notification{Level: outbound.LevelError, ID: msgID})
	return &guard.Error{
		Kind:  guard.KindValidation,
		Op:    "login",
		Field: strings.ToLower(first.Field()),
		Err:   err,
	}
}
