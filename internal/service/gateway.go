package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
)

// Authority endpoint paths.
const (
	DefaultLoginPath  = "/auth/login"
	DefaultVerifyPath = "/auth/verify"
	DefaultLogoutPath = "/auth/logout"
)

// maxErrorBody bounds how much of a non-2xx body SendJSON reads.
const maxErrorBody = 64 << 10

const tracerName = "github.com/Sentinel-Gate/sessionguard/internal/service"

// Expirer runs the logged-out transition for the session holding cred.
// ExpiryCoordinator implements it.
type Expirer interface {
	Expire(ctx context.Context, reason Reason, cred string) bool
}

// RequestOptions describes one authenticated request.
type RequestOptions struct {
	// Method defaults to GET.
	Method string
	// Header entries replace the defaults key by key. Authorization is
	// reserved and always carries the stored credential.
	Header http.Header
	Body   []byte
}

// Gateway sends requests to the authority with the stored credential
// attached, and turns a 401 into the expiry transition.
type Gateway struct {
	store   *session.Store
	baseURL string
	client  outbound.HTTPDoer
	expirer Expirer
	tracer  trace.Tracer
	metrics *Metrics
	logger  *slog.Logger
}

// GatewayOption is a functional option for configuring Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client outbound.HTTPDoer) GatewayOption {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) GatewayOption {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// WithGatewayMetrics sets the metrics sink.
func WithGatewayMetrics(m *Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a Gateway for the authority at baseURL.
func NewGateway(store *session.Store, baseURL string, expirer Expirer, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		expirer: expirer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: 10 * time.Second}
	}
	if g.tracer == nil {
		g.tracer = otel.Tracer(tracerName)
	}
	return g
}

// Resolve returns target as an absolute URL. Paths are joined onto the
// authority base URL; absolute http(s) URLs are returned unchanged.
func (g *Gateway) Resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return g.baseURL + "/" + strings.TrimLeft(target, "/")
}

// Send performs one authenticated request. It fails with KindNotAuthenticated
// without touching the network when there is no valid session, and with
// KindAuthExpired after running the expiry transition when the authority
// answers 401. Any other response is returned as is and the caller owns its body.
func (g *Gateway) Send(ctx context.Context, target string, opts RequestOptions) (*http.Response, error) {
	resp, _, err := g.send(ctx, target, opts)
	return resp, err
}

// send is Send that also returns the credential the request carried, so
// callers acting on the outcome later can tell whether it is still current.
func (g *Gateway) send(ctx context.Context, target string, opts RequestOptions) (*http.Response, string, error) {
	snap, ok := g.store.Snapshot()
	if !ok {
		g.metrics.gatewayRequest("unauthenticated", 0)
		return nil, "", &guard.Error{Kind: guard.KindNotAuthenticated, Op: "send", Target: target}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := g.tracer.Start(ctx, "gateway.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("sessionguard.target", target),
			attribute.String("sessionguard.session_tag", snap.Tag),
		),
	)
	defer span.End()

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.Resolve(target), body)
	if err != nil {
		span.SetStatus(codes.Error, "build request")
		return nil, snap.Credential, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, values := range opts.Header {
		if http.CanonicalHeaderKey(key) == "Authorization" {
			g.logger.Debug("ignoring caller Authorization header", "target", target)
			continue
		}
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Authorization", "Bearer "+snap.Credential)

	start := time.Now()
	resp, err := g.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connection")
		g.metrics.gatewayRequest("connection", elapsed)
		g.logger.Warn("authority unreachable",
			"method", method,
			"target", target,
			"session_tag", snap.Tag,
			"error", err,
		)
		return nil, snap.Credential, &guard.Error{Kind: guard.KindConnection, Op: "send", Target: target, Err: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()

		span.SetStatus(codes.Error, "credential rejected")
		g.metrics.gatewayRequest("expired", elapsed)
		g.logger.Warn("authority rejected credential",
			"method", method,
			"target", target,
			"session_tag", snap.Tag,
			"credential_fp", credential.Fingerprint(snap.Credential),
		)
		if g.expirer != nil {
			g.expirer.Expire(ctx, ReasonRejected, snap.Credential)
		}
		return nil, snap.Credential, &guard.Error{Kind: guard.KindAuthExpired, Op: "send", Target: target, Status: http.StatusUnauthorized}
	}

	g.metrics.gatewayRequest("ok", elapsed)
	g.logger.Debug("authenticated request",
		"method", method,
		"target", target,
		"status", resp.StatusCode,
		"duration", elapsed,
	)
	return resp, snap.Credential, nil
}

// SendJSON sends in (when non-nil) as a JSON body and decodes a 2xx response
// into out (when non-nil). A non-2xx response becomes KindStatus carrying the
// authority's error message.
func (g *Gateway) SendJSON(ctx context.Context, method, target string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	resp, err := g.Send(ctx, target, RequestOptions{Method: method, Body: body})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &guard.Error{
			Kind:    guard.KindStatus,
			Op:      "send",
			Target:  target,
			Status:  resp.StatusCode,
			Message: authorityMessage(data),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// authorityMessage extracts the authority's {"error": ...} or {"message": ...}
// text from a response body.
func authorityMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
