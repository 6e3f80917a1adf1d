// Package sessionguard is the entry point for embedding the session guard:
// it wires the session store, its durable slots, the authenticated request
// gateway, the heartbeat, the expiry coordinator, the page guard and the
// login flow into one Guard.
package sessionguard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/console"
	"github.com/Sentinel-Gate/sessionguard/internal/config"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/session"
	"github.com/Sentinel-Gate/sessionguard/internal/i18n"
	"github.com/Sentinel-Gate/sessionguard/internal/port/inbound"
	"github.com/Sentinel-Gate/sessionguard/internal/port/outbound"
	"github.com/Sentinel-Gate/sessionguard/internal/service"
)

const instrumentationName = "github.com/Sentinel-Gate/sessionguard"

// Options configures a Guard. Zero values take the documented defaults;
// a zero redirect delay navigates immediately.
type Options struct {
	// BaseURL is the authority's base URL. Required.
	BaseURL string
	// Timeout bounds authority requests when HTTPClient is nil. Default: 10s.
	Timeout time.Duration

	// Scope names the session inside a shared durable backend. Default: "default".
	Scope string
	// MinCredentialLength is the shortest structurally valid credential. Default: 11.
	MinCredentialLength int
	// Storage selects the durable slot driver. Ignored when Slots is set.
	Storage StorageOptions
	// Slots overrides the driver built from Storage.
	Slots session.SlotStore

	HeartbeatInterval time.Duration
	// KeepSessionOnConnectionError keeps the session when a verification
	// cannot reach the authority. By default the session ends.
	KeepSessionOnConnectionError bool

	LoginTarget         string
	HomeTarget          string
	ProtectedPages      []string
	ExpiryRedirectDelay time.Duration
	LogoutRedirectDelay time.Duration
	LoginRedirectDelay  time.Duration

	// Locale selects the language of console notifications. Default: "en".
	Locale string
	// Notifier, Navigator and Presenter default to console adapters on stderr.
	Notifier  outbound.Notifier
	Navigator outbound.Navigator
	Presenter outbound.PrincipalPresenter

	HTTPClient     *http.Client
	TracerProvider trace.TracerProvider
	// Registerer receives the guard metrics. Nil disables them.
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// OptionsFromConfig maps a loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:             cfg.Authority.BaseURL,
		Timeout:             cfg.Authority.Timeout,
		Scope:               cfg.Session.Scope,
		MinCredentialLength: cfg.Session.MinCredentialLength,
		Storage: StorageOptions{
			Driver:      cfg.Session.Storage.Driver,
			Path:        cfg.Session.Storage.Path,
			RedisAddr:   cfg.Session.Storage.RedisAddr,
			RedisDB:     cfg.Session.Storage.RedisDB,
			RedisPrefix: cfg.Session.Storage.RedisPrefix,
			TTL:         cfg.Session.Storage.TTL,
		},
		HeartbeatInterval:            cfg.Heartbeat.Interval,
		KeepSessionOnConnectionError: !cfg.Heartbeat.ExpireOnConnectionError,
		LoginTarget:                  cfg.Navigation.LoginTarget,
		HomeTarget:                   cfg.Navigation.HomeTarget,
		ProtectedPages:               cfg.Navigation.ProtectedPages,
		ExpiryRedirectDelay:          cfg.Navigation.ExpiryRedirectDelay,
		LogoutRedirectDelay:          cfg.Navigation.LogoutRedirectDelay,
		LoginRedirectDelay:           cfg.Navigation.LoginRedirectDelay,
		Locale:                       cfg.Locale,
	}
}

// Guard owns one scope's session and every component acting on it.
type Guard struct {
	store      *session.Store
	gateway    *service.Gateway
	expiry     *service.ExpiryCoordinator
	heartbeat  *service.Heartbeat
	pages      *service.PageGuard
	login      *service.LoginService
	notifier   outbound.Notifier
	closeSlots func() error
	logger     *slog.Logger
}

// New builds a Guard and hydrates its session from durable storage.
func New(ctx context.Context, opts Options) (*Guard, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("authority base URL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Scope == "" {
		opts.Scope = "default"
	}
	if opts.LoginTarget == "" {
		opts.LoginTarget = "login.html"
	}
	if opts.HomeTarget == "" {
		opts.HomeTarget = "admin.html"
	}

	notifier, navigator, presenter := opts.Notifier, opts.Navigator, opts.Presenter
	if notifier == nil || presenter == nil {
		catalog, err := i18n.New(opts.Locale)
		if err != nil {
			return nil, fmt.Errorf("load messages: %w", err)
		}
		if notifier == nil {
			notifier = console.NewNotifier(os.Stderr, catalog)
		}
		if presenter == nil {
			presenter = console.NewPresenter(os.Stderr, catalog)
		}
	}
	if navigator == nil {
		navigator = console.NewNavigator(os.Stderr)
	}

	slots, closeSlots := opts.Slots, func() error { return nil }
	if slots == nil {
		var err error
		slots, closeSlots, err = openSlots(ctx, opts.Storage, opts.Scope, logger)
		if err != nil {
			return nil, err
		}
	}

	store, err := session.NewStore(ctx, slots, credential.Validator{MinLength: opts.MinCredentialLength}, logger)
	if err != nil {
		_ = closeSlots()
		return nil, err
	}

	var metrics *service.Metrics
	if opts.Registerer != nil {
		metrics = service.NewMetrics(opts.Registerer)
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}

	redirector := service.NewRedirector(navigator, logger)
	expiry := service.NewExpiryCoordinator(store, notifier, redirector, service.ExpiryConfig{
		LoginTarget:         opts.LoginTarget,
		ExpiryRedirectDelay: opts.ExpiryRedirectDelay,
		LogoutRedirectDelay: opts.LogoutRedirectDelay,
	}, metrics, logger)

	gateway := service.NewGateway(store, opts.BaseURL, expiry,
		service.WithHTTPClient(client),
		service.WithTracer(tp.Tracer(instrumentationName)),
		service.WithGatewayMetrics(metrics),
		service.WithGatewayLogger(logger),
	)
	expiry.UseGateway(gateway)

	heartbeat := service.NewHeartbeat(store, gateway, expiry, service.HeartbeatConfig{
		KeepSessionOnConnectionError: opts.KeepSessionOnConnectionError,
	}, metrics, logger)
	store.OnClear(heartbeat.Stop)

	pages := service.NewPageGuard(store, heartbeat, notifier, presenter, redirector, service.PageGuardConfig{
		Protected:          guard.NewPageSet(opts.ProtectedPages...),
		LoginTarget:        opts.LoginTarget,
		HomeTarget:         opts.HomeTarget,
		DenyRedirectDelay:  opts.ExpiryRedirectDelay,
		LoginRedirectDelay: opts.LoginRedirectDelay,
		HeartbeatInterval:  opts.HeartbeatInterval,
	}, logger)

	login := service.NewLoginService(store, client, heartbeat, notifier, redirector, service.LoginConfig{
		BaseURL:           opts.BaseURL,
		HomeTarget:        opts.HomeTarget,
		RedirectDelay:     opts.LoginRedirectDelay,
		HeartbeatInterval: opts.HeartbeatInterval,
	}, metrics, logger)

	return &Guard{
		store:      store,
		gateway:    gateway,
		expiry:     expiry,
		heartbeat:  heartbeat,
		pages:      pages,
		login:      login,
		notifier:   notifier,
		closeSlots: closeSlots,
		logger:     logger,
	}, nil
}

// Login exchanges an email and password for a session.
func (g *Guard) Login(ctx context.Context, email, password string) (session.Session, error) {
	return g.login.Login(ctx, service.LoginRequest{Email: email, Password: password})
}

// Logout ends the session. The authority is told on a best-effort basis, so
// Logout only fails when there was nothing to log out of.
func (g *Guard) Logout(ctx context.Context) error {
	if snap, _ := g.store.Snapshot(); snap.Credential == "" && snap.Principal.IsZero() {
		return &guard.Error{Kind: guard.KindNotAuthenticated, Op: "logout"}
	}
	g.expiry.Logout(ctx)
	return nil
}

// Status returns the current session and whether it is authenticated.
func (g *Guard) Status() (session.Session, bool) {
	return g.store.Snapshot()
}

// Send performs an authenticated request. Relative targets resolve against
// the authority base URL.
func (g *Guard) Send(ctx context.Context, method, target string, header http.Header, body []byte) (*http.Response, error) {
	return g.gateway.Send(ctx, target, service.RequestOptions{Method: method, Header: header, Body: body})
}

// SendJSON performs an authenticated JSON request and decodes a 2xx body into out.
func (g *Guard) SendJSON(ctx context.Context, method, target string, in, out any) error {
	return g.gateway.SendJSON(ctx, method, target, in, out)
}

// Verify checks the credential with the authority now.
func (g *Guard) Verify(ctx context.Context) error {
	return g.heartbeat.Verify(ctx, service.TriggerManual)
}

// Enforce applies the page guard to pagePath.
func (g *Guard) Enforce(ctx context.Context, pagePath string) bool {
	return g.pages.Enforce(ctx, pagePath)
}

// RedirectAuthenticated moves an authenticated user off the login surface.
func (g *Guard) RedirectAuthenticated(ctx context.Context, pagePath string) bool {
	return g.pages.RedirectAuthenticated(ctx, pagePath)
}

// OnVisible runs an out-of-band verification when the surface becomes visible again.
func (g *Guard) OnVisible() {
	if g.store.IsAuthenticated() {
		g.heartbeat.Trigger(service.TriggerVisible)
	}
}

// OnOnline reports restored connectivity and verifies the credential.
func (g *Guard) OnOnline(ctx context.Context) {
	g.notifier.Notify(ctx, outbound.Notification{Level: outbound.LevelSuccess, ID: service.MsgConnectionRestored})
	if g.store.IsAuthenticated() {
		g.heartbeat.Trigger(service.TriggerOnline)
	}
}

// OnOffline reports lost connectivity. The session is left untouched.
func (g *Guard) OnOffline(ctx context.Context) {
	g.notifier.Notify(ctx, outbound.Notification{Level: outbound.LevelWarning, ID: service.MsgConnectionLost})
}

// HeartbeatRunning reports whether the verification schedule is armed.
func (g *Guard) HeartbeatRunning() bool {
	return g.heartbeat.Running()
}

// Close stops the heartbeat, cancels pending redirects and releases storage.
func (g *Guard) Close() error {
	g.heartbeat.Close()
	g.expiry.Close()
	return g.closeSlots()
}

// Compile-time interface verification.
var _ inbound.SessionGuard = (*Guard)(nil)
