// Package config provides configuration types for sessionguard.
//
// One file configures both the guard (authority URL, session storage,
// heartbeat, navigation targets) and the development authority server.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers accepted in session.storage.driver.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// DevSigningKey is the signing key used by the development authority when
// dev_mode is on and no key is configured.
const DevSigningKey = "sessionguard-dev-signing-key"

// Config is the top-level configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// Locale selects the notification language.
	Locale string `yaml:"locale" mapstructure:"locale" validate:"oneof=en es"`

	// Authority is the remote service that issues and verifies credentials.
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`

	// Session configures the session store and its durable slots.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Heartbeat configures periodic credential verification.
	Heartbeat HeartbeatConfig `yaml:"heartbeat" mapstructure:"heartbeat"`

	// Navigation configures page targets and redirect delays.
	Navigation NavigationConfig `yaml:"navigation" mapstructure:"navigation"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// AuthorityServer configures the development authority (`sessionguard authority`).
	AuthorityServer AuthorityServerConfig `yaml:"authority_server" mapstructure:"authority_server"`

	// DevMode enables development defaults (verbose logging, built-in signing key).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// AuthorityConfig points the guard at its authority.
type AuthorityConfig struct {
	// BaseURL is the authority's base URL. Relative request targets resolve against it.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`
	// Timeout bounds every authority request. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
}

// SessionConfig configures the session store.
type SessionConfig struct {
	// Scope names the session inside a shared durable backend.
	Scope string `yaml:"scope" mapstructure:"scope" validate:"required"`
	// MinCredentialLength is the shortest structurally valid credential.
	MinCredentialLength int `yaml:"min_credential_length" mapstructure:"min_credential_length" validate:"gte=1"`
	// Storage selects and configures the durable slot driver.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// StorageConfig configures the durable slot driver.
type StorageConfig struct {
	// Driver is memory, file, redis or sqlite.
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,storage_driver"`
	// Path is the file or database path for the file and sqlite drivers.
	// Defaults to ~/.sessionguard/session.json or session.db.
	Path string `yaml:"path" mapstructure:"path"`
	// RedisAddr is the host:port of the redis server.
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	// RedisDB selects the redis logical database.
	RedisDB int `yaml:"redis_db" mapstructure:"redis_db" validate:"gte=0"`
	// RedisPrefix prefixes every redis key.
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	// TTL expires redis slots. Zero keeps them until cleared.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// HeartbeatConfig configures credential verification.
type HeartbeatConfig struct {
	// Interval between verifications. Default: 5m.
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gt=0"`
	// ExpireOnConnectionError treats an unreachable authority as a lost session.
	// Default: true.
	ExpireOnConnectionError bool `yaml:"expire_on_connection_error" mapstructure:"expire_on_connection_error"`
}

// NavigationConfig configures pages and redirect delays.
type NavigationConfig struct {
	LoginTarget    string   `yaml:"login_target" mapstructure:"login_target" validate:"required"`
	HomeTarget     string   `yaml:"home_target" mapstructure:"home_target" validate:"required"`
	ProtectedPages []string `yaml:"protected_pages" mapstructure:"protected_pages" validate:"dive,required"`

	ExpiryRedirectDelay time.Duration `yaml:"expiry_redirect_delay" mapstructure:"expiry_redirect_delay" validate:"gte=0"`
	LogoutRedirectDelay time.Duration `yaml:"logout_redirect_delay" mapstructure:"logout_redirect_delay" validate:"gte=0"`
	LoginRedirectDelay  time.Duration `yaml:"login_redirect_delay" mapstructure:"login_redirect_delay" validate:"gte=0"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled writes spans to stderr as JSON.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// AuthorityServerConfig configures the development authority.
type AuthorityServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" validate:"hostname_port"`
	// SigningKey signs issued tokens. Required unless dev_mode is on.
	SigningKey string `yaml:"signing_key" mapstructure:"signing_key"`
	// Password is the login password of every seeded user, hashed with argon2id at startup.
	Password string        `yaml:"password" mapstructure:"password" validate:"required"`
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl" validate:"gt=0"`
	// LoginRate is the sustained login attempts per second per client.
	LoginRate   float64      `yaml:"login_rate" mapstructure:"login_rate" validate:"gt=0"`
	LoginBurst  int          `yaml:"login_burst" mapstructure:"login_burst" validate:"gt=0"`
	Collections []string     `yaml:"collections" mapstructure:"collections" validate:"dive,required"`
	Users       []UserConfig `yaml:"users" mapstructure:"users" validate:"dive"`
}

// UserConfig is a user seeded into the development authority.
type UserConfig struct {
	ID       int    `yaml:"id" mapstructure:"id" validate:"gt=0"`
	Username string `yaml:"username" mapstructure:"username" validate:"required"`
	Email    string `yaml:"email" mapstructure:"email" validate:"required,email"`
}

// SetDevDefaults applies permissive defaults for development mode.
// These defaults are applied BEFORE validation.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.AuthorityServer.SigningKey == "" {
		c.AuthorityServer.SigningKey = DevSigningKey
	}
	if !viper.IsSet("log_level") {
		c.LogLevel = "debug"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}

	// Authority defaults: the development authority on localhost.
	if c.Authority.BaseURL == "" {
		c.Authority.BaseURL = "http://127.0.0.1:5001"
	}
	if c.Authority.Timeout == 0 {
		c.Authority.Timeout = 10 * time.Second
	}

	// Session defaults
	if c.Session.Scope == "" {
		c.Session.Scope = "default"
	}
	if c.Session.MinCredentialLength == 0 {
		c.Session.MinCredentialLength = 11
	}
	if c.Session.Storage.Driver == "" {
		c.Session.Storage.Driver = DriverMemory
	}
	if c.Session.Storage.Path == "" {
		c.Session.Storage.Path = defaultStoragePath(c.Session.Storage.Driver)
	}
	if c.Session.Storage.RedisAddr == "" {
		c.Session.Storage.RedisAddr = "127.0.0.1:6379"
	}
	if c.Session.Storage.RedisPrefix == "" {
		c.Session.Storage.RedisPrefix = "sessionguard"
	}

	// Heartbeat defaults. Only apply the connection-error default when the
	// user hasn't explicitly set it in YAML/env.
	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = 5 * time.Minute
	}
	if !viper.IsSet("heartbeat.expire_on_connection_error") {
		c.Heartbeat.ExpireOnConnectionError = true
	}

	// Navigation defaults
	if c.Navigation.LoginTarget == "" {
		c.Navigation.LoginTarget = "login.html"
	}
	if c.Navigation.HomeTarget == "" {
		c.Navigation.HomeTarget = "admin.html"
	}
	if len(c.Navigation.ProtectedPages) == 0 {
		c.Navigation.ProtectedPages = []string{"admin.html", "users.html"}
	}
	if !viper.IsSet("navigation.expiry_redirect_delay") && c.Navigation.ExpiryRedirectDelay == 0 {
		c.Navigation.ExpiryRedirectDelay = 2 * time.Second
	}
	if !viper.IsSet("navigation.logout_redirect_delay") && c.Navigation.LogoutRedirectDelay == 0 {
		c.Navigation.LogoutRedirectDelay = time.Second
	}
	if !viper.IsSet("navigation.login_redirect_delay") && c.Navigation.LoginRedirectDelay == 0 {
		c.Navigation.LoginRedirectDelay = 1500 * time.Millisecond
	}

	// Development authority defaults: bind to localhost only.
	if c.AuthorityServer.Addr == "" {
		c.AuthorityServer.Addr = "127.0.0.1:5001"
	}
	if c.AuthorityServer.Password == "" {
		c.AuthorityServer.Password = "adminpass"
	}
	if c.AuthorityServer.TokenTTL == 0 {
		c.AuthorityServer.TokenTTL = time.Hour
	}
	if c.AuthorityServer.LoginRate == 0 {
		c.AuthorityServer.LoginRate = 1
	}
	if c.AuthorityServer.LoginBurst == 0 {
		c.AuthorityServer.LoginBurst = 5
	}
	if len(c.AuthorityServer.Collections) == 0 {
		c.AuthorityServer.Collections = []string{"services", "users"}
	}
	if len(c.AuthorityServer.Users) == 0 {
		c.AuthorityServer.Users = []UserConfig{
			{ID: 1, Username: "admin", Email: "admin@example.com"},
		}
	}
}

// defaultStoragePath returns ~/.sessionguard/session.{json,db} for drivers
// that need a path, and "" otherwise.
func defaultStoragePath(driver string) string {
	var name string
	switch driver {
	case DriverFile:
		name = "session.json"
	case DriverSQLite:
		name = "session.db"
	default:
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".sessionguard", name)
}
