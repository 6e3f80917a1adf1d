package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/inbound/authority"
	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/memory"
	"github.com/Sentinel-Gate/sessionguard/internal/config"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/directory"
)

var authorityAddr string

var authorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Run a development credential authority",
	Long: `Run an in-memory authority that issues, verifies and revokes HS256 tokens
and serves protected opaque collections. Intended for local development and
demos; every restart forgets issued tokens and stored records.

Endpoints:
  POST /auth/login, /auth/verify, /auth/logout
  GET  /health, /metrics
  GET|POST /{collection}, GET|PUT|DELETE /{collection}/{id}

Examples:
  # Dev mode uses a built-in signing key
  sessionguard authority --dev

  sessionguard authority --addr 127.0.0.1:5001`,
	RunE: runAuthority,
}

func init() {
	authorityCmd.Flags().StringVar(&authorityAddr, "addr", "", "listen address (default: authority_server.addr)")
	rootCmd.AddCommand(authorityCmd)
}

func runAuthority(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateAuthorityServer(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if authorityAddr != "" {
		cfg.AuthorityServer.Addr = authorityAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	logger := newLogger(cfg)
	if cfg.AuthorityServer.SigningKey == config.DevSigningKey {
		logger.Warn("using the built-in development signing key")
	}

	users := memory.NewUserStore()
	seed := make([]directory.User, 0, len(cfg.AuthorityServer.Users))
	for _, u := range cfg.AuthorityServer.Users {
		seed = append(seed, directory.User{ID: u.ID, Username: u.Username, Email: u.Email})
	}
	if err := authority.SeedUsers(ctx, users, seed, cfg.AuthorityServer.Password); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	srv, err := authority.NewServer(authority.Config{
		SigningKey:  []byte(cfg.AuthorityServer.SigningKey),
		TokenTTL:    cfg.AuthorityServer.TokenTTL,
		LoginRate:   cfg.AuthorityServer.LoginRate,
		LoginBurst:  cfg.AuthorityServer.LoginBurst,
		Collections: cfg.AuthorityServer.Collections,
		Version:     Version,
	}, users, memory.NewCollectionStore(), logger)
	if err != nil {
		return err
	}
	srv.Start(ctx)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.AuthorityServer.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authority listening", "addr", cfg.AuthorityServer.Addr, "users", len(seed))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("authority server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintln(os.Stderr, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
