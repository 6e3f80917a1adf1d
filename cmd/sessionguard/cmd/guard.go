package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var guardMetricsAddr string

var guardCmd = &cobra.Command{
	Use:   "guard PAGE",
	Short: "Hold a page open under the session guard",
	Long: `Apply the page guard to PAGE and keep the heartbeat running until the guard
navigates away (session expired, logged out, access denied) or the command
is interrupted.

On Unix, SIGCONT re-verifies as if the page became visible again and
SIGUSR1 reports restored connectivity; SIGUSR2 reports lost connectivity.

Examples:
  sessionguard guard admin.html
  sessionguard guard admin.html --metrics-addr 127.0.0.1:9464`,
	Args: cobra.ExactArgs(1),
	RunE: runGuard,
}

func init() {
	guardCmd.Flags().StringVar(&guardMetricsAddr, "metrics-addr", "", "serve guard metrics on this address (disabled when empty)")
	rootCmd.AddCommand(guardCmd)
}

func runGuard(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	env, err := openGuard(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	page := args[0]
	if env.guard.RedirectAuthenticated(ctx, page) {
		target, _ := env.waitNavigation(ctx, env.cfg.Navigation.LoginRedirectDelay+navigationGrace)
		fmt.Fprintf(os.Stdout, "already signed in, moved to %s\n", target)
		return nil
	}
	if !env.guard.Enforce(ctx, page) {
		env.waitNavigation(ctx, env.cfg.Navigation.ExpiryRedirectDelay+navigationGrace)
		return errors.New("access denied")
	}

	if guardMetricsAddr != "" {
		srv, err := serveMetrics(env, guardMetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	events := make(chan os.Signal, 4)
	notifyConnectivity(events)
	defer signal.Stop(events)

	env.logger.Info("guarding page", "page", page, "heartbeat_interval", env.cfg.Heartbeat.Interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case target := <-env.navigator.Targets():
			env.logger.Info("left guarded page", "target", target)
			return nil
		case sig := <-events:
			switch connectivityEvent(sig) {
			case eventVisible:
				env.guard.OnVisible()
			case eventOnline:
				env.guard.OnOnline(ctx)
			case eventOffline:
				env.guard.OnOffline(ctx)
			}
		}
	}
}

// serveMetrics exposes the guard registry on addr.
func serveMetrics(env *guardEnv, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(env.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.logger.Error("metrics server failed", "error", err)
		}
	}()
	env.logger.Info("serving guard metrics", "addr", ln.Addr().String())
	return srv, nil
}
