package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

var (
	requestData    string
	requestHeaders []string
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD TARGET",
	Short: "Send an authenticated request to the authority",
	Long: `Send a request carrying the stored credential. TARGET is resolved against
authority.base_url unless it is an absolute URL. The response body is
written to stdout. A 401 logs the session out.

Examples:
  sessionguard request GET /services
  sessionguard request POST /services --data '{"name":"Hosting","price":10}'
  sessionguard request DELETE /services/4b7c0d1e-...`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().StringVarP(&requestData, "data", "d", "", "request body; Content-Type defaults to application/json")
	requestCmd.Flags().StringArrayVarP(&requestHeaders, "header", "H", nil, "extra header as 'Name: value' (repeatable)")
	rootCmd.AddCommand(requestCmd)
}

func runRequest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	header, err := parseHeaders(requestHeaders)
	if err != nil {
		return err
	}

	env, err := openGuard(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var body []byte
	if requestData != "" {
		body = []byte(requestData)
	}

	resp, err := env.guard.Send(ctx, strings.ToUpper(args[0]), args[1], header, body)
	if err != nil {
		env.waitNavigation(ctx, env.cfg.Navigation.ExpiryRedirectDelay+navigationGrace)
		return err
	}
	defer resp.Body.Close()

	fmt.Fprintln(os.Stderr, resp.Status)
	if _, err := io.Copy(os.Stdout, resp.Body); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return nil
}

// parseHeaders turns "Name: value" pairs into an http.Header.
func parseHeaders(pairs []string) (http.Header, error) {
	header := make(http.Header)
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", p)
		}
		header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return header, nil
}
