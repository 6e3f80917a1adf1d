package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessionguard/internal/adapter/outbound/console"
	"github.com/Sentinel-Gate/sessionguard/internal/domain/credential"
)

var statusVerify bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session",
	Long: `Show whether a session is stored and structurally valid. With --verify the
credential is also checked with the authority; a rejection logs the session out.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusVerify, "verify", false, "Check the credential with the authority")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := openGuard(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	sess, ok := env.guard.Status()
	if sess.Credential == "" {
		fmt.Fprintln(os.Stdout, "Not logged in")
		return nil
	}

	name, email := console.DisplayName(sess.Principal)
	if name == "" {
		name = env.catalog.T("presenter.default_name", nil)
	}
	fmt.Fprintf(os.Stdout, "User:        %s %s\n", name, email)
	fmt.Fprintf(os.Stdout, "Credential:  %s\n", credential.Fingerprint(sess.Credential))
	fmt.Fprintf(os.Stdout, "Valid:       %t\n", ok)
	fmt.Fprintf(os.Stdout, "Storage:     %s (scope %s)\n", env.cfg.Session.Storage.Driver, env.cfg.Session.Scope)

	if statusVerify {
		if err := env.guard.Verify(ctx); err != nil {
			fmt.Fprintf(os.Stdout, "Verified:    false (%v)\n", err)
			env.waitNavigation(ctx, env.cfg.Navigation.ExpiryRedirectDelay+navigationGrace)
			return nil
		}
		fmt.Fprintln(os.Stdout, "Verified:    true")
	}
	return nil
}
