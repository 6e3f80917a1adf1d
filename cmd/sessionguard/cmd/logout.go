package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessionguard/internal/domain/guard"
)

var logoutYes bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	Long: `End the stored session. The authority is told on a best-effort basis; the
local session is removed even when the authority cannot be reached.

Examples:
  # Log out (interactive confirmation)
  sessionguard logout

  # Log out without prompting
  sessionguard logout --yes`,
	RunE: runLogout,
}

func init() {
	logoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	env, err := openGuard(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, ok := env.guard.Status(); !ok {
		fmt.Fprintln(os.Stderr, "No active session.")
	}

	// Confirm unless --yes.
	if !logoutYes {
		answer := prompt(env.catalog.T("logout.confirm", nil) + " [y/N] ")
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	if err := env.guard.Logout(ctx); err != nil {
		if errors.Is(err, guard.ErrNotAuthenticated) {
			return nil
		}
		return err
	}
	env.waitNavigation(ctx, env.cfg.Navigation.LogoutRedirectDelay+navigationGrace)
	return nil
}
