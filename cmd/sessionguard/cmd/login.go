package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Exchange an email and password for a session with the authority.

Missing values are prompted for. The session is written to the configured
storage driver so later commands reuse it.

Examples:
  sessionguard login --email admin@example.com
  SESSIONGUARD_SESSION_STORAGE_DRIVER=file sessionguard login --email admin@example.com --password adminpass`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prompted when empty)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	env, err := openGuard(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	email, password := loginEmail, loginPassword
	if email == "" {
		email = prompt("Email: ")
	}
	if password == "" {
		password = prompt("Password: ")
	}

	sess, err := env.guard.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Logged in (session %s)\n", sess.Tag)

	// Let the scheduled move to the home surface show before exiting.
	env.waitNavigation(ctx, env.cfg.Navigation.LoginRedirectDelay+navigationGrace)
	return nil
}
