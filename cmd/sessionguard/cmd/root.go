// Package cmd provides the CLI commands for sessionguard.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/sessionguard/internal/config"
)

var (
	cfgFile string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:   "sessionguard",
	Short: "sessionguard - bearer session guard for admin surfaces",
	Long: `sessionguard keeps one authenticated session per scope: it persists the
bearer credential, verifies it with the authority on a schedule, attaches it
to protected requests and logs the user out exactly once when it stops being
accepted.

Quick start:
  1. Run a development authority: sessionguard authority --dev
  2. Log in:                       sessionguard login --email admin@example.com
  3. Call a protected endpoint:    sessionguard request GET /services

Configuration:
  Config is loaded from sessionguard.yaml in the current directory,
  $HOME/.sessionguard/, or /etc/sessionguard/.

  Environment variables can override config values with the SESSIONGUARD_ prefix.
  Example: SESSIONGUARD_SESSION_STORAGE_DRIVER=file

  The memory storage driver forgets the session when the command exits; use
  file, sqlite or redis to keep it between commands.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sessionguard.yaml)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, built-in signing key)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
