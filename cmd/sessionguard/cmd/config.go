package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sentinel-Gate/sessionguard/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, environment overrides and flags are
applied. The authority signing key and password are masked.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	shown := *cfg
	shown.AuthorityServer.SigningKey = mask(shown.AuthorityServer.SigningKey)
	shown.AuthorityServer.Password = mask(shown.AuthorityServer.Password)

	if used := config.ConfigFileUsed(); used != "" {
		fmt.Fprintf(os.Stderr, "# loaded from %s\n", used)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&shown)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
