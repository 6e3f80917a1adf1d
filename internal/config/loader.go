package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for sessionguard.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found. ReadInConfig returns ConfigFileNotFoundError,
		// which callers handle gracefully.
		viper.SetConfigName("sessionguard")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: SESSIONGUARD_AUTHORITY_BASE_URL
	viper.SetEnvPrefix("SESSIONGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for sessionguard.yaml or .yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".sessionguard"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "sessionguard"))
		}
	} else {
		paths = append(paths, "/etc/sessionguard")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for sessionguard.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "sessionguard"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds scalar config keys for environment variable support.
// Example: SESSIONGUARD_SESSION_STORAGE_DRIVER overrides session.storage.driver
func bindNestedEnvKeys() {
	_ = viper.BindEnv("log_level")
	_ = viper.BindEnv("locale")
	_ = viper.BindEnv("dev_mode")

	_ = viper.BindEnv("authority.base_url")
	_ = viper.BindEnv("authority.timeout")

	_ = viper.BindEnv("session.scope")
	_ = viper.BindEnv("session.min_credential_length")
	_ = viper.BindEnv("session.storage.driver")
	_ = viper.BindEnv("session.storage.path")
	_ = viper.BindEnv("session.storage.redis_addr")
	_ = viper.BindEnv("session.storage.redis_db")
	_ = viper.BindEnv("session.storage.redis_prefix")
	_ = viper.BindEnv("session.storage.ttl")

	_ = viper.BindEnv("heartbeat.interval")
	_ = viper.BindEnv("heartbeat.expire_on_connection_error")

	_ = viper.BindEnv("navigation.login_target")
	_ = viper.BindEnv("navigation.home_target")
	_ = viper.BindEnv("navigation.expiry_redirect_delay")
	_ = viper.BindEnv("navigation.logout_redirect_delay")
	_ = viper.BindEnv("navigation.login_redirect_delay")
	// Note: navigation.protected_pages is an array, use the config file

	_ = viper.BindEnv("tracing.enabled")

	_ = viper.BindEnv("authority_server.addr")
	_ = viper.BindEnv("authority_server.signing_key")
	_ = viper.BindEnv("authority_server.password")
	_ = viper.BindEnv("authority_server.token_ttl")
	_ = viper.BindEnv("authority_server.login_rate")
	_ = viper.BindEnv("authority_server.login_burst")
	// Note: collections and users are arrays, use the config file
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
