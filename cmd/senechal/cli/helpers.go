package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/roles"
	"github.com/senechal-app/senechal/internal/service"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// SENECHAL_DATA_DIR env var, or ~/.senechal as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("SENECHAL_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.senechal"
}

// resolveConfigPath returns the configuration file path: the --config flag,
// the file viper found, or ./senechal.yaml.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return "senechal.yaml"
}

// loadConfig reads the YAML configuration, falling back to defaults when no
// file exists.
func loadConfig() (*config.YAMLConfig, error) {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && cfgFile == "" {
			return config.DefaultYAMLConfig(), nil
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return config.LoadYAMLConfig(path)
}

// openStore opens the SQLite credential store under the resolved data dir.
func openStore() (*config.Store, error) {
	return config.NewStore(resolveDataDir())
}

// loadRegistry builds a role registry from the configured roles file.
func loadRegistry(cfg *config.YAMLConfig) (*roles.Registry, error) {
	mapping, err := config.LoadRolesFile(cfg.Auth.RolesPath)
	if err != nil {
		return nil, err
	}
	registry, err := roles.NewRegistry(mapping)
	if err != nil {
		return nil, fmt.Errorf("invalid roles file %s: %w", cfg.Auth.RolesPath, err)
	}
	return registry, nil
}

// newLifecycle assembles a lifecycle service for the key subcommands. The
// returned store must be closed by the caller.
func newLifecycle(cfg *config.YAMLConfig) (*service.LifecycleService, *config.Store, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open credential store: %w", err)
	}

	registry, err := loadRegistry(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	hasher := service.NewSecretHasher(cfg.Auth.SecretHashKey)
	maxDuration := parseDuration(cfg.Auth.MaxKeyDuration, 720*time.Hour)

	lifecycle := service.NewLifecycleService(store, registry, hasher, service.SystemClock{}, maxDuration)
	return lifecycle, store, nil
}

// parseDuration parses a duration string, returning fallback when the value
// is empty or malformed.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
