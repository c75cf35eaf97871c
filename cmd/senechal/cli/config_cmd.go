package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Senechal configuration",
		Long:  "Initialize default configuration files or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create default configuration files",
		Long:  "Write senechal.yaml, roles.yaml, and keys.yaml with commented defaults into the current directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config files")

	return cmd
}

const defaultConfigYAML = `# Senechal Configuration

server:
  host: 0.0.0.0
  port: 8080
  shutdown_timeout: 30s
  cors:
    origins:
      - "*"

# Authentication
auth:
  api_key_header: X-API-Key
  jwt_secret: ""            # Set via SENECHAL_AUTH_JWT_SECRET or ${VAR} expansion
  jwt_expiry: 12h           # Owner session lifetime
  owner_password_hash: ""   # Set with 'senechal owner set-password'
  secret_hash_key: ""       # Stable random value; issued keys stop validating if it changes
  max_key_duration: 720h    # Longest lifetime a temporary key may be given
  roles_path: roles.yaml
  keys_path: keys.yaml

# Temporary credential cleanup
credentials:
  purge_interval: 1h
  purge_grace: 24h

# Rate limiting (fixed window, per API key)
rate_limit:
  requests_per_minute: 120
  owner_requests_per_minute: 20

# Read-only health measurement database (leave empty to disable /health routes)
health:
  db_path: ""

# Logging
logging:
  level: info    # debug, info, warn, error
  format: text   # text or json
`

const defaultRolesYAML = `# Role -> path access mapping. A role may request a path when the path
# equals a listed pattern or lives under it as a prefix segment.
roles:
  read:
    access:
      - /getTest
      - /health
  write:
    access:
      - /getTest
      - /setTest
      - /health
`

const defaultKeysYAML = `# Permanent API keys: secret -> role. These never expire and cannot be
# revoked at runtime; prefer 'senechal key create' for anything short-lived.
api_keys: {}
  # "some-long-random-secret": read
`

func runConfigInit(force bool) error {
	files := []struct {
		path    string
		content string
	}{
		{"senechal.yaml", defaultConfigYAML},
		{"roles.yaml", defaultRolesYAML},
		{"keys.yaml", defaultKeysYAML},
	}

	for _, f := range files {
		if !force {
			if _, err := os.Stat(f.path); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", f.path)
			}
		}
		if err := os.WriteFile(f.path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Printf("Created %s\n", f.path)
	}

	fmt.Println("Run 'senechal owner set-password', then 'senechal serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigShow() error {
	// Ensure config is loaded
	initConfig()

	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		fmt.Printf("Config file: %s\n", configFile)
	} else {
		fmt.Println("Config file: (none found, using defaults)")
	}
	fmt.Println()

	// Print all settings
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Println("No configuration settings loaded.")
		fmt.Println("Run 'senechal config init' to create default configuration files.")
		return nil
	}

	for key, value := range settings {
		fmt.Printf("  %s: %v\n", key, value)
	}

	return nil
}
