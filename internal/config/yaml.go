package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level senechal configuration file.
type YAMLConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Credentials CredentialsConfig `yaml:"credentials"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Health      HealthConfig      `yaml:"health"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// AuthConfig controls authentication settings. SecretHashKey is the
// server-held key for the keyed hash of temporary credential secrets;
// OwnerPasswordHash is the bcrypt hash of the owner password used for the
// lifecycle-management session login.
type AuthConfig struct {
	APIKeyHeader      string `yaml:"api_key_header"`
	JWTSecret         string `yaml:"jwt_secret"`
	JWTExpiry         string `yaml:"jwt_expiry"`
	OwnerPasswordHash string `yaml:"owner_password_hash"`
	SecretHashKey     string `yaml:"secret_hash_key"`
	MaxKeyDuration    string `yaml:"max_key_duration"`
	RolesPath         string `yaml:"roles_path"`
	KeysPath          string `yaml:"keys_path"`
}

// CredentialsConfig controls the background purge of expired credentials.
type CredentialsConfig struct {
	PurgeInterval string `yaml:"purge_interval"`
	PurgeGrace    string `yaml:"purge_grace"`
}

// RateLimitConfig controls request rate limiting. Owner lifecycle endpoints
// get a separate, lower ceiling than general API traffic.
type RateLimitConfig struct {
	RequestsPerMinute      int `yaml:"requests_per_minute"`
	OwnerRequestsPerMinute int `yaml:"owner_requests_per_minute"`
}

// HealthConfig points at the read-only health measurement database.
type HealthConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	var cfg YAMLConfig
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			APIKeyHeader:   "X-API-Key",
			JWTExpiry:      "12h",
			MaxKeyDuration: "720h",
			RolesPath:      "roles.yaml",
			KeysPath:       "keys.yaml",
		},
		Credentials: CredentialsConfig{
			PurgeInterval: "1h",
			PurgeGrace:    "24h",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute:      120,
			OwnerRequestsPerMinute: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// rolesFile is the on-disk shape of the role configuration:
//
//	roles:
//	  read:
//	    access:
//	      - /getTest
//	      - /health
type rolesFile struct {
	Roles map[string]struct {
		Access []string `yaml:"access"`
	} `yaml:"roles"`
}

// LoadRolesFile reads the role → path-pattern mapping from a YAML file.
func LoadRolesFile(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}

	var f rolesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("roles file %s defines no roles", path)
	}

	roles := make(map[string][]string, len(f.Roles))
	for name, r := range f.Roles {
		roles[name] = r.Access
	}
	return roles, nil
}

// keysFile is the on-disk shape of the permanent key configuration:
//
//	api_keys:
//	  "<secret>": read
type keysFile struct {
	APIKeys map[string]string `yaml:"api_keys"`
}

// LoadKeysFile reads the permanent secret → role mapping from a YAML file.
// Permanent keys are immutable at runtime and not revocable through the
// credential store.
func LoadKeysFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var f keysFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	keys := make(map[string]string, len(f.APIKeys))
	for secret, role := range f.APIKeys {
		keys[secret] = role
	}
	return keys, nil
}
