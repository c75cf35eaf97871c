package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/health"
	"github.com/senechal-app/senechal/internal/server"
	"github.com/senechal-app/senechal/internal/service"
)

const banner = `
 ___ ___ _  _ ___ ___ _  _   _   _
/ __| __| \| | __/ __| || | /_\ | |
\__ \ _|| .  | _| (__| __ |/ _ \| |__
|___/___|_|\_|___\___|_||_/_/ \_\____|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Senechal API gateway",
		Long:  "Start the HTTP server that fronts the personal data API with key-based authorization.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host == "" {
		host = cfg.Server.Host
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	logger := newLogger(cfg.Logging, dev)

	// 1. Credential store (SQLite)
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("init credential store: %w", err)
	}
	defer store.Close()
	logger.Info("credential store initialized", "path", resolveDataDir())

	// 2. Role registry from the roles file
	registry, err := loadRegistry(cfg)
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	logger.Info("role registry loaded", "path", cfg.Auth.RolesPath, "roles", len(registry.Names()))

	// 3. Permanent keys (optional)
	permanent := map[string]string{}
	if cfg.Auth.KeysPath != "" {
		permanent, err = config.LoadKeysFile(cfg.Auth.KeysPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("keys file not found, no permanent keys loaded", "path", cfg.Auth.KeysPath)
				permanent = map[string]string{}
			} else {
				return fmt.Errorf("load keys: %w", err)
			}
		} else {
			logger.Info("permanent keys loaded", "path", cfg.Auth.KeysPath, "keys", len(permanent))
		}
	}

	// 4. Authorization services
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "senechal-dev-secret-change-me"
		logger.Warn("auth.jwt_secret is empty, using an insecure development default")
	}
	hashKey := cfg.Auth.SecretHashKey
	if hashKey == "" {
		logger.Warn("auth.secret_hash_key is empty; set it to a stable random value so issued credentials survive restarts")
	}
	if cfg.Auth.OwnerPasswordHash == "" {
		logger.Warn("no owner password configured - run: senechal owner set-password")
	}

	hasher := service.NewSecretHasher(hashKey)
	clock := service.SystemClock{}
	authSvc := service.NewAuthService(store, registry, permanent, hasher, clock, jwtSecret)
	lifecycle := service.NewLifecycleService(store, registry, hasher, clock,
		parseDuration(cfg.Auth.MaxKeyDuration, 720*time.Hour))

	// 5. Background purge of expired credentials
	purger := service.NewPurger(lifecycle,
		parseDuration(cfg.Credentials.PurgeInterval, time.Hour),
		parseDuration(cfg.Credentials.PurgeGrace, 24*time.Hour),
		logger)

	// 6. Health measurement source (optional, read-only)
	var healthSrc *health.Source
	if cfg.Health.DBPath != "" {
		healthSrc, err = health.Open(cfg.Health.DBPath)
		if err != nil {
			logger.Warn("health database unavailable, /health routes disabled", "path", cfg.Health.DBPath, "error", err)
			healthSrc = nil
		} else {
			defer healthSrc.Close()
			logger.Info("health database opened", "path", cfg.Health.DBPath)
		}
	}

	// 7. Build and start HTTP server
	srvCfg := server.Config{
		Host:                   host,
		Port:                   port,
		ShutdownTimeout:        parseDuration(cfg.Server.ShutdownTimeout, 30*time.Second),
		CORSOrigins:            cfg.Server.CORS.Origins,
		Version:                versionString(),
		APIKeyHeader:           cfg.Auth.APIKeyHeader,
		OwnerPasswordHash:      cfg.Auth.OwnerPasswordHash,
		SessionTTL:             parseDuration(cfg.Auth.JWTExpiry, 12*time.Hour),
		RolesPath:              cfg.Auth.RolesPath,
		DataDir:                resolveDataDir(),
		RequestsPerMinute:      cfg.RateLimit.RequestsPerMinute,
		OwnerRequestsPerMinute: cfg.RateLimit.OwnerRequestsPerMinute,
	}

	srv := server.New(srvCfg, store, authSvc, lifecycle, registry, healthSrc, purger, logger)

	fmt.Printf("→ Senechal %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}

// newLogger builds the process logger from the logging config. Dev mode
// forces debug level.
func newLogger(cfg config.LoggingConfig, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
