package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage temporary API keys",
		Long:    "Create, list, and revoke the temporary API keys used to authenticate against the Senechal API.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyGetCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		role     string
		duration time.Duration
		note     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new temporary API key",
		Long:  "Generate a new temporary API key bound to a role. The raw key is shown once and cannot be retrieved again.",
		Example: `  senechal key create --role read --duration 24h --note "guest access"
  senechal key create --role write --duration 168h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(role, duration, note)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role to bind the key to (required)")
	cmd.Flags().DurationVar(&duration, "duration", 24*time.Hour, "Lifetime of the key")
	cmd.Flags().StringVar(&note, "note", "", "Human-readable note for the key")
	cmd.MarkFlagRequired("role")

	return cmd
}

func runKeyCreate(role string, duration time.Duration, note string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lifecycle, store, err := newLifecycle(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	issued, err := lifecycle.Create(context.Background(), role, duration, note)
	if err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	fmt.Println("API key created:")
	fmt.Println()
	fmt.Printf("  Key:     %s\n", issued.RawSecret)
	fmt.Printf("  Key ID:  %s\n", issued.KeyID)
	fmt.Printf("  Role:    %s\n", issued.Role)
	fmt.Printf("  Expires: %s\n", issued.ExpiresAt.Format(time.RFC3339))
	if note != "" {
		fmt.Printf("  Note:    %s\n", note)
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all temporary API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lifecycle, store, err := newLifecycle(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metas, err := lifecycle.List(context.Background())
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(metas)
	}

	if len(metas) == 0 {
		fmt.Println("No temporary keys. Use 'senechal key create' to create one.")
		return nil
	}

	fmt.Printf("%-24s %-12s %-8s %-22s %s\n", "KEY ID", "ROLE", "ACTIVE", "EXPIRES", "NOTE")
	fmt.Printf("%-24s %-12s %-8s %-22s %s\n", "------", "----", "------", "-------", "----")
	for _, m := range metas {
		active := "yes"
		if !m.Active {
			active = "no"
		}
		fmt.Printf("%-24s %-12s %-8s %-22s %s\n",
			m.KeyID, m.Role, active, m.ExpiresAt.Format("2006-01-02 15:04 MST"), m.Note)
	}

	return nil
}

// ---------- key get ----------

func newKeyGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key-id>",
		Short: "Show metadata for a single key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyGet(args[0])
		},
	}

	return cmd
}

func runKeyGet(keyID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lifecycle, store, err := newLifecycle(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	meta, err := lifecycle.Get(context.Background(), keyID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("no key with ID %q", keyID)
		}
		return fmt.Errorf("get key: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke a temporary API key",
		Long:  "Revoke a key, immediately rejecting any further requests authenticated with it. Revoking twice is harmless.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(keyID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lifecycle, store, err := newLifecycle(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := lifecycle.Revoke(context.Background(), keyID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("no key with ID %q", keyID)
		}
		return fmt.Errorf("revoke key: %w", err)
	}

	switch res.Status {
	case service.StatusAlreadyRevoked:
		fmt.Printf("Key %s was already revoked at %s\n", res.KeyID, res.RevokedAt.Format(time.RFC3339))
	default:
		fmt.Printf("Revoked key %s\n", res.KeyID)
	}
	return nil
}
