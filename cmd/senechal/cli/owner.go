package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/senechal-app/senechal/internal/service"
)

func newOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage the owner account",
		Long:  "Set the owner password used to log in to the credential lifecycle API.",
	}

	cmd.AddCommand(newOwnerSetPasswordCmd())
	cmd.AddCommand(newOwnerHashPasswordCmd())

	return cmd
}

// ---------- owner set-password ----------

func newOwnerSetPasswordCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Set the owner password in the configuration file",
		Long:  "Prompt for a password, hash it with bcrypt, and store the hash in the configuration file. The plaintext is never written to disk.",
		Example: `  senechal owner set-password
  senechal owner set-password --password secret  # for scripting; prefer the prompt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOwnerSetPassword(password)
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Owner password (prompted if omitted)")

	return cmd
}

func runOwnerSetPassword(password string) error {
	if password == "" {
		var err error
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := service.HashOwnerPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	path := resolveConfigPath()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Auth.OwnerPasswordHash = hash

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Owner password set in %s\n", path)
	return nil
}

// ---------- owner hash-password ----------

func newOwnerHashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password",
		Long:  "Prompt for a password and print its bcrypt hash, for pasting into auth.owner_password_hash when the config file is managed elsewhere.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOwnerHashPassword()
		},
	}

	return cmd
}

func runOwnerHashPassword() error {
	password, err := promptPassword()
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := service.HashOwnerPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	fmt.Println(hash)
	return nil
}

// promptPassword reads a password twice from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Print("Password: ")
	pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	fmt.Println()

	if string(pwBytes) != string(confirmBytes) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(pwBytes), nil
}
