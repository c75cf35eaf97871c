package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect configured roles",
		Long:  "List the roles defined in the roles file and check which paths a role may access.",
	}

	cmd.AddCommand(newRoleListCmd())
	cmd.AddCommand(newRoleCheckCmd())

	return cmd
}

// ---------- role list ----------

func newRoleListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runRoleList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	names := registry.Names()

	if jsonOutput {
		type roleRow struct {
			Name  string   `json:"name"`
			Paths []string `json:"paths"`
		}
		rows := make([]roleRow, 0, len(names))
		for _, name := range names {
			role, err := registry.Resolve(name)
			if err != nil {
				continue
			}
			rows = append(rows, roleRow{Name: role.Name, Paths: role.Paths})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Printf("%-20s %s\n", "NAME", "PATHS")
	fmt.Printf("%-20s %s\n", "----", "-----")
	for _, name := range names {
		role, err := registry.Resolve(name)
		if err != nil {
			continue
		}
		fmt.Printf("%-20s %s\n", role.Name, strings.Join(role.Paths, ", "))
	}

	return nil
}

// ---------- role check ----------

func newRoleCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <role> <path>",
		Short: "Check whether a role may access a path",
		Example: `  senechal role check read /health/current
  senechal role check read /setTest`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoleCheck(args[0], args[1])
		},
	}

	return cmd
}

func runRoleCheck(roleName, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	if _, err := registry.Resolve(roleName); err != nil {
		return fmt.Errorf("role %q is not configured", roleName)
	}

	if registry.IsAllowed(roleName, path) {
		fmt.Printf("allowed: role %q may access %s\n", roleName, path)
		return nil
	}
	fmt.Printf("denied: role %q may not access %s\n", roleName, path)
	os.Exit(1)
	return nil
}
