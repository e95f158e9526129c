package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/salesdesk-dev/salesdesk/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "init <api-url>",
		Short: "Add a SalesDesk server to ./salesdesk.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			currentDir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current directory: %w", err)
			}
			return runInit(cmd.OutOrStdout(), currentDir, args[0], alias)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Alias for the server (default production, then server-N)")

	return cmd
}

func runInit(out io.Writer, dir, apiURL, alias string) error {
	configPath := filepath.Join(dir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	if _, err := cfg.GetServerByURL(apiURL); err == nil {
		fmt.Fprintf(out, "Server %s already exists in %s\n", apiURL, config.ConfigFileName)
		return nil
	}

	if alias == "" {
		if len(cfg.Servers) == 0 {
			alias = "production"
		} else {
			alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}
	}
	if _, err := cfg.GetServerByAlias(alias); err == nil {
		return fmt.Errorf("alias '%s' is already used in %s", alias, config.ConfigFileName)
	}

	server := config.Server{URL: apiURL, Alias: alias}
	if err := server.Validate(); err != nil {
		return err
	}
	cfg.Servers = append(cfg.Servers, server)

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, apiURL, alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", apiURL, alias, config.ConfigFileName)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'salesdesk login' to sign in")
	fmt.Fprintln(out, "  2. Run 'salesdesk vehicles ls' to check the connection")

	return nil
}
