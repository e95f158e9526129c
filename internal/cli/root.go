package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/salesdesk-dev/salesdesk/internal/cli/commands"
	"github.com/salesdesk-dev/salesdesk/internal/config"
	"github.com/salesdesk-dev/salesdesk/internal/logger"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	g := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "salesdesk",
		Short: "SalesDesk - vehicle sales and referral network admin",
		Long: `SalesDesk CLI - Manage vehicles, sales and your agent network.

Sign in once with 'salesdesk login'; expired sessions are refreshed
automatically while the refresh token is valid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			level := cfg.Logging.Level
			if g.Verbose {
				level = "debug"
			}
			logger.InitWithWriter(cmd.ErrOrStderr(), level, cfg.Logging.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.ServerAlias, "server", "s", "", "Server alias from salesdesk.json")
	rootCmd.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "v", false, "Log API requests to stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "salesdesk version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(g))
	rootCmd.AddCommand(commands.NewSignupCmd(g))
	rootCmd.AddCommand(commands.NewLogoutCmd(g))
	rootCmd.AddCommand(commands.NewWhoamiCmd(g))
	rootCmd.AddCommand(commands.NewVehiclesCmd(g))
	rootCmd.AddCommand(commands.NewSalesCmd(g))
	rootCmd.AddCommand(commands.NewAgentsCmd(g))
	rootCmd.AddCommand(commands.NewTreeCmd(g))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
