package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// NewLoginCmd creates the login command
func NewLoginCmd(g *Globals) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a SalesDesk server",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password, err := credentials(username, password)
			if err != nil {
				return err
			}

			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), d, username, password)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email (or set SALESDESK_USERNAME)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SALESDESK_PASSWORD, will prompt if not provided)")

	return cmd
}

// credentials fills in missing credentials from the environment, then from
// the terminal when one is attached
func credentials(username, password string) (string, string, error) {
	// Check for environment variables (useful for CI/CD)
	if username == "" {
		username = os.Getenv("SALESDESK_USERNAME")
	}
	if password == "" {
		password = os.Getenv("SALESDESK_PASSWORD")
	}

	if username != "" && password != "" {
		return username, password, nil
	}

	if !stdinIsTerminal() {
		return "", "", fmt.Errorf("username and password are required in non-interactive mode (use --username/--password or SALESDESK_USERNAME/SALESDESK_PASSWORD)")
	}

	if username == "" {
		prompt := promptui.Prompt{Label: "Username"}
		value, err := prompt.Run()
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(value)
	}

	if password == "" {
		value, err := readSecret("Password")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = value
	}

	return username, password, nil
}

func runLogin(ctx context.Context, d *deps, username, password string) error {
	d.printf("Logging in to %s (%s)...\n", d.server.Alias, d.server.URL)

	if err := d.session.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	state := d.session.State()
	d.printf("✓ Login successful!\n")
	d.printf("  User: %s (%s)\n", state.UserName, state.UserEmail)
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
