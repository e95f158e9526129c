package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
)

// NewSignupCmd creates the signup command
func NewSignupCmd(g *Globals) *cobra.Command {
	var req client.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := signupPassword(req.Password)
			if err != nil {
				return err
			}
			req.Password = password

			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runSignup(cmd.Context(), d, req)
		},
	}

	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password, at least 6 characters (or set SALESDESK_PASSWORD, will prompt if not provided)")

	return cmd
}

// signupPassword resolves the new account's password from the flag, then
// SALESDESK_PASSWORD, then a terminal prompt that asks for it twice. Without a
// terminal an empty password is left for validation to reject.
func signupPassword(password string) (string, error) {
	if password == "" {
		password = os.Getenv("SALESDESK_PASSWORD")
	}
	if password != "" || !stdinIsTerminal() {
		return password, nil
	}

	password, err := readSecret("Password")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := readSecret("Confirm password")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func runSignup(ctx context.Context, d *deps, req client.SignupRequest) error {
	if err := d.session.Signup(ctx, req); err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}

	state := d.session.State()
	d.printf("✓ Account created. Signed in as %s (%s)\n", state.UserName, state.UserEmail)
	return nil
}
