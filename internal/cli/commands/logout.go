package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens for the selected server",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runLogout(d)
		},
	}
}

func runLogout(d *deps) error {
	wasSignedIn := d.session.State().IsAuthenticated

	if err := d.session.Logout(); err != nil {
		return fmt.Errorf("failed to remove stored tokens: %w", err)
	}

	if wasSignedIn {
		d.printf("✓ Logged out of %s\n", d.server.Alias)
	} else {
		d.printf("Not logged in to %s\n", d.server.Alias)
	}
	return nil
}
