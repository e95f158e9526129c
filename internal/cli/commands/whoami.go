package commands

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runWhoami(d, time.Now())
		},
	}
}

func runWhoami(d *deps, now time.Time) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	state := d.session.State()
	d.printf("Server: %s (%s)\n", d.server.Alias, d.server.URL)
	d.printf("User:   %s\n", orDash(state.UserName))
	d.printf("Email:  %s\n", orDash(state.UserEmail))

	if exp, ok := tokenExpiry(state.Token); ok {
		if exp.After(now) {
			d.printf("Token:  expires %s (in %s)\n", exp.Local().Format(time.RFC1123), exp.Sub(now).Round(time.Second))
		} else {
			d.printf("Token:  expired %s, it will be refreshed on the next request\n", exp.Local().Format(time.RFC1123))
		}
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. The CLI
// never holds the signing key; this is display only.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
