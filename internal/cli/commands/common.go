package commands

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/salesdesk-dev/salesdesk/internal/cli/auth"
	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
	"github.com/salesdesk-dev/salesdesk/internal/cli/config"
	"github.com/salesdesk-dev/salesdesk/internal/cli/output"
	"github.com/salesdesk-dev/salesdesk/internal/cli/serverselect"
	"github.com/salesdesk-dev/salesdesk/internal/cli/session"
	appconfig "github.com/salesdesk-dev/salesdesk/internal/config"
	"github.com/salesdesk-dev/salesdesk/internal/logger"
)

var errNotLoggedIn = errors.New("not logged in. Run 'salesdesk login' first")

// Globals are the persistent flags shared by every command
type Globals struct {
	ServerAlias string
	Verbose     bool
}

// deps is everything a command needs to talk to the selected server
type deps struct {
	server  *config.Server
	tokens  *auth.TokenStore
	api     *client.Client
	session *session.Session
	out     io.Writer
	log     zerolog.Logger

	// confirm asks a yes/no question; replaced in tests
	confirm func(label string) (bool, error)
}

// newDeps resolves the server, opens token storage and restores the session
func newDeps(cmd *cobra.Command, g *Globals) (*deps, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, err
	}

	server, err := serverselect.ResolveServer(g.ServerAlias, cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}

	storage, err := auth.OpenStorage(cfg.Tokens.Backend)
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger().With().Str("server", server.Alias).Logger()
	tokens := auth.NewTokenStore(storage, server.BaseURL())
	errOut := cmd.ErrOrStderr()

	api := client.New(server.BaseURL(), tokens,
		client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		client.WithLogger(log),
		client.WithAuthExpiredHandler(func() {
			fmt.Fprintln(errOut, "Session expired. Run 'salesdesk login' to sign in again.")
		}),
	)

	d := &deps{
		server:  server,
		tokens:  tokens,
		api:     api,
		session: session.New(tokens, api, session.WithLogger(log)),
		out:     cmd.OutOrStdout(),
		log:     log,
		confirm: promptConfirm,
	}
	d.session.Initialize()
	return d, nil
}

// requireSession fails unless a user is signed in
func (d *deps) requireSession() error {
	if !d.session.State().IsAuthenticated {
		return errNotLoggedIn
	}
	return nil
}

// printf writes to the command output
func (d *deps) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

// promptConfirm asks for y/N on the terminal
func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation cancelled: %w", err)
	}
	return true, nil
}

// listFlags are the output flags shared by list commands
type listFlags struct {
	output   string
	sort     string
	filter   string
	page     int
	pageSize int
}

func addListFlags(cmd *cobra.Command, f *listFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.Flags().StringVar(&f.sort, "sort", "", "Sort by column, e.g. price or price:desc")
	cmd.Flags().StringVar(&f.filter, "filter", "", "Only show rows containing this text")
	cmd.Flags().IntVar(&f.page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "Rows per page (0 shows all)")
}

func (f listFlags) options() (output.ListOptions, error) {
	format, err := output.ParseFormat(f.output)
	if err != nil {
		return output.ListOptions{}, err
	}
	return output.ListOptions{
		Format:   format,
		Sort:     f.sort,
		Filter:   f.filter,
		Page:     f.page,
		PageSize: f.pageSize,
	}, nil
}

// confirmDelete returns true when the deletion should go ahead
func (d *deps) confirmDelete(what string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	ok, err := d.confirm(fmt.Sprintf("Delete %s", what))
	if err != nil {
		return false, err
	}
	if !ok {
		d.printf("Aborted.\n")
	}
	return ok, nil
}

// stdinIsTerminal is replaced in tests
var stdinIsTerminal = func() bool {
	return isTerminal(os.Stdin)
}

// readSecret prints label and reads a line from the terminal without echo.
// Replaced in tests.
var readSecret = func(label string) (string, error) {
	fmt.Print(label + ": ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return string(b), err
}
