package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
	"github.com/salesdesk-dev/salesdesk/internal/cli/output"
	"github.com/salesdesk-dev/salesdesk/internal/cli/referral"
)

// NewAgentsCmd creates the agents command group
func NewAgentsCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agents",
		Aliases: []string{"agent"},
		Short:   "Manage agents",
	}

	cmd.AddCommand(newAgentsListCmd(g))
	cmd.AddCommand(newAgentsAddCmd(g))

	return cmd
}

func newAgentsListCmd(g *Globals) *cobra.Command {
	var search, phone string
	var lf listFlags

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List agents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runAgentsList(cmd.Context(), d, search, phone, lf)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Server-side search by name or email")
	cmd.Flags().StringVar(&phone, "phone", "", "Filter by phone number")
	addListFlags(cmd, &lf)

	return cmd
}

func runAgentsList(ctx context.Context, d *deps, search, phone string, lf listFlags) error {
	if err := d.requireSession(); err != nil {
		return err
	}
	opts, err := lf.options()
	if err != nil {
		return err
	}

	query := url.Values{}
	setIf(query, "search", search)
	setIf(query, "phone", phone)

	agents, err := d.api.ListAgents(ctx, query)
	if err != nil {
		return err
	}

	if len(agents) == 0 && opts.Format == output.FormatTable {
		d.printf("No agents found.\n")
		return nil
	}

	table := output.NewTable("ID", "USERNAME", "EMAIL", "PHONE", "ROLE", "LEVEL", "SALES", "EARNINGS", "REFERRAL CODE")
	for _, a := range agents {
		table.Add(a,
			a.ID.String(),
			a.Username,
			a.Email,
			a.Phone,
			a.Role,
			strconv.Itoa(a.Level),
			strconv.Itoa(a.TotalSales),
			a.Earnings.String(),
			a.ReferralCode,
		)
	}
	return output.Write(d.out, table, opts)
}

func newAgentsAddCmd(g *Globals) *cobra.Command {
	var a client.NewAgent

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an agent account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runAgentsAdd(cmd.Context(), d, a)
		},
	}

	cmd.Flags().StringVar(&a.Username, "username", "", "Username (required)")
	cmd.Flags().StringVar(&a.Password, "password", "", "Initial password (required)")
	cmd.Flags().StringVar(&a.Email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&a.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&a.SponsorCode, "sponsor-code", "", "Referral code of the sponsoring agent")
	cmd.Flags().StringVar(&a.Role, "role", "agent", "Role: agent or admin")

	return cmd
}

func runAgentsAdd(ctx context.Context, d *deps, a client.NewAgent) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	if err := d.api.CreateAgent(ctx, a); err != nil {
		return err
	}

	d.printf("✓ Created %s %s (%s)\n", a.Role, a.Username, a.Email)
	return nil
}

// NewTreeCmd creates the referral tree command
func NewTreeCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <agent-id-or-username>",
		Short: "Show an agent's downline by level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runTree(cmd.Context(), d, args[0])
		},
	}
}

func runTree(ctx context.Context, d *deps, agent string) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	id, err := resolveAgentID(ctx, d, agent)
	if err != nil {
		return err
	}

	downline, err := d.api.GetDownline(ctx, id)
	if err != nil {
		return err
	}

	d.printf("Downline of %s\n\n", agent)
	return referral.Render(d.out, referral.BuildLevels(downline))
}

// resolveAgentID accepts a numeric ID as-is and looks anything else up by username
func resolveAgentID(ctx context.Context, d *deps, agent string) (string, error) {
	if _, err := strconv.Atoi(agent); err == nil {
		return agent, nil
	}

	agents, err := d.api.ListAgents(ctx, url.Values{"search": {agent}})
	if err != nil {
		return "", err
	}
	for _, a := range agents {
		if strings.EqualFold(a.Username, agent) {
			return a.ID.String(), nil
		}
	}
	return "", fmt.Errorf("agent '%s' not found", agent)
}
