package commands

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
	"github.com/salesdesk-dev/salesdesk/internal/cli/output"
)

// NewSalesCmd creates the sales command group
func NewSalesCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sales",
		Aliases: []string{"sale"},
		Short:   "Manage sales records",
	}

	cmd.AddCommand(newSalesListCmd(g))
	cmd.AddCommand(newSalesAddCmd(g))
	cmd.AddCommand(newSalesEditCmd(g))
	cmd.AddCommand(newSalesDeleteCmd(g))

	return cmd
}

func newSalesListCmd(g *Globals) *cobra.Command {
	var search, ordering string
	var lf listFlags

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List sales",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runSalesList(cmd.Context(), d, search, ordering, lf)
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Server-side search")
	cmd.Flags().StringVar(&ordering, "ordering", "", "Server-side ordering, e.g. -sale_date")
	addListFlags(cmd, &lf)

	return cmd
}

func runSalesList(ctx context.Context, d *deps, search, ordering string, lf listFlags) error {
	if err := d.requireSession(); err != nil {
		return err
	}
	opts, err := lf.options()
	if err != nil {
		return err
	}

	query := url.Values{}
	setIf(query, "search", search)
	setIf(query, "ordering", ordering)

	sales, err := d.api.ListSales(ctx, query)
	if err != nil {
		return err
	}

	if len(sales) == 0 && opts.Format == output.FormatTable {
		d.printf("No sales found.\n")
		return nil
	}

	table := output.NewTable("ID", "DATE", "AGENT", "VEHICLE", "CUSTOMER", "AMOUNT", "STATUS")
	for _, s := range sales {
		table.Add(s,
			s.ID.String(),
			s.SaleDate,
			firstNonEmpty(s.AgentName, s.Agent.String()),
			firstNonEmpty(s.VehicleName, s.Vehicle.String()),
			s.CustomerName,
			s.Amount.String(),
			s.Status,
		)
	}
	return output.Write(d.out, table, opts)
}

func newSalesAddCmd(g *Globals) *cobra.Command {
	var s client.Sale
	var agent, vehicle, amount string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.Agent = client.FlexString(agent)
			s.Vehicle = client.FlexString(vehicle)
			s.Amount = client.FlexString(amount)

			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runSalesAdd(cmd.Context(), d, s)
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent ID (required)")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "Vehicle ID (required)")
	cmd.Flags().StringVar(&s.CustomerName, "customer", "", "Customer name (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "Sale amount (required)")
	cmd.Flags().StringVar(&s.Status, "status", client.SaleStatusPending, "Status: pending, completed or cancelled")
	cmd.Flags().StringVar(&s.SaleDate, "date", "", "Sale date (YYYY-MM-DD, defaults to today on the server)")

	return cmd
}

func runSalesAdd(ctx context.Context, d *deps, s client.Sale) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	created, err := d.api.CreateSale(ctx, s)
	if err != nil {
		return err
	}

	if created != nil {
		d.printf("✓ Recorded sale %s to %s (%s)\n", created.ID, created.CustomerName, created.Status)
	} else {
		d.printf("✓ Recorded sale to %s\n", s.CustomerName)
	}
	return nil
}

func newSalesEditCmd(g *Globals) *cobra.Command {
	var agent, vehicle, customer, amount, status, date string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := client.Fields{}
			setChanged(cmd, fields, "agent", "agent", agent)
			setChanged(cmd, fields, "vehicle", "vehicle", vehicle)
			setChanged(cmd, fields, "customer", "customer_name", customer)
			setChanged(cmd, fields, "amount", "amount", amount)
			setChanged(cmd, fields, "status", "status", status)
			setChanged(cmd, fields, "date", "sale_date", date)

			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runSalesEdit(cmd.Context(), d, args[0], fields)
		},
	}

	cmd.Flags().StringVar(&agent, "agent", "", "Agent ID")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "Vehicle ID")
	cmd.Flags().StringVar(&customer, "customer", "", "Customer name")
	cmd.Flags().StringVar(&amount, "amount", "", "Sale amount")
	cmd.Flags().StringVar(&status, "status", "", "Status: pending, completed or cancelled")
	cmd.Flags().StringVar(&date, "date", "", "Sale date (YYYY-MM-DD)")

	return cmd
}

func runSalesEdit(ctx context.Context, d *deps, id string, fields client.Fields) error {
	if err := d.requireSession(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("nothing to change. Pass at least one of --agent, --vehicle, --customer, --amount, --status, --date")
	}

	if _, err := d.api.UpdateSale(ctx, id, fields); err != nil {
		return err
	}

	d.printf("✓ Updated sale %s\n", id)
	return nil
}

func newSalesDeleteCmd(g *Globals) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a sale",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runSalesDelete(cmd.Context(), d, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	return cmd
}

func runSalesDelete(ctx context.Context, d *deps, id string, yes bool) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	ok, err := d.confirmDelete(fmt.Sprintf("sale %s", id), yes)
	if err != nil || !ok {
		return err
	}

	if err := d.api.DeleteSale(ctx, id); err != nil {
		return err
	}

	d.printf("✓ Deleted sale %s\n", id)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
