package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salesdesk-dev/salesdesk/internal/cli/client"
	"github.com/salesdesk-dev/salesdesk/internal/cli/output"
)

// NewVehiclesCmd creates the vehicles command group
func NewVehiclesCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"vehicle"},
		Short:   "Manage the vehicle catalogue",
	}

	cmd.AddCommand(newVehiclesListCmd(g))
	cmd.AddCommand(newVehiclesAddCmd(g))
	cmd.AddCommand(newVehiclesEditCmd(g))
	cmd.AddCommand(newVehiclesDeleteCmd(g))

	return cmd
}

type vehicleQuery struct {
	brand    string
	model    string
	price    string
	search   string
	ordering string
}

func (q vehicleQuery) values() url.Values {
	v := url.Values{}
	setIf(v, "brand", q.brand)
	setIf(v, "model_number", q.model)
	setIf(v, "price", q.price)
	setIf(v, "search", q.search)
	setIf(v, "ordering", q.ordering)
	return v
}

func newVehiclesListCmd(g *Globals) *cobra.Command {
	var q vehicleQuery
	var lf listFlags

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List vehicles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runVehiclesList(cmd.Context(), d, q, lf)
		},
	}

	cmd.Flags().StringVar(&q.brand, "brand", "", "Filter by brand")
	cmd.Flags().StringVar(&q.model, "model", "", "Filter by model number")
	cmd.Flags().StringVar(&q.price, "price", "", "Filter by exact price")
	cmd.Flags().StringVar(&q.search, "search", "", "Server-side search")
	cmd.Flags().StringVar(&q.ordering, "ordering", "", "Server-side ordering, e.g. -price")
	addListFlags(cmd, &lf)

	return cmd
}

func runVehiclesList(ctx context.Context, d *deps, q vehicleQuery, lf listFlags) error {
	if err := d.requireSession(); err != nil {
		return err
	}
	opts, err := lf.options()
	if err != nil {
		return err
	}

	vehicles, err := d.api.ListVehicles(ctx, q.values())
	if err != nil {
		return err
	}

	if len(vehicles) == 0 && opts.Format == output.FormatTable {
		d.printf("No vehicles found.\n")
		d.printf("\nAdd one with: salesdesk vehicles add --brand <brand> --model <model-number> --price <price>\n")
		return nil
	}

	table := output.NewTable("ID", "BRAND", "NAME", "MODEL NUMBER", "PRICE", "COMMISSION")
	for _, v := range vehicles {
		table.Add(v, v.ID.String(), v.Brand, v.Name, v.ModelNumber, v.Price.String(), v.CommissionBase.String())
	}
	return output.Write(d.out, table, opts)
}

func newVehiclesAddCmd(g *Globals) *cobra.Command {
	var v client.Vehicle
	var price, commission string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v.Price = client.FlexString(price)
			v.CommissionBase = client.FlexString(commission)

			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runVehiclesAdd(cmd.Context(), d, v)
		},
	}

	cmd.Flags().StringVar(&v.Brand, "brand", "", "Brand (required)")
	cmd.Flags().StringVar(&v.Name, "name", "", "Model name")
	cmd.Flags().StringVar(&v.ModelNumber, "model", "", "Model number (required)")
	cmd.Flags().StringVar(&price, "price", "", "Price (required, > 0)")
	cmd.Flags().StringVar(&commission, "commission", "", "Commission base (default 0)")

	return cmd
}

func runVehiclesAdd(ctx context.Context, d *deps, v client.Vehicle) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	created, err := d.api.CreateVehicle(ctx, v)
	if err != nil {
		return err
	}

	if created != nil {
		d.printf("✓ Added vehicle %s (%s)\n", created.ID, displayName(created.Brand, created.Name))
	} else {
		d.printf("✓ Added vehicle %s\n", displayName(v.Brand, v.Name))
	}
	return nil
}

func newVehiclesEditCmd(g *Globals) *cobra.Command {
	var brand, name, model, price, commission string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := client.Fields{}
			setChanged(cmd, fields, "brand", "brand", brand)
			setChanged(cmd, fields, "name", "name", name)
			setChanged(cmd, fields, "model", "model_number", model)
			setChanged(cmd, fields, "price", "price", price)
			setChanged(cmd, fields, "commission", "commission_base", commission)

			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runVehiclesEdit(cmd.Context(), d, args[0], fields)
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "Brand")
	cmd.Flags().StringVar(&name, "name", "", "Model name")
	cmd.Flags().StringVar(&model, "model", "", "Model number")
	cmd.Flags().StringVar(&price, "price", "", "Price")
	cmd.Flags().StringVar(&commission, "commission", "", "Commission base")

	return cmd
}

func runVehiclesEdit(ctx context.Context, d *deps, id string, fields client.Fields) error {
	if err := d.requireSession(); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("nothing to change. Pass at least one of --brand, --name, --model, --price, --commission")
	}

	if _, err := d.api.UpdateVehicle(ctx, id, fields); err != nil {
		return err
	}

	d.printf("✓ Updated vehicle %s\n", id)
	return nil
}

func newVehiclesDeleteCmd(g *Globals) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a vehicle",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDeps(cmd, g)
			if err != nil {
				return err
			}
			return runVehiclesDelete(cmd.Context(), d, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	return cmd
}

func runVehiclesDelete(ctx context.Context, d *deps, id string, yes bool) error {
	if err := d.requireSession(); err != nil {
		return err
	}

	ok, err := d.confirmDelete(fmt.Sprintf("vehicle %s", id), yes)
	if err != nil || !ok {
		return err
	}

	if err := d.api.DeleteVehicle(ctx, id); err != nil {
		return err
	}

	d.printf("✓ Deleted vehicle %s\n", id)
	return nil
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// setChanged copies a flag into fields only when the user passed it
func setChanged(cmd *cobra.Command, fields client.Fields, flag, key, value string) {
	if cmd.Flags().Changed(flag) {
		fields[key] = value
	}
}

func displayName(parts ...string) string {
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
