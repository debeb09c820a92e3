package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/listingkit/credits-api/internal/domain/billing"
)

func init() {
	rootCmd.AddCommand(packageCmd)
	packageCmd.AddCommand(packageUpsertCmd)
	packageCmd.AddCommand(packageListCmd)
	packageCmd.AddCommand(packageShowCmd)

	packageUpsertCmd.Flags().String("name", "", "Display name")
	packageUpsertCmd.Flags().Int("credits", 0, "Credits granted on purchase")
	packageUpsertCmd.Flags().Int64("price-cents", 0, "Price in minor units")
	packageUpsertCmd.Flags().String("price-ref", "", "Payment provider price reference")
	packageUpsertCmd.Flags().Bool("inactive", false, "Hide the package from the catalog")
	_ = packageUpsertCmd.MarkFlagRequired("name")
	_ = packageUpsertCmd.MarkFlagRequired("credits")
	_ = packageUpsertCmd.MarkFlagRequired("price-cents")
}

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "Manage credit packages",
}

var packageUpsertCmd = &cobra.Command{
	Use:   "upsert SLUG",
	Short: "Create or update a credit package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		credits, _ := cmd.Flags().GetInt("credits")
		priceCents, _ := cmd.Flags().GetInt64("price-cents")
		priceRef, _ := cmd.Flags().GetString("price-ref")
		inactive, _ := cmd.Flags().GetBool("inactive")

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		pkg, err := e.services.Billing.UpsertPackage(commandContext(cmd), billing.PackageInput{
			Slug:             args[0],
			Name:             name,
			Credits:          credits,
			PriceCents:       priceCents,
			ExternalPriceRef: priceRef,
			Active:           !inactive,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Package %s (%s): %d credits for %s\n",
			pkg.Slug, pkg.ID, pkg.Credits, pkg.Price(e.services.Billing.Currency()).Display())
		return nil
	},
}

var packageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credit packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		packages, err := e.services.Billing.ListPackages(commandContext(cmd), false)
		if err != nil {
			return err
		}

		currency := e.services.Billing.Currency()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSLUG\tNAME\tCREDITS\tPRICE\tACTIVE")
		for i := range packages {
			p := &packages[i]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%t\n",
				p.ID, p.Slug, p.Name, p.Credits, p.Price(currency).Display(), p.Active)
		}
		return tw.Flush()
	},
}

var packageShowCmd = &cobra.Command{
	Use:   "show SLUG",
	Short: "Show one credit package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		p, err := e.services.Billing.GetPackage(commandContext(cmd), args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:        %s\n", p.ID)
		fmt.Fprintf(w, "Slug:      %s\n", p.Slug)
		fmt.Fprintf(w, "Name:      %s\n", p.Name)
		fmt.Fprintf(w, "Credits:   %d\n", p.Credits)
		fmt.Fprintf(w, "Price:     %s\n", p.Price(e.services.Billing.Currency()).Display())
		fmt.Fprintf(w, "Price ref: %s\n", p.ExternalPriceRef)
		fmt.Fprintf(w, "Active:    %t\n", p.Active)
		return nil
	},
}
