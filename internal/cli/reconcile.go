package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errDiscrepancies = errors.New("ledger discrepancies found")

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("json", false, "Print the full report as JSON")
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Cross-check the ledger against listings, orders and redemptions",
	Long: `reconcile reports consumption entries whose listing is not flagged,
flagged listings without a charge, paid orders without credits, promo codes
whose redemptions and grants disagree, and negative balances. It exits
non-zero when anything is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		report, err := e.services.Reconciliation.Run(commandContext(cmd))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Unflagged consumptions: %d\n", len(report.UnflaggedConsumptions))
			for _, it := range report.UnflaggedConsumptions {
				fmt.Fprintf(out, "  listing %s agent %s\n", it.ListingID, it.AgentID)
			}
			fmt.Fprintf(out, "Uncharged listings:     %d\n", len(report.UnchargedListings))
			for _, it := range report.UnchargedListings {
				fmt.Fprintf(out, "  listing %s agent %s\n", it.ListingID, it.AgentID)
			}
			fmt.Fprintf(out, "Orders without credit:  %d\n", len(report.OrdersWithoutCredit))
			for _, it := range report.OrdersWithoutCredit {
				fmt.Fprintf(out, "  order %s session %s agent %s (%d credits)\n", it.OrderID, it.SessionID, it.AgentID, it.Credits)
			}
			fmt.Fprintf(out, "Promo mismatches:       %d\n", len(report.PromoMismatches))
			for _, it := range report.PromoMismatches {
				fmt.Fprintf(out, "  %s: %d redemptions, %d grants\n", it.Code, it.Redemptions, it.LedgerGrants)
			}
			fmt.Fprintf(out, "Negative balances:      %d\n", len(report.NegativeBalances))
			for _, it := range report.NegativeBalances {
				fmt.Fprintf(out, "  agent %s balance %d\n", it.AgentID, it.Balance)
			}
		}

		if !report.Clean() {
			return errDiscrepancies
		}
		return nil
	},
}
