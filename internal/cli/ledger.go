package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/pkg/database"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(adjustCmd)

	balanceCmd.Flags().Int("history", 10, "Number of recent ledger entries to show")

	adjustCmd.Flags().Int("delta", 0, "Signed number of credits to add or remove")
	adjustCmd.Flags().String("reason", "", "Why the adjustment is made (required)")
	adjustCmd.Flags().String("admin", "", "Admin user id recorded with the entry")
	_ = adjustCmd.MarkFlagRequired("delta")
	_ = adjustCmd.MarkFlagRequired("reason")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		if err := database.Migrate(commandContext(cmd), e.db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", e.db.DriverName())
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance AGENT_ID",
	Short: "Show an agent's balance and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid agent id %q", args[0])
		}
		history, _ := cmd.Flags().GetInt("history")

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		ctx := commandContext(cmd)
		summary, err := e.services.Ledger.GetSummary(ctx, agentID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Agent:     %s\n", agentID)
		fmt.Fprintf(out, "Balance:   %d\n", summary.Balance)
		fmt.Fprintf(out, "Purchased: %d  Promo: %d  Adjusted: %d  Consumed: %d\n",
			summary.Purchased, summary.Promo, summary.Adjusted, summary.Consumed)

		if history <= 0 {
			return nil
		}
		entries, err := e.services.Ledger.ListEntries(ctx, agentID, history, 0)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		printEntries(out, entries)
		return nil
	},
}

var adjustCmd = &cobra.Command{
	Use:   "adjust AGENT_ID",
	Short: "Apply a manual credit adjustment",
	Long: `Insert a manual_adjustment ledger entry. Negative deltas may leave the
agent with a negative balance.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agentID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid agent id %q", args[0])
		}
		delta, _ := cmd.Flags().GetInt("delta")
		reason, _ := cmd.Flags().GetString("reason")
		adminRaw, _ := cmd.Flags().GetString("admin")

		var adminID uuid.UUID
		if adminRaw != "" {
			if adminID, err = uuid.Parse(adminRaw); err != nil {
				return fmt.Errorf("invalid admin id %q", adminRaw)
			}
		}

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		ctx := commandContext(cmd)
		entry, err := e.services.Ledger.ApplyManualAdjustment(ctx, ledger.ManualAdjustment{
			AgentID: agentID,
			Delta:   delta,
			Reason:  reason,
			AdminID: adminID,
		})
		if err != nil {
			return err
		}

		balance, err := e.services.Ledger.GetBalance(ctx, agentID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entry %s applied (%+d). New balance: %d\n", entry.ID, entry.Delta, balance)
		return nil
	},
}

func printEntries(w io.Writer, entries []ledger.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tDELTA\tREASON\tLISTING\tNOTE")
	for _, en := range entries {
		listing := "-"
		if en.ListingID.Valid {
			listing = en.ListingID.UUID.String()
		}
		note := en.Metadata[ledger.MetaNote]
		if code, ok := en.Metadata[ledger.MetaPromoCode]; ok {
			note = code
		}
		if session, ok := en.Metadata[ledger.MetaSessionID]; ok {
			note = session
		}
		fmt.Fprintf(tw, "%s\t%+d\t%s\t%s\t%s\n",
			en.CreatedAt.Format("2006-01-02 15:04:05"), en.Delta, en.Reason, listing, note)
	}
	tw.Flush()
}
