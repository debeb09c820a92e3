package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/listingkit/credits-api/internal/domain/promo"
)

func init() {
	rootCmd.AddCommand(promoCmd)
	promoCmd.AddCommand(promoCreateCmd)
	promoCmd.AddCommand(promoListCmd)
	promoCmd.AddCommand(promoToggleCmd)

	promoCreateCmd.Flags().Int("credits", 0, "Credits granted per redemption")
	promoCreateCmd.Flags().Int("max", 0, "Total redemption limit (0 = unlimited)")
	promoCreateCmd.Flags().Int("per-agent", 0, "Redemptions allowed per agent (0 = unlimited)")
	promoCreateCmd.Flags().String("expires", "", "Expiry as RFC 3339 timestamp or YYYY-MM-DD (end of day UTC)")
	promoCreateCmd.Flags().String("notes", "", "Internal notes")
	_ = promoCreateCmd.MarkFlagRequired("credits")

	promoListCmd.Flags().Int("limit", 50, "Maximum codes to list")
}

var promoCmd = &cobra.Command{
	Use:   "promo",
	Short: "Manage promo codes",
}

var promoCreateCmd = &cobra.Command{
	Use:   "create CODE",
	Short: "Create a promo code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		credits, _ := cmd.Flags().GetInt("credits")
		maxUses, _ := cmd.Flags().GetInt("max")
		perAgent, _ := cmd.Flags().GetInt("per-agent")
		expiresRaw, _ := cmd.Flags().GetString("expires")
		notes, _ := cmd.Flags().GetString("notes")

		in := promo.CreateInput{Code: args[0], Credits: credits, Notes: notes}
		if maxUses > 0 {
			in.MaxRedemptions = &maxUses
		}
		if perAgent > 0 {
			in.PerAgentLimit = &perAgent
		}
		if expiresRaw != "" {
			expiresAt, err := parseExpiry(expiresRaw)
			if err != nil {
				return err
			}
			in.ExpiresAt = &expiresAt
		}

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		code, err := e.services.Promo.Create(commandContext(cmd), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s): %d credits\n", code.Code, code.ID, code.Credits)
		return nil
	},
}

var promoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List promo codes with redemption counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		codes, err := e.services.Promo.List(commandContext(cmd), limit, 0)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCODE\tCREDITS\tUSED\tMAX\tPER AGENT\tEXPIRES\tACTIVE")
		for _, c := range codes {
			expires := "-"
			if c.ExpiresAt != nil {
				expires = c.ExpiresAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%t\n",
				c.ID, c.Code.Code, c.Credits, c.Redemptions,
				optional(c.MaxRedemptions), optional(c.PerAgentLimit), expires, c.Active)
		}
		return tw.Flush()
	},
}

var promoToggleCmd = &cobra.Command{
	Use:   "toggle PROMO_ID on|off",
	Short: "Activate or deactivate a promo code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid promo id %q", args[0])
		}

		var active bool
		switch args[1] {
		case "on":
			active = true
		case "off":
			active = false
		default:
			return fmt.Errorf("state must be on or off, got %q", args[1])
		}

		e, err := connect(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		code, err := e.services.Promo.SetActive(commandContext(cmd), id, active)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", code.Code.Code, code.Active)
		return nil
	},
}

func parseExpiry(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: use RFC 3339 or YYYY-MM-DD", raw)
	}
	return day.Add(24*time.Hour - time.Second), nil
}

func optional(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
