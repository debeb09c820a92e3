package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/listingkit/credits-api/internal/config"
	"github.com/listingkit/credits-api/internal/pkg/jwt"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("role", jwt.RoleAdmin, "Token role: admin or agent")
}

var tokenCmd = &cobra.Command{
	Use:   "token USER_ID",
	Short: "Mint an access token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		role, _ := cmd.Flags().GetString("role")
		if role != jwt.RoleAdmin && role != jwt.RoleAgent {
			return fmt.Errorf("unknown role %q", role)
		}

		cfg := config.Load()
		if cfg.IsProduction() {
			return fmt.Errorf("refusing to mint tokens in production")
		}

		token, err := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL).GenerateAccessToken(userID, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
