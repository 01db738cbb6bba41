package cli

import (
	"time"

	"github.com/spf13/cobra"

	"twister-backend/internal/handlers"
)

var tokenFlags struct {
	Operator string
	Role     string
	TTL      time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator bearer token for the /api mutation routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		ttl := tokenFlags.TTL
		if ttl == 0 {
			ttl = time.Duration(cfg.Auth.TokenTTL) * time.Hour
		}
		token, err := handlers.GenerateJWTToken(tokenFlags.Operator, tokenFlags.Role, ttl)
		if err != nil {
			return err
		}
		return printJSON(cmd, token)
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.Operator, "operator", "operator", "token subject")
	tokenCmd.Flags().StringVar(&tokenFlags.Role, "role", "operator", "role claim")
	tokenCmd.Flags().DurationVar(&tokenFlags.TTL, "ttl", 0, "lifetime (default auth.tokenTtl hours)")
	rootCmd.AddCommand(tokenCmd)
}
