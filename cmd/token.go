package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"crewlink/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Print a signed bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := v.GetString("auth.jwt_secret")
		if secret == "" {
			return errors.New("auth.jwt_secret is required")
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := auth.Generate(secret, args[0], ttl)
		if err != nil {
			return errors.Wrap(err, "sign token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
