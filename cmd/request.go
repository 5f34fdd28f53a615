package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/models"
)

var requestCmd = &cobra.Command{
	Use:   "request <receiver-id>",
	Short: "Ask another crew member to connect",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, api, err := newHTTPClient(cmd)
		if err != nil {
			return err
		}
		req, err := api.SendConnectionRequest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(req)
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <request-id> <accept|decline>",
	Short: "Answer a pending connection request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, api, err := newHTTPClient(cmd)
		if err != nil {
			return err
		}
		if err := api.Respond(cmd.Context(), args[0], models.RespondAction(args[1])); err != nil {
			return err
		}
		jww.INFO.Printf("request %s: %s", args[0], args[1])
		return nil
	},
}

func init() {
	addClientFlags(requestCmd)
	addClientFlags(respondCmd)
	rootCmd.AddCommand(requestCmd, respondCmd)
}
