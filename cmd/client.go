package cmd

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"crewlink/internal/auth"
	"crewlink/internal/chatclient"
)

const devTokenTTL = time.Hour

// addClientFlags registers the flags shared by the commands that talk to a running
// server.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("api", "http://localhost:8083", "Server base URL")
	cmd.Flags().StringP("user", "u", "", "Acting user id")
	cmd.Flags().String("token", "", "Bearer token; minted from auth.jwt_secret when empty")
	_ = cmd.MarkFlagRequired("user")
}

// clientToken returns the --token flag or signs a short lived one for --user with the
// configured secret.
func clientToken(cmd *cobra.Command) (userID, token string, err error) {
	userID, _ = cmd.Flags().GetString("user")
	token, _ = cmd.Flags().GetString("token")
	if token != "" {
		return userID, token, nil
	}
	secret := v.GetString("auth.jwt_secret")
	if secret == "" {
		return "", "", errors.New("either --token or auth.jwt_secret is needed")
	}
	token, err = auth.Generate(secret, userID, devTokenTTL)
	if err != nil {
		return "", "", errors.Wrap(err, "sign token")
	}
	return userID, token, nil
}

func newHTTPClient(cmd *cobra.Command) (string, *chatclient.HTTPClient, error) {
	userID, token, err := clientToken(cmd)
	if err != nil {
		return "", nil, err
	}
	api, _ := cmd.Flags().GetString("api")
	return userID, chatclient.NewHTTPClient(api, token, nil), nil
}
