package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/chatclient"
	"crewlink/internal/models"
)

var sendCmd = &cobra.Command{
	Use:   "send <receiver-id> <text>",
	Short: "Send a direct message, retrying transient failures",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, api, err := newHTTPClient(cmd)
		if err != nil {
			return err
		}
		messageType, _ := cmd.Flags().GetString("type")
		retries, _ := cmd.Flags().GetUint64("retries")

		sender := chatclient.NewSender(api, chatclient.NewCache(), userID)
		res, err := sendWithRetry(cmd.Context(), sender, args[0], args[1], models.MessageType(messageType), retries)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(res.Message)
	},
}

// sendWithRetry resends a failed message under its original client id, so the server
// stores it once however many attempts reach it.
func sendWithRetry(ctx context.Context, sender *chatclient.Sender, receiverID, text string, messageType models.MessageType, retries uint64) (chatclient.Result, error) {
	res, firstErr := sender.Send(ctx, receiverID, text, messageType)
	if firstErr == nil || retries == 0 {
		return res, firstErr
	}
	localID := res.LocalID

	schedule := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries-1), ctx)
	err := backoff.RetryNotify(func() error {
		var retryErr error
		res, retryErr = sender.Retry(ctx, localID)
		if errors.Is(retryErr, chatclient.ErrUnknownEntry) {
			// the entry was rolled back; the first error is final
			return backoff.Permanent(firstErr)
		}
		return retryErr
	}, schedule, func(err error, wait time.Duration) {
		jww.WARN.Printf("send failed, retrying in %s: %v", wait, err)
	})
	return res, err
}

func init() {
	addClientFlags(sendCmd)
	sendCmd.Flags().String("type", string(models.MessageText), "Message type: text, image or file")
	sendCmd.Flags().Uint64("retries", 3, "Attempts after a transient failure")
	rootCmd.AddCommand(sendCmd)
}
