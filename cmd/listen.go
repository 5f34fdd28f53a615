package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"crewlink/internal/chatclient"
	"crewlink/internal/models"
	"crewlink/internal/ws"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Stay connected to the realtime channel and print every event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, token, err := clientToken(cmd)
		if err != nil {
			return err
		}
		base, _ := cmd.Flags().GetString("api")
		wsURL, err := websocketURL(base)
		if err != nil {
			return err
		}
		api := chatclient.NewHTTPClient(base, token, nil)
		peer, _ := cmd.Flags().GetString("with")
		markRead, _ := cmd.Flags().GetBool("read")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := json.NewEncoder(cmd.OutOrStdout())
		cache := chatclient.NewCache()
		rt := chatclient.NewRealtime(wsURL, token)
		for _, sub := range chatclient.BindCache(rt, cache) {
			defer sub.Close()
		}
		for _, kind := range []ws.Kind{ws.KindNewMessage, ws.KindMessageStatusUpdate, ws.KindUserTyping, ws.KindRealtimeNotification} {
			defer rt.Subscribe(kind, func(ev ws.Event) {
				if err := out.Encode(ev); err != nil {
					jww.WARN.Printf("print event: %v", err)
				}
			}).Close()
		}
		if markRead {
			defer rt.Subscribe(ws.KindNewMessage, func(ev ws.Event) {
				p, ok := ev.Payload.(ws.NewMessagePayload)
				if !ok || p.Message.ReceiverID != userID {
					return
				}
				if err := api.UpdateStatus(ctx, p.Message.ID, models.MessageRead); err != nil {
					jww.WARN.Printf("mark %s read: %v", p.Message.ID, err)
				}
			}).Close()
		}

		if peer != "" {
			// catch up on what was missed while disconnected
			rt.OnConnect = func(ctx context.Context) {
				history, err := api.Conversation(ctx, peer)
				if err != nil {
					jww.WARN.Printf("load conversation with %s: %v", peer, err)
					return
				}
				cache.Merge(history)
				jww.INFO.Printf("%d messages with %s", len(cache.Messages(models.RoomID(userID, peer))), peer)
			}
		}

		err = rt.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// websocketURL turns the API base URL into the websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func init() {
	addClientFlags(listenCmd)
	listenCmd.Flags().String("with", "", "Load the conversation with this user on every connect")
	listenCmd.Flags().Bool("read", false, "Mark incoming messages read as they arrive")
	rootCmd.AddCommand(listenCmd)
}
