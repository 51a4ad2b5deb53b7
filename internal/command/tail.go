package command

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/developia-II/feedback-board-backend/internal/feedclient"
	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
)

// NewTailCmd creates the tail command.
func NewTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream newly created feedback from a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			eventID, _ := cmd.Flags().GetString("event")
			asJSON, _ := cmd.Flags().GetBool("json")

			room := string(realtime.RoomFeedbacks)
			if eventID != "" {
				room = string(realtime.RoomForEvent(eventID))
				if !realtime.IsValidRoom(room) {
					return fmt.Errorf("invalid event id %q", eventID)
				}
			}

			client := feedclient.New(server, 10*time.Second)
			events, err := client.Subscribe(cmd.Context(), room)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for evt := range events {
				if err := writeItem(out, evt.Payload, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().String("server", envOr("FEEDBACK_SERVER", "http://localhost:8080"), "server base URL")
	cmd.Flags().String("event", "", "only show feedback for this event id")
	cmd.Flags().Bool("json", false, "print one JSON object per line")
	return cmd
}

func writeItem(w io.Writer, item models.FeedbackItem, asJSON bool) error {
	if asJSON {
		line, err := json.Marshal(item)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(line))
		return err
	}
	stars := strings.Repeat("*", item.Rating) + strings.Repeat(".", 5-item.Rating)
	_, err := fmt.Fprintf(w, "%s  %s  [%s]  %s\n", item.CreatedAt, stars, item.EventName, item.Text)
	return err
}
