package cmd

import (
	"fmt"
	"time"

	"github.com/BioHazard786/multiplay/internal/multiplay"
	"github.com/BioHazard786/multiplay/internal/session"
	"github.com/BioHazard786/multiplay/internal/ui"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	"github.com/spf13/cobra"
)

const metadataWait = 3 * time.Second

var joinCmd = &cobra.Command{
	Use:     "join <room-code>",
	Aliases: []string{"j"},
	Short:   "Join a room and play",
	Long: `Join a host's room with its room code. Once connected, key presses and
mouse movement in the terminal are sent to the host.

Examples:
  multiplay join AB12CD
  multiplay join ab12cd --relay-url ws://192.168.1.20:8080/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd, args[0])
	},
}

func joinRoom(cmd *cobra.Command, code string) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	opts, err := sessionOptions(ctx, cfg)
	if err != nil {
		return err
	}

	metaCh := make(chan mpwebrtc.ProjectMetadata, 1)
	client := multiplay.NewClient(opts, func(meta mpwebrtc.ProjectMetadata) {
		select {
		case metaCh <- meta:
		default:
		}
	})
	defer client.Close()

	sp := ui.NewConnectionSpinner("Joining room...")
	sp.Start()
	st, err := client.JoinRoom(ctx, code)
	if err != nil {
		sp.Error("Could not join room")
		return err
	}
	sp.Success(fmt.Sprintf("Joined room %s", st.RoomCode))

	if ui.IsTerminal() {
		st = waitConnected(cmd, client, st)
		if st.State == session.StateConnected {
			showMetadata(metaCh)
			c := ui.NewController("MultiPlay "+st.RoomCode, client, client.Status(), client.Updates())
			if err := c.Run(); err != nil {
				return err
			}
			client.Disconnect()
		}
	} else {
		followSession(ctx, st, client.Updates(), client.Disconnect)
	}

	renderSummary(ui.IconStats+" Session Summary", client.Summary())
	return nil
}

// waitConnected shows a spinner until the session is connected or rests.
func waitConnected(cmd *cobra.Command, client *multiplay.Client, st session.Status) session.Status {
	sp := ui.NewWaitingSpinner("Connecting to host...")
	sp.Start()
	ctx := cmd.Context()
	for st.State != session.StateConnected && !st.State.Resting() {
		select {
		case next := <-client.Updates():
			if next.Since.Before(st.Since) {
				continue
			}
			if next.State == session.StateNegotiating && st.State != next.State {
				sp.UpdateMessage("Negotiating a direct connection...")
			}
			st = next
		case <-ctx.Done():
			client.Disconnect()
			sp.Stop()
			return client.Status()
		}
	}
	if st.State == session.StateConnected {
		sp.Success("Connected to host")
	} else {
		sp.Error(fmt.Sprintf("Connection ended: %s", st.Reason))
	}
	return st
}

func showMetadata(metaCh <-chan mpwebrtc.ProjectMetadata) {
	select {
	case meta := <-metaCh:
		fmt.Println()
		ui.RenderMetadata(meta)
	case <-time.After(metadataWait):
		ui.PrintWarning("The host has not sent project details")
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
