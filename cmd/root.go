package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/multiplay/internal/ui"
	"github.com/BioHazard786/multiplay/internal/version"
	"github.com/spf13/cobra"
)

var (
	flagConfig     string
	flagDomain     string
	flagRelayURL   string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagForceRelay bool
	flagBinary     bool
	flagDiscover   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "multiplay",
	Short: "Play a program together over a direct peer-to-peer connection",
	Long: `MultiPlay lets a host share a running program with a remote player. The
host creates a room on a signaling relay, the player joins with the room code,
and once a direct WebRTC path is up the player's keyboard and mouse drive the
host's program.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Config file (default $MULTIPLAY_CONFIG or ~/.config/multiplay/config.yaml)")
	pf.StringVarP(&flagDomain, "domain", "d", "", "Relay domain")
	pf.StringVar(&flagRelayURL, "relay-url", "", "Relay websocket URL, overrides --domain")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	pf.StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	pf.BoolVarP(&flagForceRelay, "relay", "r", false, "Force relay mode")
	pf.BoolVar(&flagBinary, "binary", false, "Send data channel messages as msgpack binary frames")
	pf.BoolVar(&flagDiscover, "discover", false, "Find a relay on the local network")
}
