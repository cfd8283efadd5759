package cmd

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/multiplay/internal/metadata"
	"github.com/BioHazard786/multiplay/internal/multiplay"
	"github.com/BioHazard786/multiplay/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagProject     int64
	flagMetadata    string
	flagMetadataURL string
	flagExec        string
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Create a room and share a program",
	Long: `Create a room on the relay and wait for a player to join. Input events from
the player are applied to the program started with --exec, one JSON object per
line on its stdin, or logged when no program is given.

Examples:
  multiplay host --project 7 --metadata projects.yaml
  multiplay host --project 7 --metadata-url https://api.example.com --exec "./game"
  multiplay host --discover`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostRoom(cmd)
	},
}

func metadataProvider() metadata.Provider {
	switch {
	case flagMetadata != "":
		return metadata.FileProvider{Path: flagMetadata}
	case flagMetadataURL != "":
		return &metadata.HTTPProvider{BaseURL: flagMetadataURL}
	default:
		return metadata.Static{ID: flagProject, Title: fmt.Sprintf("Project %d", flagProject)}
	}
}

func hostRuntime() (multiplay.Runtime, error) {
	if flagExec == "" {
		return nil, nil
	}
	fields := strings.Fields(flagExec)
	rt, err := multiplay.StartExec(fields[0], fields[1:]...)
	if err != nil {
		return nil, fmt.Errorf("start program: %w", err)
	}
	return rt, nil
}

func hostRoom(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	opts, err := sessionOptions(ctx, cfg)
	if err != nil {
		return err
	}

	rt, err := hostRuntime()
	if err != nil {
		return err
	}
	if flagExec == "" {
		ui.PrintInfo("No --exec program given, client input will only be logged")
	}

	host := multiplay.NewHost(opts, metadataProvider(), flagProject, rt)
	defer host.Close()

	sp := ui.NewConnectionSpinner("Creating room...")
	sp.Start()
	st, err := host.CreateRoom(ctx)
	if err != nil {
		sp.Error("Could not create room")
		return err
	}
	sp.Stop()

	if meta, ok := host.Metadata(); ok {
		fmt.Println()
		ui.RenderMetadata(meta)
	}
	fmt.Println()
	fmt.Println(ui.NewRoomInfo(st.RoomCode, opts.RelayURL).View())
	fmt.Println()

	followSession(ctx, st, host.Updates(), host.Disconnect)
	renderSummary(ui.IconStats+" Session Summary", host.Summary())
	return nil
}

func init() {
	rootCmd.AddCommand(hostCmd)

	hostCmd.Flags().Int64Var(&flagProject, "project", 0, "Project ID to host")
	hostCmd.Flags().StringVarP(&flagMetadata, "metadata", "m", "", "YAML or JSON file with project metadata")
	hostCmd.Flags().StringVar(&flagMetadataURL, "metadata-url", "", "Metadata service base URL")
	hostCmd.Flags().StringVarP(&flagExec, "exec", "e", "", "Program that receives input events on stdin")
	hostCmd.MarkFlagsMutuallyExclusive("metadata", "metadata-url")
}
