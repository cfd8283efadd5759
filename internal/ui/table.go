package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BioHazard786/multiplay/internal/session"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

// MetadataView renders project metadata as a two-column table.
func MetadataView(meta mpwebrtc.ProjectMetadata) string {
	rows := [][]string{
		{"Project", strconv.FormatInt(meta.ID, 10)},
		{"Title", truncate(meta.Title, 50)},
		{"Author", meta.Author},
		{"Views", humanize.Comma(int64(meta.Stats.Views))},
		{"Loves", humanize.Comma(int64(meta.Stats.Loves))},
		{"Favorites", humanize.Comma(int64(meta.Stats.Favorites))},
	}
	if meta.History.Shared != "" {
		shared := meta.History.Shared
		if t, err := time.Parse(time.RFC3339, shared); err == nil {
			shared = humanize.Time(t)
		}
		rows = append(rows, []string{"Shared", shared})
	}
	if meta.Instructions != "" {
		rows = append(rows, []string{"Instructions", truncate(firstLine(meta.Instructions), 60)})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accent)).
		Headers("Field", "Value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCellStyle
			case row%2 == 0:
				return rowStyle
			default:
				return altRowStyle
			}
		})

	return tbl.Render()
}

func RenderMetadata(meta mpwebrtc.ProjectMetadata) {
	fmt.Println(MetadataView(meta))
}

// SessionSummary is the end-of-session report.
type SessionSummary struct {
	Role      string
	RoomCode  string
	State     string
	Reason    string
	Sent      int64
	Received  int64
	Connected time.Duration
}

// SessionSummaryView renders the summary with go-pretty.
func SessionSummaryView(title string, s SessionSummary) string {
	t := prettytable.NewWriter()
	t.SetTitle(title)
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRow(prettytable.Row{"Role", s.Role})
	t.AppendRow(prettytable.Row{"Room", orDash(s.RoomCode)})
	t.AppendRow(prettytable.Row{"Final state", s.State})
	if s.Reason != "" {
		t.AppendRow(prettytable.Row{"Reason", s.Reason})
	}
	t.AppendRow(prettytable.Row{"Messages sent", humanize.Comma(s.Sent)})
	t.AppendRow(prettytable.Row{"Messages received", humanize.Comma(s.Received)})
	t.AppendRow(prettytable.Row{"Connected for", s.Connected.Round(time.Second).String()})
	return t.Render()
}

func RenderSessionSummary(title string, s SessionSummary) {
	fmt.Println()
	fmt.Println(SessionSummaryView(title, s))
}

type RoomInfo struct {
	RoomCode string
	RelayURL string
}

func NewRoomInfo(code, relayURL string) *RoomInfo {
	return &RoomInfo{
		RoomCode: code,
		RelayURL: relayURL,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room Code:  %s\n%s Relay:      %s\n\n%s",
		IconSuccess,
		IconCopy, boldStyle.Foreground(accent).Render(r.RoomCode),
		IconWeb, MutedStyle.Render(r.RelayURL),
		MutedStyle.Render("Share the code: multiplay join "+r.RoomCode),
	)

	return roomBoxStyle.Render(content)
}

// StateBadge renders a session state as a colored label.
func StateBadge(s session.State) string {
	switch s {
	case session.StateConnected:
		return stateConnectedStyle.Render(string(s))
	case session.StateFailed:
		return stateFailedStyle.Render(string(s))
	case session.StateIdle, session.StateDisconnected:
		return stateEndedStyle.Render(string(s))
	default:
		return stateActiveStyle.Render(string(s))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
