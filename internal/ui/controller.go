package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/multiplay/internal/session"
	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Stage dimensions used for mouse coordinates. The origin is the center,
// y grows upward.
const (
	StageWidth  = 480
	StageHeight = 360
)

// InputSink receives input captured from the terminal.
type InputSink interface {
	SendKeyEvent(key, eventType string, coords *mpwebrtc.Coords) error
	SendMouse(x, y float64) error
}

type statusMsg session.Status

type feedClosedMsg struct{}

// Controller is a bubbletea model that forwards key presses and mouse motion
// to an InputSink and shows the session state. It quits when the session
// comes to rest or on ctrl+c.
type Controller struct {
	sink    InputSink
	updates <-chan session.Status
	status  session.Status
	spinner spinner.Model
	title   string

	width  int
	height int

	keys    int
	moves   int
	lastKey string
	err     error
	done    bool
}

// NewController creates a controller for the given session updates.
func NewController(title string, sink InputSink, current session.Status, updates <-chan session.Status) *Controller {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return &Controller{
		sink:    sink,
		updates: updates,
		status:  current,
		spinner: s,
		title:   title,
	}
}

// Run runs the controller until the session ends or the user quits.
func (c *Controller) Run() error {
	p := tea.NewProgram(c, tea.WithMouseAllMotion())
	_, err := p.Run()
	return err
}

func (c *Controller) Init() tea.Cmd {
	return tea.Batch(c.spinner.Tick, c.waitForStatus())
}

func (c *Controller) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		st, ok := <-c.updates
		if !ok {
			return feedClosedMsg{}
		}
		return statusMsg(st)
	}
}

func (c *Controller) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			c.done = true
			return c, tea.Quit
		}
		c.sendKey(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionMotion {
			x, y := c.stagePoint(msg.X, msg.Y)
			if err := c.sink.SendMouse(x, y); err != nil {
				c.err = err
			} else {
				c.moves++
			}
		}

	case tea.WindowSizeMsg:
		c.width, c.height = msg.Width, msg.Height

	case statusMsg:
		c.status = session.Status(msg)
		if c.status.State.Resting() {
			c.done = true
			return c, tea.Quit
		}
		return c, c.waitForStatus()

	case feedClosedMsg:
		c.done = true
		return c, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd
	}
	return c, nil
}

// sendKey forwards a key press. Terminals report presses only, so each one
// becomes a keydown followed by a keyup.
func (c *Controller) sendKey(msg tea.KeyMsg) {
	key, ok := KeyName(msg)
	if !ok {
		return
	}
	for _, t := range []string{mpwebrtc.MessageTypeKeyDown, mpwebrtc.MessageTypeKeyUp} {
		if err := c.sink.SendKeyEvent(key, t, nil); err != nil {
			c.err = err
			return
		}
	}
	c.keys++
	c.lastKey = key
}

// stagePoint maps a terminal cell to stage coordinates.
func (c *Controller) stagePoint(col, row int) (float64, float64) {
	if c.width <= 0 || c.height <= 0 {
		return 0, 0
	}
	x := float64(col)/float64(c.width)*StageWidth - StageWidth/2
	y := StageHeight/2 - float64(row)/float64(c.height)*StageHeight
	return x, y
}

func (c *Controller) View() string {
	if c.done {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s  %s\n\n", IconGame, boldStyle.Render(c.title), StateBadge(c.status.State))
	if c.status.State == session.StateConnected {
		fmt.Fprintf(&b, "%s keys sent: %d", IconKeyboard, c.keys)
		if c.lastKey != "" {
			fmt.Fprintf(&b, " (last %q)", c.lastKey)
		}
		fmt.Fprintf(&b, "\n%s pointer updates: %d\n", IconMouse, c.moves)
	} else {
		fmt.Fprintf(&b, "%s %s\n", c.spinner.View(), stateHint(c.status.State))
	}
	if c.err != nil {
		fmt.Fprintf(&b, "\n%s\n", formatError(c.err))
	}
	b.WriteString("\n" + MutedStyle.Render("Press ctrl+c to leave"))
	return b.String()
}

func stateHint(s session.State) string {
	switch s {
	case session.StateConnecting:
		return "Connecting to relay..."
	case session.StateSignalingConnected, session.StateWaitingForPeer:
		return "Waiting for peer..."
	case session.StateNegotiating:
		return "Establishing direct connection..."
	default:
		return string(s)
	}
}

var keyNames = map[tea.KeyType]string{
	tea.KeyUp:        "ArrowUp",
	tea.KeyDown:      "ArrowDown",
	tea.KeyLeft:      "ArrowLeft",
	tea.KeyRight:     "ArrowRight",
	tea.KeyEnter:     "Enter",
	tea.KeyEsc:       "Escape",
	tea.KeyTab:       "Tab",
	tea.KeyBackspace: "Backspace",
	tea.KeySpace:     " ",
}

// KeyName converts a terminal key press to a browser-style key name.
func KeyName(msg tea.KeyMsg) (string, bool) {
	if name, ok := keyNames[msg.Type]; ok {
		return name, true
	}
	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && !msg.Alt {
		return string(msg.Runes), true
	}
	return "", false
}
