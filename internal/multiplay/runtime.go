package multiplay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
)

// Runtime is the program running on the host. Remote input events are
// applied to it in arrival order.
type Runtime interface {
	Apply(ctx context.Context, ev mpwebrtc.InputEvent) error
}

// LogRuntime logs every event. It is used when the host has no program
// attached.
type LogRuntime struct {
	Logger *slog.Logger
}

func (r LogRuntime) Apply(ctx context.Context, ev mpwebrtc.InputEvent) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"type", ev.Type, "key", ev.Key}
	if ev.Coords != nil {
		args = append(args, "x", ev.Coords.X, "y", ev.Coords.Y)
	}
	logger.Info("input event", args...)
	return nil
}

// ExecRuntime runs a program and writes each event to its stdin as one JSON
// object per line.
type ExecRuntime struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	encoder *json.Encoder
	closed  bool
	waitErr chan error
}

// StartExec starts name with args. The program's stdout and stderr are
// inherited.
func StartExec(name string, args ...string) (*ExecRuntime, error) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open program stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	r := &ExecRuntime{
		cmd:     cmd,
		stdin:   stdin,
		encoder: json.NewEncoder(stdin),
		waitErr: make(chan error, 1),
	}
	go func() { r.waitErr <- cmd.Wait() }()
	return r, nil
}

func (r *ExecRuntime) Apply(ctx context.Context, ev mpwebrtc.InputEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("program stdin closed")
	}
	if err := r.encoder.Encode(ev); err != nil {
		return fmt.Errorf("failed to write event to program: %w", err)
	}
	return nil
}

// Close closes the program's stdin and waits for it to exit.
func (r *ExecRuntime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.stdin.Close()
	r.mu.Unlock()
	return <-r.waitErr
}
