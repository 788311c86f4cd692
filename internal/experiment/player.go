package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// FilePlaceholder in ExecPlayer.Args is replaced by the stimulus file path.
const FilePlaceholder = "{file}"

// ErrPlayerBusy is returned when Start is called while playback is running.
var ErrPlayerBusy = errors.New("player already active")

// Player plays a stimulus WAV file in the background.
type Player interface {
	// Start begins playback and returns without waiting for it to finish.
	Start(ctx context.Context, path string) error
	// Active reports whether playback is still running.
	Active() bool
	// Stop ends playback early. Stopping an idle player is a no-op.
	Stop() error
}

// ExecPlayer plays files through an external command such as aplay or afplay.
type ExecPlayer struct {
	Command string
	Args    []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewExecPlayer returns a player for the platform's stock command-line player.
func NewExecPlayer() *ExecPlayer {
	if runtime.GOOS == "darwin" {
		return &ExecPlayer{Command: "afplay", Args: []string{FilePlaceholder}}
	}
	return &ExecPlayer{Command: "aplay", Args: []string{"-q", FilePlaceholder}}
}

func (p *ExecPlayer) args(path string) []string {
	out := make([]string, 0, len(p.Args)+1)
	found := false
	for _, a := range p.Args {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, path)
			found = true
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, path)
	}
	return out
}

// Start launches the command.
func (p *ExecPlayer) Start(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && !closed(p.done) {
		return ErrPlayerBusy
	}

	cmd := exec.CommandContext(ctx, p.Command, p.args(path)...)
	glog.V(1).Infof("player: running %q", cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player %s: %w", p.Command, err)
	}

	done := make(chan struct{})
	go func() {
		if err := cmd.Wait(); err != nil {
			glog.V(1).Infof("player: %s exited: %v", p.Command, err)
		}
		close(done)
	}()
	p.cmd, p.done = cmd, done
	return nil
}

// Active reports whether the command is still running.
func (p *ExecPlayer) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && !closed(p.done)
}

// Stop kills the command and waits for it to exit.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	if cmd == nil || closed(done) {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop player: %w", err)
	}
	<-done
	return nil
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
