package adapter

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

// Playback is a running audio playback
type Playback interface {
	// Done is closed when playback ends for any reason
	Done() <-chan struct{}
	// Stop ends playback. It is safe to call more than once.
	Stop() error
}

// Player starts playback of remote audio
type Player interface {
	Play(ctx context.Context, url string) (Playback, error)
}

// DefaultPlayerCommand plays a URL without a window and exits when done
var DefaultPlayerCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"}

// CommandPlayer plays audio by running an external player with the URL
// appended as its last argument
type CommandPlayer struct {
	command []string
}

func NewCommandPlayer(command []string) *CommandPlayer {
	if len(command) == 0 {
		command = DefaultPlayerCommand
	}
	return &CommandPlayer{command: command}
}

func (p *CommandPlayer) Play(ctx context.Context, url string) (Playback, error) {
	if url == "" {
		return nil, goerr.Wrap(model.ErrPlayback, "no audio URL")
	}

	args := append(append([]string{}, p.command[1:]...), url)
	cmd := exec.Command(p.command[0], args...)
	if err := cmd.Start(); err != nil {
		return nil, goerr.Wrap(model.ErrPlayback, "failed to start player",
			goerr.V("command", p.command), goerr.V("cause", err.Error()))
	}
	logging.From(ctx).Debug("playback started", "url", url, "pid", cmd.Process.Pid)

	pb := &commandPlayback{cmd: cmd, done: make(chan struct{})}
	go func() {
		pb.waitErr = cmd.Wait()
		close(pb.done)
	}()
	return pb, nil
}

type commandPlayback struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

func (p *commandPlayback) Done() <-chan struct{} { return p.done }

func (p *commandPlayback) Stop() error {
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.stopErr = goerr.Wrap(err, "failed to interrupt player")
		}
		select {
		case <-p.done:
		case <-time.After(stopGracePeriod):
			_ = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return p.stopErr
}
