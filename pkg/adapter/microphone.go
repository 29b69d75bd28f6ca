package adapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

// Track is a live capture handle. Chunks delivers raw PCM in arrival order
// and is closed once the device stops producing data.
type Track interface {
	Chunks() <-chan []byte
	Format() model.PCMFormat
	// Stop releases the device. Callers must invoke it exactly once.
	Stop() error
}

// Microphone opens capture tracks on an audio input device
type Microphone interface {
	Open(ctx context.Context) (Track, error)
}

const (
	defaultChunkSize  = 4096
	defaultProbeDelay = 300 * time.Millisecond
	stopGracePeriod   = 2 * time.Second
)

// DefaultRecorderCommand builds an ALSA arecord command line producing raw PCM in format
func DefaultRecorderCommand(format model.PCMFormat) []string {
	return []string{
		"arecord", "-q", "-t", "raw", "-f", "S16_LE",
		"-r", strconv.Itoa(format.SampleRate),
		"-c", strconv.Itoa(format.Channels),
	}
}

// CommandMicrophone captures audio by running an external recorder that
// writes raw PCM to stdout
type CommandMicrophone struct {
	command    []string
	format     model.PCMFormat
	chunkSize  int
	probeDelay time.Duration
}

// MicrophoneOption is a functional option for CommandMicrophone
type MicrophoneOption func(*CommandMicrophone)

// WithChunkSize sets the read size for PCM chunks
func WithChunkSize(size int) MicrophoneOption {
	return func(m *CommandMicrophone) {
		m.chunkSize = size
	}
}

// WithProbeDelay sets how long Open waits for the recorder to fail fast
func WithProbeDelay(d time.Duration) MicrophoneOption {
	return func(m *CommandMicrophone) {
		m.probeDelay = d
	}
}

// NewCommandMicrophone creates a microphone backed by command. The command
// must emit PCM matching format.
func NewCommandMicrophone(command []string, format model.PCMFormat, opts ...MicrophoneOption) *CommandMicrophone {
	if len(command) == 0 {
		command = DefaultRecorderCommand(format)
	}
	m := &CommandMicrophone{
		command:    command,
		format:     format,
		chunkSize:  defaultChunkSize,
		probeDelay: defaultProbeDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *CommandMicrophone) Open(ctx context.Context) (Track, error) {
	// not CommandContext: the recorder outlives the ctx of the call that opened it
	cmd := exec.Command(m.command[0], m.command[1:]...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, goerr.Wrap(model.ErrDeviceUnavailable, "failed to open recorder output",
			goerr.V("cause", err.Error()))
	}

	if err := cmd.Start(); err != nil {
		return nil, classifyRecorderError(err, "", m.command)
	}

	t := &commandTrack{
		cmd:    cmd,
		format: m.format,
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go t.pump(stdout, m.chunkSize)

	// a recorder without a device or permission exits right away
	select {
	case <-t.done:
		return nil, classifyRecorderError(t.waitErr, stderr.String(), m.command)
	case <-time.After(m.probeDelay):
	case <-ctx.Done():
		go func() {
			for range t.chunks {
			}
		}()
		_ = t.Stop()
		return nil, goerr.Wrap(ctx.Err(), "microphone open canceled")
	}

	logging.From(ctx).Debug("recorder started", "command", m.command, "pid", cmd.Process.Pid)
	return t, nil
}

func classifyRecorderError(err error, stderr string, command []string) error {
	lower := strings.ToLower(stderr)
	cause := stderr
	if err != nil {
		cause = strings.TrimSpace(err.Error() + " " + stderr)
	}
	opts := []goerr.Option{goerr.V("command", command), goerr.V("cause", cause)}

	switch {
	case errors.Is(err, fs.ErrPermission),
		strings.Contains(lower, "permission denied"),
		strings.Contains(lower, "operation not permitted"):
		return goerr.Wrap(model.ErrPermissionDenied, "recorder is not allowed to use the microphone", opts...)
	default:
		return goerr.Wrap(model.ErrDeviceUnavailable, "recorder could not capture audio", opts...)
	}
}

type commandTrack struct {
	cmd    *exec.Cmd
	format model.PCMFormat
	chunks chan []byte

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

func (t *commandTrack) Chunks() <-chan []byte { return t.chunks }

func (t *commandTrack) Format() model.PCMFormat { return t.format }

func (t *commandTrack) pump(r io.Reader, size int) {
	defer close(t.done)

	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			t.chunks <- chunk
		}
		if err != nil {
			break
		}
	}
	close(t.chunks)

	// Wait only after stdout is drained
	t.waitErr = t.cmd.Wait()
}

func (t *commandTrack) Stop() error {
	t.stopOnce.Do(func() {
		// SIGINT lets arecord flush its last buffer
		if err := t.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			t.stopErr = goerr.Wrap(err, "failed to interrupt recorder")
		}

		select {
		case <-t.done:
		case <-time.After(stopGracePeriod):
			_ = t.cmd.Process.Kill()
			<-t.done
		}
	})
	return t.stopErr
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
