package capture

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
)

// Pipeline drives one microphone through idle -> recording -> finalizing -> idle.
// At most one capture is active at a time, and the device track of every
// capture is released exactly once whichever way the capture ends.
type Pipeline struct {
	mic adapter.Microphone

	mu    sync.Mutex
	state State
	cur   *session
}

// session is the transient state of one capture
type session struct {
	track   adapter.Track
	release func() error

	mu     sync.Mutex
	chunks [][]byte
	size   int

	collected chan struct{}
}

func New(mic adapter.Microphone) *Pipeline {
	return &Pipeline{
		mic:   mic,
		state: StateIdle,
	}
}

// State returns the current pipeline state
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start opens the microphone and begins accumulating chunks. It fails with
// model.ErrCaptureInProgress while a capture is active, and with
// model.ErrPermissionDenied or model.ErrDeviceUnavailable when the device
// cannot be opened, in which case the pipeline stays idle.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return goerr.Wrap(model.ErrCaptureInProgress, "capture already active", goerr.V("state", p.state))
	}

	track, err := p.mic.Open(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to open microphone")
	}

	s := &session{
		track:     track,
		release:   sync.OnceValue(track.Stop),
		collected: make(chan struct{}),
	}
	go s.collect()

	p.cur = s
	p.state = StateRecording
	logging.From(ctx).Debug("capture started")
	return nil
}

// Stop ends the capture and returns the recording as a WAV object. Calling
// Stop while not recording is a no-op returning nil.
func (p *Pipeline) Stop(ctx context.Context) (*model.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRecording {
		return nil, nil
	}

	p.state = StateFinalizing
	s := p.cur
	defer func() {
		p.cur = nil
		p.state = StateIdle
	}()

	logger := logging.From(ctx)
	if err := s.release(); err != nil {
		logger.Warn("failed to release microphone cleanly", "error", err)
	}

	select {
	case <-s.collected:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "capture finalization canceled")
	}

	data, pcmBytes := encodeWAV(s.track.Format(), s.pcm())
	logger.Debug("capture finalized", "pcm_bytes", pcmBytes, "chunks", len(s.chunks))

	return &model.Audio{
		Data:     data,
		MIMEType: model.AudioMIMEType,
		FileName: model.AudioFileName,
		PCMBytes: pcmBytes,
	}, nil
}

// Close abandons an active capture, discarding its audio and releasing the
// device. It is safe to call in any state and more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil {
		return nil
	}

	s := p.cur
	p.cur = nil
	p.state = StateIdle

	err := s.release()
	<-s.collected
	if err != nil {
		return goerr.Wrap(err, "failed to release microphone")
	}
	return nil
}

func (s *session) collect() {
	defer close(s.collected)
	for chunk := range s.track.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.size += len(chunk)
		s.mu.Unlock()
	}
}

func (s *session) pcm() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}
