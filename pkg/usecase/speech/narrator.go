package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

// Synthesizer turns text into a URL of spoken audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, locale model.Locale) (string, error)
}

// Narrator reads text aloud. At most one playback runs at a time; starting a
// new one stops the previous.
type Narrator struct {
	synth  Synthesizer
	player adapter.Player

	mu      sync.Mutex
	current adapter.Playback
	url     string
}

func New(synth Synthesizer, player adapter.Player) *Narrator {
	return &Narrator{synth: synth, player: player}
}

// Narrate synthesizes text and plays it. On failure the current playback,
// if any, keeps going and the error wraps model.ErrSynthesis.
func (n *Narrator) Narrate(ctx context.Context, text string, locale model.Locale) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", goerr.Wrap(model.ErrEmptyInput, "nothing to narrate")
	}

	url, err := n.synth.Synthesize(ctx, text, locale)
	if err != nil {
		return "", goerr.Wrap(err, "failed to narrate", goerr.V("locale", locale))
	}

	if err := n.Play(ctx, url); err != nil {
		return url, err
	}
	return url, nil
}

// Play stops the current playback and starts url
func (n *Narrator) Play(ctx context.Context, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopLocked(ctx)

	pb, err := n.player.Play(ctx, url)
	if err != nil {
		return goerr.Wrap(err, "failed to play audio", goerr.V("url", url))
	}
	n.current = pb
	n.url = url
	return nil
}

// Stop ends the current playback if there is one
func (n *Narrator) Stop(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked(ctx)
}

// Wait blocks until the current playback ends or ctx is done
func (n *Narrator) Wait(ctx context.Context) error {
	n.mu.Lock()
	pb := n.current
	n.mu.Unlock()

	if pb == nil {
		return nil
	}
	select {
	case <-pb.Done():
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "playback interrupted")
	}
}

// Current returns the URL being played, or "" when idle
func (n *Narrator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil {
		return ""
	}
	select {
	case <-n.current.Done():
		return ""
	default:
		return n.url
	}
}

func (n *Narrator) stopLocked(ctx context.Context) {
	if n.current == nil {
		return
	}
	if err := n.current.Stop(); err != nil {
		logging.From(ctx).Warn("failed to stop playback", "error", err, "url", n.url)
	}
	n.current = nil
	n.url = ""
}
