package adapter_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
)

func TestCommandPlayerPassesURL(t *testing.T) {
	requireShell(t)
	out := filepath.Join(t.TempDir(), "played")
	player := adapter.NewCommandPlayer([]string{"sh", "-c", `printf '%s' "$1" > "$0"`, out})

	pb, err := player.Play(context.Background(), "https://cdn.example.com/r.mp3")
	gt.NoError(t, err)

	select {
	case <-pb.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player did not exit")
	}

	data, err := os.ReadFile(out)
	gt.NoError(t, err)
	gt.Equal(t, string(data), "https://cdn.example.com/r.mp3")
	gt.NoError(t, pb.Stop())
}

func TestCommandPlayerStop(t *testing.T) {
	requireShell(t)
	player := adapter.NewCommandPlayer([]string{"sh", "-c", "exec sleep 30"})

	pb, err := player.Play(context.Background(), "https://cdn.example.com/r.mp3")
	gt.NoError(t, err)
	gt.NoError(t, pb.Stop())

	select {
	case <-pb.Done():
	default:
		t.Fatal("playback should be finished after Stop")
	}
	gt.NoError(t, pb.Stop())
}

func TestCommandPlayerFailures(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		player := adapter.NewCommandPlayer([]string{"/nonexistent/player-binary"})
		_, err := player.Play(context.Background(), "https://cdn.example.com/r.mp3")
		gt.True(t, errors.Is(err, model.ErrPlayback))
	})

	t.Run("empty url", func(t *testing.T) {
		player := adapter.NewCommandPlayer(nil)
		_, err := player.Play(context.Background(), "")
		gt.True(t, errors.Is(err, model.ErrPlayback))
	})
}
