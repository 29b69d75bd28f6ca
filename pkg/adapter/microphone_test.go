package adapter_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
}

func TestCommandMicrophoneMissingBinary(t *testing.T) {
	mic := adapter.NewCommandMicrophone([]string{"/nonexistent/recorder-binary"}, model.DefaultPCMFormat)

	_, err := mic.Open(context.Background())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDeviceUnavailable))
}

func TestCommandMicrophonePermissionDenied(t *testing.T) {
	requireShell(t)
	mic := adapter.NewCommandMicrophone(
		[]string{"sh", "-c", "echo 'audio open error: Permission denied' >&2; exit 1"},
		model.DefaultPCMFormat,
		adapter.WithProbeDelay(2*time.Second),
	)

	_, err := mic.Open(context.Background())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrPermissionDenied))
}

func TestCommandMicrophoneNoDevice(t *testing.T) {
	requireShell(t)
	mic := adapter.NewCommandMicrophone(
		[]string{"sh", "-c", "echo 'arecord: main: audio open error: No such file or directory' >&2; exit 1"},
		model.DefaultPCMFormat,
		adapter.WithProbeDelay(2*time.Second),
	)

	_, err := mic.Open(context.Background())
	gt.True(t, errors.Is(err, model.ErrDeviceUnavailable))
}

func TestCommandMicrophoneCapture(t *testing.T) {
	requireShell(t)
	// emit a little PCM, then idle until interrupted
	mic := adapter.NewCommandMicrophone(
		[]string{"sh", "-c", "printf 'abcdefgh'; exec sleep 30"},
		model.DefaultPCMFormat,
		adapter.WithProbeDelay(100*time.Millisecond),
	)

	track, err := mic.Open(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, track.Format(), model.DefaultPCMFormat)

	var got []byte
	first := <-track.Chunks()
	got = append(got, first...)

	gt.NoError(t, track.Stop())
	for chunk := range track.Chunks() {
		got = append(got, chunk...)
	}
	gt.Equal(t, string(got), "abcdefgh")

	// second stop is harmless
	gt.NoError(t, track.Stop())
}

func TestDefaultRecorderCommand(t *testing.T) {
	cmd := adapter.DefaultRecorderCommand(model.PCMFormat{SampleRate: 44100, Channels: 2, BitsPerSample: 16})
	gt.Equal(t, cmd[0], "arecord")
	gt.A(t, cmd).Length(10)
	gt.Equal(t, cmd[7], "44100")
	gt.Equal(t, cmd[9], "2")
}
