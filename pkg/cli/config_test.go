package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/repository"
)

type setFlags map[string]bool

func (s setFlags) IsSet(name string) bool { return s[name] }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleConfig = `endpoint: https://sahayak.example.com/api
locale: mr
timeout: 15s
profile_dir: /tmp/sahayak-profile
log_level: debug
recorder:
  command: parecord --raw
  sample_rate: 22050
  channels: 2
player:
  command: mpv --no-video
`

func TestLoadFile(t *testing.T) {
	cfg := config{
		configPath: writeConfig(t, sampleConfig),
		endpoint:   adapter.DefaultEndpoint,
		timeout:    adapter.DefaultTimeout,
		locale:     "en",
		logLevel:   "warn",
	}
	gt.NoError(t, cfg.loadFile(setFlags{}))

	gt.Equal(t, cfg.endpoint, "https://sahayak.example.com/api")
	gt.Equal(t, cfg.newLocale(), model.LocaleMarathi)
	gt.Equal(t, cfg.timeout, 15*time.Second)
	gt.Equal(t, cfg.profileDir, "/tmp/sahayak-profile")
	gt.Equal(t, cfg.logLevel, "debug")
	gt.Equal(t, cfg.recorderCommand, "parecord --raw")
	gt.Equal(t, cfg.sampleRate, int64(22050))
	gt.Equal(t, cfg.channels, int64(2))
	gt.Equal(t, cfg.playerCommand, "mpv --no-video")
}

func TestLoadFileKeepsExplicitFlags(t *testing.T) {
	cfg := config{
		configPath: writeConfig(t, sampleConfig),
		endpoint:   "http://127.0.0.1:9000/api",
		timeout:    3 * time.Second,
		locale:     "hi",
	}
	gt.NoError(t, cfg.loadFile(setFlags{"endpoint": true, "timeout": true, "locale": true}))

	gt.Equal(t, cfg.endpoint, "http://127.0.0.1:9000/api")
	gt.Equal(t, cfg.timeout, 3*time.Second)
	gt.Equal(t, cfg.newLocale(), model.LocaleHindi)
	gt.Equal(t, cfg.profileDir, "/tmp/sahayak-profile")
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("no config file", func(t *testing.T) {
		cfg := config{endpoint: adapter.DefaultEndpoint}
		gt.NoError(t, cfg.loadFile(setFlags{}))
		gt.Equal(t, cfg.endpoint, adapter.DefaultEndpoint)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := config{configPath: filepath.Join(t.TempDir(), "absent.yaml")}
		gt.Error(t, cfg.loadFile(setFlags{}))
	})

	t.Run("broken yaml", func(t *testing.T) {
		cfg := config{configPath: writeConfig(t, "endpoint: [unclosed")}
		gt.Error(t, cfg.loadFile(setFlags{}))
	})

	t.Run("invalid timeout", func(t *testing.T) {
		cfg := config{configPath: writeConfig(t, "timeout: soon\n")}
		gt.Error(t, cfg.loadFile(setFlags{}))
	})
}

func TestNewAssistant(t *testing.T) {
	cfg := config{endpoint: "https://sahayak.example.com/api", timeout: time.Second}
	client, err := cfg.newAssistant()
	gt.NoError(t, err)
	gt.Equal(t, client.Endpoint(), "https://sahayak.example.com/api")

	_, err = (&config{}).newAssistant()
	gt.Error(t, err)

	_, err = (&config{endpoint: "https://sahayak.example.com/api", timeout: -time.Second}).newAssistant()
	gt.Error(t, err)
}

func TestPCMFormat(t *testing.T) {
	format, err := (&config{}).pcmFormat()
	gt.NoError(t, err)
	gt.Equal(t, format, model.DefaultPCMFormat)

	format, err = (&config{sampleRate: 44100, channels: 2}).pcmFormat()
	gt.NoError(t, err)
	gt.Equal(t, format.SampleRate, 44100)
	gt.Equal(t, format.Channels, 2)

	_, err = (&config{channels: 16}).pcmFormat()
	gt.Error(t, err)
}

func TestProfilePath(t *testing.T) {
	dir, err := (&config{profileDir: "/srv/profile"}).profilePath()
	gt.NoError(t, err)
	gt.Equal(t, dir, "/srv/profile")

	t.Setenv("XDG_CONFIG_HOME", "/home/tester/.config")
	t.Setenv("HOME", "/home/tester")
	dir, err = (&config{}).profilePath()
	gt.NoError(t, err)
	gt.Equal(t, dir, "/home/tester/.config/sahayak")
}

func TestNewIdentityPersists(t *testing.T) {
	dir := t.TempDir()
	cfg := config{profileDir: dir}

	first := cfg.newIdentity(context.Background()).GetOrCreate(context.Background())
	second := cfg.newIdentity(context.Background()).GetOrCreate(context.Background())
	gt.Equal(t, first, second)

	id, found, err := repository.NewFile(dir).GetSessionID(context.Background())
	gt.NoError(t, err)
	gt.True(t, found)
	gt.Equal(t, id, first)
}

func TestSessionReset(t *testing.T) {
	dir := t.TempDir()
	store := repository.NewFile(dir)
	gt.NoError(t, store.PutSessionID(context.Background(), model.SessionID("web_abcdefghij")))

	err := Run(context.Background(), []string{"sahayak", "session", "reset", "--profile-dir", dir})
	gt.True(t, err == nil)

	_, found, getErr := store.GetSessionID(context.Background())
	gt.NoError(t, getErr)
	gt.False(t, found)
}

func TestSayRequiresText(t *testing.T) {
	err := Run(context.Background(), []string{"sahayak", "say", "--no-play", "--log-output", filepath.Join(t.TempDir(), "log")})
	gt.True(t, err != nil)
	gt.Equal(t, err.Code, 1)
}
