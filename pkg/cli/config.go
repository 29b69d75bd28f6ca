package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/repository"
	"github.com/m-mizutani/sahayak/pkg/usecase/identity"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	configPath string

	// Assistant backend
	endpoint string
	timeout  time.Duration
	locale   string

	// Profile
	profileDir string

	// Devices
	recorderCommand string
	sampleRate      int64
	channels        int64
	playerCommand   string

	// Output
	logLevel  string
	logOutput string
	noColor   bool
}

// fileConfig is the layout of the optional YAML config file
type fileConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Locale     string `yaml:"locale"`
	Timeout    string `yaml:"timeout"`
	ProfileDir string `yaml:"profile_dir"`
	LogLevel   string `yaml:"log_level"`
	Recorder   struct {
		Command    string `yaml:"command"`
		SampleRate int64  `yaml:"sample_rate"`
		Channels   int64  `yaml:"channels"`
	} `yaml:"recorder"`
	Player struct {
		Command string `yaml:"command"`
	} `yaml:"player"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("SAHAYAK_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "endpoint",
			Aliases:     []string{"e"},
			Usage:       "Base URL of the assistant API",
			Value:       adapter.DefaultEndpoint,
			Sources:     cli.EnvVars("SAHAYAK_ENDPOINT"),
			Destination: &cfg.endpoint,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of each request to the assistant",
			Value:       adapter.DefaultTimeout,
			Sources:     cli.EnvVars("SAHAYAK_TIMEOUT"),
			Destination: &cfg.timeout,
		},
		&cli.StringFlag{
			Name:        "locale",
			Aliases:     []string{"l"},
			Usage:       "Conversation language (en, hi, mr)",
			Value:       string(model.DefaultLocale),
			Sources:     cli.EnvVars("SAHAYAK_LOCALE"),
			Destination: &cfg.locale,
		},
		&cli.StringFlag{
			Name:        "profile-dir",
			Usage:       "Directory keeping the session identifier (default: $XDG_CONFIG_HOME/sahayak)",
			Sources:     cli.EnvVars("SAHAYAK_PROFILE_DIR"),
			Destination: &cfg.profileDir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "warn",
			Sources:     cli.EnvVars("SAHAYAK_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log file path, '-' for stderr",
			Value:       "-",
			Sources:     cli.EnvVars("SAHAYAK_LOG_OUTPUT"),
			Destination: &cfg.logOutput,
		},
		&cli.BoolFlag{
			Name:        "no-color",
			Usage:       "Disable colored output",
			Destination: &cfg.noColor,
		},
	}
}

// deviceFlags returns flags for the recorder and player commands
func deviceFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "recorder",
			Usage:       "Command writing raw 16-bit PCM to stdout (default: arecord)",
			Sources:     cli.EnvVars("SAHAYAK_RECORDER"),
			Destination: &cfg.recorderCommand,
		},
		&cli.IntFlag{
			Name:        "sample-rate",
			Usage:       "Recording sample rate in Hz",
			Value:       int64(model.DefaultPCMFormat.SampleRate),
			Destination: &cfg.sampleRate,
		},
		&cli.IntFlag{
			Name:        "channels",
			Usage:       "Recording channel count",
			Value:       int64(model.DefaultPCMFormat.Channels),
			Destination: &cfg.channels,
		},
		&cli.StringFlag{
			Name:        "player",
			Usage:       "Command playing an audio URL given as last argument (default: ffplay)",
			Sources:     cli.EnvVars("SAHAYAK_PLAYER"),
			Destination: &cfg.playerCommand,
		},
	}
}

// isSetter reports whether a flag was given on the command line or environment
type isSetter interface {
	IsSet(name string) bool
}

// loadFile fills values not set by flags or environment from the config file
func (cfg *config) loadFile(c isSetter) error {
	if cfg.configPath == "" {
		return nil
	}

	raw, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}

	setString := func(name, value string, dst *string) {
		if value != "" && !c.IsSet(name) {
			*dst = value
		}
	}
	setInt := func(name string, value int64, dst *int64) {
		if value != 0 && !c.IsSet(name) {
			*dst = value
		}
	}

	setString("endpoint", fc.Endpoint, &cfg.endpoint)
	setString("locale", fc.Locale, &cfg.locale)
	setString("profile-dir", fc.ProfileDir, &cfg.profileDir)
	setString("log-level", fc.LogLevel, &cfg.logLevel)
	setString("recorder", fc.Recorder.Command, &cfg.recorderCommand)
	setString("player", fc.Player.Command, &cfg.playerCommand)
	setInt("sample-rate", fc.Recorder.SampleRate, &cfg.sampleRate)
	setInt("channels", fc.Recorder.Channels, &cfg.channels)

	if fc.Timeout != "" && !c.IsSet("timeout") {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return goerr.Wrap(err, "invalid timeout in config file", goerr.V("timeout", fc.Timeout))
		}
		cfg.timeout = d
	}

	return nil
}

// setup loads the config file and installs the logger. The returned function
// closes the log output.
func (cfg *config) setup(ctx context.Context, c isSetter) (context.Context, func(), error) {
	if err := cfg.loadFile(c); err != nil {
		return ctx, func() {}, err
	}

	logger, closer, err := logging.Open(cfg.logLevel, cfg.logOutput)
	if err != nil {
		return ctx, func() {}, goerr.Wrap(err, "failed to open log output")
	}
	logging.SetDefault(logger)

	return logging.With(ctx, logger), func() { _ = closer() }, nil
}

// newLocale returns the configured conversation locale
func (cfg *config) newLocale() model.Locale {
	return model.ParseLocale(cfg.locale)
}

// newAssistant creates the assistant API client
func (cfg *config) newAssistant() (*adapter.AssistantClient, error) {
	if cfg.endpoint == "" {
		return nil, goerr.New("endpoint is required")
	}
	if cfg.timeout < 0 {
		return nil, goerr.New("timeout must not be negative", goerr.V("timeout", cfg.timeout))
	}

	client, err := adapter.NewAssistant(cfg.endpoint, adapter.WithTimeout(cfg.timeout))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create assistant client")
	}
	return client, nil
}

// profilePath resolves the profile directory
func (cfg *config) profilePath() (string, error) {
	if cfg.profileDir != "" {
		return cfg.profileDir, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to locate user config directory, set --profile-dir")
	}
	return filepath.Join(base, "sahayak"), nil
}

// newStore creates the session identifier store
func (cfg *config) newStore() (*repository.File, error) {
	dir, err := cfg.profilePath()
	if err != nil {
		return nil, err
	}
	return repository.NewFile(dir), nil
}

// newIdentity creates the session identity manager. Without a usable profile
// directory the identifier lives in memory only.
func (cfg *config) newIdentity(ctx context.Context) *identity.Manager {
	store, err := cfg.newStore()
	if err != nil {
		logging.From(ctx).Warn("session identifier will not persist", "error", err)
		return identity.New(repository.NewMemory())
	}
	return identity.New(store)
}

func (cfg *config) pcmFormat() (model.PCMFormat, error) {
	format := model.DefaultPCMFormat
	if cfg.sampleRate > 0 {
		format.SampleRate = int(cfg.sampleRate)
	}
	if cfg.channels > 0 {
		format.Channels = int(cfg.channels)
	}
	if format.Channels > 8 {
		return format, goerr.New("unsupported channel count", goerr.V("channels", format.Channels))
	}
	return format, nil
}

// newMicrophone creates the recorder backed microphone
func (cfg *config) newMicrophone() (*adapter.CommandMicrophone, error) {
	format, err := cfg.pcmFormat()
	if err != nil {
		return nil, err
	}
	return adapter.NewCommandMicrophone(strings.Fields(cfg.recorderCommand), format), nil
}

// newPlayer creates the audio player
func (cfg *config) newPlayer() *adapter.CommandPlayer {
	return adapter.NewCommandPlayer(strings.Fields(cfg.playerCommand))
}
