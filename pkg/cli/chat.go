package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/usecase/capture"
	"github.com/m-mizutani/sahayak/pkg/usecase/chat"
	"github.com/m-mizutani/sahayak/pkg/usecase/identity"
	"github.com/m-mizutani/sahayak/pkg/usecase/reply"
	"github.com/m-mizutani/sahayak/pkg/usecase/speech"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

const (
	promptIdle      = "> "
	promptRecording = "● rec > "
)

const chatHelp = `Commands:
  /rec            start recording a voice message
  /stop           send the recording (an empty line also works)
  /cancel         discard the recording
  /lang <en|hi|mr> switch language
  /play [N]       play the audio of reply N (default: latest)
  /say <text>     read text aloud
  /session        show the session identifier
  /help           show this help
  /exit           quit`

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, deviceFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive conversation",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, closeLog, err := cfg.setup(ctx, c)
			defer closeLog()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Initialize dependencies
			assistant, err := cfg.newAssistant()
			if err != nil {
				return err
			}

			mic, err := cfg.newMicrophone()
			if err != nil {
				return err
			}

			ids := cfg.newIdentity(ctx)
			sessionID := ids.GetOrCreate(ctx)

			historyFile := ""
			if dir, err := cfg.profilePath(); err == nil {
				historyFile = filepath.Join(dir, "history")
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          promptIdle,
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				Stdout:          c.Root().Writer,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize line editor")
			}
			defer rl.Close()

			tty := term.IsTerminal(int(os.Stdout.Fd()))
			printerOpts := []reply.PrinterOption{}
			if cfg.noColor || !tty {
				printerOpts = append(printerOpts, reply.WithNoColor())
			}

			sh := &chatShell{
				out:      rl.Stdout(),
				rl:       rl,
				ids:      ids,
				endpoint: assistant.Endpoint(),
				capture:  capture.New(mic),
				narrator: speech.New(assistant, cfg.newPlayer()),
				printer:  reply.NewPrinter(rl.Stdout(), printerOpts...),
			}
			if tty {
				sh.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(rl.Stdout()))
				sh.spin.Suffix = " waiting for reply..."
			}
			sh.conv = chat.New(assistant, sessionID, cfg.newLocale(),
				chat.WithTimeout(cfg.timeout),
				chat.WithObserver(sh.onMessage),
			)

			logging.From(ctx).Info("chat started", "session_id", sessionID, "endpoint", assistant.Endpoint())
			return sh.run(ctx)
		},
	}
}

// chatShell binds the conversation, capture and narration to a line editor
type chatShell struct {
	out      io.Writer
	rl       *readline.Instance
	conv     *chat.Conversation
	capture  *capture.Pipeline
	narrator *speech.Narrator
	printer  *reply.Printer
	spin     *spinner.Spinner
	ids      *identity.Manager
	endpoint string

	mu      sync.Mutex
	printed int
}

func (s *chatShell) run(ctx context.Context) error {
	defer func() {
		if err := s.capture.Close(); err != nil {
			logging.From(ctx).Warn("failed to release microphone", "error", err)
		}
		s.narrator.Stop(ctx)
	}()

	s.printLog()
	if s.ids.Degraded() {
		s.printer.Notice("Session storage is unavailable; this conversation will not be resumed next time.")
	}
	s.printer.Notice("Type /help for commands.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if s.recording() {
				s.cancelRecording(ctx)
				continue
			}
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return goerr.Wrap(err, "failed to read input")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			if s.recording() {
				s.stopRecording(ctx)
			}
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}

		if s.recording() {
			s.printer.Notice("Recording in progress. Send it with /stop or discard it with /cancel.")
			continue
		}
		s.submit(ctx, chat.Input{Text: line})
	}
}

// command runs a slash command and reports whether the shell should quit
func (s *chatShell) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/exit", "/quit":
		return true
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/rec":
		s.startRecording(ctx)
	case "/stop":
		s.stopRecording(ctx)
	case "/cancel":
		s.cancelRecording(ctx)
	case "/lang":
		s.switchLocale(arg)
	case "/play":
		s.play(ctx, arg)
	case "/say":
		s.say(ctx, arg)
	case "/session":
		fmt.Fprintf(s.out, "Session: %s\nEndpoint: %s\nLanguage: %s\n", s.conv.SessionID(), s.endpoint, s.conv.Locale())
		if s.ids.Degraded() {
			s.printer.Notice("Session identifier is not persisted.")
		}
	default:
		s.printer.Notice("Unknown command %s. Type /help for commands.", name)
	}
	return false
}

func (s *chatShell) submit(ctx context.Context, in chat.Input) {
	err := s.conv.Submit(ctx, in)
	s.stopSpinner()

	switch {
	case err == nil:
	case errors.Is(err, model.ErrBusy):
		s.printer.Notice("Still waiting for the previous reply.")
	case errors.Is(err, model.ErrEmptyInput):
		s.printer.Notice("Nothing to send.")
	default:
		logging.From(ctx).Error("failed to submit message", "error", err)
	}
}

func (s *chatShell) recording() bool {
	return s.capture.State() == capture.StateRecording
}

func (s *chatShell) startRecording(ctx context.Context) {
	if err := s.capture.Start(ctx); err != nil {
		switch {
		case errors.Is(err, model.ErrCaptureInProgress):
			s.printer.Notice("Already recording.")
		case errors.Is(err, model.ErrPermissionDenied):
			s.printer.Notice("Microphone access was denied. Check the permissions of your audio device.")
		case errors.Is(err, model.ErrDeviceUnavailable):
			s.printer.Notice("No microphone is available. Check --recorder and your audio device.")
		default:
			s.printer.Notice("Could not start recording: %v", err)
		}
		logging.From(ctx).Warn("failed to start recording", "error", err)
		return
	}
	s.rl.SetPrompt(promptRecording)
	s.printer.Notice("Recording... press Enter or type /stop to send, /cancel to discard.")
}

func (s *chatShell) stopRecording(ctx context.Context) {
	if !s.recording() {
		s.printer.Notice("Not recording. Type /rec to start.")
		return
	}

	audio, err := s.capture.Stop(ctx)
	s.rl.SetPrompt(promptIdle)
	if err != nil {
		s.printer.Notice("Recording failed: %v", err)
		logging.From(ctx).Warn("failed to finalize recording", "error", err)
		return
	}
	if audio.Empty() {
		s.printer.Notice("Nothing was recorded.")
		return
	}

	s.submit(ctx, chat.Input{Audio: audio})
}

func (s *chatShell) cancelRecording(ctx context.Context) {
	if !s.recording() {
		return
	}
	if err := s.capture.Close(); err != nil {
		logging.From(ctx).Warn("failed to release microphone", "error", err)
	}
	s.rl.SetPrompt(promptIdle)
	s.printer.Notice("Recording discarded.")
}

func (s *chatShell) switchLocale(arg string) {
	locale := model.Locale(strings.ToLower(arg))
	if !locale.Supported() {
		s.printer.Notice("Usage: /lang <en|hi|mr>")
		return
	}

	if s.conv.SetLocale(locale) {
		s.mu.Lock()
		s.printed = 0
		s.mu.Unlock()
		s.printLog()
		return
	}
	s.printer.Notice("Language set to %s. The greeting is kept because the conversation has started.", locale)
}

func (s *chatShell) play(ctx context.Context, arg string) {
	msgs := s.conv.Messages()

	index := 0
	if arg == "" {
		for i := len(msgs) - 1; i >= 0; i-- {
			if reply.Project(msgs[i]).Audio != nil {
				index = i + 1
				break
			}
		}
		if index == 0 {
			s.printer.Notice("No reply with audio yet.")
			return
		}
	} else {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(msgs) {
			s.printer.Notice("Usage: /play [N] where N is a message number")
			return
		}
		index = n
	}

	v := reply.Project(msgs[index-1])
	if v.Audio == nil {
		s.printer.Notice("Message %d has no audio.", index)
		return
	}
	if err := s.narrator.Play(ctx, v.Audio.URL); err != nil {
		s.printer.Notice("Could not play audio: %v", err)
		logging.From(ctx).Warn("failed to play audio", "error", err, "url", v.Audio.URL)
	}
}

func (s *chatShell) say(ctx context.Context, text string) {
	if text == "" {
		s.printer.Notice("Usage: /say <text>")
		return
	}
	if _, err := s.narrator.Narrate(ctx, text, s.conv.Locale()); err != nil {
		switch {
		case errors.Is(err, model.ErrSynthesis):
			s.printer.Notice("Speech synthesis failed.")
		default:
			s.printer.Notice("Could not read text aloud: %v", err)
		}
		logging.From(ctx).Warn("failed to narrate", "error", err)
	}
}

// printLog prints messages of the log not printed yet
func (s *chatShell) printLog() {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.conv.Messages()
	for ; s.printed < len(msgs); s.printed++ {
		_ = s.printer.Print(s.printed+1, reply.Project(msgs[s.printed]))
	}
}

// onMessage prints each appended message and shows the spinner while a reply is pending
func (s *chatShell) onMessage(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopSpinner()
	s.printed++
	_ = s.printer.Print(s.printed, reply.Project(msg))
	if !msg.IsBot() && s.spin != nil {
		s.spin.Start()
	}
}

func (s *chatShell) stopSpinner() {
	if s.spin != nil {
		s.spin.Stop()
	}
}
