package chat

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/adapter"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

// Input is one user submission. Audio takes precedence over Text when both are set.
type Input struct {
	Text  string
	Audio *model.Audio
}

// Observer is notified after a message has been appended to the log. It is
// not called for greetings.
type Observer func(msg model.Message)

// Conversation owns the message log of one chat view and the in-flight gate.
// At most one turn is pending at a time; a Submit during a pending turn is
// rejected without touching the log.
type Conversation struct {
	assistant adapter.Assistant
	sessionID model.SessionID
	timeout   time.Duration
	now       func() time.Time
	observers []Observer

	mu        sync.Mutex
	locale    model.Locale
	messages  []model.Message
	loading   bool
	userTurns int
	lastStamp int64
}

// Option is a functional option for Conversation
type Option func(*Conversation)

// WithTimeout bounds each turn. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Conversation) {
		c.timeout = d
	}
}

// WithClock replaces the time source used for ids and timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Conversation) {
		c.now = now
	}
}

// WithObserver registers a callback for appended messages
func WithObserver(fn Observer) Option {
	return func(c *Conversation) {
		c.observers = append(c.observers, fn)
	}
}

// New creates a conversation seeded with the greeting of locale
func New(assistant adapter.Assistant, sessionID model.SessionID, locale model.Locale, opts ...Option) *Conversation {
	c := &Conversation{
		assistant: assistant,
		sessionID: sessionID,
		timeout:   adapter.DefaultTimeout,
		now:       time.Now,
		locale:    model.ParseLocale(string(locale)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.messages = []model.Message{c.newMessage(model.SenderBot, c.locale.Greeting(), nil, false)}
	return c
}

// Submit sends one user turn and waits for its resolution. It returns
// model.ErrBusy while another turn is pending and model.ErrEmptyInput when
// there is nothing to send; in both cases the log is unchanged. Once
// accepted, the turn always ends with a bot message appended: the reply, or
// an apology when the transport failed. Transport errors are not returned.
func (c *Conversation) Submit(ctx context.Context, in Input) error {
	text := strings.TrimSpace(in.Text)
	voice := !in.Audio.Empty()
	if text == "" && !voice {
		return goerr.Wrap(model.ErrEmptyInput, "nothing to submit")
	}

	label := text
	if voice && label == "" {
		label = model.VoicePlaceholder
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return goerr.Wrap(model.ErrBusy, "submission rejected", goerr.V("session_id", c.sessionID))
	}
	user := c.appendLocked(c.newMessage(model.SenderUser, label, nil, false))
	c.loading = true
	c.userTurns++
	c.mu.Unlock()

	c.notify(user)

	var (
		reply *model.BotReply
		err   error
	)
	// resolve even if the transport panics, so the gate never stays closed
	defer func() {
		c.resolve(ctx, reply, err)
	}()

	reply, err = c.dispatch(ctx, text, in.Audio, voice)
	return nil
}

func (c *Conversation) dispatch(ctx context.Context, text string, audio *model.Audio, voice bool) (*model.BotReply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if voice {
		return c.assistant.Audio(ctx, c.sessionID, audio)
	}
	return c.assistant.Chat(ctx, c.sessionID, text)
}

func (c *Conversation) resolve(ctx context.Context, reply *model.BotReply, err error) {
	logger := logging.From(ctx)

	c.mu.Lock()
	var msg model.Message
	switch {
	case err != nil || reply == nil:
		if err == nil {
			err = goerr.Wrap(model.ErrTransport, "turn ended without a reply")
		}
		logger.Warn("turn failed", "session_id", c.sessionID, "error", err)
		msg = c.appendLocked(c.newMessage(model.SenderBot, model.ApologyText, nil, true))
	default:
		msg = c.appendLocked(c.newMessage(model.SenderBot, reply.Text, reply, false))
	}
	c.loading = false
	c.mu.Unlock()

	c.notify(msg)
}

// SetLocale switches the conversation locale. While no user turn has been
// made, the log is replaced by the greeting of the new locale and true is
// returned. Afterwards existing messages are left as they are.
func (c *Conversation) SetLocale(locale model.Locale) bool {
	locale = model.ParseLocale(string(locale))

	c.mu.Lock()
	defer c.mu.Unlock()

	if locale == c.locale {
		return false
	}
	c.locale = locale

	if c.loading || c.userTurns > 0 {
		return false
	}

	c.messages = []model.Message{c.newMessage(model.SenderBot, locale.Greeting(), nil, false)}
	return true
}

// Messages returns a snapshot of the log in insertion order
func (c *Conversation) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Message, len(c.messages))
	for i, m := range c.messages {
		m.Sources = slices.Clone(m.Sources)
		out[i] = m
	}
	return out
}

// IsLoading reports whether a turn is pending
func (c *Conversation) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Locale returns the current conversation locale
func (c *Conversation) Locale() model.Locale {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locale
}

// SessionID returns the session the conversation belongs to
func (c *Conversation) SessionID() model.SessionID {
	return c.sessionID
}

func (c *Conversation) appendLocked(msg model.Message) model.Message {
	c.messages = append(c.messages, msg)
	return msg
}

// newMessage must be called with mu held, or before the conversation is shared
func (c *Conversation) newMessage(sender model.Sender, text string, reply *model.BotReply, failed bool) model.Message {
	now := c.now()

	// ids follow creation time but never repeat or go backwards
	stamp := now.UnixMilli()
	if stamp <= c.lastStamp {
		stamp = c.lastStamp + 1
	}
	c.lastStamp = stamp

	msg := model.Message{
		ID:        model.NewMessageID(stamp, sender, failed),
		Sender:    sender,
		Text:      text,
		Timestamp: now,
	}
	if reply != nil {
		msg.AudioURL = reply.AudioURL
		msg.MediaURL = reply.MediaURL
		msg.MediaType = reply.MediaType
		msg.Sources = slices.Clone(reply.Sources)
	}
	return msg
}

func (c *Conversation) notify(msg model.Message) {
	for _, fn := range c.observers {
		fn(msg)
	}
}
