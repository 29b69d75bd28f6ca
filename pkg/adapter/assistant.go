package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/utils/logging"
)

// Assistant is the interface for the backend assistant service
type Assistant interface {
	// Chat submits a text turn
	Chat(ctx context.Context, sessionID model.SessionID, text string) (*model.BotReply, error)
	// Audio submits a finalized recording as a voice turn
	Audio(ctx context.Context, sessionID model.SessionID, audio *model.Audio) (*model.BotReply, error)
	// Synthesize renders text as speech and returns the URL of the audio
	Synthesize(ctx context.Context, text string, locale model.Locale) (string, error)
}

const (
	DefaultEndpoint = "http://localhost:8000/api"
	DefaultTimeout  = 60 * time.Second

	maxResponseSize = 4 << 20
)

// AssistantClient implements Assistant over the backend HTTP API
type AssistantClient struct {
	endpoint   *url.URL
	httpClient *http.Client
}

// AssistantOption is a functional option for AssistantClient
type AssistantOption func(*AssistantClient)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(client *http.Client) AssistantOption {
	return func(c *AssistantClient) {
		c.httpClient = client
	}
}

// WithTimeout bounds every request. A slow backend is reported as a failure
// instead of leaving a turn pending forever.
func WithTimeout(timeout time.Duration) AssistantOption {
	return func(c *AssistantClient) {
		c.httpClient.Timeout = timeout
	}
}

// NewAssistant creates a client for the API rooted at endpoint, e.g. http://localhost:8000/api
func NewAssistant(endpoint string, opts ...AssistantOption) (*AssistantClient, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, goerr.Wrap(err, "invalid assistant endpoint", goerr.V("endpoint", endpoint))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, goerr.New("assistant endpoint must be http or https", goerr.V("endpoint", endpoint))
	}
	if u.Host == "" {
		return nil, goerr.New("assistant endpoint has no host", goerr.V("endpoint", endpoint))
	}

	c := &AssistantClient{
		endpoint:   u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Endpoint returns the API root the client talks to
func (c *AssistantClient) Endpoint() string {
	return c.endpoint.String()
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ttsRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type ttsResponse struct {
	AudioURL      string `json:"audio_url"`
	AudioURLCamel string `json:"audioUrl"`
}

func (c *AssistantClient) Chat(ctx context.Context, sessionID model.SessionID, text string) (*model.BotReply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(model.ErrEmptyInput, "chat message is empty")
	}

	body, err := json.Marshal(chatRequest{SessionID: string(sessionID), Message: text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal chat request")
	}

	data, err := c.post(ctx, "/chat", "application/json", body)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "chat request failed",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}

	reply, err := c.normalize(data)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "malformed chat response",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}

	return reply, nil
}

func (c *AssistantClient) Audio(ctx context.Context, sessionID model.SessionID, audio *model.Audio) (*model.BotReply, error) {
	if audio.Empty() {
		return nil, goerr.Wrap(model.ErrEmptyInput, "audio is empty")
	}

	body, contentType, err := encodeAudioForm(sessionID, audio)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build audio form")
	}

	data, err := c.post(ctx, "/audio", contentType, body)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "audio request failed",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}

	reply, err := c.normalize(data)
	if err != nil {
		return nil, goerr.Wrap(model.ErrTransport, "malformed audio response",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}

	return reply, nil
}

func (c *AssistantClient) Synthesize(ctx context.Context, text string, locale model.Locale) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", goerr.Wrap(model.ErrSynthesis, "no text to synthesize")
	}

	body, err := json.Marshal(ttsRequest{Text: text, Language: locale.Language()})
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal tts request")
	}

	data, err := c.post(ctx, "/tts", "application/json", body)
	if err != nil {
		return "", goerr.Wrap(model.ErrSynthesis, "tts request failed",
			goerr.V("language", locale.Language()), goerr.V("cause", err.Error()))
	}

	var resp ttsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", goerr.Wrap(model.ErrSynthesis, "malformed tts response", goerr.V("cause", err.Error()))
	}

	audioURL := firstNonEmpty(resp.AudioURL, resp.AudioURLCamel)
	if audioURL == "" {
		return "", goerr.Wrap(model.ErrSynthesis, "no audio url in tts response")
	}

	return c.resolve(audioURL), nil
}

// Health probes the backend root, which answers {"status": "running"}
func (c *AssistantClient) Health(ctx context.Context) (string, error) {
	origin := url.URL{Scheme: c.endpoint.Scheme, Host: c.endpoint.Host, Path: "/"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin.String(), nil)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create health request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "health request failed", goerr.V("url", origin.String()))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", goerr.New("unexpected health status", goerr.V("status", resp.StatusCode))
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&health); err != nil {
		return "", goerr.Wrap(err, "malformed health response")
	}

	return health.Status, nil
}

func (c *AssistantClient) post(ctx context.Context, path, contentType string, body []byte) ([]byte, error) {
	target := c.endpoint.JoinPath(path).String()
	requestID := uuid.NewString()
	logger := logging.From(ctx).With("request_id", requestID, "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", target))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	logger.Debug("sending request", "size", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.V("url", target), goerr.V("request_id", requestID))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response", goerr.V("url", target), goerr.V("request_id", requestID))
	}

	logger.Debug("received response", "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, goerr.New("unexpected status code",
			goerr.V("url", target),
			goerr.V("status", resp.StatusCode),
			goerr.V("request_id", requestID),
			goerr.V("body", truncate(string(data), 256)),
		)
	}

	return data, nil
}

func encodeAudioForm(sessionID model.SessionID, audio *model.Audio) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := w.WriteField("session_id", string(sessionID)); err != nil {
		return nil, "", goerr.Wrap(err, "failed to write session_id field")
	}

	fileName := firstNonEmpty(audio.FileName, model.AudioFileName)
	mimeType := firstNonEmpty(audio.MIMEType, model.AudioMIMEType)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+escapeQuotes(fileName)+`"`)
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to create file part")
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", goerr.Wrap(err, "failed to write audio data")
	}

	if err := w.Close(); err != nil {
		return nil, "", goerr.Wrap(err, "failed to close multipart writer")
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
