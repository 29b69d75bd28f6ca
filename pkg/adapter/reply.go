package adapter

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sahayak/pkg/model"
)

// rawReply accepts every field name the backend has been seen to use.
// normalize folds them into model.BotReply so nothing downstream looks at
// backend naming.
type rawReply struct {
	ResponseText *string `json:"response_text"`
	Text         *string `json:"text"`

	AudioURL      string `json:"audio_url"`
	AudioURLCamel string `json:"audioUrl"`

	MediaURL      string `json:"media_url"`
	MediaURLCamel string `json:"mediaUrl"`
	FileURL       string `json:"file_url"`

	MediaType      string `json:"media_type"`
	MediaTypeCamel string `json:"mediaType"`

	Sources      []json.RawMessage `json:"sources"`
	UserLanguage string            `json:"user_language"`
}

func (c *AssistantClient) normalize(data []byte) (*model.BotReply, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, goerr.New("response is not a JSON object", goerr.V("body", truncate(string(trimmed), 128)))
	}

	var raw rawReply
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode response")
	}

	reply := &model.BotReply{
		AudioURL:  firstNonEmpty(raw.AudioURL, raw.AudioURLCamel),
		MediaURL:  firstNonEmpty(raw.MediaURL, raw.MediaURLCamel, raw.FileURL),
		MediaType: firstNonEmpty(raw.MediaType, raw.MediaTypeCamel),
		Language:  strings.TrimSpace(raw.UserLanguage),
	}

	hasText := false
	switch {
	case raw.ResponseText != nil:
		reply.Text, hasText = *raw.ResponseText, true
	case raw.Text != nil:
		reply.Text, hasText = *raw.Text, true
	}

	// older backends send synthesized speech as generic media
	if reply.AudioURL == "" && reply.MediaURL != "" && isAudioType(reply.MediaType) {
		reply.AudioURL = reply.MediaURL
		reply.MediaURL = ""
		reply.MediaType = ""
	}

	if !hasText && reply.AudioURL == "" && reply.MediaURL == "" {
		return nil, goerr.New("response has neither text nor media")
	}

	if reply.AudioURL != "" {
		reply.AudioURL = c.resolve(reply.AudioURL)
	}
	if reply.MediaURL != "" {
		reply.MediaURL = c.resolve(reply.MediaURL)
	}

	for _, src := range raw.Sources {
		var s string
		if err := json.Unmarshal(src, &s); err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			reply.Sources = append(reply.Sources, s)
		}
	}

	return reply, nil
}

// resolve turns a server-relative URL such as /static/voice_cache/a.mp3 into
// an absolute one on the backend origin.
func (c *AssistantClient) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}

	origin := &url.URL{Scheme: c.endpoint.Scheme, Host: c.endpoint.Host, Path: "/"}
	return origin.ResolveReference(u).String()
}

func isAudioType(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "audio/")
}
