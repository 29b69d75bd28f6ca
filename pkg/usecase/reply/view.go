package reply

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/m-mizutani/sahayak/pkg/model"
)

// documentTypes is the allowlist of attachment media types offered as links
var documentTypes = map[string]string{
	"application/pdf": "PDF",
}

// View is what a message exposes for rendering. Audio and Attachment are nil
// when the message has nothing of that kind to show.
type View struct {
	ID         model.MessageID
	Sender     model.Sender
	Body       string
	Audio      *AudioRef
	Attachment *Attachment
	Sources    []string
	Timestamp  string
}

// AudioRef points at playable audio. Playback is left to the user.
type AudioRef struct {
	URL string
}

// Attachment is a document link
type Attachment struct {
	URL       string
	MediaType string
	Label     string
}

// Project derives the renderable parts of msg. It has no side effects.
func Project(msg model.Message) View {
	v := View{
		ID:        msg.ID,
		Sender:    msg.Sender,
		Body:      msg.Text,
		Sources:   msg.Sources,
		Timestamp: msg.Timestamp.Local().Format("15:04"),
	}

	if msg.IsBot() && msg.AudioURL != "" {
		v.Audio = &AudioRef{URL: msg.AudioURL}
	}

	if msg.MediaURL != "" {
		if kind, ok := documentKind(msg.MediaType); ok {
			v.Attachment = &Attachment{
				URL:       msg.MediaURL,
				MediaType: msg.MediaType,
				Label:     attachmentLabel(msg.MediaURL, kind),
			}
		}
	}

	return v
}

func documentKind(mediaType string) (string, bool) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return "", false
	}
	kind, ok := documentTypes[strings.ToLower(mt)]
	return kind, ok
}

func attachmentLabel(rawURL, kind string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "View Attachment (" + kind + ")"
	}
	return name + " (" + kind + ")"
}
