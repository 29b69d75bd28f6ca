package reply_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sahayak/pkg/model"
	"github.com/m-mizutani/sahayak/pkg/usecase/reply"
)

func botMessage() model.Message {
	return model.Message{
		ID:        "1700000000000_bot",
		Sender:    model.SenderBot,
		Text:      "Here is the **plan**",
		Timestamp: time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local),
	}
}

func TestProjectTextOnly(t *testing.T) {
	v := reply.Project(botMessage())
	gt.Equal(t, v.Body, "Here is the **plan**")
	gt.Equal(t, v.Timestamp, "10:30")
	gt.True(t, v.Audio == nil)
	gt.True(t, v.Attachment == nil)
	gt.A(t, v.Sources).Length(0)
}

func TestProjectAudio(t *testing.T) {
	t.Run("bot message with audio", func(t *testing.T) {
		msg := botMessage()
		msg.AudioURL = "https://cdn.example.com/r.mp3"
		v := reply.Project(msg)
		gt.True(t, v.Audio != nil)
		gt.Equal(t, v.Audio.URL, "https://cdn.example.com/r.mp3")
	})

	t.Run("user message never exposes audio", func(t *testing.T) {
		msg := botMessage()
		msg.Sender = model.SenderUser
		msg.AudioURL = "https://cdn.example.com/r.mp3"
		v := reply.Project(msg)
		gt.True(t, v.Audio == nil)
	})
}

func TestProjectAttachment(t *testing.T) {
	testCases := map[string]struct {
		url       string
		mediaType string
		label     string
		shown     bool
	}{
		"pdf": {
			url:       "https://files.example.com/docs/plan.pdf",
			mediaType: "application/pdf",
			label:     "plan.pdf (PDF)",
			shown:     true,
		},
		"pdf with parameters and query": {
			url:       "https://files.example.com/docs/plan.pdf?token=abc",
			mediaType: "Application/PDF; charset=binary",
			label:     "plan.pdf (PDF)",
			shown:     true,
		},
		"pdf without file name": {
			url:       "https://files.example.com/",
			mediaType: "application/pdf",
			label:     "View Attachment (PDF)",
			shown:     true,
		},
		"image is not offered": {
			url:       "https://files.example.com/a.png",
			mediaType: "image/png",
		},
		"missing type": {
			url: "https://files.example.com/plan.pdf",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			msg := botMessage()
			msg.MediaURL = tc.url
			msg.MediaType = tc.mediaType

			v := reply.Project(msg)
			if !tc.shown {
				gt.True(t, v.Attachment == nil)
				return
			}
			gt.True(t, v.Attachment != nil)
			gt.Equal(t, v.Attachment.URL, tc.url)
			gt.Equal(t, v.Attachment.Label, tc.label)
		})
	}
}

func TestProjectSources(t *testing.T) {
	msg := botMessage()
	msg.Sources = []string{"https://a.example.com", "guide.pdf"}
	v := reply.Project(msg)
	gt.A(t, v.Sources).Length(2)
	gt.Equal(t, v.Sources[1], "guide.pdf")
}
