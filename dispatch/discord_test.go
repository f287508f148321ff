package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"tweet-relay/models"
)

type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
	files     map[string]string
}

type fakeSession struct {
	mu       sync.Mutex
	sent     []sentMessage
	dmOpened int
	sendErr  error
	dmErr    error
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return nil, f.dmErr
	}
	f.dmOpened++
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	files := make(map[string]string)
	for _, file := range data.Files {
		b, _ := io.ReadAll(file.Reader)
		files[file.Name] = string(b)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, data: data, files: files})
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &discordgo.Message{ID: "m"}, nil
}

func rendered() *models.RenderedMessage {
	return &models.RenderedMessage{
		Author:      models.Author{Name: "Jane (@jane)", IconURL: "https://pbs.twimg.com/j.jpg", URL: "https://twitter.com/jane"},
		Color:       models.ColorImage,
		Description: "hello",
		URL:         "https://twitter.com/jane/status/1",
		ImageURL:    "https://pbs.twimg.com/media/1.jpg",
	}
}

func TestDeliverMessage(t *testing.T) {
	session := &fakeSession{}
	d := New(session, nil)

	err := d.Deliver(context.Background(), models.DispatchDescriptor{
		Destination: models.Destination{ChannelID: "c1"},
		Kind:        models.PayloadMessage,
		Message:     rendered(),
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(session.sent) != 1 || session.sent[0].channelID != "c1" {
		t.Fatalf("sent = %+v", session.sent)
	}

	embed := session.sent[0].data.Embeds[0]
	if embed.Description != "hello" || embed.Color != models.ColorImage || embed.URL != "https://twitter.com/jane/status/1" {
		t.Errorf("embed = %+v", embed)
	}
	if embed.Author == nil || embed.Author.Name != "Jane (@jane)" {
		t.Errorf("embed author = %+v", embed.Author)
	}
	if embed.Image == nil || embed.Image.URL != "https://pbs.twimg.com/media/1.jpg" {
		t.Errorf("embed image = %+v", embed.Image)
	}
}

func TestDeliverAnnouncementToDM(t *testing.T) {
	session := &fakeSession{}
	d := New(session, nil)
	desc := models.DispatchDescriptor{
		Destination:  models.Destination{ChannelID: "u1", IsDM: true},
		Kind:         models.PayloadAnnouncement,
		Announcement: "@everyone",
	}

	for i := 0; i < 2; i++ {
		if err := d.Deliver(context.Background(), desc); err != nil {
			t.Fatalf("Deliver() error = %v", err)
		}
	}
	if session.dmOpened != 1 {
		t.Errorf("DM channel opened %d times, want 1", session.dmOpened)
	}
	msg := session.sent[0]
	if msg.channelID != "dm-u1" || msg.data.Content != "@everyone" || len(msg.data.Embeds) != 0 {
		t.Errorf("sent = %+v", msg)
	}
	if msg.data.AllowedMentions == nil || len(msg.data.AllowedMentions.Parse) != 1 {
		t.Errorf("announcement does not allow @everyone: %+v", msg.data.AllowedMentions)
	}
}

func TestDeliverAttachesFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			w.Write([]byte("video-bytes"))
		case "/big.jpg":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	session := &fakeSession{}
	d := New(session, srv.Client())
	d.maxFileSize = 32
	d.retryDelay = time.Millisecond

	msg := rendered()
	msg.ImageURL = ""
	msg.Files = []string{srv.URL + "/clip.mp4?tag=1", srv.URL + "/big.jpg", srv.URL + "/gone.jpg"}

	err := d.Deliver(context.Background(), models.DispatchDescriptor{
		Destination: models.Destination{ChannelID: "c1"},
		Kind:        models.PayloadMessage,
		Message:     msg,
	})
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	sent := session.sent[0]
	if len(sent.files) != 1 || sent.files["clip.mp4"] != "video-bytes" {
		t.Errorf("attached files = %v", sent.files)
	}
	for _, link := range []string{"/big.jpg", "/gone.jpg"} {
		if !strings.Contains(sent.data.Content, srv.URL+link) {
			t.Errorf("content %q does not link %s", sent.data.Content, link)
		}
	}
}

func TestDeliverErrors(t *testing.T) {
	tests := []struct {
		name    string
		session *fakeSession
		desc    models.DispatchDescriptor
	}{
		{
			name:    "send failure",
			session: &fakeSession{sendErr: errors.New("missing access")},
			desc:    models.DispatchDescriptor{Destination: models.Destination{ChannelID: "c"}, Kind: models.PayloadAnnouncement, Announcement: "x"},
		},
		{
			name:    "dm failure",
			session: &fakeSession{dmErr: errors.New("cannot send messages to this user")},
			desc:    models.DispatchDescriptor{Destination: models.Destination{ChannelID: "u", IsDM: true}, Kind: models.PayloadAnnouncement, Announcement: "x"},
		},
		{
			name:    "message without payload",
			session: &fakeSession{},
			desc:    models.DispatchDescriptor{Destination: models.Destination{ChannelID: "c"}, Kind: models.PayloadMessage},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New(tt.session, nil).Deliver(context.Background(), tt.desc); err == nil {
				t.Error("Deliver() succeeded, want error")
			}
		})
	}
}

func TestEmbedTruncatesDescription(t *testing.T) {
	msg := rendered()
	msg.Description = strings.Repeat("é", maxEmbedText+10)
	embed := Embed(msg)
	if n := len([]rune(embed.Description)); n != maxEmbedText {
		t.Errorf("description has %d runes, want %d", n, maxEmbedText)
	}
}

func TestFileName(t *testing.T) {
	if got := fileName("https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/abc.mp4?tag=12", "video/mp4"); got != "abc.mp4" {
		t.Errorf("fileName() = %q, want abc.mp4", got)
	}
	if got := fileName("https://example.com/", ""); got != "media" {
		t.Errorf("fileName() = %q, want media", got)
	}
	if got := fileName("https://pbs.twimg.com/media/XYZ", "image/png"); !strings.HasPrefix(got, "XYZ.") {
		t.Errorf("fileName() = %q, want an extension from the content type", got)
	}
}
