// Package dispatch delivers rendered tweets to Discord channels and DMs.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"

	"tweet-relay/models"
)

// DefaultMaxFileSize is the largest attachment uploaded instead of linked.
const DefaultMaxFileSize = 8 << 20

const (
	sendTimeout     = 15 * time.Second
	downloadTimeout = 30 * time.Second
	maxEmbedText    = 4096
)

var errTooLarge = errors.New("file exceeds upload limit")

// Session is the part of *discordgo.Session the dispatcher uses.
type Session interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Dispatcher sends dispatch descriptors through a Discord session.
type Dispatcher struct {
	session     Session
	http        *http.Client
	maxFileSize int64
	retryDelay  time.Duration

	mu         sync.Mutex
	dmChannels map[string]string
}

// New creates a dispatcher. A nil client gets a default one for media downloads.
func New(session Session, client *http.Client) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	return &Dispatcher{
		session:     session,
		http:        client,
		maxFileSize: DefaultMaxFileSize,
		retryDelay:  time.Second,
		dmChannels:  make(map[string]string),
	}
}

// Deliver sends one payload. For DM destinations the channel id is the
// recipient's user id.
func (d *Dispatcher) Deliver(ctx context.Context, desc models.DispatchDescriptor) error {
	channelID, err := d.resolveChannel(desc.Destination)
	if err != nil {
		return err
	}

	var data *discordgo.MessageSend
	switch desc.Kind {
	case models.PayloadAnnouncement:
		data = &discordgo.MessageSend{
			Content: desc.Announcement,
			AllowedMentions: &discordgo.MessageAllowedMentions{
				Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeEveryone},
			},
		}
	case models.PayloadMessage:
		if desc.Message == nil {
			return fmt.Errorf("message payload without message")
		}
		data = d.buildMessage(ctx, desc.Message)
	default:
		return fmt.Errorf("unknown payload kind %d", desc.Kind)
	}

	return d.send(ctx, channelID, data)
}

func (d *Dispatcher) resolveChannel(dest models.Destination) (string, error) {
	if !dest.IsDM {
		return dest.ChannelID, nil
	}

	d.mu.Lock()
	cached, ok := d.dmChannels[dest.ChannelID]
	d.mu.Unlock()
	if ok {
		return cached, nil
	}

	ch, err := d.session.UserChannelCreate(dest.ChannelID)
	if err != nil {
		return "", fmt.Errorf("open DM with %s: %w", dest.ChannelID, err)
	}

	d.mu.Lock()
	d.dmChannels[dest.ChannelID] = ch.ID
	d.mu.Unlock()
	return ch.ID, nil
}

func (d *Dispatcher) send(ctx context.Context, channelID string, data *discordgo.MessageSend) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := d.session.ChannelMessageSendComplex(channelID, data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send to %s: %w", channelID, err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send to %s timed out: %w", channelID, sendCtx.Err())
	}
}

// buildMessage converts a rendered tweet. Files that cannot be downloaded
// or are too large are linked in the message content instead.
func (d *Dispatcher) buildMessage(ctx context.Context, msg *models.RenderedMessage) *discordgo.MessageSend {
	embed := Embed(msg)
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}

	var links []string
	for _, fileURL := range msg.Files {
		file, err := d.download(ctx, fileURL)
		if err != nil {
			log.Printf("[Dispatch] Linking %s instead of attaching: %v", fileURL, err)
			links = append(links, fileURL)
			continue
		}
		data.Files = append(data.Files, file)
	}
	data.Content = strings.Join(links, "\n")
	return data
}

// Embed converts a rendered message into a Discord embed.
func Embed(msg *models.RenderedMessage) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		URL:         msg.URL,
		Description: truncate(msg.Description, maxEmbedText),
		Color:       msg.Color,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    msg.Author.Name,
			IconURL: msg.Author.IconURL,
			URL:     msg.Author.URL,
		},
	}
	if msg.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: msg.ImageURL}
	}
	return embed
}

func (d *Dispatcher) download(ctx context.Context, fileURL string) (*discordgo.File, error) {
	var file *discordgo.File

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := d.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("HTTP %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if resp.ContentLength > d.maxFileSize {
				return retry.Unrecoverable(errTooLarge)
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxFileSize+1))
			if err != nil {
				return err
			}
			if int64(len(body)) > d.maxFileSize {
				return retry.Unrecoverable(errTooLarge)
			}

			file = &discordgo.File{
				Name:        fileName(fileURL, resp.Header.Get("Content-Type")),
				ContentType: resp.Header.Get("Content-Type"),
				Reader:      bytes.NewReader(body),
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(d.retryDelay),
		retry.MaxDelay(10*time.Second),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func fileName(fileURL, contentType string) string {
	name := "media"
	if u, err := url.Parse(fileURL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			name = base
		}
	}
	if path.Ext(name) == "" && contentType != "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
