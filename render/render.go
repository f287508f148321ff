// Package render turns raw tweets into Discord-ready messages.
package render

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"tweet-relay/models"
)

// DefaultPingHashtag is the hashtag that marks a tweet as worth an announcement.
const DefaultPingHashtag = "ping"

const quotedPrefix = "[QUOTED] "

// Resolver fetches the metadata of a linked page. It never fails loudly:
// ok is false whenever nothing could be resolved.
type Resolver interface {
	Resolve(ctx context.Context, url string) (meta *models.PageMetadata, ok bool)
}

// Renderer is the tweet rendering pipeline.
type Renderer struct {
	resolver    Resolver
	pingHashtag string
}

// New returns a Renderer. A nil resolver disables link previews.
func New(resolver Resolver, pingHashtag string) *Renderer {
	if pingHashtag == "" {
		pingHashtag = DefaultPingHashtag
	}
	return &Renderer{resolver: resolver, pingHashtag: strings.TrimPrefix(pingHashtag, "#")}
}

// Valid reports whether a tweet can be rendered and routed at all.
func Valid(t *models.Tweet) bool {
	if t == nil || t.User == nil {
		return false
	}
	if t.IsQuoteStatus && (t.QuotedStatus == nil || t.QuotedStatus.User == nil) {
		return false
	}
	return true
}

// content is the part of a tweet the pipeline actually renders.
type content struct {
	text      string
	entities  models.Entities
	media     []models.MediaEntity
	permalink string
}

func selectContent(t *models.Tweet) content {
	c := content{
		text:     t.Text,
		entities: t.Entities,
		media:    mediaOf(t),
	}
	if t.FullText != "" {
		c.text = t.FullText
	}
	if t.ExtendedTweet != nil {
		c.text = t.ExtendedTweet.FullText
		c.entities = t.ExtendedTweet.Entities
	}

	c.permalink = statusURL(t.User.ScreenName, t.ID)
	if rt := t.RetweetedStatus; rt != nil {
		if len(c.media) == 0 {
			c.media = mediaOf(rt)
		}
		if rt.User != nil && rt.ID != "" {
			c.permalink = statusURL(rt.User.ScreenName, rt.ID)
		}
	}
	return c
}

// Render builds the message for a tweet. quoted renders it as the quoted
// part of another tweet. ok is false for tweets failing Valid.
func (r *Renderer) Render(ctx context.Context, t *models.Tweet, quoted bool) (*models.RenderedMessage, bool) {
	if !Valid(t) {
		return nil, false
	}

	c := selectContent(t)
	kind := Classify(c.media)
	description, meta := r.rewriteText(ctx, c.text, c.entities, kind)

	msg := &models.RenderedMessage{
		Author:      authorBlock(t.User, quoted),
		Color:       kind.Color(),
		Description: description,
		URL:         c.permalink,
		Metadata:    meta,
	}

	switch kind {
	case KindText:
		msg.ImageURL = meta.PreviewURL
	case KindVideo:
		first := c.media[0]
		variant, ok := BestVideoVariant(first)
		if !ok {
			log.Printf("[Render] Tweet %s: no usable video variant for media %s, skipping media", t.ID, first.ID)
			break
		}
		if attachableVideo(first, variant) {
			msg.Files = []string{variant.URL}
		} else {
			msg.ImageURL = first.MediaURL
			msg.Description = appendLine(msg.Description, fmt.Sprintf("[link to video](%s)", variant.URL))
		}
	case KindImage, KindImages:
		files := make([]string, 0, len(c.media))
		for _, m := range c.media {
			files = append(files, m.MediaURL)
		}
		if len(files) == 1 {
			msg.ImageURL = files[0]
		} else {
			msg.Files = files
		}
	}

	return msg, true
}

func authorBlock(u *models.TwitterUser, quoted bool) models.Author {
	name := fmt.Sprintf("%s (@%s)", u.Name, u.ScreenName)
	if quoted {
		name = quotedPrefix + name
	}
	return models.Author{
		Name:    name,
		IconURL: u.ProfileImageURL,
		URL:     profileURL(u.ScreenName),
	}
}

func appendLine(text, line string) string {
	if text == "" {
		return line
	}
	return text + "\n" + line
}

func profileURL(screenName string) string {
	return "https://twitter.com/" + screenName
}

func statusURL(screenName, id string) string {
	return fmt.Sprintf("https://twitter.com/%s/status/%s", screenName, id)
}

var imageURLRe = regexp.MustCompile(`^(https?:)?//[^\s/]+`)

// eligibleImage reports whether a page image is usable as an embed preview.
func eligibleImage(img models.PageImage) bool {
	return img.URL != "" && img.Width > 0 && img.Height > 0 && imageURLRe.MatchString(img.URL)
}

// pickPreview returns the first eligible image, card images before
// generic page images. Protocol-relative URLs are made absolute.
func pickPreview(meta *models.PageMetadata) string {
	if meta == nil {
		return ""
	}
	for _, group := range [][]models.PageImage{meta.TwitterCardImages, meta.OpenGraphImages} {
		for _, img := range group {
			if !eligibleImage(img) {
				continue
			}
			if strings.HasPrefix(img.URL, "//") {
				return "https:" + img.URL
			}
			return img.URL
		}
	}
	return ""
}
