package render

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"tweet-relay/models"
)

// edit replaces the codepoint range [start,end) of the original text.
type edit struct {
	start       int
	end         int
	replacement string
}

var (
	htmlUnescaper   = strings.NewReplacer("&amp;", "&", "&gt;", ">", "&lt;", "<")
	trailingShortRe = regexp.MustCompile(`\s*https://t\.co/\w+\s*$`)
)

// applyEdits splices edits into text. Edit ranges are codepoint offsets into
// the unedited text and must not overlap; they are applied in ascending
// order while tracking how much the text has grown or shrunk so far.
func applyEdits(text string, edits []edit) string {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	runes := []rune(text)
	offset := 0
	for _, e := range sorted {
		start := clamp(e.start+offset, 0, len(runes))
		end := clamp(e.end+offset, 0, len(runes))
		if end < start {
			continue
		}
		repl := []rune(e.replacement)

		out := make([]rune, 0, len(runes)-(end-start)+len(repl))
		out = append(out, runes[:start]...)
		out = append(out, repl...)
		out = append(out, runes[end:]...)
		runes = out

		offset += len(repl) - (end - start)
	}
	return string(runes)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mentionEdits strips the chain of mentions a reply starts with and turns
// every other mention into a profile link.
func mentionEdits(mentions []models.MentionEntity) []edit {
	sorted := make([]models.MentionEntity, len(mentions))
	copy(sorted, mentions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Indices.Start() < sorted[j].Indices.Start() })

	edits := make([]edit, 0, len(sorted))
	leading := true
	next := 0
	for _, m := range sorted {
		if leading && m.Indices.Start() == next {
			edits = append(edits, edit{start: m.Indices.Start(), end: m.Indices.End()})
			next = m.Indices.End() + 1
			continue
		}
		leading = false

		name := m.Name
		if name == "" {
			name = m.ScreenName
		}
		edits = append(edits, edit{
			start:       m.Indices.Start(),
			end:         m.Indices.End(),
			replacement: fmt.Sprintf("[@%s](%s)", name, profileURL(m.ScreenName)),
		})
	}
	return edits
}

// hashtagEdits links every hashtag to its search page and reports whether
// the ping hashtag was used.
func hashtagEdits(hashtags []models.HashtagEntity, pingTag string) ([]edit, bool) {
	edits := make([]edit, 0, len(hashtags))
	ping := false
	for _, h := range hashtags {
		if pingTag != "" && strings.EqualFold(h.Text, pingTag) {
			ping = true
		}
		edits = append(edits, edit{
			start:       h.Indices.Start(),
			end:         h.Indices.End(),
			replacement: fmt.Sprintf("[#%s](https://twitter.com/hashtag/%s?src=hash)", h.Text, url.PathEscape(h.Text)),
		})
	}
	return edits, ping
}

// urlEdits expands every short link. When withPreview is set, all links are
// resolved concurrently and the first one in text order advertising an
// eligible image provides the preview.
func (r *Renderer) urlEdits(ctx context.Context, urls []models.URLEntity, withPreview bool) ([]edit, string) {
	sorted := make([]models.URLEntity, len(urls))
	copy(sorted, urls)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Indices.Start() < sorted[j].Indices.Start() })

	edits := make([]edit, len(sorted))
	for i, u := range sorted {
		expanded := u.ExpandedURL
		if expanded == "" {
			expanded = u.URL
		}
		edits[i] = edit{start: u.Indices.Start(), end: u.Indices.End(), replacement: expanded}
	}
	if !withPreview || r.resolver == nil || len(urls) == 0 {
		return edits, ""
	}

	results := make([]*models.PageMetadata, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for i := range edits {
		target := edits[i].replacement
		g.Go(func() error {
			if meta, ok := r.resolver.Resolve(gctx, target); ok {
				results[i] = meta
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, meta := range results {
		if preview := pickPreview(meta); preview != "" {
			return edits, preview
		}
	}
	return edits, ""
}

// rewriteText resolves entities into inline links and cleans the result.
func (r *Renderer) rewriteText(ctx context.Context, text string, entities models.Entities, kind Kind) (string, models.Metadata) {
	var meta models.Metadata

	edits := mentionEdits(entities.UserMentions)

	links, preview := r.urlEdits(ctx, entities.URLs, kind == KindText)
	edits = append(edits, links...)
	meta.PreviewURL = preview

	tags, ping := hashtagEdits(entities.Hashtags, r.pingHashtag)
	edits = append(edits, tags...)
	meta.Ping = ping

	out := applyEdits(norm.NFC.String(text), edits)
	out = htmlUnescaper.Replace(out)
	out = trailingShortRe.ReplaceAllString(out, "")
	return strings.TrimSpace(out), meta
}
