package render

import (
	"strings"
	"time"

	"tweet-relay/models"
)

const (
	// VideoBitrateCeiling is the exclusive upper bound for a selectable video variant.
	VideoBitrateCeiling = 1000000
	// VideoDurationCutoff is the longest video attached as a file.
	VideoDurationCutoff = 20 * time.Second
)

// Kind is the content class of a tweet, decided once from its media.
type Kind int

const (
	KindText Kind = iota
	KindVideo
	KindImage
	KindImages
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindImage:
		return "image"
	case KindImages:
		return "images"
	default:
		return "text"
	}
}

// Color maps a content class to its embed accent color.
func (k Kind) Color() int {
	switch k {
	case KindVideo:
		return models.ColorVideo
	case KindImage:
		return models.ColorImage
	case KindImages:
		return models.ColorImages
	default:
		return models.ColorText
	}
}

// Classify returns the content class for a media list.
func Classify(media []models.MediaEntity) Kind {
	switch {
	case len(media) == 0:
		return KindText
	case media[0].Type == "video" || media[0].Type == "animated_gif":
		return KindVideo
	case len(media) == 1:
		return KindImage
	default:
		return KindImages
	}
}

// KindOf classifies a tweet the way Render does, including media a retweet
// inherits from the original.
func KindOf(t *models.Tweet) Kind {
	media := mediaOf(t)
	if len(media) == 0 && t.RetweetedStatus != nil {
		media = mediaOf(t.RetweetedStatus)
	}
	return Classify(media)
}

// mediaOf returns every media item attached to a tweet, preferring the
// extended representations.
func mediaOf(t *models.Tweet) []models.MediaEntity {
	if t.ExtendedTweet != nil && t.ExtendedTweet.ExtendedEntities != nil && len(t.ExtendedTweet.ExtendedEntities.Media) > 0 {
		return t.ExtendedTweet.ExtendedEntities.Media
	}
	if t.ExtendedEntities != nil && len(t.ExtendedEntities.Media) > 0 {
		return t.ExtendedEntities.Media
	}
	if t.ExtendedTweet != nil && len(t.ExtendedTweet.Entities.Media) > 0 {
		return t.ExtendedTweet.Entities.Media
	}
	return t.Entities.Media
}

// BestVideoVariant picks the highest bitrate mp4 strictly below the ceiling.
// The returned URL has its query string removed.
func BestVideoVariant(m models.MediaEntity) (models.VideoVariant, bool) {
	if m.VideoInfo == nil {
		return models.VideoVariant{}, false
	}
	var best models.VideoVariant
	found := false
	for _, v := range m.VideoInfo.Variants {
		if v.ContentType != "video/mp4" || v.Bitrate >= VideoBitrateCeiling {
			continue
		}
		if !found || v.Bitrate > best.Bitrate {
			best = v
			found = true
		}
	}
	if !found {
		return models.VideoVariant{}, false
	}
	if i := strings.IndexByte(best.URL, '?'); i >= 0 {
		best.URL = best.URL[:i]
	}
	return best, true
}

// attachableVideo reports whether a selected variant is small enough to upload.
func attachableVideo(m models.MediaEntity, v models.VideoVariant) bool {
	if v.Bitrate == 0 {
		return true
	}
	if m.VideoInfo == nil {
		return false
	}
	return time.Duration(m.VideoInfo.DurationMillis)*time.Millisecond < VideoDurationCutoff
}
