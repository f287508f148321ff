package render

import (
	"testing"

	"tweet-relay/models"
)

func TestBestVideoVariant(t *testing.T) {
	media := models.MediaEntity{
		Type: "video",
		VideoInfo: &models.VideoInfo{
			DurationMillis: 12000,
			Variants: []models.VideoVariant{
				{Bitrate: 2000000, ContentType: "video/mp4", URL: "https://video.twimg.com/high.mp4?tag=12"},
				{Bitrate: 800000, ContentType: "video/mp4", URL: "https://video.twimg.com/mid.mp4?tag=12"},
				{Bitrate: 500000, ContentType: "video/mp4", URL: "https://video.twimg.com/low.mp4?tag=12"},
				{ContentType: "application/x-mpegURL", URL: "https://video.twimg.com/pl.m3u8"},
			},
		},
	}

	v, ok := BestVideoVariant(media)
	if !ok {
		t.Fatal("BestVideoVariant() found nothing")
	}
	if v.Bitrate != 800000 {
		t.Errorf("bitrate = %d, want 800000", v.Bitrate)
	}
	if v.URL != "https://video.twimg.com/mid.mp4" {
		t.Errorf("url = %q, query string not stripped", v.URL)
	}
	if media.VideoInfo.Variants[1].URL != "https://video.twimg.com/mid.mp4?tag=12" {
		t.Errorf("source variant was modified")
	}
}

func TestBestVideoVariantNoneEligible(t *testing.T) {
	tests := []struct {
		name  string
		media models.MediaEntity
	}{
		{name: "no video info", media: models.MediaEntity{Type: "video"}},
		{name: "only above ceiling", media: models.MediaEntity{Type: "video", VideoInfo: &models.VideoInfo{
			Variants: []models.VideoVariant{{Bitrate: VideoBitrateCeiling, ContentType: "video/mp4", URL: "x"}},
		}}},
		{name: "only playlists", media: models.MediaEntity{Type: "video", VideoInfo: &models.VideoInfo{
			Variants: []models.VideoVariant{{ContentType: "application/x-mpegURL", URL: "x"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := BestVideoVariant(tt.media); ok {
				t.Error("expected no eligible variant")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	photo := models.MediaEntity{Type: "photo"}
	tests := []struct {
		name  string
		media []models.MediaEntity
		want  Kind
	}{
		{name: "text", media: nil, want: KindText},
		{name: "video", media: []models.MediaEntity{{Type: "video"}}, want: KindVideo},
		{name: "gif", media: []models.MediaEntity{{Type: "animated_gif"}}, want: KindVideo},
		{name: "single image", media: []models.MediaEntity{photo}, want: KindImage},
		{name: "gallery", media: []models.MediaEntity{photo, photo, photo}, want: KindImages},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.media); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}

	colors := map[int]bool{}
	for _, k := range []Kind{KindText, KindVideo, KindImage, KindImages} {
		colors[k.Color()] = true
	}
	if len(colors) != 4 {
		t.Errorf("content classes share colors: %v", colors)
	}
}
