package models

// Embed accent colors, keyed by the content class of a tweet.
const (
	ColorText   = 0x69B2D6
	ColorVideo  = 0x67D67D
	ColorImage  = 0xD667CF
	ColorImages = 0xD6D567
)

// Author is the header block of a rendered tweet.
type Author struct {
	Name    string `json:"name"`
	IconURL string `json:"icon_url"`
	URL     string `json:"url"`
}

// RenderedMessage is the display-ready form of one tweet.
// It is built fresh per tweet and never modified afterwards.
type RenderedMessage struct {
	Author      Author   `json:"author"`
	Color       int      `json:"color"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	ImageURL    string   `json:"image_url,omitempty"`
	Files       []string `json:"files,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata carries render side information used by the relay.
type Metadata struct {
	Ping       bool   `json:"ping"`
	PreviewURL string `json:"preview_url,omitempty"`
}

// PayloadKind distinguishes what a dispatch descriptor carries.
type PayloadKind int

const (
	PayloadMessage PayloadKind = iota
	PayloadAnnouncement
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadAnnouncement:
		return "announcement"
	default:
		return "message"
	}
}

// DispatchDescriptor is a single delivery handed to the dispatcher.
type DispatchDescriptor struct {
	Destination  Destination
	Kind         PayloadKind
	Message      *RenderedMessage
	Announcement string
}

// PageImage is an image advertised by a web page's meta tags.
type PageImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PageMetadata is what the unfurler extracts from a linked page.
type PageMetadata struct {
	OpenGraphImages   []PageImage `json:"og_images"`
	TwitterCardImages []PageImage `json:"twitter_images"`
}
