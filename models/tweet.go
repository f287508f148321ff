package models

// Tweet is a raw status as delivered by the filter stream.
type Tweet struct {
	ID               string            `json:"id_str"`
	Text             string            `json:"text"`
	FullText         string            `json:"full_text,omitempty"`
	Truncated        bool              `json:"truncated"`
	User             *TwitterUser      `json:"user"`
	Entities         Entities          `json:"entities"`
	ExtendedEntities *ExtendedEntities `json:"extended_entities,omitempty"`
	ExtendedTweet    *ExtendedTweet    `json:"extended_tweet,omitempty"`
	RetweetedStatus  *Tweet            `json:"retweeted_status,omitempty"`
	QuotedStatus     *Tweet            `json:"quoted_status,omitempty"`
	InReplyToUserID  string            `json:"in_reply_to_user_id_str,omitempty"`
	IsQuoteStatus    bool              `json:"is_quote_status"`
	CreatedAt        string            `json:"created_at,omitempty"`
}

// ExtendedTweet carries the long-form text of a tweet over 140 characters.
type ExtendedTweet struct {
	FullText         string            `json:"full_text"`
	Entities         Entities          `json:"entities"`
	ExtendedEntities *ExtendedEntities `json:"extended_entities,omitempty"`
}

// TwitterUser is the author block of a tweet.
type TwitterUser struct {
	ID              string `json:"id_str"`
	Name            string `json:"name"`
	ScreenName      string `json:"screen_name"`
	ProfileImageURL string `json:"profile_image_url_https"`
	ProfileColor    string `json:"profile_link_color,omitempty"`
}

// Entities holds the annotations of a tweet text.
type Entities struct {
	UserMentions []MentionEntity `json:"user_mentions"`
	URLs         []URLEntity     `json:"urls"`
	Hashtags     []HashtagEntity `json:"hashtags"`
	Media        []MediaEntity   `json:"media,omitempty"`
}

// ExtendedEntities lists every attached media item (entities.media only has the first).
type ExtendedEntities struct {
	Media []MediaEntity `json:"media"`
}

// Indices is a half-open [start,end) codepoint range.
type Indices [2]int

func (i Indices) Start() int { return i[0] }
func (i Indices) End() int { return i[1] }

type MentionEntity struct {
	ID         string  `json:"id_str"`
	Name       string  `json:"name"`
	ScreenName string  `json:"screen_name"`
	Indices    Indices `json:"indices"`
}

type URLEntity struct {
	URL         string  `json:"url"`
	ExpandedURL string  `json:"expanded_url"`
	DisplayURL  string  `json:"display_url"`
	Indices     Indices `json:"indices"`
}

type HashtagEntity struct {
	Text    string  `json:"text"`
	Indices Indices `json:"indices"`
}

// MediaEntity is a photo, video or animated gif.
type MediaEntity struct {
	ID          string     `json:"id_str"`
	Type        string     `json:"type"` // photo, video, animated_gif
	MediaURL    string     `json:"media_url_https"`
	URL         string     `json:"url"`
	ExpandedURL string     `json:"expanded_url"`
	Indices     Indices    `json:"indices"`
	VideoInfo   *VideoInfo `json:"video_info,omitempty"`
}

type VideoInfo struct {
	DurationMillis int            `json:"duration_millis"`
	Variants       []VideoVariant `json:"variants"`
}

type VideoVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// IsRetweet reports whether the tweet retransmits another tweet.
func (t *Tweet) IsRetweet() bool {
	return t.RetweetedStatus != nil
}

// IsReplyToOther reports whether the tweet replies to someone other than its author.
func (t *Tweet) IsReplyToOther() bool {
	if t.InReplyToUserID == "" || t.User == nil {
		return false
	}
	return t.InReplyToUserID != t.User.ID
}
