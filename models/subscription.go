package models

import "strings"

// SubscriptionFlags controls which tweets of a followed user reach a destination.
type SubscriptionFlags uint8

const (
	FlagNoText  SubscriptionFlags = 1 << iota // drop tweets without media
	FlagRetweet                               // include retweets
	FlagNoQuote                               // drop quote tweets
	FlagPing                                  // announce tweets carrying the ping hashtag
)

var flagNames = []struct {
	flag SubscriptionFlags
	name string
}{
	{FlagNoText, "notext"},
	{FlagRetweet, "retweet"},
	{FlagNoQuote, "noquote"},
	{FlagPing, "ping"},
}

// Has reports whether every bit of f is set.
func (s SubscriptionFlags) Has(f SubscriptionFlags) bool {
	return s&f == f
}

// String returns the flag names joined with commas.
func (s SubscriptionFlags) String() string {
	var names []string
	for _, fn := range flagNames {
		if s.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseFlags builds a flag set from names such as "notext" or "retweet".
// Unknown names are returned separately.
func ParseFlags(names []string) (SubscriptionFlags, []string) {
	var flags SubscriptionFlags
	var unknown []string
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				flags |= fn.flag
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, raw)
		}
	}
	return flags, unknown
}

// Destination identifies where a rendered tweet is delivered.
type Destination struct {
	ChannelID string `json:"channel_id" mapstructure:"channel_id"`
	IsDM      bool   `json:"is_dm" mapstructure:"is_dm"`
}

// Subscription links a followed Twitter user to a Discord destination.
type Subscription struct {
	Destination
	TwitterUserID string            `json:"twitter_user_id" db:"twitter_user_id"`
	Flags         SubscriptionFlags `json:"flags" db:"flags"`
	CreatedAt     int64             `json:"created_at" db:"created_at"`
}

// SubscriptionSeed is one entry of the subscriptions block in the config files.
type SubscriptionSeed struct {
	ChannelID     string   `json:"channel_id" mapstructure:"channel_id"`
	IsDM          bool     `json:"is_dm" mapstructure:"is_dm"`
	TwitterUserID string   `json:"twitter_user_id" mapstructure:"twitter_user_id"`
	ScreenName    string   `json:"screen_name" mapstructure:"screen_name"`
	Flags         []string `json:"flags" mapstructure:"flags"`
}

// ChannelSubscription is a subscription listed with the followed user's
// cached screen name, which is empty when the user was never seen.
type ChannelSubscription struct {
	Subscription
	ScreenName string `json:"screen_name"`
}
