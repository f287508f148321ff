package models

import "time"

// StreamConfig holds the reconnection and watchdog timings.
type StreamConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	WatchdogDelay time.Duration `mapstructure:"watchdogDelay"`
	BackoffStart  time.Duration `mapstructure:"backoffStart"`
	BackoffMax    time.Duration `mapstructure:"backoffMax"`
}

// UnfurlConfig controls link metadata fetching.
type UnfurlConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Attempts uint          `mapstructure:"attempts"`
}

// CommandsConfig is the "commands" block of config.yaml.
type CommandsConfig struct {
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig lists who may manage subscriptions.
type AuthConfig struct {
	Developers  []string `mapstructure:"developers"`
	AdminsRoles []string `mapstructure:"adminsRoles"`
}

// RelayStatus is the snapshot written to the status file.
type RelayStatus struct {
	StreamState   string    `json:"stream_state"`
	FollowedUsers int       `json:"followed_users"`
	LastTweetID   string    `json:"last_tweet_id,omitempty"`
	LastTweetAt   time.Time `json:"last_tweet_at,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}
