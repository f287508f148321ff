package config

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tweet-relay/models"
)

// LoadConfig loads configuration from, in order:
// 1. the .env file (environment variables)
// 2. config.yaml (base configuration)
// 3. config/subscriptions.json (subscription seeds, merged into the base)
// Environment variables override file values of the same name.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, skipping.")
	}

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No config.yaml found, using environment variables and defaults.")
		} else {
			panic(fmt.Errorf("fatal error reading config.yaml: %w", err))
		}
	}

	viper.SetConfigName("subscriptions")
	viper.SetConfigType("json")
	viper.AddConfigPath("./config")

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No config/subscriptions.json found, skipping subscription seeds.")
		} else {
			panic(fmt.Errorf("fatal error merging config/subscriptions.json: %w", err))
		}
	}
}

func setDefaults() {
	viper.SetDefault("bot.refreshSchedule", "@every 5m")
	viper.SetDefault("bot.pruneSchedule", "@daily")
	viper.SetDefault("stream.watchdogDelay", 90*time.Second)
	viper.SetDefault("stream.backoffStart", 2*time.Second)
	viper.SetDefault("stream.backoffMax", 240*time.Second)
	viper.SetDefault("twitter.apiBase", "https://api.twitter.com")
	viper.SetDefault("render.pingHashtag", "ping")
	viper.SetDefault("unfurl.timeout", 10*time.Second)
	viper.SetDefault("unfurl.attempts", 2)
	viper.SetDefault("database.path", "data/subscriptions.db")
	viper.SetDefault("database.statusFile", "data/status.json")
}

// Stream returns the stream block. Keys are read one by one so defaults
// and environment overrides apply to each of them.
func Stream() models.StreamConfig {
	return models.StreamConfig{
		Endpoint:      viper.GetString("stream.endpoint"),
		WatchdogDelay: viper.GetDuration("stream.watchdogDelay"),
		BackoffStart:  viper.GetDuration("stream.backoffStart"),
		BackoffMax:    viper.GetDuration("stream.backoffMax"),
	}
}

// Unfurl returns the unfurl block.
func Unfurl() models.UnfurlConfig {
	return models.UnfurlConfig{
		Timeout:  viper.GetDuration("unfurl.timeout"),
		Attempts: viper.GetUint("unfurl.attempts"),
	}
}

// Commands returns the commands block.
func Commands() (models.CommandsConfig, error) {
	var cfg models.CommandsConfig
	if err := viper.UnmarshalKey("commands", &cfg); err != nil {
		return cfg, fmt.Errorf("decode commands config: %w", err)
	}
	return cfg, nil
}

// SubscriptionSeeds decodes the subscriptions map, ordered by entry name.
func SubscriptionSeeds() ([]models.SubscriptionSeed, error) {
	raw := viper.Get("subscriptions")
	if raw == nil {
		return nil, nil
	}

	var seeds map[string]models.SubscriptionSeed
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &seeds,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	names := make([]string, 0, len(seeds))
	for name := range seeds {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubscriptionSeed, 0, len(seeds))
	for _, name := range names {
		seed := seeds[name]
		if seed.ChannelID == "" || (seed.TwitterUserID == "" && seed.ScreenName == "") {
			return nil, fmt.Errorf("subscription %q needs channel_id and twitter_user_id or screen_name", name)
		}
		out = append(out, seed)
	}
	return out, nil
}
