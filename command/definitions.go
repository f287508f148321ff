package command

import "github.com/bwmarrin/discordgo"

// Option names shared by the definitions and the handlers.
const (
	OptionHandle  = "handle"
	OptionNoText  = "notext"
	OptionRetweet = "retweet"
	OptionNoQuote = "noquote"
	OptionPing    = "ping"
)

func handleOption(autocomplete bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:         OptionHandle,
		Description:  "Twitter screen name, with or without @",
		Type:         discordgo.ApplicationCommandOptionString,
		Required:     true,
		Autocomplete: autocomplete,
	}
}

// FollowCommand defines the structure for the /follow command.
type FollowCommand struct{}

// Definition returns the application command definition.
func (c *FollowCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "follow",
		Description: "Relay a Twitter user's tweets to this channel",
		Options: []*discordgo.ApplicationCommandOption{
			handleOption(false),
			{
				Name:        OptionNoText,
				Description: "Only relay tweets with pictures or videos",
				Type:        discordgo.ApplicationCommandOptionBoolean,
			},
			{
				Name:        OptionRetweet,
				Description: "Also relay retweets",
				Type:        discordgo.ApplicationCommandOptionBoolean,
			},
			{
				Name:        OptionNoQuote,
				Description: "Skip quote tweets",
				Type:        discordgo.ApplicationCommandOptionBoolean,
			},
			{
				Name:        OptionPing,
				Description: "Announce tweets carrying the ping hashtag",
				Type:        discordgo.ApplicationCommandOptionBoolean,
			},
		},
	}
}

// UnfollowCommand defines the structure for the /unfollow command.
type UnfollowCommand struct{}

// Definition returns the application command definition.
func (c *UnfollowCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "unfollow",
		Description: "Stop relaying a Twitter user's tweets to this channel",
		Options: []*discordgo.ApplicationCommandOption{
			handleOption(true),
		},
	}
}

// ListCommand defines the structure for the /list command.
type ListCommand struct{}

// Definition returns the application command definition.
func (c *ListCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "list",
		Description: "List the Twitter users followed in this channel",
	}
}

// PingCommand defines the structure for the /ping command.
type PingCommand struct{}

// Definition returns the application command definition.
func (c *PingCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "ping",
		Description: "Responds with Pong! and the stream state",
	}
}
