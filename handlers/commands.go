package handlers

import (
	"context"
	"log"

	"github.com/bwmarrin/discordgo"

	"tweet-relay/models"
	"tweet-relay/utils"
)

// Responder is the part of *discordgo.Session the command handlers use.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// SubscriptionStore persists the subscriptions managed by the commands.
type SubscriptionStore interface {
	AddSubscription(ctx context.Context, sub models.Subscription) error
	RemoveSubscription(ctx context.Context, channelID, twitterUserID string) (bool, error)
	ListSubscriptionsForChannel(ctx context.Context, channelID string) ([]models.ChannelSubscription, error)
}

// Backend resolves Twitter users and applies follow changes to the stream.
type Backend interface {
	ResolveUser(ctx context.Context, screenName string) (*models.TwitterUser, error)
	RefreshFollowed(ctx context.Context) error
}

var commandPermissions = map[string]string{
	"follow":   utils.LevelAdmin,
	"unfollow": utils.LevelAdmin,
	"list":     utils.LevelGuest,
	"ping":     utils.LevelGuest,
}

// CommandHandler routes application commands to their handlers.
type CommandHandler struct {
	store       SubscriptionStore
	backend     Backend
	auth        *utils.Auth
	streamState func() string
}

// NewCommandHandler creates a CommandHandler. streamState reports the
// stream lifecycle state for /ping.
func NewCommandHandler(store SubscriptionStore, backend Backend, auth *utils.Auth, streamState func() string) *CommandHandler {
	return &CommandHandler{
		store:       store,
		backend:     backend,
		auth:        auth,
		streamState: streamState,
	}
}

// Dispatch is the central handler for all application command interactions.
// It performs permission checks and then dispatches the interaction to the appropriate handler.
func (h *CommandHandler) Dispatch(s Responder, i *discordgo.InteractionCreate) {
	commandName := i.ApplicationCommandData().Name

	if requiredLevel, ok := commandPermissions[commandName]; ok {
		if !h.auth.CheckPermission(i, requiredLevel) {
			respond(s, i, "🚫 你没有权限执行此命令")
			return
		}
	}

	switch commandName {
	case "follow":
		h.handleFollow(s, i)
	case "unfollow":
		h.handleUnfollow(s, i)
	case "list":
		h.handleList(s, i)
	case "ping":
		h.handlePing(s, i)
	default:
		log.Printf("Unknown command %q", commandName)
		respond(s, i, "🚫内部错误：Unknown command.")
	}
}
