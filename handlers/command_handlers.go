package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"tweet-relay/command"
	"tweet-relay/models"
	"tweet-relay/utils"
)

const (
	commandTimeout = 30 * time.Second
	maxContent     = 2000
)

// handleFollow handles the logic for the /follow command.
func (h *CommandHandler) handleFollow(s Responder, i *discordgo.InteractionCreate) {
	options := optionMap(i)
	handle := screenName(options)
	if handle == "" {
		respond(s, i, "Error: a Twitter handle is required.")
		return
	}

	var flags models.SubscriptionFlags
	for name, flag := range map[string]models.SubscriptionFlags{
		command.OptionNoText:  models.FlagNoText,
		command.OptionRetweet: models.FlagRetweet,
		command.OptionNoQuote: models.FlagNoQuote,
		command.OptionPing:    models.FlagPing,
	} {
		if opt, ok := options[name]; ok && opt.BoolValue() {
			flags |= flag
		}
	}

	dest, ok := destination(i)
	if !ok {
		respond(s, i, "Error: cannot determine where to relay tweets.")
		return
	}

	// Resolving the user may hit the Twitter API.
	if err := deferResponse(s, i); err != nil {
		log.Printf("Error deferring /follow response: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	user, err := h.backend.ResolveUser(ctx, handle)
	if err != nil {
		log.Printf("Cannot resolve @%s: %v", handle, err)
		edit(s, i, fmt.Sprintf("Error: could not find Twitter user @%s.", handle))
		return
	}

	sub := models.Subscription{
		Destination:   dest,
		TwitterUserID: user.ID,
		Flags:         flags,
	}
	if err := h.store.AddSubscription(ctx, sub); err != nil {
		utils.Error("Commands", "Follow", err.Error())
		edit(s, i, "Error: could not save the subscription.")
		return
	}
	if err := h.backend.RefreshFollowed(ctx); err != nil {
		utils.Error("Commands", "Refresh followed users", err.Error())
	}

	msg := fmt.Sprintf("✅ Now relaying tweets from **@%s** here.", user.ScreenName)
	if flags != 0 {
		msg += fmt.Sprintf(" Options: `%s`", flags)
	}
	edit(s, i, msg)
}

// handleUnfollow handles the logic for the /unfollow command.
func (h *CommandHandler) handleUnfollow(s Responder, i *discordgo.InteractionCreate) {
	handle := screenName(optionMap(i))
	if handle == "" {
		respond(s, i, "Error: a Twitter handle is required.")
		return
	}
	dest, ok := destination(i)
	if !ok {
		respond(s, i, "Error: cannot determine where tweets are relayed.")
		return
	}

	if err := deferResponse(s, i); err != nil {
		log.Printf("Error deferring /unfollow response: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	userID, err := h.followedUserID(ctx, dest.ChannelID, handle)
	if err != nil {
		log.Printf("Cannot resolve @%s: %v", handle, err)
		edit(s, i, fmt.Sprintf("Error: could not find Twitter user @%s.", handle))
		return
	}

	removed, err := h.store.RemoveSubscription(ctx, dest.ChannelID, userID)
	if err != nil {
		utils.Error("Commands", "Unfollow", err.Error())
		edit(s, i, "Error: could not remove the subscription.")
		return
	}
	if !removed {
		edit(s, i, fmt.Sprintf("@%s is not followed here.", handle))
		return
	}
	if err := h.backend.RefreshFollowed(ctx); err != nil {
		utils.Error("Commands", "Refresh followed users", err.Error())
	}
	edit(s, i, fmt.Sprintf("✅ Stopped relaying tweets from **@%s**.", handle))
}

// followedUserID matches handle against the destination's subscriptions
// before falling back to a lookup. A handle may also be a raw user id, as
// offered by autocomplete for users that were never seen.
func (h *CommandHandler) followedUserID(ctx context.Context, channelID, handle string) (string, error) {
	subs, err := h.store.ListSubscriptionsForChannel(ctx, channelID)
	if err != nil {
		return "", err
	}
	for _, sub := range subs {
		if strings.EqualFold(sub.ScreenName, handle) || sub.TwitterUserID == handle {
			return sub.TwitterUserID, nil
		}
	}
	user, err := h.backend.ResolveUser(ctx, handle)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// handleList handles the logic for the /list command.
func (h *CommandHandler) handleList(s Responder, i *discordgo.InteractionCreate) {
	dest, ok := destination(i)
	if !ok {
		respond(s, i, "Error: cannot determine where tweets are relayed.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	subs, err := h.store.ListSubscriptionsForChannel(ctx, dest.ChannelID)
	if err != nil {
		utils.Error("Commands", "List", err.Error())
		respond(s, i, "Error: could not load the subscriptions.")
		return
	}
	if len(subs) == 0 {
		respond(s, i, "No Twitter users are followed here.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Following %d Twitter users here:\n", len(subs))
	for n, sub := range subs {
		line := "- " + displayName(sub)
		if sub.Flags != 0 {
			line += fmt.Sprintf(" `%s`", sub.Flags)
		}
		line += "\n"
		if b.Len()+len(line) > maxContent-32 {
			fmt.Fprintf(&b, "…and %d more", len(subs)-n)
			break
		}
		b.WriteString(line)
	}
	respond(s, i, strings.TrimRight(b.String(), "\n"))
}

// handlePing handles the logic for the /ping command.
func (h *CommandHandler) handlePing(s Responder, i *discordgo.InteractionCreate) {
	content := "Pong!"
	if h.streamState != nil {
		content += " Stream: " + h.streamState()
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func displayName(sub models.ChannelSubscription) string {
	if sub.ScreenName != "" {
		return "@" + sub.ScreenName
	}
	return "user " + sub.TwitterUserID
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func screenName(options map[string]*discordgo.ApplicationCommandInteractionDataOption) string {
	opt, ok := options[command.OptionHandle]
	if !ok {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(opt.StringValue()), "@")
}

// destination is the channel for guild interactions and the invoking user
// for DMs, whose DM channel the dispatcher opens on delivery.
func destination(i *discordgo.InteractionCreate) (models.Destination, bool) {
	if i.GuildID != "" {
		return models.Destination{ChannelID: i.ChannelID}, i.ChannelID != ""
	}
	user := utils.InteractionUser(i)
	if user == nil {
		return models.Destination{}, false
	}
	return models.Destination{ChannelID: user.ID, IsDM: true}, true
}

func respond(s Responder, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

func deferResponse(s Responder, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func edit(s Responder, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		log.Printf("Error editing interaction response: %v", err)
	}
}
