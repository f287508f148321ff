package handlers

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"tweet-relay/command"
)

// Discord accepts at most 25 autocomplete choices.
const maxChoices = 25

// Autocomplete handles all autocomplete interactions.
func (h *CommandHandler) Autocomplete(s Responder, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "unfollow":
		for _, opt := range data.Options {
			if opt.Name == command.OptionHandle && opt.Focused {
				h.followedAutocomplete(s, i, opt.StringValue())
			}
		}
	}
}

// followedAutocomplete offers the users followed in the destination whose
// screen name starts with the typed prefix.
func (h *CommandHandler) followedAutocomplete(s Responder, i *discordgo.InteractionCreate, typed string) {
	dest, ok := destination(i)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	subs, err := h.store.ListSubscriptionsForChannel(ctx, dest.ChannelID)
	if err != nil {
		log.Printf("Error listing subscriptions for autocomplete: %v", err)
		return
	}

	prefix := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(typed), "@"))
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(subs), maxChoices))
	for _, sub := range subs {
		value := sub.ScreenName
		if value == "" {
			value = sub.TwitterUserID
		}
		if !strings.HasPrefix(strings.ToLower(value), prefix) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  displayName(sub),
			Value: value,
		})
		if len(choices) == maxChoices {
			break
		}
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		log.Printf("Error responding to autocomplete interaction: %v", err)
	}
}
