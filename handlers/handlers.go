package handlers

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"tweet-relay/bot"
)

// Register all handlers to the bot.
func Register(b *bot.Bot) {
	h := NewCommandHandler(b.Store, b, b.Auth, func() string {
		return b.Controller.State().String()
	})

	b.Session.AddHandler(InteractionCreate(h))

	// Add a ready handler to log when the bot is connected.
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v#%v", s.State.User.Username, s.State.User.Discriminator)
	})
}
