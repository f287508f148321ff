package main

import (
	"tweet-relay/bot"
	"tweet-relay/command"
	"tweet-relay/handlers"
)

func main() {
	bot.Run(handlers.Register, command.GetCommandDefinitions())
}
