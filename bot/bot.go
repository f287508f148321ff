package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"tweet-relay/config"
	"tweet-relay/database"
	"tweet-relay/dispatch"
	healthgrpc "tweet-relay/grpc"
	"tweet-relay/models"
	"tweet-relay/relay"
	"tweet-relay/render"
	"tweet-relay/stream"
	"tweet-relay/twitter"
	"tweet-relay/unfurl"
	"tweet-relay/utils"
)

// Bot encapsulates the bot's state.
type Bot struct {
	Session    *discordgo.Session
	Commands   []*discordgo.ApplicationCommand
	Store      *database.Store
	Status     *database.StatusManager
	Twitter    *twitter.Client
	Controller *stream.Controller
	Relay      *relay.Relay
	Health     *healthgrpc.HealthServer
	Auth       *utils.Auth

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron
}

// NewBot loads the configuration and builds every component.
func NewBot() (*Bot, error) {
	config.LoadConfig()

	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}
	bearer := viper.GetString("TWITTER_BEARER_TOKEN")
	if bearer == "" {
		return nil, fmt.Errorf("no twitter bearer token provided")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages

	commandsConfig, err := config.Commands()
	if err != nil {
		return nil, err
	}

	store, err := database.Open(viper.GetString("database.path"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	httpClient := twitter.NewHTTPClient(ctx, bearer)

	b := &Bot{
		Session: dg,
		Store:   store,
		Status:  database.NewStatusManager(viper.GetString("database.statusFile")),
		Twitter: twitter.NewClient(httpClient, viper.GetString("twitter.apiBase")),
		Auth:    utils.NewAuth(commandsConfig),
		ctx:     ctx,
		cancel:  cancel,
	}

	if addr := viper.GetString("grpc.healthAddr"); addr != "" {
		b.Health = healthgrpc.NewHealthServer(addr)
	}

	renderer := render.New(unfurl.New(nil, config.Unfurl()), viper.GetString("render.pingHashtag"))
	b.Relay = relay.New(store, renderer, dispatch.New(dg, nil), 0)

	streamConfig := config.Stream()
	b.Controller = stream.NewController(
		func() stream.Transport {
			return twitter.NewTransport(httpClient, streamConfig.Endpoint)
		},
		b.handleTweet,
		stream.Options{
			WatchdogDelay: streamConfig.WatchdogDelay,
			BackoffStart:  streamConfig.BackoffStart,
			BackoffMax:    streamConfig.BackoffMax,
			OnStateChange: b.onStreamState,
		},
	)

	return b, nil
}

// RegisterCommands registers the provided slash command definitions.
func (b *Bot) RegisterCommands(commands []*discordgo.ApplicationCommand) {
	b.Commands = append(b.Commands, commands...)
}

// Start opens the bot's session, registers handlers and starts the stream.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	utils.InitLogger(b.Session)

	for _, cmd := range b.Commands {
		if _, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, "", cmd); err != nil {
			log.Printf("Cannot create '%v' command: %v", cmd.Name, err)
		}
	}

	if b.Health != nil {
		if err := b.Health.Start(); err != nil {
			return err
		}
	}

	go b.Relay.Run(b.ctx)

	if err := b.SeedSubscriptions(b.ctx); err != nil {
		utils.Error("Bot", "Seed subscriptions", err.Error())
	}
	if err := b.RefreshFollowed(b.ctx); err != nil {
		utils.Error("Bot", "Start stream", err.Error())
	}

	if err := b.startScheduler(); err != nil {
		return err
	}

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully shuts everything down.
func (b *Bot) Stop() {
	b.stopScheduler()
	if b.Controller != nil {
		b.Controller.Destroy()
	}
	if b.cancel != nil {
		b.cancel()
	}
	if b.Health != nil {
		b.Health.Stop()
	}
	if b.Status != nil {
		if err := b.Status.Save(); err != nil {
			log.Printf("Failed to save status: %v", err)
		}
	}
	if b.Store != nil {
		b.Store.Close()
	}
	if b.Session != nil {
		b.Session.Close()
	}
	fmt.Println("Bot stopped gracefully.")
}

// RefreshFollowed restarts the stream when the followed user set in the
// store differs from the one the stream was started with.
func (b *Bot) RefreshFollowed(ctx context.Context) error {
	ids, err := b.Store.ListFollowedUserIDs(ctx)
	if err != nil {
		return err
	}
	b.Status.SetFollowedUsers(len(ids))

	current := b.Controller.FollowedIDs()
	state := b.Controller.State()
	if slices.Equal(ids, current) && state != stream.StateStopped {
		return nil
	}

	log.Printf("Followed users changed (%d -> %d), restarting stream", len(current), len(ids))
	b.Controller.Start(ids)
	return nil
}

// ResolveUser finds a Twitter user by screen name, preferring the author
// cache over an API lookup.
func (b *Bot) ResolveUser(ctx context.Context, screenName string) (*models.TwitterUser, error) {
	user, err := b.Store.UserByScreenName(ctx, screenName)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user, err = b.Twitter.LookupUser(ctx, screenName)
	if err != nil {
		return nil, err
	}
	if err := b.Store.RecordSeenAuthor(ctx, *user); err != nil {
		log.Printf("Failed to cache user %s: %v", user.ScreenName, err)
	}
	return user, nil
}

// SeedSubscriptions adds the subscriptions listed in the configuration.
// Entries that fail are logged and skipped.
func (b *Bot) SeedSubscriptions(ctx context.Context) error {
	seeds, err := config.SubscriptionSeeds()
	if err != nil {
		return err
	}

	for _, seed := range seeds {
		userID := seed.TwitterUserID
		if userID == "" {
			user, err := b.ResolveUser(ctx, seed.ScreenName)
			if err != nil {
				utils.Warn("Bot", "Seed subscriptions", fmt.Sprintf("cannot resolve @%s: %v", seed.ScreenName, err))
				continue
			}
			userID = user.ID
		}

		flags, unknown := models.ParseFlags(seed.Flags)
		if len(unknown) > 0 {
			log.Printf("Ignoring unknown flags %v for %s", unknown, seed.ChannelID)
		}

		sub := models.Subscription{
			Destination:   models.Destination{ChannelID: seed.ChannelID, IsDM: seed.IsDM},
			TwitterUserID: userID,
			Flags:         flags,
		}
		if err := b.Store.AddSubscription(ctx, sub); err != nil {
			utils.Warn("Bot", "Seed subscriptions", err.Error())
		}
	}
	if len(seeds) > 0 {
		log.Printf("Seeded %d subscriptions from config", len(seeds))
	}
	return nil
}

func (b *Bot) handleTweet(t *models.Tweet) {
	b.Status.RecordTweet(t.ID, time.Now())
	b.Relay.Enqueue(t)
}

func (b *Bot) onStreamState(s stream.State) {
	if b.Health != nil {
		b.Health.SetStreamState(s)
	}
	b.Status.SetStreamState(s.String())
	if err := b.Status.Save(); err != nil {
		log.Printf("Failed to save status: %v", err)
	}

	switch s {
	case stream.StateStreaming:
		utils.Info("Stream", "State", "stream connected")
	case stream.StateReconnectPending:
		utils.Warn("Stream", "State", "stream lost, reconnection scheduled")
	}
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), commands []*discordgo.ApplicationCommand) {
	bot, err := NewBot()
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(registerHandlers); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
