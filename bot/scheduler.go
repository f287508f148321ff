package bot

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"tweet-relay/utils"
)

// startScheduler starts the follow refresh and author pruning jobs.
func (b *Bot) startScheduler() error {
	log.Println("Initializing scheduler...")
	b.cron = cron.New()

	refresh := viper.GetString("bot.refreshSchedule")
	if _, err := b.cron.AddFunc(refresh, b.refreshJob); err != nil {
		return fmt.Errorf("could not set up refresh job %q: %w", refresh, err)
	}

	prune := viper.GetString("bot.pruneSchedule")
	if _, err := b.cron.AddFunc(prune, b.pruneJob); err != nil {
		return fmt.Errorf("could not set up prune job %q: %w", prune, err)
	}

	b.cron.Start()
	log.Printf("Cron jobs scheduled: refresh %q, prune %q", refresh, prune)
	return nil
}

func (b *Bot) refreshJob() {
	if err := b.RefreshFollowed(b.ctx); err != nil {
		utils.Error("Scheduler", "Refresh followed users", err.Error())
	}
}

func (b *Bot) pruneJob() {
	n, err := b.Store.PruneAuthors(b.ctx)
	if err != nil {
		utils.Error("Scheduler", "Prune authors", err.Error())
		return
	}
	if n > 0 {
		utils.Info("Scheduler", "Prune authors", fmt.Sprintf("removed %d stale cached authors", n))
	}
}

// stopScheduler stops the cron jobs.
func (b *Bot) stopScheduler() {
	if b.cron != nil {
		<-b.cron.Stop().Done()
		log.Println("Scheduler stopped.")
	}
}
