// Package relay feeds streamed tweets through routing, rendering and
// delivery, one tweet at a time in arrival order.
package relay

import (
	"context"
	"fmt"
	"log"
	"sync"

	"tweet-relay/models"
	"tweet-relay/render"
	"tweet-relay/router"
	"tweet-relay/utils"
)

// Announcement is sent ahead of a tweet carrying the ping hashtag.
const Announcement = "@everyone"

// DefaultQueueSize bounds how many tweets may wait for processing.
const DefaultQueueSize = 256

// Store is the subscription state the relay reads.
type Store interface {
	ListSubscriptionsForAuthor(ctx context.Context, authorID string) ([]models.Subscription, error)
	RecordSeenAuthor(ctx context.Context, author models.TwitterUser) error
}

// Dispatcher delivers one payload to one destination.
type Dispatcher interface {
	Deliver(ctx context.Context, d models.DispatchDescriptor) error
}

// Relay is the single consumer of the tweet queue.
type Relay struct {
	store      Store
	renderer   *render.Renderer
	dispatcher Dispatcher

	queue    chan *models.Tweet
	stopped  chan struct{}
	stopOnce sync.Once
}

// New creates a relay. A queueSize <= 0 uses DefaultQueueSize.
func New(store Store, renderer *render.Renderer, dispatcher Dispatcher, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		store:      store,
		renderer:   renderer,
		dispatcher: dispatcher,
		queue:      make(chan *models.Tweet, queueSize),
		stopped:    make(chan struct{}),
	}
}

// Enqueue hands a tweet to the consumer. It blocks while the queue is full
// and drops the tweet once Run has returned.
func (r *Relay) Enqueue(t *models.Tweet) {
	select {
	case r.queue <- t:
	case <-r.stopped:
	}
}

// Run processes queued tweets until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	defer r.stopOnce.Do(func() { close(r.stopped) })
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			r.Process(ctx, t)
		}
	}
}

// Process routes, renders and delivers a single tweet.
func (r *Relay) Process(ctx context.Context, t *models.Tweet) {
	if !render.Valid(t) {
		return
	}

	if err := r.store.RecordSeenAuthor(ctx, *t.User); err != nil {
		log.Printf("[Relay] Failed to record author %s: %v", t.User.ID, err)
	}

	subs, err := r.store.ListSubscriptionsForAuthor(ctx, t.User.ID)
	if err != nil {
		utils.Warn("Relay", "Subscription lookup", fmt.Sprintf("author %s: %v", t.User.ID, err))
		return
	}

	targets := router.Route(t, subs)
	if len(targets) == 0 {
		return
	}

	msg, ok := r.renderer.Render(ctx, t, false)
	if !ok {
		return
	}

	var quoted *models.RenderedMessage
	if t.IsQuoteStatus && t.QuotedStatus != nil {
		quoted, _ = r.renderer.Render(ctx, t.QuotedStatus, true)
	}

	for _, target := range targets {
		if msg.Metadata.Ping && target.Flags.Has(models.FlagPing) {
			r.deliver(ctx, t.ID, models.DispatchDescriptor{
				Destination:  target.Destination,
				Kind:         models.PayloadAnnouncement,
				Announcement: Announcement,
			})
		}
		r.deliver(ctx, t.ID, models.DispatchDescriptor{
			Destination: target.Destination,
			Kind:        models.PayloadMessage,
			Message:     msg,
		})
		if quoted != nil && !target.Flags.Has(models.FlagNoQuote) {
			r.deliver(ctx, t.ID, models.DispatchDescriptor{
				Destination: target.Destination,
				Kind:        models.PayloadMessage,
				Message:     quoted,
			})
		}
	}
}

func (r *Relay) deliver(ctx context.Context, tweetID string, d models.DispatchDescriptor) {
	if err := r.dispatcher.Deliver(ctx, d); err != nil {
		log.Printf("[Relay] Delivery of tweet %s (%s) to %s failed: %v", tweetID, d.Kind, d.Destination.ChannelID, err)
	}
}
