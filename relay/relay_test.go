package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tweet-relay/models"
	"tweet-relay/render"
)

type fakeStore struct {
	mu    sync.Mutex
	subs  map[string][]models.Subscription
	seen  []string
	err   error
	calls int
}

func (f *fakeStore) ListSubscriptionsForAuthor(_ context.Context, authorID string) ([]models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[authorID], nil
}

func (f *fakeStore) RecordSeenAuthor(_ context.Context, author models.TwitterUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, author.ID)
	return nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []models.DispatchDescriptor
	fail bool
}

func (f *fakeDispatcher) Deliver(_ context.Context, d models.DispatchDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, d)
	if f.fail {
		return errors.New("discord unavailable")
	}
	return nil
}

func (f *fakeDispatcher) delivered() []models.DispatchDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DispatchDescriptor, len(f.sent))
	copy(out, f.sent)
	return out
}

func subscription(channel string, flags models.SubscriptionFlags) models.Subscription {
	return models.Subscription{Destination: models.Destination{ChannelID: channel}, TwitterUserID: "1", Flags: flags}
}

func author() *models.TwitterUser {
	return &models.TwitterUser{ID: "1", Name: "Jane", ScreenName: "jane"}
}

func newTestRelay(subs ...models.Subscription) (*Relay, *fakeStore, *fakeDispatcher) {
	store := &fakeStore{subs: map[string][]models.Subscription{"1": subs}}
	disp := &fakeDispatcher{}
	return New(store, render.New(nil, ""), disp, 0), store, disp
}

func TestProcessDeliversToEveryTarget(t *testing.T) {
	r, store, disp := newTestRelay(subscription("a", 0), subscription("b", models.FlagNoText))
	r.Process(context.Background(), &models.Tweet{ID: "10", Text: "hello", User: author()})

	sent := disp.delivered()
	if len(sent) != 1 || sent[0].Destination.ChannelID != "a" {
		t.Fatalf("sent = %+v, want one message to a", sent)
	}
	if sent[0].Kind != models.PayloadMessage || sent[0].Message.Description != "hello" {
		t.Errorf("unexpected payload %+v", sent[0])
	}
	if len(store.seen) != 1 || store.seen[0] != "1" {
		t.Errorf("author not recorded: %v", store.seen)
	}
}

func TestProcessRendersOnce(t *testing.T) {
	r, _, disp := newTestRelay(subscription("a", 0), subscription("b", 0), subscription("c", 0))
	r.Process(context.Background(), &models.Tweet{ID: "10", Text: "hello", User: author()})

	sent := disp.delivered()
	if len(sent) != 3 {
		t.Fatalf("sent %d payloads, want 3", len(sent))
	}
	for _, d := range sent[1:] {
		if d.Message != sent[0].Message {
			t.Errorf("tweet was rendered more than once")
		}
	}
}

func TestProcessPingAnnouncement(t *testing.T) {
	r, _, disp := newTestRelay(subscription("quiet", 0), subscription("loud", models.FlagPing))
	tweet := &models.Tweet{
		ID:       "10",
		Text:     "big news #ping",
		User:     author(),
		Entities: models.Entities{Hashtags: []models.HashtagEntity{{Text: "ping", Indices: models.Indices{9, 14}}}},
	}
	r.Process(context.Background(), tweet)

	sent := disp.delivered()
	if len(sent) != 3 {
		t.Fatalf("sent %d payloads, want 3: %+v", len(sent), sent)
	}
	if sent[0].Destination.ChannelID != "quiet" || sent[0].Kind != models.PayloadMessage {
		t.Errorf("quiet target got %+v", sent[0])
	}
	if sent[1].Destination.ChannelID != "loud" || sent[1].Kind != models.PayloadAnnouncement || sent[1].Announcement != Announcement {
		t.Errorf("announcement missing or misplaced: %+v", sent[1])
	}
	if sent[2].Destination.ChannelID != "loud" || sent[2].Kind != models.PayloadMessage {
		t.Errorf("message should follow the announcement: %+v", sent[2])
	}
}

func TestProcessQuoteTweet(t *testing.T) {
	r, _, disp := newTestRelay(subscription("a", 0), subscription("b", models.FlagNoQuote))
	tweet := &models.Tweet{
		ID:            "10",
		Text:          "look at this",
		User:          author(),
		IsQuoteStatus: true,
		QuotedStatus:  &models.Tweet{ID: "5", Text: "original", User: &models.TwitterUser{ID: "2", Name: "Bob", ScreenName: "bob"}},
	}
	r.Process(context.Background(), tweet)

	sent := disp.delivered()
	if len(sent) != 2 {
		t.Fatalf("sent %d payloads, want 2: %+v", len(sent), sent)
	}
	for _, d := range sent {
		if d.Destination.ChannelID != "a" {
			t.Errorf("noquote destination received %+v", d)
		}
	}
	if sent[1].Message.Author.Name != "[QUOTED] Bob (@bob)" || sent[1].Message.Description != "original" {
		t.Errorf("quoted message = %+v", sent[1].Message)
	}
}

func TestProcessSkipsInvalidAndLookupFailures(t *testing.T) {
	r, store, disp := newTestRelay(subscription("a", 0))
	r.Process(context.Background(), &models.Tweet{ID: "1"})
	if store.calls != 0 {
		t.Errorf("invalid tweet reached the store")
	}

	store.err = errors.New("database is locked")
	r.Process(context.Background(), &models.Tweet{ID: "2", Text: "x", User: author()})
	if n := len(disp.delivered()); n != 0 {
		t.Errorf("sent %d payloads after lookup failure", n)
	}
}

func TestProcessContinuesAfterDeliveryFailure(t *testing.T) {
	r, _, disp := newTestRelay(subscription("a", 0), subscription("b", 0))
	disp.fail = true
	r.Process(context.Background(), &models.Tweet{ID: "1", Text: "x", User: author()})
	if n := len(disp.delivered()); n != 2 {
		t.Errorf("attempted %d deliveries, want 2", n)
	}
}

func TestRunPreservesOrder(t *testing.T) {
	r, _, disp := newTestRelay(subscription("a", 0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	ids := []string{"1", "2", "3", "4", "5"}
	for _, id := range ids {
		r.Enqueue(&models.Tweet{ID: id, Text: "tweet " + id, User: author()})
	}

	deadline := time.After(2 * time.Second)
	for len(disp.delivered()) < len(ids) {
		select {
		case <-deadline:
			t.Fatalf("only %d of %d tweets delivered", len(disp.delivered()), len(ids))
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	for i, d := range disp.delivered() {
		if want := "tweet " + ids[i]; d.Message.Description != want {
			t.Errorf("delivery %d = %q, want %q", i, d.Message.Description, want)
		}
	}

	// Enqueue after Run returned must not block forever.
	r2, _, _ := newTestRelay()
	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	r2.Run(ctx2)
	for i := 0; i < DefaultQueueSize+1; i++ {
		r2.Enqueue(&models.Tweet{ID: "x"})
	}
}
