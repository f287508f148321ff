package database

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"tweet-relay/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "subscriptions.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func subscription(channel, user string, flags models.SubscriptionFlags) models.Subscription {
	return models.Subscription{
		Destination:   models.Destination{ChannelID: channel},
		TwitterUserID: user,
		Flags:         flags,
	}
}

func TestSubscriptionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	if err := s.AddSubscription(ctx, subscription("c1", "200", models.FlagRetweet)); err != nil {
		t.Fatalf("AddSubscription() error = %v", err)
	}
	clock = clock.Add(time.Second)
	if err := s.AddSubscription(ctx, subscription("c2", "200", 0)); err != nil {
		t.Fatal(err)
	}
	dm := subscription("u9", "100", models.FlagPing|models.FlagNoQuote)
	dm.IsDM = true
	if err := s.AddSubscription(ctx, dm); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListFollowedUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListFollowedUserIDs() error = %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"100", "200"}) {
		t.Errorf("followed ids = %v", ids)
	}

	subs, err := s.ListSubscriptionsForAuthor(ctx, "200")
	if err != nil {
		t.Fatalf("ListSubscriptionsForAuthor() error = %v", err)
	}
	if len(subs) != 2 || subs[0].ChannelID != "c1" || subs[1].ChannelID != "c2" {
		t.Fatalf("subscriptions = %+v", subs)
	}
	if !subs[0].Flags.Has(models.FlagRetweet) || subs[0].CreatedAt != 1000 {
		t.Errorf("first subscription = %+v", subs[0])
	}

	subs, _ = s.ListSubscriptionsForAuthor(ctx, "100")
	if len(subs) != 1 || !subs[0].IsDM || subs[0].Flags != models.FlagPing|models.FlagNoQuote {
		t.Errorf("dm subscription = %+v", subs)
	}
}

func TestAddSubscriptionReplacesFlags(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.AddSubscription(ctx, subscription("c1", "1", models.FlagNoText))
	s.AddSubscription(ctx, subscription("c1", "1", models.FlagRetweet))

	subs, _ := s.ListSubscriptionsForAuthor(ctx, "1")
	if len(subs) != 1 || subs[0].Flags != models.FlagRetweet {
		t.Errorf("subscriptions = %+v", subs)
	}
}

func TestRemoveSubscription(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	s.AddSubscription(ctx, subscription("c1", "1", 0))

	removed, err := s.RemoveSubscription(ctx, "c1", "1")
	if err != nil || !removed {
		t.Fatalf("RemoveSubscription() = %v, %v", removed, err)
	}
	removed, err = s.RemoveSubscription(ctx, "c1", "1")
	if err != nil || removed {
		t.Errorf("second RemoveSubscription() = %v, %v", removed, err)
	}
	if ids, _ := s.ListFollowedUserIDs(ctx); len(ids) != 0 {
		t.Errorf("followed ids after removal = %v", ids)
	}
}

func TestAuthorsAndChannelListing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	s.AddSubscription(ctx, subscription("c1", "1", 0))
	s.AddSubscription(ctx, subscription("c1", "2", models.FlagNoText))
	if err := s.RecordSeenAuthor(ctx, models.TwitterUser{ID: "1", ScreenName: "Jane", Name: "Jane"}); err != nil {
		t.Fatalf("RecordSeenAuthor() error = %v", err)
	}
	if err := s.RecordSeenAuthor(ctx, models.TwitterUser{}); err == nil {
		t.Error("RecordSeenAuthor() accepted an author without id")
	}

	u, err := s.UserByScreenName(ctx, "@jane")
	if err != nil || u.ID != "1" {
		t.Fatalf("UserByScreenName() = %+v, %v", u, err)
	}
	if _, err := s.UserByScreenName(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserByScreenName(nobody) error = %v, want ErrNotFound", err)
	}

	s.RecordSeenAuthor(ctx, models.TwitterUser{ID: "1", ScreenName: "jane_renamed", Name: "Jane"})
	list, err := s.ListSubscriptionsForChannel(ctx, "c1")
	if err != nil {
		t.Fatalf("ListSubscriptionsForChannel() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %+v", list)
	}
	names := map[string]string{}
	for _, cs := range list {
		names[cs.TwitterUserID] = cs.ScreenName
	}
	if names["1"] != "jane_renamed" || names["2"] != "" {
		t.Errorf("screen names = %v", names)
	}
}

func TestPruneAuthors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	old := time.Now().Add(-2 * AuthorRetention)
	s.now = func() time.Time { return old }
	s.RecordSeenAuthor(ctx, models.TwitterUser{ID: "stale", ScreenName: "stale"})
	s.RecordSeenAuthor(ctx, models.TwitterUser{ID: "followed", ScreenName: "followed"})
	s.AddSubscription(ctx, subscription("c1", "followed", 0))

	s.now = time.Now
	s.RecordSeenAuthor(ctx, models.TwitterUser{ID: "fresh", ScreenName: "fresh"})

	n, err := s.PruneAuthors(ctx)
	if err != nil {
		t.Fatalf("PruneAuthors() error = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d authors, want 1", n)
	}
	for name, want := range map[string]bool{"stale": false, "followed": true, "fresh": true} {
		_, err := s.UserByScreenName(ctx, name)
		if got := err == nil; got != want {
			t.Errorf("%s cached = %v, want %v", name, got, want)
		}
	}
}

func TestStatusManagerSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "status.json")
	sm := NewStatusManager(path)
	sm.SetStreamState("streaming")
	sm.SetFollowedUsers(3)
	sm.RecordTweet("42", time.Unix(5000, 0).UTC())

	if err := sm.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got models.RelayStatus
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.StreamState != "streaming" || got.FollowedUsers != 3 || got.LastTweetID != "42" || got.LastUpdated.IsZero() {
		t.Errorf("status = %+v", got)
	}
	if snap := sm.Snapshot(); snap.LastTweetAt != time.Unix(5000, 0).UTC() {
		t.Errorf("snapshot = %+v", snap)
	}
}
