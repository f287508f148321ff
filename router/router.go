// Package router decides which subscriptions receive a tweet.
package router

import (
	"tweet-relay/models"
	"tweet-relay/render"
)

// Route returns the subscriptions that should receive t, in the order given.
// It never modifies subs.
func Route(t *models.Tweet, subs []models.Subscription) []models.Subscription {
	if !render.Valid(t) || len(subs) == 0 {
		return nil
	}
	if t.IsReplyToOther() {
		return nil
	}

	textOnly := render.KindOf(t) == render.KindText
	retweet := t.IsRetweet()
	quote := t.IsQuoteStatus

	var targets []models.Subscription
	for _, sub := range subs {
		if sub.Flags.Has(models.FlagNoText) && textOnly {
			continue
		}
		if retweet && !sub.Flags.Has(models.FlagRetweet) {
			continue
		}
		if quote && sub.Flags.Has(models.FlagNoQuote) {
			continue
		}
		targets = append(targets, sub)
	}
	return targets
}
