package twitter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"tweet-relay/models"
	"tweet-relay/stream"
)

const maxLineBytes = 1 << 20

// Transport is a filter stream connection. Each Create starts a new HTTP
// request in its own goroutine; the previous one is cancelled first.
type Transport struct {
	client   *http.Client
	endpoint string

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewTransport creates a transport. An empty endpoint uses DefaultStreamEndpoint.
func NewTransport(client *http.Client, endpoint string) *Transport {
	if endpoint == "" {
		endpoint = DefaultStreamEndpoint
	}
	return &Transport{client: client, endpoint: endpoint}
}

// Create opens a stream following userIDs and reports it to events.
func (t *Transport) Create(userIDs []string, events stream.Events) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	gen := t.gen

	ids := append([]string(nil), userIDs...)
	go t.run(ctx, gen, ids, events)
}

// MarkDisconnected closes the current stream. Events it already had in
// flight may still arrive and are dropped by the controller.
func (t *Transport) MarkDisconnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Transport) stopLocked() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// current reports whether gen is still the live connection.
func (t *Transport) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.gen
}

func (t *Transport) run(ctx context.Context, gen uint64, ids []string, events stream.Events) {
	form := url.Values{}
	form.Set("follow", strings.Join(ids, ","))
	form.Set("tweet_mode", "extended")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.fail(gen, events, &stream.StreamError{StatusText: err.Error(), URL: t.endpoint})
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			t.fail(gen, events, &stream.StreamError{StatusText: err.Error(), URL: t.endpoint})
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.fail(gen, events, &stream.StreamError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode), URL: t.endpoint})
		return
	}

	if !t.current(gen) {
		return
	}
	events.OnStarted()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			// keep-alive
			continue
		}
		tweet, ok := decodeTweet(line)
		if !ok {
			continue
		}
		if !t.current(gen) {
			return
		}
		events.OnData(tweet)
	}

	if ctx.Err() != nil || !t.current(gen) {
		return
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		t.fail(gen, events, &stream.StreamError{StatusText: err.Error(), URL: t.endpoint})
		return
	}
	events.OnEnded()
}

func (t *Transport) fail(gen uint64, events stream.Events, err *stream.StreamError) {
	if !t.current(gen) {
		return
	}
	events.OnError(err)
}

// decodeTweet parses one stream message. Control messages such as delete
// or limit notices carry no tweet id and are skipped.
func decodeTweet(line []byte) (*models.Tweet, bool) {
	var tweet models.Tweet
	if err := json.Unmarshal(line, &tweet); err != nil {
		log.Printf("[Twitter] Skipping undecodable stream message: %v", err)
		return nil, false
	}
	if tweet.ID == "" {
		return nil, false
	}
	return &tweet, true
}
