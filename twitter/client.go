// Package twitter talks to the Twitter v1.1 API: the filter stream that
// feeds the relay and the user lookups behind the follow command.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"tweet-relay/models"
)

// DefaultAPIBase is the REST API root used when none is configured.
const DefaultAPIBase = "https://api.twitter.com"

// DefaultStreamEndpoint is the filter stream used when none is configured.
const DefaultStreamEndpoint = "https://stream.twitter.com/1.1/statuses/filter.json"

// StatusError is a non-success response from the REST API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("twitter api returned %d: %s", e.Status, e.Body)
}

// ResponseHeaderTimeout bounds how long a request, the stream included,
// may wait for response headers.
const ResponseHeaderTimeout = 30 * time.Second

// NewHTTPClient returns a client that sends the app bearer token with every
// request. The client has no overall timeout because it also carries the
// stream; only the wait for response headers is bounded.
func NewHTTPClient(ctx context.Context, bearerToken string) *http.Client {
	return newHTTPClient(ctx, bearerToken, ResponseHeaderTimeout)
}

func newHTTPClient(ctx context.Context, bearerToken string, headerTimeout time.Duration) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = headerTimeout
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, src)
}

// Client performs REST lookups.
type Client struct {
	http    *http.Client
	apiBase string
}

// NewClient creates a REST client. An empty apiBase uses DefaultAPIBase.
func NewClient(httpClient *http.Client, apiBase string) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{http: httpClient, apiBase: strings.TrimSuffix(apiBase, "/")}
}

// LookupUser resolves a screen name (with or without the leading @).
func (c *Client) LookupUser(ctx context.Context, screenName string) (*models.TwitterUser, error) {
	screenName = strings.TrimPrefix(strings.TrimSpace(screenName), "@")
	if screenName == "" {
		return nil, fmt.Errorf("empty screen name")
	}

	q := url.Values{}
	q.Set("screen_name", screenName)
	endpoint := c.apiBase + "/1.1/users/show.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", screenName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var user models.TwitterUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", screenName, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user %s: response has no id", screenName)
	}
	return &user, nil
}
