// Package unfurl fetches the preview images a web page advertises through
// its Open Graph and Twitter card meta tags.
package unfurl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"tweet-relay/models"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 2
	maxBodyBytes    = 2 << 20
	userAgent       = "Mozilla/5.0 (compatible; tweet-relay/1.0; +https://discord.com)"
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.Status, e.URL)
}

// Resolver fetches page metadata. The zero value is not usable; call New.
type Resolver struct {
	client   *http.Client
	attempts uint
	delay    time.Duration
}

// New creates a Resolver from the unfurl config. A nil client gets one
// with the configured timeout.
func New(client *http.Client, cfg models.UnfurlConfig) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = defaultAttempts
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Resolver{client: client, attempts: cfg.Attempts, delay: 500 * time.Millisecond}
}

// Resolve fetches url and extracts its preview images. Any failure is
// reported as ok == false.
func (r *Resolver) Resolve(ctx context.Context, url string) (*models.PageMetadata, bool) {
	meta, err := r.fetch(ctx, url)
	if err != nil {
		log.Printf("[Unfurl] No metadata for %s: %v", url, err)
		return nil, false
	}
	return meta, true
}

func (r *Resolver) fetch(ctx context.Context, url string) (*models.PageMetadata, error) {
	var meta *models.PageMetadata

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

			resp, err := r.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				statusErr := &StatusError{URL: url, Status: resp.StatusCode}
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(statusErr)
				}
				return statusErr
			}

			if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
				return retry.Unrecoverable(fmt.Errorf("not an html page: %s", ct))
			}

			meta, err = Parse(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("parse html: %w", err))
			}
			return nil
		},
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[Unfurl] Retrying %s after attempt %d: %v", url, n+1, err)
		}),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Parse reads the og:image and twitter:image meta tags of an HTML document.
// Width and height tags apply to the image declared just before them.
func Parse(body io.Reader) (*models.PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	meta := &models.PageMetadata{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("property")
		if !ok || key == "" {
			key, _ = s.Attr("name")
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}

		key = strings.ToLower(key)
		switch key {
		case "og:image", "og:image:url", "og:image:secure_url":
			if key == "og:image" || len(meta.OpenGraphImages) == 0 {
				meta.OpenGraphImages = append(meta.OpenGraphImages, models.PageImage{URL: content})
			} else {
				last := &meta.OpenGraphImages[len(meta.OpenGraphImages)-1]
				if last.URL == "" || key == "og:image:secure_url" {
					last.URL = content
				}
			}
		case "og:image:width":
			setDimension(meta.OpenGraphImages, content, true)
		case "og:image:height":
			setDimension(meta.OpenGraphImages, content, false)
		case "twitter:image", "twitter:image:src":
			meta.TwitterCardImages = append(meta.TwitterCardImages, models.PageImage{URL: content})
		case "twitter:image:width":
			setDimension(meta.TwitterCardImages, content, true)
		case "twitter:image:height":
			setDimension(meta.TwitterCardImages, content, false)
		}
	})
	return meta, nil
}

func setDimension(images []models.PageImage, value string, width bool) {
	if len(images) == 0 {
		return
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return
	}
	if width {
		images[len(images)-1].Width = n
	} else {
		images[len(images)-1].Height = n
	}
}
