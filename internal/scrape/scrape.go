// Package scrape fetches account timelines and keyword searches from a
// Nitter-compatible RSS mirror.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ErrForbidden marks an auth-rejected fetch (HTTP 401/403). The poll
// scheduler logs it distinctly so operators can spot a blocked mirror.
var ErrForbidden = errors.New("upstream access forbidden")

// RawPost is one candidate item returned by the mirror.
type RawPost struct {
	ExternalID string
	Author     string
	Text       string
	Link       string
	PostedAt   *time.Time
}

// Client fetches posts from a Nitter-compatible mirror.
type Client struct {
	mirrorURL string
	client    *http.Client
	parser    *gofeed.Parser
}

// NewClient creates a client for the given mirror base URL.
func NewClient(mirrorURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		mirrorURL: strings.TrimRight(mirrorURL, "/"),
		client:    &http.Client{Timeout: timeout},
		parser:    gofeed.NewParser(),
	}
}

// Timeline returns up to limit recent posts from an account's feed,
// in feed order (newest first).
func (c *Client) Timeline(ctx context.Context, handle string, limit int) ([]RawPost, error) {
	feedURL := fmt.Sprintf("%s/%s/rss", c.mirrorURL, url.PathEscape(handle))
	return c.fetchFeed(ctx, feedURL, handle, limit)
}

// Search returns up to limit posts matching a keyword search.
func (c *Client) Search(ctx context.Context, keyword string, limit int) ([]RawPost, error) {
	feedURL := fmt.Sprintf("%s/search/rss?f=tweets&q=%s", c.mirrorURL, url.QueryEscape(keyword))
	return c.fetchFeed(ctx, feedURL, "", limit)
}

func (c *Client) fetchFeed(ctx context.Context, feedURL, fallbackAuthor string, limit int) ([]RawPost, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "tweetwatch/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: %s returned %d", ErrForbidden, feedURL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %d: %s", resp.StatusCode, feedURL)
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var posts []RawPost
	for _, item := range feed.Items {
		if limit > 0 && len(posts) >= limit {
			break
		}
		post := parseItem(item, fallbackAuthor)
		if post == nil {
			continue
		}
		posts = append(posts, *post)
	}
	return posts, nil
}

func parseItem(item *gofeed.Item, fallbackAuthor string) *RawPost {
	link := item.Link
	if link == "" {
		link = item.GUID
	}

	id := externalID(link)
	if id == "" {
		return nil
	}

	text := extractText(item.Description)
	if text == "" {
		text = extractText(item.Title)
	}
	if text == "" {
		return nil
	}

	author := fallbackAuthor
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		author = strings.TrimPrefix(item.DublinCoreExt.Creator[0], "@")
	}

	var posted *time.Time
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		posted = &t
	}

	return &RawPost{
		ExternalID: id,
		Author:     author,
		Text:       text,
		Link:       link,
		PostedAt:   posted,
	}
}

// externalID extracts the numeric status ID from a post link, e.g.
// https://mirror.example/user/status/1234567890#m -> 1234567890.
func externalID(link string) string {
	idx := strings.Index(link, "/status/")
	if idx < 0 {
		return ""
	}
	id := link[idx+len("/status/"):]
	if cut := strings.IndexAny(id, "#?/"); cut >= 0 {
		id = id[:cut]
	}
	return id
}
