// Package fetch pulls readable text from pages linked inside posts.
package fetch

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const maxContextChars = 1500

// LinkContextFetcher fetches a linked page and extracts readable text
// via HTTP + readability extraction.
type LinkContextFetcher struct {
	client *http.Client
}

// NewLinkContextFetcher creates a new link-context fetcher.
func NewLinkContextFetcher(timeout time.Duration) *LinkContextFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &LinkContextFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// LinkContext returns readable text from the linked page, truncated to
// a context cap. An empty string with nil error means the page had no
// extractable content.
func (f *LinkContextFetcher) LinkContext(rawURL string) (string, error) {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "tweetwatch/1.0 (link preview)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	parsedURL, _ := url.Parse(rawURL)
	page, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(page.TextContent)
	if len(text) < 100 {
		return "", nil
	}
	if len(text) > maxContextChars {
		text = text[:maxContextChars]
	}
	return text, nil
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
