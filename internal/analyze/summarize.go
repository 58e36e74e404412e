package analyze

import (
	"context"
	"fmt"
	"strings"
)

const summarizePrompt = `You are a post summarizer. Summarize this post in one clear, concise sentence.
DO NOT repeat the post text. Provide a meaningful summary that captures the key point.
If the post is in Hindi, summarize in Hindi. If English, summarize in English.
Keep the summary under 100 characters.

Post: %s
%s
Summary:`

// LinkFetcher provides readable text for an external link, used to give
// the summarizer context for posts that are mostly a URL.
type LinkFetcher interface {
	LinkContext(rawURL string) (string, error)
}

// Summarizer produces one-sentence summaries of single posts.
type Summarizer struct {
	provider Provider
	links    LinkFetcher
}

// NewSummarizer creates a summarizer. links may be nil to disable link
// expansion.
func NewSummarizer(provider Provider, links LinkFetcher) *Summarizer {
	return &Summarizer{provider: provider, links: links}
}

// Summarize returns a short summary of the post text. When link
// expansion is enabled and the post body carries an external link,
// readable text from the linked page is offered to the model as context.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if s.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}

	linkSection := ""
	if s.links != nil {
		if link := firstURL(text); link != "" {
			if extra, err := s.links.LinkContext(link); err == nil && extra != "" {
				linkSection = "Linked page context: " + extra + "\n"
			}
		}
	}

	prompt := fmt.Sprintf(summarizePrompt, text, linkSection)

	response, err := s.provider.Generate(ctx, "", prompt, 128)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(response)
	summary = strings.Trim(summary, `"`)
	if summary == "" {
		return "", fmt.Errorf("empty summary")
	}
	if len(summary) > 300 {
		summary = summary[:300]
	}
	return summary, nil
}

// firstURL returns the first http(s) URL embedded in the text, or "".
func firstURL(text string) string {
	idx := strings.Index(text, "http://")
	if h := strings.Index(text, "https://"); h >= 0 && (idx < 0 || h < idx) {
		idx = h
	}
	if idx < 0 {
		return ""
	}
	link := text[idx:]
	if cut := strings.IndexAny(link, " \t\n"); cut >= 0 {
		link = link[:cut]
	}
	return strings.TrimRight(link, ".,;)")
}
