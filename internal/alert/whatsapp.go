package alert

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tweetwatch/internal/analyze"
)

const maxAttempts = 3

// WhatsAppNotifier sends WhatsApp alerts via the Twilio Messages API to
// one or more recipients.
type WhatsAppNotifier struct {
	accountSID string
	authToken  string
	from       string
	recipients []string
	baseURL    string
	client     *http.Client
}

// NewWhatsAppNotifier creates a notifier. With missing credentials or
// no recipients the notifier is constructed but every Notify returns
// false.
func NewWhatsAppNotifier(accountSID, authToken, from string, recipients []string) *WhatsAppNotifier {
	return &WhatsAppNotifier{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		recipients: recipients,
		baseURL:    "https://api.twilio.com",
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// IsConfigured reports whether credentials and recipients are present.
func (n *WhatsAppNotifier) IsConfigured() bool {
	return n.accountSID != "" && n.authToken != "" && n.from != "" && len(n.recipients) > 0
}

// Notify delivers the alert to all recipients, up to three attempts
// each. Aggregate success: true if at least one recipient received it.
func (n *WhatsAppNotifier) Notify(ctx context.Context, author, text, link string, v analyze.Verdict) bool {
	if !n.IsConfigured() {
		log.Println("WhatsApp notifier not configured, skipping alert")
		return false
	}

	body := formatMessage(author, text, link, v)

	anySuccess := false
	for _, to := range n.recipients {
		if n.sendTo(ctx, to, body) {
			anySuccess = true
		}
	}
	return anySuccess
}

func (n *WhatsAppNotifier) sendTo(ctx context.Context, to, body string) bool {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := n.postMessage(ctx, to, body)
		if err == nil {
			log.Printf("WhatsApp alert sent to %s", to)
			return true
		}
		log.Printf("Failed to send to %s (attempt %d/%d): %v", to, attempt, maxAttempts, err)
	}
	return false
}

func (n *WhatsAppNotifier) postMessage(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", n.baseURL, n.accountSID)

	form := url.Values{}
	form.Set("From", n.from)
	form.Set("To", to)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(n.accountSID, n.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("twilio returned %s", resp.Status)
	}
	return nil
}

func formatMessage(author, text, link string, v analyze.Verdict) string {
	var headline string
	switch v.Category {
	case analyze.CategoryAttack:
		headline = "Political Attack Detected - " + v.Topic
	case analyze.CategoryGrievance:
		headline = "Citizen Grievance - " + v.Topic
	case analyze.CategorySupport:
		headline = "Support Message - " + v.Topic
	default:
		headline = "Mention - " + v.Topic
	}

	statement := text
	if len(statement) > 200 {
		statement = statement[:200]
	}

	reason := v.Explanation
	if reason == "" {
		reason = "analysis unavailable"
	}

	return fmt.Sprintf(`tweetwatch
-----------------
Caption: %s

%s
-----------------
By: @%s
-----------------
Classification: %s
Topic: %s
Urgency: %d/5
Sentiment: %.2f
-----------------
Reason: %s
-----------------
Post Link: %s`,
		headline, statement, author, v.Category, v.Topic, v.Urgency, v.Sentiment, reason, link)
}
