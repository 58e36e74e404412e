package analyze

import (
	"encoding/json"
	"strings"
)

// Verdict categories. MENTION is reserved for the fallback path and is
// never produced by a successful classification.
const (
	CategoryAttack    = "ATTACK"
	CategoryGrievance = "GRIEVANCE"
	CategorySupport   = "SUPPORT"
	CategoryNeutral   = "NEUTRAL"
	CategoryMention   = "MENTION"
)

// TopicGeneral is the catch-all topic for posts outside the configured
// topic set.
const TopicGeneral = "General"

// Verdict is the structured classification of one post. Immutable once
// stored; re-analysis is out of scope.
type Verdict struct {
	Category       string  `json:"category"`
	Topic          string  `json:"topic"`
	Urgency        int     `json:"urgency"`
	Sentiment      float64 `json:"sentiment"`
	Explanation    string  `json:"explanation"`
	ActionRequired bool    `json:"action_required"`
}

// Marshal serializes the verdict for storage.
func (v Verdict) Marshal() string {
	data, _ := json.Marshal(v)
	return string(data)
}

// FallbackVerdict is applied to any post whose classification is
// missing or malformed. It errs toward notifying: operators should see
// "analysis unavailable" rather than a silently dropped post.
func FallbackVerdict() Verdict {
	return Verdict{
		Category:       CategoryMention,
		Topic:          TopicGeneral,
		Urgency:        3,
		Sentiment:      0.0,
		Explanation:    "analysis unavailable",
		ActionRequired: true,
	}
}

// parseVerdict validates one response entry against the verdict schema.
// Returns nil if the entry cannot be trusted: wrong category, non-numeric
// urgency, or missing required fields. Tolerated deviations are clamped
// (urgency, sentiment) or defaulted (topic, action_required).
func parseVerdict(entry map[string]any, topics []string) *Verdict {
	category, ok := entry["category"].(string)
	if !ok {
		return nil
	}
	category = strings.ToUpper(strings.TrimSpace(category))
	switch category {
	case CategoryAttack, CategoryGrievance, CategorySupport, CategoryNeutral:
	default:
		return nil
	}

	urgency, ok := asInt(entry["urgency"])
	if !ok {
		return nil
	}
	if urgency < 1 {
		urgency = 1
	} else if urgency > 5 {
		urgency = 5
	}

	sentiment, ok := asFloat(entry["sentiment"])
	if !ok {
		sentiment = 0.0
	}
	if sentiment < -1.0 {
		sentiment = -1.0
	} else if sentiment > 1.0 {
		sentiment = 1.0
	}

	topic := TopicGeneral
	if raw, ok := entry["topic"].(string); ok {
		raw = strings.TrimSpace(raw)
		for _, t := range topics {
			if strings.EqualFold(raw, t) {
				topic = t
				break
			}
		}
	}

	explanation, _ := entry["explanation"].(string)

	actionRequired := true
	if b, ok := entry["action_required"].(bool); ok {
		actionRequired = b
	}

	return &Verdict{
		Category:       category,
		Topic:          topic,
		Urgency:        urgency,
		Sentiment:      sentiment,
		Explanation:    strings.TrimSpace(explanation),
		ActionRequired: actionRequired,
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
