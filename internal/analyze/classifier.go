package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const classifySystem = "You are a risk analyst producing raw JSON. Return ONLY a JSON array. No text before or after."

const classifyPrompt = `You are a Political Risk & Sentiment Analyst for the office of %s.

Analyze the following list of posts.

**Monitored portfolios (topics):** %s.

**Classification Guidelines:**
- ATTACK: Personal insults, political mockery, or corruption allegations against the office
- GRIEVANCE: Specific citizen issues (power cuts, bad roads, school problems, safety)
- SUPPORT: Praise or defense of the office's work
- NEUTRAL: General news or mentions without strong emotion

**Urgency Scoring (1-5):** 5 is highest (crisis), 1 is minimal.
**Sentiment Scoring (-1.0 to 1.0):** -1.0 is highly negative, 1.0 is highly positive.

**Posts to analyze:**
%s

**CRITICAL: Respond ONLY with a valid JSON array of objects. No explanation.**
Each object MUST include the "post_id" exactly as provided.

Output Format for each object:
{
  "post_id": "...",
  "category": "ATTACK|GRIEVANCE|SUPPORT|NEUTRAL",
  "topic": "%s",
  "urgency": 1-5,
  "sentiment": -1.0 to 1.0,
  "explanation": "One sentence professional analysis",
  "action_required": true|false
}`

// Input is one post submitted for batch classification. ID is the
// correlation key echoed back by the model.
type Input struct {
	ID     string
	Author string
	Text   string
}

// Classifier classifies batches of posts with a single LLM call each.
type Classifier struct {
	provider Provider
	subject  string
	topics   []string
}

// NewClassifier creates a classifier. subject names who is being
// monitored; topics is the closed topic set offered to the model.
func NewClassifier(provider Provider, subject string, topics []string) *Classifier {
	if len(topics) == 0 {
		topics = []string{TopicGeneral}
	}
	return &Classifier{provider: provider, subject: subject, topics: topics}
}

// ClassifyBatch issues exactly one classification call for the batch.
// The returned slice is aligned with inputs by correlation ID: entries
// the model omitted or mangled are nil, never dropped. A wholesale call
// failure returns (nil, err).
func (c *Classifier) ClassifyBatch(ctx context.Context, inputs []Input) ([]*Verdict, error) {
	if c.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	type promptPost struct {
		PostID string `json:"post_id"`
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	batch := make([]promptPost, len(inputs))
	for i, in := range inputs {
		text := in.Text
		if len(text) > 2000 {
			text = text[:2000] + "..."
		}
		batch[i] = promptPost{PostID: in.ID, Author: in.Author, Text: text}
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}

	prompt := fmt.Sprintf(classifyPrompt,
		c.subject, strings.Join(c.topics, ", "), string(payload), strings.Join(c.topics, "|"))

	responseText, err := c.provider.Generate(ctx, classifySystem, prompt, 256*len(inputs))
	if err != nil {
		return nil, err
	}

	entries := UnwrapList(ParseJSONResponse(responseText))

	// Correlate entries back to inputs by post_id. Order in the
	// response is not trusted.
	byID := make(map[string]*Verdict, len(entries))
	for _, entry := range entries {
		id, ok := entry["post_id"].(string)
		if !ok {
			if n, numOK := asInt(entry["post_id"]); numOK {
				id = fmt.Sprintf("%d", n)
			} else {
				continue
			}
		}
		if _, seen := byID[id]; seen {
			continue
		}
		byID[id] = parseVerdict(entry, c.topics)
	}

	verdicts := make([]*Verdict, len(inputs))
	for i, in := range inputs {
		verdicts[i] = byID[in.ID]
	}
	return verdicts, nil
}
