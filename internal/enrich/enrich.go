// Package enrich turns closed batches of ingested posts into stored
// verdicts and, when the policy approves, WhatsApp alerts.
package enrich

import (
	"context"
	"log"
	"strconv"

	"tweetwatch/internal/alert"
	"tweetwatch/internal/analyze"
	"tweetwatch/internal/database"
	"tweetwatch/internal/queue"
)

// Classifier is the batch classification collaborator.
type Classifier interface {
	ClassifyBatch(ctx context.Context, inputs []analyze.Input) ([]*analyze.Verdict, error)
}

// Notifier is the alert delivery collaborator. The boolean is aggregate
// delivery success.
type Notifier interface {
	Notify(ctx context.Context, author, text, link string, v analyze.Verdict) bool
}

// Enricher processes one batch at a time: a single classification call,
// per-post fallback for missing or malformed results, verdict
// persistence, and the notification decision.
type Enricher struct {
	db         *database.DB
	classifier Classifier
	notifier   Notifier
	policy     alert.Policy
}

// New creates an enricher.
func New(db *database.DB, classifier Classifier, notifier Notifier, policy alert.Policy) *Enricher {
	if policy == nil {
		policy = alert.DefaultPolicy(1)
	}
	return &Enricher{db: db, classifier: classifier, notifier: notifier, policy: policy}
}

// ProcessBatch enriches every task in the batch. Every task receives
// exactly one verdict: the classifier's where available, the fallback
// otherwise. A wholesale classification failure degrades the entire
// batch to fallback verdicts rather than losing visibility.
func (e *Enricher) ProcessBatch(ctx context.Context, batch []queue.Task) {
	if len(batch) == 0 {
		return
	}

	log.Printf("Processing batch of %d posts...", len(batch))

	inputs := make([]analyze.Input, len(batch))
	for i, t := range batch {
		inputs[i] = analyze.Input{
			ID:     strconv.FormatInt(t.PostID, 10),
			Author: t.Author,
			Text:   t.Text,
		}
	}

	verdicts, err := e.classifier.ClassifyBatch(ctx, inputs)
	if err != nil {
		log.Printf("Batch classification failed, applying fallback to %d posts: %v", len(batch), err)
		verdicts = make([]*analyze.Verdict, len(batch))
	}

	for i, task := range batch {
		v := verdicts[i]
		if v == nil {
			log.Printf("No usable verdict for post %d, using fallback", task.PostID)
			fb := analyze.FallbackVerdict()
			v = &fb
		}
		e.finishPost(ctx, task, *v)
	}
}

// finishPost persists the verdict and applies the notification policy.
// The notified flag only moves false -> true, and only after a
// successful delivery; a failed delivery gets no automatic retry.
func (e *Enricher) finishPost(ctx context.Context, task queue.Task, v analyze.Verdict) {
	if err := e.db.SetPostAnalysis(task.PostID, v.Marshal()); err != nil {
		log.Printf("Error storing verdict for post %d: %v", task.PostID, err)
		return
	}

	post, err := e.db.GetPostByID(task.PostID)
	if err != nil {
		log.Printf("Error loading post %d: %v", task.PostID, err)
		return
	}
	if post == nil || post.Notified {
		return
	}

	if !e.policy(v) {
		log.Printf("Policy declined alert for post %d (%s, urgency %d)", task.PostID, v.Category, v.Urgency)
		return
	}

	if e.notifier == nil {
		return
	}
	if e.notifier.Notify(ctx, task.Author, task.Text, task.Link, v) {
		if err := e.db.MarkPostNotified(task.PostID); err != nil {
			log.Printf("Error marking post %d notified: %v", task.PostID, err)
		}
	} else {
		log.Printf("Alert delivery failed for post %d", task.PostID)
	}
}
