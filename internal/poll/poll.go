// Package poll drives periodic discovery of new posts across monitored
// sources and hands new ones to the batch enrichment queue.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tweetwatch/internal/database"
	"tweetwatch/internal/queue"
	"tweetwatch/internal/scrape"
)

// SourceClient fetches candidate posts for one source handle.
type SourceClient interface {
	Timeline(ctx context.Context, handle string, limit int) ([]scrape.RawPost, error)
}

// Summarizer produces the one-line summary stored with each new post.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Enqueuer accepts tasks for background enrichment.
type Enqueuer interface {
	Enqueue(t queue.Task)
}

// Options tune the scheduler.
type Options struct {
	Interval    time.Duration // poll cycle period
	SourceDelay time.Duration // pacing between sources within a cycle
	Backoff     time.Duration // wait after an unexpected cycle failure
	Retention   time.Duration // posts older than this are cleaned up
	FetchLimit  int           // candidates requested per source
	Handles     []string      // configured handles synced when the store is empty
}

func (o *Options) withDefaults() {
	if o.Interval <= 0 {
		o.Interval = 300 * time.Second
	}
	if o.SourceDelay <= 0 {
		o.SourceDelay = 2 * time.Second
	}
	if o.Backoff <= 0 {
		o.Backoff = 30 * time.Second
	}
	if o.Retention <= 0 {
		o.Retention = 24 * time.Hour
	}
	if o.FetchLimit <= 0 {
		o.FetchLimit = 20
	}
}

// Scheduler is the polling loop. One instance runs per process.
type Scheduler struct {
	db         *database.DB
	client     SourceClient
	summarizer Summarizer
	tasks      Enqueuer
	opts       Options
}

// NewScheduler creates a scheduler. summarizer may be nil; posts are
// then stored without summaries.
func NewScheduler(db *database.DB, client SourceClient, summarizer Summarizer, tasks Enqueuer, opts Options) *Scheduler {
	opts.withDefaults()
	return &Scheduler{db: db, client: client, summarizer: summarizer, tasks: tasks, opts: opts}
}

// Run loops until ctx is cancelled. The stop signal is observed at loop
// boundaries; in-flight work is never interrupted. An unexpected cycle
// failure backs off and restarts the loop — Run never terminates itself
// on error.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Polling service started (interval: %s)", s.opts.Interval)
	for {
		if ctx.Err() != nil {
			log.Println("Polling service stopped")
			return
		}

		if err := s.safeCycle(ctx); err != nil {
			log.Printf("Error in polling cycle: %v", err)
			if !sleepCtx(ctx, s.opts.Backoff) {
				return
			}
			continue
		}

		log.Printf("Poll cycle completed. Next poll in %s", s.opts.Interval)
		if !sleepCtx(ctx, s.opts.Interval) {
			return
		}
	}
}

// safeCycle converts a cycle panic into an error so a bug in one cycle
// cannot take the scheduler down.
func (s *Scheduler) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle executes one full poll cycle: re-read the active source
// list, poll each source in order with pacing, then run retention
// cleanup. A single source's failure never aborts the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	sources, err := s.db.ListSources(true)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}

	if len(sources) == 0 {
		log.Println("No active sources found, syncing from config")
		s.SyncSources()
		return nil
	}

	log.Printf("Polling %d monitored sources...", len(sources))
	for _, src := range sources {
		s.pollSource(ctx, src.Handle)
		if ctx.Err() != nil {
			return nil
		}
		sleepCtx(ctx, s.opts.SourceDelay)
	}

	deleted, err := s.db.DeletePostsOlderThan(s.opts.Retention)
	if err != nil {
		log.Printf("Error during cleanup: %v", err)
	} else if deleted > 0 {
		log.Printf("Cleaned up %d old post(s)", deleted)
	}

	return nil
}

// pollSource fetches one source's timeline and runs the ingest step on
// each candidate in fetch order. Fetch failures are logged and the
// cycle moves on; an auth rejection is called out for operators.
func (s *Scheduler) pollSource(ctx context.Context, handle string) {
	log.Printf("Polling @%s...", handle)

	posts, err := s.client.Timeline(ctx, handle, s.opts.FetchLimit)
	if err != nil {
		if errors.Is(err, scrape.ErrForbidden) {
			log.Printf("Access forbidden for @%s; the mirror may be blocking us: %v", handle, err)
		} else {
			log.Printf("Error polling @%s: %v", handle, err)
		}
		return
	}

	newCount := 0
	for _, p := range posts {
		isNew, err := s.Ingest(ctx, p)
		if err != nil {
			log.Printf("Error processing post %s: %v", p.ExternalID, err)
			continue
		}
		if isNew {
			newCount++
		}
	}

	if err := s.db.TouchSourcePolled(handle); err != nil {
		log.Printf("Error updating last_polled_at for @%s: %v", handle, err)
	}

	if newCount > 0 {
		log.Printf("Found %d new post(s) from @%s", newCount, handle)
	}
}

// Ingest is the dedup step: an already-seen external_id is a no-op; a
// new one is summarized, persisted, and queued for enrichment. Returns
// true iff the post was new and stored. A duplicate-insert race lost to
// the unique index is treated as "not new", not an error.
func (s *Scheduler) Ingest(ctx context.Context, p scrape.RawPost) (bool, error) {
	exists, err := s.db.PostExists(p.ExternalID)
	if err != nil {
		return false, fmt.Errorf("checking post %s: %w", p.ExternalID, err)
	}
	if exists {
		return false, nil
	}

	var summary *string
	if s.summarizer != nil {
		if text, err := s.summarizer.Summarize(ctx, p.Text); err == nil {
			summary = &text
		} else {
			log.Printf("Summarization failed for post %s: %v", p.ExternalID, err)
		}
	}

	id, err := s.db.InsertPost(p.ExternalID, p.Author, p.Text, summary, p.Link, p.PostedAt)
	if errors.Is(err, database.ErrDuplicatePost) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storing post %s: %w", p.ExternalID, err)
	}

	s.tasks.Enqueue(queue.Task{
		PostID:     id,
		ExternalID: p.ExternalID,
		Author:     p.Author,
		Text:       p.Text,
		Link:       p.Link,
	})

	log.Printf("Saved new post %s from @%s", p.ExternalID, p.Author)
	return true, nil
}

// SyncSources makes sure every configured handle exists in the store.
// Existing rows (active or deactivated) are left untouched.
func (s *Scheduler) SyncSources() {
	for _, handle := range s.opts.Handles {
		existing, err := s.db.GetSource(handle)
		if err != nil {
			log.Printf("Error checking source @%s: %v", handle, err)
			continue
		}
		if existing != nil {
			continue
		}
		if _, err := s.db.InsertSource(handle, nil); err != nil {
			log.Printf("Error adding source @%s: %v", handle, err)
			continue
		}
		log.Printf("Added monitored source: @%s", handle)
	}
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
