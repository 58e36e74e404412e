package poll

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tweetwatch/internal/database"
	"tweetwatch/internal/queue"
	"tweetwatch/internal/scrape"
)

type mockClient struct {
	posts   map[string][]scrape.RawPost
	err     error
	handles []string
}

func (m *mockClient) Timeline(ctx context.Context, handle string, limit int) ([]scrape.RawPost, error) {
	m.handles = append(m.handles, handle)
	if m.err != nil {
		return nil, m.err
	}
	return m.posts[handle], nil
}

type mockSummarizer struct {
	summary string
	err     error
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return m.summary, m.err
}

type mockEnqueuer struct {
	tasks []queue.Task
}

func (m *mockEnqueuer) Enqueue(t queue.Task) {
	m.tasks = append(m.tasks, t)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rawPost(id, author string) scrape.RawPost {
	now := time.Now().UTC()
	return scrape.RawPost{
		ExternalID: id,
		Author:     author,
		Text:       "post " + id,
		Link:       "https://x/" + author + "/status/" + id,
		PostedAt:   &now,
	}
}

func testOptions() Options {
	return Options{
		SourceDelay: time.Millisecond,
		Retention:   24 * time.Hour,
		FetchLimit:  20,
	}
}

func TestIngestNewPost(t *testing.T) {
	db := openTestDB(t)
	tasks := &mockEnqueuer{}
	s := NewScheduler(db, &mockClient{}, &mockSummarizer{summary: "a summary"}, tasks, testOptions())

	isNew, err := s.Ingest(context.Background(), rawPost("100", "alice"))
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if !isNew {
		t.Error("Ingest() = false for new post")
	}

	post, err := db.GetPost("100")
	if err != nil {
		t.Fatalf("GetPost() error: %v", err)
	}
	if post == nil {
		t.Fatal("post not stored")
	}
	if post.Summary == nil || *post.Summary != "a summary" {
		t.Errorf("summary = %v, want 'a summary'", post.Summary)
	}
	if post.SourceHandle != "alice" {
		t.Errorf("source_handle = %q", post.SourceHandle)
	}

	if len(tasks.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(tasks.tasks))
	}
	if tasks.tasks[0].PostID != post.ID || tasks.tasks[0].ExternalID != "100" {
		t.Errorf("unexpected task: %+v", tasks.tasks[0])
	}
}

func TestIngestDuplicateIsNoop(t *testing.T) {
	db := openTestDB(t)
	tasks := &mockEnqueuer{}
	s := NewScheduler(db, &mockClient{}, nil, tasks, testOptions())

	if _, err := s.Ingest(context.Background(), rawPost("100", "alice")); err != nil {
		t.Fatalf("first Ingest() error: %v", err)
	}

	isNew, err := s.Ingest(context.Background(), rawPost("100", "alice"))
	if err != nil {
		t.Fatalf("second Ingest() error: %v", err)
	}
	if isNew {
		t.Error("Ingest() = true for duplicate post")
	}
	if len(tasks.tasks) != 1 {
		t.Errorf("enqueued %d tasks, want 1 (duplicate must not re-enqueue)", len(tasks.tasks))
	}
}

func TestIngestSummarizerFailureIsSoft(t *testing.T) {
	db := openTestDB(t)
	s := NewScheduler(db, &mockClient{}, &mockSummarizer{err: errors.New("timeout")}, &mockEnqueuer{}, testOptions())

	isNew, err := s.Ingest(context.Background(), rawPost("100", "alice"))
	if err != nil {
		t.Fatalf("Ingest() error: %v", err)
	}
	if !isNew {
		t.Error("Ingest() = false")
	}

	post, _ := db.GetPost("100")
	if post == nil {
		t.Fatal("post not stored")
	}
	if post.Summary != nil {
		t.Errorf("summary = %q, want nil when summarization fails", *post.Summary)
	}
}

func TestRunCycleSyncsWhenEmpty(t *testing.T) {
	db := openTestDB(t)
	opts := testOptions()
	opts.Handles = []string{"alice", "bob"}
	client := &mockClient{}
	s := NewScheduler(db, client, nil, &mockEnqueuer{}, opts)

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}

	// The empty cycle only syncs; polling starts next cycle.
	if len(client.handles) != 0 {
		t.Errorf("polled %v during sync cycle, want none", client.handles)
	}
	sources, _ := db.ListSources(true)
	if len(sources) != 2 {
		t.Fatalf("got %d sources after sync, want 2", len(sources))
	}
}

func TestRunCyclePollsEachActiveSource(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.InsertSource("alice", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertSource("bob", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := db.DeactivateSource("bob"); err != nil {
		t.Fatal(err)
	}

	tasks := &mockEnqueuer{}
	client := &mockClient{posts: map[string][]scrape.RawPost{
		"alice": {rawPost("1", "alice"), rawPost("2", "alice")},
	}}
	s := NewScheduler(db, client, nil, tasks, testOptions())

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}

	if len(client.handles) != 1 || client.handles[0] != "alice" {
		t.Errorf("polled %v, want only active source alice", client.handles)
	}
	if len(tasks.tasks) != 2 {
		t.Errorf("enqueued %d tasks, want 2", len(tasks.tasks))
	}

	src, _ := db.GetSource("alice")
	if src.LastPolledAt == nil {
		t.Error("last_polled_at not set after poll")
	}
}

func TestRunCycleFetchFailureSkipsTouch(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.InsertSource("alice", nil); err != nil {
		t.Fatal(err)
	}

	client := &mockClient{err: scrape.ErrForbidden}
	s := NewScheduler(db, client, nil, &mockEnqueuer{}, testOptions())

	if err := s.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error: %v", err)
	}

	src, _ := db.GetSource("alice")
	if src.LastPolledAt != nil {
		t.Error("last_polled_at set despite fetch failure")
	}
}

func TestSyncSourcesIdempotent(t *testing.T) {
	db := openTestDB(t)
	opts := testOptions()
	opts.Handles = []string{"alice"}
	s := NewScheduler(db, &mockClient{}, nil, &mockEnqueuer{}, opts)

	s.SyncSources()
	s.SyncSources()

	sources, _ := db.ListSources(false)
	if len(sources) != 1 {
		t.Errorf("got %d sources after double sync, want 1", len(sources))
	}

	// A deactivated source must stay deactivated across syncs.
	if _, err := db.DeactivateSource("alice"); err != nil {
		t.Fatal(err)
	}
	s.SyncSources()
	active, _ := db.ListSources(true)
	if len(active) != 0 {
		t.Error("sync reactivated a deactivated source")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db := openTestDB(t)
	opts := testOptions()
	opts.Interval = time.Hour
	s := NewScheduler(db, &mockClient{}, nil, &mockEnqueuer{}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}
}
