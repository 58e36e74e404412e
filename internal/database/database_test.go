package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func TestInsertSourceIdempotent(t *testing.T) {
	db := openTestDB(t)

	id1, err := db.InsertSource("alice", strPtr("Alice"))
	if err != nil {
		t.Fatalf("InsertSource() error: %v", err)
	}
	id2, err := db.InsertSource("alice", nil)
	if err != nil {
		t.Fatalf("second InsertSource() error: %v", err)
	}
	if id1 != id2 {
		t.Errorf("duplicate insert returned id %d, want existing id %d", id2, id1)
	}

	sources, err := db.ListSources(true)
	if err != nil {
		t.Fatalf("ListSources() error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	if sources[0].Handle != "alice" || !sources[0].Active {
		t.Errorf("unexpected source: %+v", sources[0])
	}
}

func TestDeactivateSource(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.InsertSource("bob", nil); err != nil {
		t.Fatalf("InsertSource() error: %v", err)
	}

	ok, err := db.DeactivateSource("bob")
	if err != nil {
		t.Fatalf("DeactivateSource() error: %v", err)
	}
	if !ok {
		t.Fatal("DeactivateSource() returned false for existing source")
	}

	active, err := db.ListSources(true)
	if err != nil {
		t.Fatalf("ListSources() error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active sources after deactivation, want 0", len(active))
	}

	all, err := db.ListSources(false)
	if err != nil {
		t.Fatalf("ListSources(false) error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d total sources, want 1", len(all))
	}

	ok, err = db.DeactivateSource("nobody")
	if err != nil {
		t.Fatalf("DeactivateSource(nobody) error: %v", err)
	}
	if ok {
		t.Error("DeactivateSource() returned true for missing source")
	}
}

func TestTouchSourcePolled(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.InsertSource("carol", nil); err != nil {
		t.Fatalf("InsertSource() error: %v", err)
	}

	src, err := db.GetSource("carol")
	if err != nil {
		t.Fatalf("GetSource() error: %v", err)
	}
	if src.LastPolledAt != nil {
		t.Errorf("fresh source has last_polled_at = %q, want nil", *src.LastPolledAt)
	}

	if err := db.TouchSourcePolled("carol"); err != nil {
		t.Fatalf("TouchSourcePolled() error: %v", err)
	}

	src, err = db.GetSource("carol")
	if err != nil {
		t.Fatalf("GetSource() error: %v", err)
	}
	if src.LastPolledAt == nil {
		t.Error("last_polled_at still nil after TouchSourcePolled")
	}
}

func TestInsertPostDuplicate(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	id, err := db.InsertPost("100", "alice", "hello world", nil, "https://x/alice/status/100", &now)
	if err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}
	if id == 0 {
		t.Fatal("InsertPost() returned id 0")
	}

	_, err = db.InsertPost("100", "alice", "hello again", nil, "https://x/alice/status/100", &now)
	if !errors.Is(err, ErrDuplicatePost) {
		t.Errorf("duplicate InsertPost() error = %v, want ErrDuplicatePost", err)
	}

	exists, err := db.PostExists("100")
	if err != nil {
		t.Fatalf("PostExists() error: %v", err)
	}
	if !exists {
		t.Error("PostExists() = false for stored post")
	}

	exists, err = db.PostExists("999")
	if err != nil {
		t.Fatalf("PostExists(999) error: %v", err)
	}
	if exists {
		t.Error("PostExists() = true for missing post")
	}
}

func TestRecentPostsFiltering(t *testing.T) {
	db := openTestDB(t)

	recent := time.Now().UTC().Add(-1 * time.Hour)
	old := time.Now().UTC().Add(-72 * time.Hour)

	if _, err := db.InsertPost("1", "alice", "recent from alice", nil, "l1", &recent); err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}
	if _, err := db.InsertPost("2", "bob", "recent from bob", nil, "l2", &recent); err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}
	if _, err := db.InsertPost("3", "alice", "old from alice", nil, "l3", &old); err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}

	posts, err := db.RecentPosts(24, "")
	if err != nil {
		t.Fatalf("RecentPosts() error: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("RecentPosts(24h) returned %d posts, want 2", len(posts))
	}

	posts, err = db.RecentPosts(24, "alice")
	if err != nil {
		t.Fatalf("RecentPosts(alice) error: %v", err)
	}
	if len(posts) != 1 || posts[0].ExternalID != "1" {
		t.Errorf("RecentPosts(24h, alice) = %+v, want only post 1", posts)
	}

	posts, err = db.RecentPosts(100, "alice")
	if err != nil {
		t.Fatalf("RecentPosts(100h) error: %v", err)
	}
	if len(posts) != 2 {
		t.Errorf("RecentPosts(100h, alice) returned %d posts, want 2", len(posts))
	}
}

func TestSetAnalysisAndNotified(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	id, err := db.InsertPost("42", "alice", "text", nil, "l", &now)
	if err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}

	post, err := db.GetPostByID(id)
	if err != nil {
		t.Fatalf("GetPostByID() error: %v", err)
	}
	if post.Analysis != nil || post.Notified {
		t.Errorf("fresh post has analysis=%v notified=%v", post.Analysis, post.Notified)
	}

	verdict := `{"category":"NEUTRAL","urgency":2}`
	if err := db.SetPostAnalysis(id, verdict); err != nil {
		t.Fatalf("SetPostAnalysis() error: %v", err)
	}
	if err := db.MarkPostNotified(id); err != nil {
		t.Fatalf("MarkPostNotified() error: %v", err)
	}

	post, err = db.GetPostByID(id)
	if err != nil {
		t.Fatalf("GetPostByID() error: %v", err)
	}
	if post.Analysis == nil || *post.Analysis != verdict {
		t.Errorf("analysis = %v, want %q", post.Analysis, verdict)
	}
	if !post.Notified {
		t.Error("notified = false after MarkPostNotified")
	}
}

func TestDeletePostsOlderThan(t *testing.T) {
	db := openTestDB(t)

	now := time.Now().UTC()
	oldID, err := db.InsertPost("old", "alice", "old post", nil, "l1", &now)
	if err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}
	if _, err := db.InsertPost("new", "alice", "new post", nil, "l2", &now); err != nil {
		t.Fatalf("InsertPost() error: %v", err)
	}

	// Backdate the first post's ingestion time past the retention window.
	if _, err := db.conn.Exec(
		"UPDATE posts SET ingested_at = datetime('now', '-48 hours') WHERE id = ?", oldID,
	); err != nil {
		t.Fatalf("backdating post: %v", err)
	}

	deleted, err := db.DeletePostsOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeletePostsOlderThan() error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d posts, want 1", deleted)
	}

	exists, _ := db.PostExists("old")
	if exists {
		t.Error("old post still present after cleanup")
	}
	exists, _ = db.PostExists("new")
	if !exists {
		t.Error("new post removed by cleanup")
	}
}

func TestKeywordSearchResults(t *testing.T) {
	db := openTestDB(t)

	searchID, err := db.InsertKeywordSearch("roads")
	if err != nil {
		t.Fatalf("InsertKeywordSearch() error: %v", err)
	}

	now := time.Now().UTC()
	if _, err := db.InsertSearchResult(searchID, "7", "dave", "bad roads", strPtr("roads complaint"), "l", &now); err != nil {
		t.Fatalf("InsertSearchResult() error: %v", err)
	}

	results, err := db.SearchResults(searchID)
	if err != nil {
		t.Fatalf("SearchResults() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.ExternalID != "7" || r.SourceHandle != "dave" || r.Summary == nil || *r.Summary != "roads complaint" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestGetStats(t *testing.T) {
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

	now := time.Now().UTC()
	id, err := db.InsertPost("1", "alice", "text", nil, "l", &now)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetPostAnalysis(id, "{}"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertPost("2", "alice", "text2", nil, "l2", &now); err != nil {
		t.Fatal(err)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.TotalSources != 2 || stats.ActiveSources != 1 {
		t.Errorf("sources = %d/%d, want 2 total 1 active", stats.TotalSources, stats.ActiveSources)
	}
	if stats.TotalPosts != 2 || stats.AnalyzedPosts != 1 || stats.NotifiedPosts != 0 {
		t.Errorf("posts = %d total %d analyzed %d notified", stats.TotalPosts, stats.AnalyzedPosts, stats.NotifiedPosts)
	}
}
