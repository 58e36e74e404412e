package database

// Source represents a monitored account handle.
type Source struct {
	ID           int64
	Handle       string
	DisplayName  *string
	Active       bool
	LastPolledAt *string
	CreatedAt    *string
}

// Post represents a deduplicated ingested post.
type Post struct {
	ID           int64
	ExternalID   string
	SourceHandle string
	Text         string
	Summary      *string
	Link         string
	PostedAt     *string
	IngestedAt   *string
	Analysis     *string // serialized verdict JSON, nil until enrichment
	Notified     bool
}

// KeywordSearch records one keyword search pass-through.
type KeywordSearch struct {
	ID        int64
	Keyword   string
	CreatedAt *string
}

// SearchResult is one post returned and persisted by a keyword search.
type SearchResult struct {
	ID           int64
	SearchID     int64
	ExternalID   string
	SourceHandle string
	Text         string
	Summary      *string
	Link         string
	PostedAt     *string
	FoundAt      *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalSources    int
	ActiveSources   int
	TotalPosts      int
	AnalyzedPosts   int
	NotifiedPosts   int
	KeywordSearches int
}
