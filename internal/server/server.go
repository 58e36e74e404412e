// Package server exposes the JSON read API: recent posts, source
// management, and the keyword-search pass-through. Handlers are thin
// wrappers over the store and the source client; none of them ever
// touches the enrichment pipeline.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tweetwatch/internal/analyze"
	"tweetwatch/internal/database"
	"tweetwatch/internal/scrape"
)

// Searcher is the keyword-search side of the source client.
type Searcher interface {
	Search(ctx context.Context, keyword string, limit int) ([]scrape.RawPost, error)
}

// Summarizer matches the ingest-side summarizer; used by the search
// pass-through so persisted results carry summaries too.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Server is the HTTP read API.
type Server struct {
	db         *database.DB
	searcher   Searcher
	summarizer Summarizer
	router     *mux.Router
}

// New creates a server. searcher and summarizer may be nil; the search
// endpoint then responds 503 / skips summaries respectively.
func New(db *database.DB, searcher Searcher, summarizer Summarizer) *Server {
	s := &Server{db: db, searcher: searcher, summarizer: summarizer, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/posts/recent", s.handleRecentPosts).Methods(http.MethodGet)
	s.router.HandleFunc("/api/posts/by-source/{handle}", s.handlePostsBySource).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sources", s.handleListSources).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sources", s.handleAddSource).Methods(http.MethodPost)
	s.router.HandleFunc("/api/sources/{handle}", s.handleDeactivateSource).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodPost)
}

type postResponse struct {
	ID           int64            `json:"id"`
	ExternalID   string           `json:"external_id"`
	SourceHandle string           `json:"source_handle"`
	Text         string           `json:"text"`
	Summary      string           `json:"summary"`
	Link         string           `json:"link"`
	PostedAt     string           `json:"posted_at"`
	IngestedAt   string           `json:"ingested_at"`
	Analysis     *analyze.Verdict `json:"analysis,omitempty"`
	Notified     bool             `json:"notified"`
}

type sourceResponse struct {
	ID           int64  `json:"id"`
	Handle       string `json:"handle"`
	DisplayName  string `json:"display_name"`
	Active       bool   `json:"active"`
	LastPolledAt string `json:"last_polled_at"`
}

type searchResultResponse struct {
	ExternalID   string `json:"external_id"`
	SourceHandle string `json:"source_handle"`
	Text         string `json:"text"`
	Summary      string `json:"summary"`
	Link         string `json:"link"`
	PostedAt     string `json:"posted_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRecentPosts(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	source := r.URL.Query().Get("source")

	posts, err := s.db.RecentPosts(hours, source)
	if err != nil {
		log.Printf("Error fetching recent posts: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch posts")
		return
	}
	writeJSON(w, http.StatusOK, postResponses(posts))
}

func (s *Server) handlePostsBySource(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]
	hours := queryInt(r, "hours", 24)

	posts, err := s.db.RecentPosts(hours, handle)
	if err != nil {
		log.Printf("Error fetching posts for @%s: %v", handle, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch posts")
		return
	}
	writeJSON(w, http.StatusOK, postResponses(posts))
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	sources, err := s.db.ListSources(activeOnly)
	if err != nil {
		log.Printf("Error fetching sources: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch sources")
		return
	}

	resp := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		resp = append(resp, sourceResponse{
			ID:           src.ID,
			Handle:       src.Handle,
			DisplayName:  deref(src.DisplayName),
			Active:       src.Active,
			LastPolledAt: deref(src.LastPolledAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle      string `json:"handle"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Handle == "" {
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	existing, err := s.db.GetSource(req.Handle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check source")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("source @%s is already monitored", req.Handle))
		return
	}

	var displayName *string
	if req.DisplayName != "" {
		displayName = &req.DisplayName
	}
	id, err := s.db.InsertSource(req.Handle, displayName)
	if err != nil {
		log.Printf("Error adding source @%s: %v", req.Handle, err)
		writeError(w, http.StatusInternalServerError, "failed to add source")
		return
	}

	log.Printf("Added monitored source: @%s", req.Handle)
	writeJSON(w, http.StatusCreated, sourceResponse{
		ID:          id,
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		Active:      true,
	})
}

func (s *Server) handleDeactivateSource(w http.ResponseWriter, r *http.Request) {
	handle := mux.Vars(r)["handle"]

	ok, err := s.db.DeactivateSource(handle)
	if err != nil {
		log.Printf("Error deactivating source @%s: %v", handle, err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate source")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("source @%s not found", handle))
		return
	}

	log.Printf("Deactivated monitored source: @%s", handle)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("source @%s deactivated", handle),
	})
}

// handleSearch runs a keyword search against the mirror, persists the
// search and its results, and returns them.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	var req struct {
		Keyword string `json:"keyword"`
		Count   int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}
	if req.Count <= 0 {
		req.Count = 20
	}

	posts, err := s.searcher.Search(r.Context(), req.Keyword, req.Count)
	if err != nil {
		log.Printf("Error searching for %q: %v", req.Keyword, err)
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}

	searchID, err := s.db.InsertKeywordSearch(req.Keyword)
	if err != nil {
		log.Printf("Error recording search %q: %v", req.Keyword, err)
		writeError(w, http.StatusInternalServerError, "failed to record search")
		return
	}

	resp := make([]searchResultResponse, 0, len(posts))
	for _, p := range posts {
		var summary *string
		if s.summarizer != nil {
			if text, err := s.summarizer.Summarize(r.Context(), p.Text); err == nil {
				summary = &text
			}
		}

		if _, err := s.db.InsertSearchResult(searchID, p.ExternalID, p.Author, p.Text, summary, p.Link, p.PostedAt); err != nil {
			log.Printf("Error storing search result %s: %v", p.ExternalID, err)
		}

		posted := ""
		if p.PostedAt != nil {
			posted = p.PostedAt.UTC().Format(database.TimeLayout)
		}
		resp = append(resp, searchResultResponse{
			ExternalID:   p.ExternalID,
			SourceHandle: p.Author,
			Text:         p.Text,
			Summary:      deref(summary),
			Link:         p.Link,
			PostedAt:     posted,
		})
	}

	log.Printf("Found %d results for %q", len(resp), req.Keyword)
	writeJSON(w, http.StatusOK, resp)
}

func postResponses(posts []database.Post) []postResponse {
	resp := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		item := postResponse{
			ID:           p.ID,
			ExternalID:   p.ExternalID,
			SourceHandle: p.SourceHandle,
			Text:         p.Text,
			Summary:      deref(p.Summary),
			Link:         p.Link,
			PostedAt:     deref(p.PostedAt),
			IngestedAt:   deref(p.IngestedAt),
			Notified:     p.Notified,
		}
		if p.Analysis != nil {
			var v analyze.Verdict
			if err := json.Unmarshal([]byte(*p.Analysis), &v); err == nil {
				item.Analysis = &v
			}
		}
		resp = append(resp, item)
	}
	return resp
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, searcher Searcher, summarizer Summarizer, port int) error {
	srv := New(db, searcher, summarizer)
	addr := fmt.Sprintf(":%d", port)
	log.Printf("API listening on %s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
