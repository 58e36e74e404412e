package fetch

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLinkContextExtractsArticle(t *testing.T) {
	body := strings.Repeat("This is readable article content about local infrastructure. ", 10)
	url := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><title>Article</title></head><body><article><p>%s</p></article></body></html>`, body)
	})

	f := NewLinkContextFetcher(5 * time.Second)
	got, err := f.LinkContext(url)
	if err != nil {
		t.Fatalf("LinkContext() error: %v", err)
	}
	if !strings.Contains(got, "readable article content") {
		t.Errorf("context missing article text: %q", got)
	}
	if len(got) > maxContextChars {
		t.Errorf("context length %d exceeds cap %d", len(got), maxContextChars)
	}
}

func TestLinkContextShortPage(t *testing.T) {
	url := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>tiny</p></body></html>`)
	})

	f := NewLinkContextFetcher(5 * time.Second)
	got, err := f.LinkContext(url)
	if err != nil {
		t.Fatalf("LinkContext() error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty for pages below the minimum", got)
	}
}

func TestLinkContextHTTPError(t *testing.T) {
	url := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	f := NewLinkContextFetcher(5 * time.Second)
	if _, err := f.LinkContext(url); err == nil {
		t.Fatal("expected error for 404 response")
	}
}
