package analyze

import "testing"

func TestParseJSONResponseArray(t *testing.T) {
	got := ParseJSONResponse(`[{"post_id": "1"}, {"post_id": "2"}]`)
	arr, ok := got.([]any)
	if !ok {
		t.Fatalf("expected array, got %T", got)
	}
	if len(arr) != 2 {
		t.Errorf("got %d entries, want 2", len(arr))
	}
}

func TestParseJSONResponseCodeFence(t *testing.T) {
	text := "```json\n[{\"post_id\": \"1\"}]\n```"
	got := ParseJSONResponse(text)
	arr, ok := got.([]any)
	if !ok {
		t.Fatalf("expected array, got %T", got)
	}
	if len(arr) != 1 {
		t.Errorf("got %d entries, want 1", len(arr))
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if got := ParseJSONResponse("not json at all"); got != nil {
		t.Errorf("expected nil for invalid JSON, got %v", got)
	}
	if got := ParseJSONResponse(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestUnwrapListBareArray(t *testing.T) {
	entries := UnwrapList(ParseJSONResponse(`[{"a": 1}, {"b": 2}, "junk"]`))
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2 (non-objects skipped)", len(entries))
	}
}

func TestUnwrapListObjectWrapped(t *testing.T) {
	entries := UnwrapList(ParseJSONResponse(`{"results": [{"a": 1}, {"b": 2}]}`))
	if len(entries) != 2 {
		t.Errorf("got %d entries from wrapped array, want 2", len(entries))
	}
}

func TestUnwrapListSingleObject(t *testing.T) {
	entries := UnwrapList(ParseJSONResponse(`{"post_id": "1", "category": "NEUTRAL"}`))
	if len(entries) != 1 {
		t.Fatalf("got %d entries from bare object, want 1", len(entries))
	}
	if entries[0]["post_id"] != "1" {
		t.Errorf("unexpected entry: %v", entries[0])
	}
}

func TestUnwrapListNil(t *testing.T) {
	if entries := UnwrapList(nil); entries != nil {
		t.Errorf("expected nil entries for nil input, got %v", entries)
	}
}
