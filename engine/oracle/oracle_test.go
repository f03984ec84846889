package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v2/option"
)

func chatCompletionStub(t *testing.T, entriesJSON string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":    "assistant",
						"content": entriesJSON,
					},
					"finish_reason": "stop",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestExtractParsesEntries(t *testing.T) {
	srv := chatCompletionStub(t, `{"entries":[{"type":"ship","name":"MV Example","capacity":"30000","location":{"port":"Rotterdam","sea":"North Sea","ocean":"Atlantic"}}]}`)
	defer srv.Close()

	c := New("test-key", option.WithBaseURL(srv.URL))
	entries, err := c.Extract(context.Background(), "vessel open for fixture")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "MV Example" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestExtractRejectsUnknownEntryType(t *testing.T) {
	srv := chatCompletionStub(t, `{"entries":[{"type":"barge","name":"x"}]}`)
	defer srv.Close()

	c := New("test-key", option.WithBaseURL(srv.URL))
	_, err := c.Extract(context.Background(), "body")
	if err == nil {
		t.Fatal("expected error for unknown entry type")
	}
}

func TestExtractMalformedJSONErrors(t *testing.T) {
	srv := chatCompletionStub(t, `not json`)
	defer srv.Close()

	c := New("test-key", option.WithBaseURL(srv.URL))
	_, err := c.Extract(context.Background(), "body")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "parse entries") {
		t.Fatalf("expected parse entries error, got %v", err)
	}
}

func TestExtractEmptyEntries(t *testing.T) {
	srv := chatCompletionStub(t, `{"entries":[]}`)
	defer srv.Close()

	c := New("test-key", option.WithBaseURL(srv.URL))
	entries, err := c.Extract(context.Background(), "irrelevant email")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries, got %d", len(entries))
	}
}
