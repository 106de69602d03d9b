package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"imagebot/internal/core"
)

func TestCheckModeration(t *testing.T) {
	tests := []struct {
		name    string
		flagged bool
	}{
		{"clean text", false},
		{"flagged text", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/moderations" {
					t.Errorf("expected path /moderations, got %s", r.URL.Path)
				}
				if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
					t.Errorf("unexpected Authorization header: %s", auth)
				}

				var req moderationRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("failed to decode request: %v", err)
				}
				if req.Input != "some prompt" {
					t.Errorf("unexpected input: %s", req.Input)
				}

				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{
					"results": []map[string]any{{"flagged": tt.flagged}},
				})
			}))
			defer server.Close()

			client := New("test-key")
			client.SetBaseURL(server.URL)

			flagged, err := client.CheckModeration(context.Background(), "some prompt")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if flagged != tt.flagged {
				t.Errorf("expected flagged=%v, got %v", tt.flagged, flagged)
			}
		})
	}
}

func TestCheckModerationEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer server.Close()

	client := New("test-key")
	client.SetBaseURL(server.URL)

	_, err := client.CheckModeration(context.Background(), "some prompt")
	if err == nil {
		t.Fatal("expected error for empty results")
	}
}

func TestGenerateImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("expected path /images/generations, got %s", r.URL.Path)
		}

		var req imageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Prompt != "a red bicycle" {
			t.Errorf("unexpected prompt: %s", req.Prompt)
		}
		if req.N != 1 {
			t.Errorf("expected n=1, got %d", req.N)
		}
		if req.Size != "256x256" {
			t.Errorf("unexpected size: %s", req.Size)
		}
		if req.User != "12345" {
			t.Errorf("unexpected user: %s", req.User)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"url": "https://images.example.com/abc.png"}]}`))
	}))
	defer server.Close()

	client := New("test-key")
	client.SetBaseURL(server.URL)

	url, err := client.GenerateImage(context.Background(), "a red bicycle", 256, "12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://images.example.com/abc.png" {
		t.Errorf("unexpected url: %s", url)
	}
}

func TestGenerateImageProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "Your request was rejected as a result of our safety system."}}`))
	}))
	defer server.Close()

	client := New("test-key")
	client.SetBaseURL(server.URL)

	_, err := client.GenerateImage(context.Background(), "bad prompt", 256, "12345")
	if err == nil {
		t.Fatal("expected error")
	}

	apiErr, ok := core.AsAPIError(err)
	if !ok {
		t.Fatalf("expected *core.APIError, got %T", err)
	}
	if apiErr.Message != "Your request was rejected as a result of our safety system." {
		t.Errorf("unexpected message: %s", apiErr.Message)
	}
	if apiErr.Kind != core.KindInvalidRequest {
		t.Errorf("unexpected kind: %v", apiErr.Kind)
	}
}

func TestRateLimitNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "Rate limit reached for requests"}}`))
	}))
	defer server.Close()

	client := New("test-key")
	client.SetBaseURL(server.URL)

	_, err := client.CheckModeration(context.Background(), "some prompt")
	if err == nil {
		t.Fatal("expected error")
	}

	apiErr, ok := core.AsAPIError(err)
	if !ok {
		t.Fatalf("expected *core.APIError, got %T", err)
	}
	if apiErr.Kind != core.KindRateLimit {
		t.Errorf("unexpected kind: %v", apiErr.Kind)
	}
	// The user is told to retry later; the client must not burn more calls
	// against an already throttled account.
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestRequestIDForwarded(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Client-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"flagged": false}]}`))
	}))
	defer server.Close()

	client := New("test-key")
	client.SetBaseURL(server.URL)

	ctx := core.WithRequestID(context.Background(), "req-abc-123")
	if _, err := client.CheckModeration(ctx, "text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotHeader != "req-abc-123" {
		t.Errorf("expected request id to be forwarded, got %q", gotHeader)
	}
}

func TestIsValidClientRequestID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"ascii", "req-123", true},
		{"empty", "", true},
		{"non-ascii", "req-é", false},
		{"too long", string(make([]byte, 513)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidClientRequestID(tt.id); got != tt.valid {
				t.Errorf("isValidClientRequestID(%q) = %v, want %v", tt.id, got, tt.valid)
			}
		})
	}
}
