package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/carecompass/internal/preconsult"
)

func testRecord() *preconsult.Record {
	return &preconsult.Record{
		ID:              "01JN123",
		PatientName:     "Ada",
		Age:             41,
		Summary:         "Red-flag symptoms were reported.",
		Urgency:         "emergency",
		RecommendedCare: "er",
		Status:          preconsult.StatusPending,
		CreatedAt:       time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.Send(context.Background(), testRecord()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, summary, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Ada") {
		t.Errorf("header text = %q, want to contain the patient name", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Error("header should contain red circle for emergency urgency")
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), &preconsult.Record{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_WebhookFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), testRecord())
	if err == nil {
		t.Fatal("expected error on non-2xx webhook response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error = %q, want status code in message", err)
	}
}

func TestSend_TruncatesLongSummary(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := testRecord()
	rec.Summary = strings.Repeat("x", maxSummaryLen+500)

	n := New(srv.URL)
	if err := n.Send(context.Background(), rec); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	summary := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	if len(summary) > maxSummaryLen+100 {
		t.Errorf("summary block length = %d, want truncated near %d", len(summary), maxSummaryLen)
	}
	if !strings.Contains(summary, "...") {
		t.Error("expected truncation ellipsis")
	}
}

func TestUrgencyEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  string
	}{
		{"emergency", "\U0001f534"},
		{"VERY_URGENT", "\U0001f534"},
		{"soon", "\U0001f7e1"},
		{"mildly_urgent", "\U0001f7e1"},
		{"routine", "\U0001f7e2"},
		{"", "\U0001f7e2"},
	}
	for _, tt := range tests {
		if got := urgencyEmoji(tt.label); got != tt.want {
			t.Errorf("urgencyEmoji(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
