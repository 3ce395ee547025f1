package preconsult

import (
	"testing"
	"time"
)

func TestFromDoc_Defaults(t *testing.T) {
	t.Parallel()

	r := FromDoc(Doc{ID: "r1"})

	if r.PatientName != "Patient" {
		t.Errorf("patient name = %q, want Patient", r.PatientName)
	}
	if r.Urgency != "routine" {
		t.Errorf("urgency = %q, want routine", r.Urgency)
	}
	if r.Status != StatusPending {
		t.Errorf("status = %q, want pending", r.Status)
	}
	if r.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to default to now")
	}
}

func TestFromDoc_UrgencyFieldPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  Doc
		want string
	}{
		{"urgency wins over all", Doc{Urgency: "soon", UrgencyLabel: "a", TriageLevel: "b", UrgencyLevel: "c"}, "soon"},
		{"urgencyLabel second", Doc{UrgencyLabel: "VERY_URGENT", TriageLevel: "b", UrgencyLevel: "c"}, "VERY_URGENT"},
		{"triageLevel third", Doc{TriageLevel: "mildly_urgent", UrgencyLevel: "c"}, "mildly_urgent"},
		{"urgency_level last", Doc{UrgencyLevel: "urgent"}, "urgent"},
		{"all empty defaults routine", Doc{}, "routine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := FromDoc(tt.doc).Urgency; got != tt.want {
				t.Errorf("urgency = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromDoc_CreatedAt(t *testing.T) {
	t.Parallel()

	r := FromDoc(Doc{CreatedAt: "2025-06-01T09:00:00Z"})
	want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if !r.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", r.CreatedAt, want)
	}

	// Unparseable timestamps fall back to now rather than zero.
	r = FromDoc(Doc{CreatedAt: "yesterday-ish"})
	if r.CreatedAt.IsZero() {
		t.Error("expected fallback CreatedAt, got zero")
	}
}

func TestFromDoc_StatusNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Status
	}{
		{"accepted", StatusAccepted},
		{"deferred", StatusDeferred},
		{"pending", StatusPending},
		{"", StatusPending},
		{"REVIEWED", StatusPending},
	}
	for _, tt := range tests {
		if got := FromDoc(Doc{Status: tt.in}).Status; got != tt.want {
			t.Errorf("status %q normalized to %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnmarshalDoc(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"id": "r1",
		"patientName": "Ada",
		"age": 41,
		"summary": "persistent cough",
		"urgencyLabel": "mildly_urgent",
		"status": "deferred",
		"deferNote": "rest first",
		"createdAt": "2025-06-01T09:00:00Z"
	}`)

	r, err := UnmarshalDoc(raw)
	if err != nil {
		t.Fatalf("UnmarshalDoc: %v", err)
	}
	if r.ID != "r1" || r.PatientName != "Ada" || r.Age != 41 {
		t.Errorf("record = %+v", r)
	}
	if r.Urgency != "mildly_urgent" {
		t.Errorf("urgency = %q, want mildly_urgent", r.Urgency)
	}
	if r.Status != StatusDeferred || r.DeferNote != "rest first" {
		t.Errorf("status/note = %q/%q", r.Status, r.DeferNote)
	}
}

func TestUnmarshalDoc_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := UnmarshalDoc([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
