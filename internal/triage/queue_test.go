package triage

import (
	"testing"
	"time"
)

func TestUrgencyRank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  int
	}{
		{"VERY_URGENT", RankVeryUrgent},
		{"very urgent", RankVeryUrgent},
		{"emergency", RankVeryUrgent},
		{"mildly_urgent", RankModerate},
		{"moderate", RankModerate},
		{"urgent", RankModerate},
		{"soon", RankModerate},
		{"routine", RankRoutine},
		{"", RankRoutine},
		{"unknown label", RankRoutine},
	}
	for _, tt := range tests {
		if got := UrgencyRank(tt.label); got != tt.want {
			t.Errorf("UrgencyRank(%q) = %d, want %d", tt.label, got, tt.want)
		}
	}
}

type queueEntry struct {
	id        string
	urgency   string
	submitted time.Time
}

func (q queueEntry) UrgencyLabel() string   { return q.urgency }
func (q queueEntry) SubmittedAt() time.Time { return q.submitted }

func TestSortQueue_UrgencyBeforeRecency(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	items := []queueEntry{
		{id: "mild-new", urgency: "mildly_urgent", submitted: base.Add(3 * time.Hour)},
		{id: "very-old", urgency: "VERY_URGENT", submitted: base},
		{id: "routine", urgency: "routine", submitted: base.Add(5 * time.Hour)},
	}

	SortQueue(items)

	want := []string{"very-old", "mild-new", "routine"}
	for i, w := range want {
		if items[i].id != w {
			t.Errorf("items[%d] = %q, want %q", i, items[i].id, w)
		}
	}
}

func TestSortQueue_NewestFirstWithinRank(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	items := []queueEntry{
		{id: "older", urgency: "urgent", submitted: base},
		{id: "newer", urgency: "urgent", submitted: base.Add(time.Hour)},
	}

	SortQueue(items)

	if items[0].id != "newer" || items[1].id != "older" {
		t.Errorf("order = [%s %s], want [newer older]", items[0].id, items[1].id)
	}
}

func TestSortQueue_Stable(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	items := []queueEntry{
		{id: "a", urgency: "soon", submitted: ts},
		{id: "b", urgency: "moderate", submitted: ts},
		{id: "c", urgency: "urgent", submitted: ts},
	}

	// Equal rank and equal timestamp: repeated sorts must not shuffle.
	SortQueue(items)
	first := []string{items[0].id, items[1].id, items[2].id}
	SortQueue(items)
	for i := range items {
		if items[i].id != first[i] {
			t.Errorf("sort not stable: items[%d] = %q, want %q", i, items[i].id, first[i])
		}
	}
}

func TestSortQueue_Empty(t *testing.T) {
	t.Parallel()

	var items []queueEntry
	SortQueue(items) // must not panic
	if len(items) != 0 {
		t.Errorf("len = %d, want 0", len(items))
	}
}
