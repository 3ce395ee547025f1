package triage

import (
	"sort"
	"strings"
	"time"
)

// Urgency ranks for queue ordering. Lower rank sorts first.
const (
	RankVeryUrgent = 1
	RankModerate   = 2
	RankRoutine    = 3
)

// UrgencyRank maps an urgency label to a numeric rank via substring
// heuristics. Labels come from external records and are not guaranteed to
// use the canonical vocabulary, so unrecognized or empty labels fall into
// the lowest-priority bucket rather than erroring.
func UrgencyRank(label string) int {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "very"), strings.Contains(l, "emergency"):
		return RankVeryUrgent
	case strings.Contains(l, "mild"), strings.Contains(l, "moderate"),
		strings.Contains(l, "urgent"), strings.Contains(l, "soon"):
		return RankModerate
	default:
		return RankRoutine
	}
}

// QueueItem is anything that can be ordered in the clinician queue.
type QueueItem interface {
	UrgencyLabel() string
	SubmittedAt() time.Time
}

// SortQueue orders items for clinician display: ascending by urgency rank,
// then newest first within equal rank. The sort is stable, so repeated
// sorting of the same slice yields the same order. The ordering is
// recomputed on every request and never stored.
func SortQueue[T QueueItem](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := UrgencyRank(items[i].UrgencyLabel()), UrgencyRank(items[j].UrgencyLabel())
		if ri != rj {
			return ri < rj
		}
		return items[i].SubmittedAt().After(items[j].SubmittedAt())
	})
}
