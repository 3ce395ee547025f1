package preconsult

import (
	"encoding/json"
	"time"
)

// Doc is the loosely-typed document shape accepted at the store boundary.
// Older clients and the LLM-backed intake wrote the urgency label under
// several different keys; normalization happens here, exactly once, so
// downstream code never guesses field names.
type Doc struct {
	ID              string `json:"id"`
	PatientName     string `json:"patientName"`
	Age             int    `json:"age"`
	Summary         string `json:"summary"`
	Details         string `json:"details"`
	Urgency         string `json:"urgency"`
	UrgencyLabel    string `json:"urgencyLabel"`
	TriageLevel     string `json:"triageLevel"`
	UrgencyLevel    string `json:"urgency_level"`
	RecommendedCare string `json:"recommendedCare"`
	Status          string `json:"status"`
	DeferNote       string `json:"deferNote"`
	CreatedAt       string `json:"createdAt"`
}

// FromDoc converts a loose document into the canonical Record. Missing
// fields get the same defaults the store historically applied: "Patient" for
// the name, "routine" for the urgency, pending for the status.
func FromDoc(d Doc) *Record {
	r := &Record{
		ID:              d.ID,
		PatientName:     d.PatientName,
		Age:             d.Age,
		Summary:         d.Summary,
		Details:         d.Details,
		Urgency:         normalizeUrgency(d),
		RecommendedCare: d.RecommendedCare,
		Status:          normalizeStatus(d.Status),
		DeferNote:       d.DeferNote,
	}
	if r.PatientName == "" {
		r.PatientName = "Patient"
	}
	if ts, err := time.Parse(time.RFC3339, d.CreatedAt); err == nil {
		r.CreatedAt = ts
	} else {
		r.CreatedAt = time.Now()
	}
	return r
}

// UnmarshalDoc decodes a raw JSON document and normalizes it.
func UnmarshalDoc(raw []byte) (*Record, error) {
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return FromDoc(d), nil
}

// normalizeUrgency picks the first populated urgency field, in the order the
// duck-typed readers historically tried them.
func normalizeUrgency(d Doc) string {
	for _, v := range []string{d.Urgency, d.UrgencyLabel, d.TriageLevel, d.UrgencyLevel} {
		if v != "" {
			return v
		}
	}
	return "routine"
}

// normalizeStatus collapses unknown status values to pending.
func normalizeStatus(s string) Status {
	switch Status(s) {
	case StatusAccepted:
		return StatusAccepted
	case StatusDeferred:
		return StatusDeferred
	default:
		return StatusPending
	}
}
