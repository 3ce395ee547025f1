package preconsult

import "time"

// Status tracks where a pre-consult record is in its lifecycle.
type Status string

const (
	// StatusPending means submitted, awaiting clinician review.
	StatusPending Status = "pending"

	// StatusAccepted means a clinician has accepted the case.
	StatusAccepted Status = "accepted"

	// StatusDeferred means a clinician declined immediate handling,
	// optionally with a guidance note for the patient.
	StatusDeferred Status = "deferred"
)

// Record is a persisted pre-consult case visible to clinicians. Records are
// never hard-deleted; clinician actions only change Status and DeferNote.
type Record struct {
	ID              string    `json:"id"`
	PatientName     string    `json:"patient_name"`
	Age             int       `json:"age,omitempty"`
	Summary         string    `json:"summary"`
	Details         string    `json:"details,omitempty"`
	Urgency         string    `json:"urgency"`
	RecommendedCare string    `json:"recommended_care,omitempty"`
	Status          Status    `json:"status"`
	DeferNote       string    `json:"defer_note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// UrgencyLabel implements triage.QueueItem.
func (r *Record) UrgencyLabel() string { return r.Urgency }

// SubmittedAt implements triage.QueueItem.
func (r *Record) SubmittedAt() time.Time { return r.CreatedAt }

// ScreeningTask is a follow-up reminder derived when a non-routine record is
// accepted. Its ID is the originating record's ID, which doubles as the
// dedup key: at most one task ever exists per record.
type ScreeningTask struct {
	ID          string    `json:"id"`
	PatientName string    `json:"patient_name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Urgency     string    `json:"urgency"`
	CreatedAt   time.Time `json:"created_at"`
}

// UrgencyLabel implements triage.QueueItem.
func (t *ScreeningTask) UrgencyLabel() string { return t.Urgency }

// SubmittedAt implements triage.QueueItem.
func (t *ScreeningTask) SubmittedAt() time.Time { return t.CreatedAt }
