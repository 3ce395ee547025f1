package preconsult

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/carecompass/internal/triage"
)

// ErrNotFound is returned when a record ID does not exist.
var ErrNotFound = errors.New("preconsult: record not found")

// TransitionError reports a clinician action applied to a record in a state
// that does not permit it.
type TransitionError struct {
	Action string
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("preconsult: cannot %s record in status %q", e.Action, e.From)
}

// Notifier delivers best-effort notifications about newly submitted records.
type Notifier interface {
	Send(ctx context.Context, r *Record) error
}

// CommandResult is the outcome of a mutation. Persisted reports whether the
// remote store write succeeded; on failure the returned Record still
// reflects the requested change so the caller can decide whether to show
// the optimistic state or roll back.
type CommandResult struct {
	Record    *Record `json:"record"`
	Persisted bool    `json:"persisted"`
}

const (
	screeningTitle       = "Follow-up screening"
	screeningDescription = "Complete recommended labs / questionnaires based on the pre-consult summary."
)

// Service is the business boundary for pre-consult operations.
type Service struct {
	store    Store
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
}

// NewService creates a pre-consult service. metrics and notifier may be nil.
func NewService(store Store, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
	}
}

// Submit creates a new pending record from a symptom report and its verdict.
// Store failure is reported through CommandResult.Persisted, not an error;
// an emergency verdict additionally triggers an async notification.
func (s *Service) Submit(ctx context.Context, report triage.SymptomReport, verdict triage.Verdict, patientName string) *CommandResult {
	name := patientName
	if name == "" {
		name = "Patient"
	}

	redFlags := "no"
	if report.RedFlags.Any() {
		redFlags = "yes"
	}

	rec := &Record{
		ID:              ulid.Make().String(),
		PatientName:     name,
		Age:             report.Age,
		Summary:         verdict.Summary,
		Details:         fmt.Sprintf("Symptoms: %s. Onset: %s. Severity: %s, red flags: %s.", report.Description, report.Duration, report.Severity, redFlags),
		Urgency:         string(verdict.Urgency),
		RecommendedCare: string(verdict.RecommendedCare),
		Status:          StatusPending,
		CreatedAt:       time.Now(),
	}

	persisted := true
	if err := s.store.Put(ctx, rec); err != nil {
		s.logger.Error(ctx, err, "failed to persist pre-consult", "record_id", rec.ID)
		persisted = false
	}
	s.metrics.ObserveSubmit(rec.Urgency, persisted)

	if s.notifier != nil && verdict.Urgency == triage.UrgencyEmergency {
		go func(ctx context.Context, rec Record) {
			if err := s.notifier.Send(ctx, &rec); err != nil {
				s.logger.Error(ctx, err, "failed to notify emergency submission", "record_id", rec.ID)
			}
		}(context.WithoutCancel(ctx), *rec)
	}

	return &CommandResult{Record: rec, Persisted: persisted}
}

// Ingest stores a record that arrived as a document rather than a symptom
// report, assigning an ID when the document carried none. Legacy intake
// clients post the record shape directly; by the time it reaches here the
// varied urgency field names have been collapsed by FromDoc.
func (s *Service) Ingest(ctx context.Context, rec *Record) *CommandResult {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}

	persisted := true
	if err := s.store.Put(ctx, rec); err != nil {
		s.logger.Error(ctx, err, "failed to persist pre-consult", "record_id", rec.ID)
		persisted = false
	}
	s.metrics.ObserveSubmit(rec.Urgency, persisted)

	if s.notifier != nil && triage.UrgencyRank(rec.Urgency) == triage.RankVeryUrgent {
		go func(ctx context.Context, rec Record) {
			if err := s.notifier.Send(ctx, &rec); err != nil {
				s.logger.Error(ctx, err, "failed to notify emergency submission", "record_id", rec.ID)
			}
		}(context.WithoutCancel(ctx), *rec)
	}

	return &CommandResult{Record: rec, Persisted: persisted}
}

// Get retrieves a single record by ID.
func (s *Service) Get(ctx context.Context, id string) (*Record, bool, error) {
	return s.store.Get(ctx, id)
}

// List returns all records ordered for clinician display: ascending urgency
// rank, then newest first. The ordering is recomputed per call.
func (s *Service) List(ctx context.Context) ([]*Record, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	triage.SortQueue(records)
	return records, nil
}

// Tasks returns open screening tasks in queue order.
func (s *Service) Tasks(ctx context.Context) ([]*ScreeningTask, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	triage.SortQueue(tasks)
	return tasks, nil
}

// Accept transitions a record to accepted. Accepting an already accepted
// record is a no-op success. A non-routine record derives exactly one
// screening task, keyed by the record ID so repeats cannot duplicate it.
func (s *Service) Accept(ctx context.Context, id string) (*CommandResult, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status == StatusDeferred {
		return nil, &TransitionError{Action: "accept", From: rec.Status}
	}

	rec.Status = StatusAccepted
	persisted := s.writeStatus(ctx, rec, nil)

	if triage.UrgencyRank(rec.Urgency) != triage.RankRoutine {
		task := &ScreeningTask{
			ID:          rec.ID,
			PatientName: rec.PatientName,
			Title:       screeningTitle,
			Description: screeningDescription,
			Urgency:     rec.Urgency,
			CreatedAt:   time.Now(),
		}
		created, err := s.store.PutTask(ctx, task)
		if err != nil {
			s.logger.Error(ctx, err, "failed to persist screening task", "record_id", rec.ID)
			persisted = false
		} else if created {
			s.metrics.ObserveTaskCreated()
		}
	}

	s.metrics.ObserveTransition("accept", persisted)
	return &CommandResult{Record: rec, Persisted: persisted}, nil
}

// Defer transitions a record to deferred with an optional clinician note and
// removes any screening task previously derived for it.
func (s *Service) Defer(ctx context.Context, id, note string) (*CommandResult, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	rec.Status = StatusDeferred
	rec.DeferNote = note
	persisted := s.writeStatus(ctx, rec, &note)

	if err := s.store.DeleteTask(ctx, rec.ID); err != nil {
		s.logger.Error(ctx, err, "failed to remove screening task", "record_id", rec.ID)
		persisted = false
	} else {
		s.metrics.ObserveTaskRemoved()
	}

	s.metrics.ObserveTransition("defer", persisted)
	return &CommandResult{Record: rec, Persisted: persisted}, nil
}

// Reopen transitions a deferred record back to pending. The defer note is
// deliberately left in place so clinicians keep the earlier guidance
// visible when the case comes back around.
func (s *Service) Reopen(ctx context.Context, id string) (*CommandResult, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status != StatusDeferred {
		return nil, &TransitionError{Action: "reopen", From: rec.Status}
	}

	rec.Status = StatusPending
	persisted := s.writeStatus(ctx, rec, nil)

	s.metrics.ObserveTransition("reopen", persisted)
	return &CommandResult{Record: rec, Persisted: persisted}, nil
}

// writeStatus persists a status change, logging rather than failing on
// store errors.
func (s *Service) writeStatus(ctx context.Context, rec *Record, note *string) bool {
	if err := s.store.UpdateStatus(ctx, rec.ID, rec.Status, note); err != nil {
		s.logger.Error(ctx, err, "failed to update record status",
			"record_id", rec.ID,
			"status", rec.Status,
		)
		return false
	}
	return true
}
