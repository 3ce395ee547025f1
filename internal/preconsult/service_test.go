package preconsult

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/carecompass/internal/triage"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	tasks     map[string]*ScreeningTask
	putErr    error
	updateErr error
	taskErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		records: make(map[string]*Record),
		tasks:   make(map[string]*ScreeningTask),
	}
}

func (m *mockStore) Put(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (m *mockStore) List(_ context.Context) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) UpdateStatus(_ context.Context, id string, status Status, note *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	if note != nil {
		r.DeferNote = *note
	}
	return nil
}

func (m *mockStore) PutTask(_ context.Context, t *ScreeningTask) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskErr != nil {
		return false, m.taskErr
	}
	if _, exists := m.tasks[t.ID]; exists {
		return false, nil
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return true, nil
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskErr != nil {
		return m.taskErr
	}
	delete(m.tasks, id)
	return nil
}

func (m *mockStore) ListTasks(_ context.Context) ([]*ScreeningTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ScreeningTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// mockNotifier records sends.
type mockNotifier struct {
	mu    sync.Mutex
	sends []*Record
	done  chan struct{}
}

func (m *mockNotifier) Send(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, r)
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	return nil
}

func soonVerdict() triage.Verdict {
	return triage.Verdict{
		Urgency:         triage.UrgencySoon,
		RecommendedCare: triage.CareFamilyDoctor,
		Summary:         "should be seen within days",
	}
}

func routineVerdict() triage.Verdict {
	return triage.Verdict{
		Urgency:         triage.UrgencyRoutine,
		RecommendedCare: triage.CareVirtual,
		Summary:         "nothing acute",
	}
}

func testReport() triage.SymptomReport {
	return triage.SymptomReport{
		Description: "persistent cough",
		Duration:    "5 days",
		Severity:    triage.SeverityModerate,
		Age:         41,
	}
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)

	res := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada")

	if !res.Persisted {
		t.Error("expected Persisted = true")
	}
	rec := res.Record
	if rec.ID == "" {
		t.Fatal("expected generated ID")
	}
	if rec.PatientName != "Ada" {
		t.Errorf("patient name = %q, want Ada", rec.PatientName)
	}
	if rec.Status != StatusPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
	if rec.Urgency != "soon" {
		t.Errorf("urgency = %q, want soon", rec.Urgency)
	}
	if !strings.Contains(rec.Details, "persistent cough") {
		t.Errorf("details missing description: %q", rec.Details)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, ok, err := store.Get(context.Background(), rec.ID)
	if err != nil || !ok {
		t.Fatalf("record not stored: ok=%v err=%v", ok, err)
	}
	if got.Summary != "should be seen within days" {
		t.Errorf("stored summary = %q", got.Summary)
	}
}

func TestSubmit_DefaultPatientName(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), log.Nop(), nil, nil)
	res := svc.Submit(context.Background(), testReport(), routineVerdict(), "")
	if res.Record.PatientName != "Patient" {
		t.Errorf("patient name = %q, want Patient", res.Record.PatientName)
	}
}

func TestSubmit_StoreFailureStillReturnsRecord(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.putErr = errors.New("db down")
	svc := NewService(store, log.Nop(), nil, nil)

	res := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada")

	if res.Persisted {
		t.Error("expected Persisted = false on store failure")
	}
	if res.Record == nil || res.Record.ID == "" {
		t.Error("expected the optimistic record even when the write failed")
	}
}

func TestIngest_StoresNormalizedDoc(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)

	rec, err := UnmarshalDoc([]byte(`{"patientName":"Ada","summary":"persistent cough","triageLevel":"urgent"}`))
	if err != nil {
		t.Fatalf("UnmarshalDoc: %v", err)
	}
	res := svc.Ingest(context.Background(), rec)

	if !res.Persisted {
		t.Error("expected Persisted = true")
	}
	if res.Record.ID == "" {
		t.Fatal("expected generated ID for a document without one")
	}
	got, ok, err := store.Get(context.Background(), res.Record.ID)
	if err != nil || !ok {
		t.Fatalf("record not stored: ok=%v err=%v", ok, err)
	}
	if got.Urgency != "urgent" {
		t.Errorf("urgency = %q, want the normalized label", got.Urgency)
	}
	if got.Status != StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
}

func TestIngest_KeepsProvidedID(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)

	res := svc.Ingest(context.Background(), &Record{ID: "legacy-7", Urgency: "routine", Status: StatusPending})
	if res.Record.ID != "legacy-7" {
		t.Errorf("ID = %q, want legacy-7", res.Record.ID)
	}
}

func TestIngest_EmergencyNotifies(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{done: make(chan struct{})}
	done := notifier.done
	svc := NewService(newMockStore(), log.Nop(), nil, notifier)

	rec, err := UnmarshalDoc([]byte(`{"patientName":"Ada","urgencyLabel":"emergency"}`))
	if err != nil {
		t.Fatalf("UnmarshalDoc: %v", err)
	}
	svc.Ingest(context.Background(), rec)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called for emergency document")
	}
}

func TestSubmit_EmergencyNotifies(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{done: make(chan struct{})}
	done := notifier.done
	svc := NewService(newMockStore(), log.Nop(), nil, notifier)

	verdict := triage.Verdict{
		Urgency:         triage.UrgencyEmergency,
		RecommendedCare: triage.CareER,
		Summary:         "red flags reported",
	}
	res := svc.Submit(context.Background(), testReport(), verdict, "Ada")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not called for emergency submission")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.sends) != 1 {
		t.Fatalf("sends = %d, want 1", len(notifier.sends))
	}
	if notifier.sends[0].ID != res.Record.ID {
		t.Errorf("notified record ID = %q, want %q", notifier.sends[0].ID, res.Record.ID)
	}
}

func TestSubmit_RoutineDoesNotNotify(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{}
	svc := NewService(newMockStore(), log.Nop(), nil, notifier)

	svc.Submit(context.Background(), testReport(), routineVerdict(), "Ada")

	// The notify path is async for emergencies only; give a misfire a
	// moment to show up.
	time.Sleep(50 * time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.sends) != 0 {
		t.Errorf("sends = %d, want 0 for routine submission", len(notifier.sends))
	}
}

func TestAccept_DerivesScreeningTask(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	res, err := svc.Accept(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.Record.Status != StatusAccepted {
		t.Errorf("status = %q, want accepted", res.Record.Status)
	}
	if !res.Persisted {
		t.Error("expected Persisted = true")
	}

	tasks, err := svc.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(tasks))
	}
	task := tasks[0]
	if task.ID != rec.ID {
		t.Errorf("task ID = %q, want record ID %q", task.ID, rec.ID)
	}
	if task.PatientName != "Ada" || task.Urgency != "soon" {
		t.Errorf("task = %+v", task)
	}
}

func TestAccept_RoutineDerivesNoTask(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), routineVerdict(), "Ada").Record

	if _, err := svc.Accept(context.Background(), rec.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if n := store.taskCount(); n != 0 {
		t.Errorf("tasks = %d, want 0 for routine record", n)
	}
}

func TestAccept_Idempotent(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	for i := 0; i < 3; i++ {
		res, err := svc.Accept(context.Background(), rec.ID)
		if err != nil {
			t.Fatalf("Accept #%d: %v", i+1, err)
		}
		if res.Record.Status != StatusAccepted {
			t.Errorf("Accept #%d status = %q", i+1, res.Record.Status)
		}
	}
	if n := store.taskCount(); n != 1 {
		t.Errorf("tasks = %d, want exactly 1 after repeated accepts", n)
	}
}

func TestAccept_RepeatCountsTaskOnce(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())
	store := newMockStore()
	svc := NewService(store, log.Nop(), m, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	for i := 0; i < 3; i++ {
		if _, err := svc.Accept(context.Background(), rec.ID); err != nil {
			t.Fatalf("Accept #%d: %v", i+1, err)
		}
	}
	if got := testutil.ToFloat64(m.TasksCreatedTotal); got != 1 {
		t.Errorf("tasks created counter = %v, want 1 after repeated accepts", got)
	}
}

func TestAccept_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), log.Nop(), nil, nil)
	if _, err := svc.Accept(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAccept_DeferredRejected(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record
	if _, err := svc.Defer(context.Background(), rec.ID, "see your pharmacist"); err != nil {
		t.Fatalf("Defer: %v", err)
	}

	_, err := svc.Accept(context.Background(), rec.ID)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransitionError", err)
	}
	if te.Action != "accept" || te.From != StatusDeferred {
		t.Errorf("transition error = %+v", te)
	}
}

func TestDefer_SetsNoteAndRemovesTask(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	// Accept first so a screening task exists to be removed.
	if _, err := svc.Accept(context.Background(), rec.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if n := store.taskCount(); n != 1 {
		t.Fatalf("tasks = %d, want 1 before defer", n)
	}

	res, err := svc.Defer(context.Background(), rec.ID, "monitor at home for 48h")
	if err != nil {
		t.Fatalf("Defer: %v", err)
	}
	if res.Record.Status != StatusDeferred {
		t.Errorf("status = %q, want deferred", res.Record.Status)
	}
	if res.Record.DeferNote != "monitor at home for 48h" {
		t.Errorf("note = %q", res.Record.DeferNote)
	}
	if n := store.taskCount(); n != 0 {
		t.Errorf("tasks = %d, want 0 after defer", n)
	}
}

func TestDefer_NotFound(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), log.Nop(), nil, nil)
	if _, err := svc.Defer(context.Background(), "nope", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReopen_PreservesNote(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	if _, err := svc.Defer(context.Background(), rec.ID, "try rest first"); err != nil {
		t.Fatalf("Defer: %v", err)
	}
	res, err := svc.Reopen(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if res.Record.Status != StatusPending {
		t.Errorf("status = %q, want pending", res.Record.Status)
	}
	if res.Record.DeferNote != "try rest first" {
		t.Errorf("note = %q, want the defer note preserved", res.Record.DeferNote)
	}
}

func TestReopen_OnlyFromDeferred(t *testing.T) {
	t.Parallel()

	svc := NewService(newMockStore(), log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	_, err := svc.Reopen(context.Background(), rec.ID)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TransitionError", err)
	}
	if te.Action != "reopen" || te.From != StatusPending {
		t.Errorf("transition error = %+v", te)
	}
}

func TestAccept_StatusWriteFailureReported(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)
	rec := svc.Submit(context.Background(), testReport(), soonVerdict(), "Ada").Record

	store.updateErr = errors.New("db down")
	res, err := svc.Accept(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.Persisted {
		t.Error("expected Persisted = false when the status write fails")
	}
	if res.Record.Status != StatusAccepted {
		t.Errorf("status = %q, optimistic record should still show accepted", res.Record.Status)
	}
}

func TestList_QueueOrder(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := NewService(store, log.Nop(), nil, nil)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	seed := []*Record{
		{ID: "routine-old", Urgency: "routine", Status: StatusPending, CreatedAt: base},
		{ID: "emergency", Urgency: "emergency", Status: StatusPending, CreatedAt: base.Add(time.Minute)},
		{ID: "soon-new", Urgency: "soon", Status: StatusPending, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "soon-old", Urgency: "soon", Status: StatusPending, CreatedAt: base.Add(time.Hour)},
	}
	for _, r := range seed {
		if err := store.Put(context.Background(), r); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	records, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"emergency", "soon-new", "soon-old", "routine-old"}
	if len(records) != len(want) {
		t.Fatalf("records = %d, want %d", len(records), len(want))
	}
	for i, w := range want {
		if records[i].ID != w {
			t.Errorf("records[%d] = %q, want %q", i, records[i].ID, w)
		}
	}
}
