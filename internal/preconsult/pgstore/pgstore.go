// Package pgstore provides a PostgreSQL implementation of preconsult.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/carecompass/internal/preconsult"
)

var tracer = otel.Tracer("github.com/linnemanlabs/carecompass/internal/preconsult/pgstore")

//go:embed schema.sql
var schema string

// Store persists pre-consult records and screening tasks in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// caller owns the pool's lifecycle.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, patient_name, age, summary, details, urgency, recommended_care, status, defer_note, created_at`

// Put inserts or updates a record (upsert on ID).
func (s *Store) Put(ctx context.Context, r *preconsult.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	var age *int
	if r.Age > 0 {
		age = &r.Age
	}

	query := `INSERT INTO preconsults (` + recordColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (id) DO UPDATE SET
		patient_name     = EXCLUDED.patient_name,
		age              = EXCLUDED.age,
		summary          = EXCLUDED.summary,
		details          = EXCLUDED.details,
		urgency          = EXCLUDED.urgency,
		recommended_care = EXCLUDED.recommended_care,
		status           = EXCLUDED.status,
		defer_note       = EXCLUDED.defer_note`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.PatientName, age, r.Summary, r.Details, r.Urgency,
		r.RecommendedCare, string(r.Status), r.DeferNote, r.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert preconsult: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*preconsult.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM preconsults WHERE id = $1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// List retrieves all records. Ordering for display happens in the service;
// the query only fixes a deterministic base order.
func (s *Store) List(ctx context.Context) ([]*preconsult.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+recordColumns+` FROM preconsults ORDER BY created_at DESC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query preconsults: %w", err)
	}
	defer rows.Close()

	var out []*preconsult.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate preconsults: %w", err)
	}
	return out, nil
}

// UpdateStatus patches status and, when note is non-nil, the defer note.
func (s *Store) UpdateStatus(ctx context.Context, id string, status preconsult.Status, note *string) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateStatus", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	var (
		ct  pgconn.CommandTag
		tag string
		err error
	)
	if note != nil {
		ct, err = s.pool.Exec(ctx, `UPDATE preconsults SET status = $2, defer_note = $3 WHERE id = $1`, id, string(status), *note)
		tag = "status+note"
	} else {
		ct, err = s.pool.Exec(ctx, `UPDATE preconsults SET status = $2 WHERE id = $1`, id, string(status))
		tag = "status"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("update %s: %w", tag, err)
	}
	if ct.RowsAffected() == 0 {
		return preconsult.ErrNotFound
	}
	return nil
}

// PutTask inserts a screening task keyed by record ID, leaving an existing
// task untouched. Returns whether this call created the task.
func (s *Store) PutTask(ctx context.Context, t *preconsult.ScreeningTask) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.PutTask", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO screening_tasks (id, patient_name, title, description, urgency, created_at)
	VALUES ($1,$2,$3,$4,$5,$6)
	ON CONFLICT (id) DO NOTHING`

	ct, err := s.pool.Exec(ctx, query, t.ID, t.PatientName, t.Title, t.Description, t.Urgency, t.CreatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("insert screening task: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// DeleteTask removes the task for the given record ID if one exists.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "pgstore.DeleteTask", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "DELETE"),
	))
	defer span.End()

	if _, err := s.pool.Exec(ctx, `DELETE FROM screening_tasks WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete screening task: %w", err)
	}
	return nil
}

// ListTasks retrieves all screening tasks.
func (s *Store) ListTasks(ctx context.Context) ([]*preconsult.ScreeningTask, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListTasks", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, patient_name, title, description, urgency, created_at FROM screening_tasks ORDER BY created_at DESC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query screening tasks: %w", err)
	}
	defer rows.Close()

	var out []*preconsult.ScreeningTask
	for rows.Next() {
		var t preconsult.ScreeningTask
		if err := rows.Scan(&t.ID, &t.PatientName, &t.Title, &t.Description, &t.Urgency, &t.CreatedAt); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("scan screening task: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate screening tasks: %w", err)
	}
	return out, nil
}

// scanRecord scans a single row into a preconsult.Record. Returns (nil, nil)
// when no row is found.
func scanRecord(row pgx.Row) (*preconsult.Record, error) {
	var (
		r      preconsult.Record
		age    *int
		status string
	)

	err := row.Scan(
		&r.ID, &r.PatientName, &age, &r.Summary, &r.Details, &r.Urgency,
		&r.RecommendedCare, &status, &r.DeferNote, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	if age != nil {
		r.Age = *age
	}
	r.Status = preconsult.Status(status)
	return &r, nil
}
