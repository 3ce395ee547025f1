package careapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/carecompass/internal/preconsult"
	"github.com/linnemanlabs/carecompass/internal/triage"
)

// submitRequest carries a symptom report plus an optional precomputed
// verdict. When the verdict is absent the rule classifier fills it in, so
// clients that skipped the triage endpoint still get a coherent record.
type submitRequest struct {
	PatientName string               `json:"patient_name"`
	Report      triage.SymptomReport `json:"report"`
	Verdict     *triage.Verdict      `json:"verdict,omitempty"`
}

func (a *API) handleSubmitPreconsult(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	// Legacy intake clients post the record document itself instead of a
	// report envelope; the absence of a "report" key marks that shape. Those
	// documents go through the doc normalizer, which collapses the varied
	// urgency field names to the canonical label before anything is stored.
	var shape struct {
		Report *json.RawMessage `json:"report"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if shape.Report == nil {
		rec, err := preconsult.UnmarshalDoc(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		result := a.preconsults.Ingest(r.Context(), rec)

		span := trace.SpanFromContext(r.Context())
		span.SetAttributes(
			attribute.String("carecompass.preconsult.id", result.Record.ID),
			attribute.String("carecompass.preconsult.urgency", result.Record.Urgency),
		)

		writeJSON(w, http.StatusCreated, result)
		return
	}

	var req submitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	var verdict triage.Verdict
	if req.Verdict != nil {
		verdict = *req.Verdict
	} else {
		verdict = triage.Classify(req.Report)
	}

	result := a.preconsults.Submit(r.Context(), req.Report, verdict, req.PatientName)

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("carecompass.preconsult.id", result.Record.ID),
		attribute.String("carecompass.preconsult.urgency", result.Record.Urgency),
	)

	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleGetPreconsult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("carecompass.preconsult.id", id))

	rec, ok, err := a.preconsults.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get pre-consult", "id", id)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// handleListPreconsults returns all records in urgency-queue order.
func (a *API) handleListPreconsults(w http.ResponseWriter, r *http.Request) {
	records, err := a.preconsults.List(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list pre-consults")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preconsults": records})
}

func (a *API) handleListScreenings(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.preconsults.Tasks(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list screening tasks")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"screenings": tasks})
}

type deferRequest struct {
	Note string `json:"note"`
}

func (a *API) handleAccept(w http.ResponseWriter, r *http.Request) {
	a.mutateStatus(w, r, "accept", func(id string) (*preconsult.CommandResult, error) {
		return a.preconsults.Accept(r.Context(), id)
	})
}

func (a *API) handleDefer(w http.ResponseWriter, r *http.Request) {
	var req deferRequest
	if r.Body != nil {
		// note is optional; an empty or absent body defers without one
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	a.mutateStatus(w, r, "defer", func(id string) (*preconsult.CommandResult, error) {
		return a.preconsults.Defer(r.Context(), id, req.Note)
	})
}

func (a *API) handleReopen(w http.ResponseWriter, r *http.Request) {
	a.mutateStatus(w, r, "reopen", func(id string) (*preconsult.CommandResult, error) {
		return a.preconsults.Reopen(r.Context(), id)
	})
}

// mutateStatus runs a clinician action and maps its errors: unknown record
// to 404, disallowed transition to 409, anything else to 500. A store write
// failure is not an error; it surfaces as persisted=false in the result.
func (a *API) mutateStatus(w http.ResponseWriter, r *http.Request, action string, fn func(id string) (*preconsult.CommandResult, error)) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("carecompass.preconsult.id", id),
		attribute.String("carecompass.preconsult.action", action),
	)

	result, err := fn(id)
	if err != nil {
		var te *preconsult.TransitionError
		switch {
		case errors.Is(err, preconsult.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		case errors.As(err, &te):
			writeJSON(w, http.StatusConflict, map[string]string{"error": te.Error()})
		default:
			a.logger.Error(r.Context(), err, "status mutation failed", "id", id, "action", action)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	if !result.Persisted {
		a.logger.Warn(r.Context(), "status change not persisted, serving optimistic state",
			"id", id,
			"action", action,
		)
	}

	writeJSON(w, http.StatusOK, result)
}
