// Package careapi exposes the CareCompass HTTP API: patient triage and chat,
// pre-consult submission and the clinician review queue, screening tasks,
// facility lookup, and hosted-login URL plumbing.
package careapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/carecompass/internal/authmw"
	"github.com/linnemanlabs/carecompass/internal/facility"
	"github.com/linnemanlabs/carecompass/internal/llm/openai"
	"github.com/linnemanlabs/carecompass/internal/preconsult"
	"github.com/linnemanlabs/carecompass/internal/session"
	"github.com/linnemanlabs/carecompass/internal/triage"
)

// PreconsultService defines the business operations careapi needs from the
// pre-consult subsystem.
type PreconsultService interface {
	Submit(ctx context.Context, report triage.SymptomReport, verdict triage.Verdict, patientName string) *preconsult.CommandResult
	Ingest(ctx context.Context, rec *preconsult.Record) *preconsult.CommandResult
	Get(ctx context.Context, id string) (*preconsult.Record, bool, error)
	List(ctx context.Context) ([]*preconsult.Record, error)
	Tasks(ctx context.Context) ([]*preconsult.ScreeningTask, error)
	Accept(ctx context.Context, id string) (*preconsult.CommandResult, error)
	Defer(ctx context.Context, id, note string) (*preconsult.CommandResult, error)
	Reopen(ctx context.Context, id string) (*preconsult.CommandResult, error)
}

// Triager is the LLM-backed triage delegate.
type Triager interface {
	Triage(ctx context.Context, report triage.SymptomReport, history []openai.Message) triage.Verdict
}

// Chatter produces chat replies.
type Chatter interface {
	Reply(ctx context.Context, messages []openai.Message) string
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger         log.Logger
	preconsults    PreconsultService
	delegate       Triager
	chat           Chatter
	directory      facility.Directory
	flow           *session.Flow
	triageMetrics  *triage.Metrics
	clinicianToken string
}

// Options carries optional API dependencies. Nil fields disable the
// corresponding endpoints' upstream behavior (they degrade, not 500).
type Options struct {
	Delegate       Triager
	Chat           Chatter
	Directory      facility.Directory
	Flow           *session.Flow
	TriageMetrics  *triage.Metrics
	ClinicianToken string
}

// New creates a new API handler.
func New(logger log.Logger, preconsults PreconsultService, opts Options) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if preconsults == nil {
		panic(xerrors.New("preconsult service is required"))
	}
	directory := opts.Directory
	if directory == nil {
		directory = facility.NewStatic()
	}
	return &API{
		logger:         logger,
		preconsults:    preconsults,
		delegate:       opts.Delegate,
		chat:           opts.Chat,
		directory:      directory,
		flow:           opts.Flow,
		triageMetrics:  opts.TriageMetrics,
		clinicianToken: opts.ClinicianToken,
	}
}

// RegisterRoutes attaches API endpoints to the router. Clinician queue
// reads and status mutations sit behind the bearer-token middleware; the
// middleware is a no-op when no token is configured.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/triage", a.handleTriage)
		r.Post("/chat", a.handleChat)
		r.Post("/preconsults", a.handleSubmitPreconsult)
		r.Get("/preconsults/{id}", a.handleGetPreconsult)
		r.Get("/facilities", a.handleFacilities)

		r.Get("/auth/login-url", a.handleLoginURL)
		r.Get("/auth/logout-url", a.handleLogoutURL)
		r.Post("/auth/callback", a.handleCallback)

		r.Group(func(r chi.Router) {
			r.Use(authmw.BearerToken(a.clinicianToken))
			r.Get("/preconsults", a.handleListPreconsults)
			r.Get("/screenings", a.handleListScreenings)
			r.Post("/preconsults/{id}/accept", a.handleAccept)
			r.Post("/preconsults/{id}/defer", a.handleDefer)
			r.Post("/preconsults/{id}/reopen", a.handleReopen)
		})
	})
}

// writeJSON encodes v with the given status. Encoding errors are not
// recoverable mid-response, so they are ignored.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
