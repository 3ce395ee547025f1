package careapi

import (
	"encoding/json"
	"net/http"

	"github.com/linnemanlabs/carecompass/internal/llm/openai"
	"github.com/linnemanlabs/carecompass/internal/triage"
)

// triageRequest is the intake payload. Messages is an optional rolling
// conversation forwarded to the delegate.
type triageRequest struct {
	triage.SymptomReport
	Messages []openai.Message `json:"messages,omitempty"`
}

// handleTriage classifies a symptom report. The engine query parameter
// selects the classifier: "rules" runs the deterministic rule set, anything
// else (including absent) uses the LLM delegate. It always answers 200 with
// a verdict: an unreadable body or any delegate failure yields the fail-safe
// ER verdict rather than an error status, so clients never have to
// special-case transport failure into a less-safe default.
func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var req triageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Error(r.Context(), err, "unreadable triage payload, returning fail-safe verdict")
		writeJSON(w, http.StatusOK, triage.FailSafeVerdict)
		return
	}

	var verdict triage.Verdict
	if r.URL.Query().Get("engine") == "rules" {
		verdict = triage.Classify(req.SymptomReport)
		if a.triageMetrics != nil {
			a.triageMetrics.ObserveClassification(verdict)
		}
	} else if a.delegate != nil {
		verdict = a.delegate.Triage(r.Context(), req.SymptomReport, req.Messages)
	} else {
		verdict = triage.FailSafeVerdict
	}

	writeJSON(w, http.StatusOK, verdict)
}

type chatRequest struct {
	Messages []openai.Message `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// handleChat returns a single assistant reply for a rolling message list.
func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if a.chat == nil {
		writeJSON(w, http.StatusOK, chatResponse{Reply: "Chat is not configured yet."})
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: a.chat.Reply(r.Context(), req.Messages)})
}
