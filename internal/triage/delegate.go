package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/carecompass/internal/llm/openai"
)

// Provider is the interface for the LLM completion backend.
type Provider interface {
	Send(ctx context.Context, req *openai.Request) (*openai.Response, error)
}

// FailSafeVerdict is substituted whenever the delegate cannot obtain a valid
// verdict from the completion endpoint: missing API key, network failure,
// malformed JSON, out-of-enumeration values. It is always the maximal
// urgency / ER branch; the governing policy is fail safe toward emergency,
// never toward reassurance.
var FailSafeVerdict = Verdict{
	Urgency:         UrgencyEmergency,
	RecommendedCare: CareER,
	Summary:         "There was a technical problem analyzing your symptoms, so we are defaulting to the safest option.",
	Advice:          "Because we cannot reliably analyze your symptoms right now, please call emergency services (911) or go to the nearest emergency department if you feel very unwell or are worried. This tool does not replace a doctor.",
}

const delegateSystemPrompt = `You are a cautious triage assistant for a healthcare navigation app in Canada.

CRITICAL RULES:
- You are NOT a doctor and do NOT give diagnoses.
- If there are any life-threatening or red-flag symptoms
  (e.g. severe chest pain, trouble breathing, stroke signs, major trauma,
  suicidal thoughts, severe bleeding, very high fever in very young or very old),
  you MUST recommend calling emergency services (911) or going to the ER immediately.
- If you are unsure, err on the side of safety and choose "ER".
- Never say things like "you don't need to see a doctor" or "you are safe".
- Always remind the user this is not medical advice and they should seek care
  urgently if they feel very unwell or are worried.

Return ONLY valid JSON in this exact shape:

{
  "urgency": "emergency" | "urgent" | "soon" | "routine",
  "recommendedCare": "ER" | "URGENT_CARE" | "WALK_IN" | "FAMILY_DOCTOR" | "SELF_CARE",
  "summary": "1-3 sentence explanation of your reasoning.",
  "advice": "friendly, patient-facing guidance including a safety disclaimer."
}`

// Delegate sends a symptom report to the LLM completion endpoint and
// validates its JSON verdict. It never returns an error to callers: any
// failure substitutes FailSafeVerdict so the HTTP layer can answer 200 and
// the client needs no transport special-casing.
type Delegate struct {
	provider Provider
	logger   log.Logger
	metrics  *Metrics
}

// NewDelegate creates a delegate. provider may be nil when no API key is
// configured; every call then returns the fail-safe verdict.
func NewDelegate(provider Provider, logger log.Logger, metrics *Metrics) *Delegate {
	if logger == nil {
		logger = log.Nop()
	}
	return &Delegate{
		provider: provider,
		logger:   logger,
		metrics:  metrics,
	}
}

// wireVerdict is the JSON object the model is instructed to return. Its care
// vocabulary is wider than the canonical one and is narrowed by careFromWire.
type wireVerdict struct {
	Urgency         string `json:"urgency"`
	RecommendedCare string `json:"recommendedCare"`
	Summary         string `json:"summary"`
	Advice          string `json:"advice"`
}

// Triage classifies a report via the completion endpoint. history is an
// optional rolling conversation preceding the report, passed through as-is.
func (d *Delegate) Triage(ctx context.Context, report SymptomReport, history []openai.Message) Verdict {
	if d.provider == nil {
		d.logger.Warn(ctx, "triage delegate not configured, returning fail-safe verdict")
		d.observe("not_configured", 0)
		return FailSafeVerdict
	}

	messages := make([]openai.Message, 0, len(history)+1)
	messages = append(messages, openai.Message{Role: "system", Content: delegateSystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, openai.Message{
		Role:    "user",
		Content: fmt.Sprintf("Here is the patient's description:\n%s\n\nPlease respond in the JSON format described.", describeReport(report)),
	})

	start := time.Now()
	resp, err := d.provider.Send(ctx, &openai.Request{
		Messages:    messages,
		Temperature: 0,
	})
	dur := time.Since(start).Seconds()
	if err != nil {
		d.logger.Error(ctx, err, "triage completion call failed")
		d.observe("upstream_error", dur)
		return FailSafeVerdict
	}

	raw, err := resp.Reply()
	if err != nil {
		d.logger.Error(ctx, err, "triage completion returned no content")
		d.observe("empty_response", dur)
		return FailSafeVerdict
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		d.logger.Error(ctx, err, "triage completion returned invalid verdict", "raw", raw)
		d.observe("invalid_verdict", dur)
		return FailSafeVerdict
	}

	d.observe("ok", dur)
	return verdict
}

func (d *Delegate) observe(outcome string, dur float64) {
	if d.metrics == nil {
		return
	}
	d.metrics.DelegateCallsTotal.WithLabelValues(outcome).Inc()
	if dur > 0 {
		d.metrics.LLMDuration.Observe(dur)
	}
}

// describeReport renders the structured report as the user message body.
func describeReport(r SymptomReport) string {
	var b strings.Builder
	if r.Age > 0 {
		fmt.Fprintf(&b, "Age: %d\n", r.Age)
	}
	fmt.Fprintf(&b, "Symptoms: %s\n", r.Description)
	fmt.Fprintf(&b, "Onset: %s\n", r.Duration)
	fmt.Fprintf(&b, "Severity: %s\n", r.Severity)
	redFlags := "no"
	if r.RedFlags.Any() {
		redFlags = "yes"
	}
	fmt.Fprintf(&b, "Red-flag symptoms reported: %s", redFlags)
	return b.String()
}

// parseVerdict extracts and validates the model's JSON verdict. Models
// sometimes wrap the object in prose, so the text between the first and last
// brace is parsed rather than the whole body.
func parseVerdict(raw string) (Verdict, error) {
	jsonText := raw
	if first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); first != -1 && last > first {
		jsonText = raw[first : last+1]
	}

	var wire wireVerdict
	if err := json.Unmarshal([]byte(jsonText), &wire); err != nil {
		return Verdict{}, fmt.Errorf("parse verdict json: %w", err)
	}

	if !ValidUrgency(wire.Urgency) {
		return Verdict{}, fmt.Errorf("urgency %q outside enumeration", wire.Urgency)
	}
	care, ok := careFromWire(wire.RecommendedCare)
	if !ok {
		return Verdict{}, fmt.Errorf("recommendedCare %q outside enumeration", wire.RecommendedCare)
	}
	if wire.Summary == "" {
		return Verdict{}, fmt.Errorf("verdict missing summary")
	}

	return Verdict{
		Urgency:         Urgency(wire.Urgency),
		RecommendedCare: care,
		Summary:         wire.Summary,
		Advice:          wire.Advice,
	}, nil
}

// careFromWire narrows the model's care vocabulary to the canonical one.
func careFromWire(s string) (Care, bool) {
	switch s {
	case "ER":
		return CareER, true
	case "URGENT_CARE", "WALK_IN":
		return CareWalkIn, true
	case "FAMILY_DOCTOR":
		return CareFamilyDoctor, true
	case "SELF_CARE":
		return CareVirtual, true
	}
	return "", false
}
