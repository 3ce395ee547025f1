package triage

// Urgency is how soon a patient should be seen. Ordering matters:
// UrgencyEmergency is the maximal tier and is what every failure path and
// red-flag branch collapses to.
type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencySoon      Urgency = "soon"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// Care is the recommended care setting for a verdict.
type Care string

const (
	CareER           Care = "er"
	CareWalkIn       Care = "walk_in"
	CareFamilyDoctor Care = "family_doctor"
	CareVirtual      Care = "virtual"
)

// Severity is the patient's self-reported symptom severity.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// RedFlags is the boolean checklist from the intake form. Any true value
// mandates the emergency branch regardless of everything else.
type RedFlags struct {
	ChestPain           bool `json:"chest_pain"`
	BreathingDifficulty bool `json:"breathing_difficulty"`
	FacialDroop         bool `json:"facial_droop"`
	Weakness            bool `json:"weakness"`
	Confusion           bool `json:"confusion"`
}

// Any reports whether at least one red flag is set.
func (r RedFlags) Any() bool {
	return r.ChestPain || r.BreathingDifficulty || r.FacialDroop || r.Weakness || r.Confusion
}

// SymptomReport is the structured intake submitted by a patient. It is
// constructed once per submission and never mutated.
type SymptomReport struct {
	Description string   `json:"description"`
	Duration    string   `json:"duration"`
	Severity    Severity `json:"severity"`
	RedFlags    RedFlags `json:"red_flags"`
	Age         int      `json:"age,omitempty"`
}

// Verdict is the outcome of classifying a symptom report. Summary is the
// short reasoning shown in the UI; Advice is the patient-facing guidance.
// Neither is diagnostic.
type Verdict struct {
	Urgency         Urgency `json:"urgency"`
	RecommendedCare Care    `json:"recommended_care"`
	Summary         string  `json:"summary"`
	Advice          string  `json:"advice,omitempty"`
}

// ValidUrgency reports whether s is one of the canonical urgency values.
func ValidUrgency(s string) bool {
	switch Urgency(s) {
	case UrgencyRoutine, UrgencySoon, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// ValidCare reports whether s is one of the canonical care values.
func ValidCare(s string) bool {
	switch Care(s) {
	case CareER, CareWalkIn, CareFamilyDoctor, CareVirtual:
		return true
	}
	return false
}
