package triage

import "strings"

const (
	redFlagSummary = "One or more red-flag symptoms were reported. Seek emergency care immediately, or call local emergency services."
	defaultSummary = "Based on your description and answers, this does not appear immediately life-threatening, but it should still be assessed by a clinician at the suggested level of care."
)

// keywordRule maps a group of description keywords to a default care setting.
// First match wins; there is no combination logic. These are deliberately
// crude free-text heuristics, not clinical rules.
type keywordRule struct {
	keywords []string
	care     Care
}

var keywordRules = []keywordRule{
	{keywords: []string{"sore throat", "cough"}, care: CareWalkIn},
	{keywords: []string{"medication", "refill"}, care: CareFamilyDoctor},
	{keywords: []string{"mild", "check up"}, care: CareVirtual},
}

// Classify deterministically maps a symptom report to a verdict. It is pure
// and total: every typed input produces a verdict and there is no failure
// path.
//
// The red-flag short-circuit is the safety invariant of this package: any
// true red flag returns the emergency/ER verdict before any other rule is
// consulted, and nothing below may override it.
func Classify(report SymptomReport) Verdict {
	if report.RedFlags.Any() {
		return Verdict{
			Urgency:         UrgencyEmergency,
			RecommendedCare: CareER,
			Summary:         redFlagSummary,
		}
	}

	desc := strings.ToLower(report.Description)
	care := CareWalkIn
	for _, rule := range keywordRules {
		matched := false
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				matched = true
				break
			}
		}
		if matched {
			care = rule.care
			break
		}
	}

	// Severe severity overrides whatever the keywords said.
	if report.Severity == SeveritySevere {
		care = CareER
	}

	return Verdict{
		Urgency:         urgencyFromSeverity(report.Severity),
		RecommendedCare: care,
		Summary:         defaultSummary,
	}
}

// urgencyFromSeverity derives the urgency tier from severity alone,
// independent of any keyword match.
func urgencyFromSeverity(s Severity) Urgency {
	switch s {
	case SeveritySevere:
		return UrgencyEmergency
	case SeverityModerate:
		return UrgencySoon
	default:
		return UrgencyRoutine
	}
}
