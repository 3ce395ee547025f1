// Package triage maps patient-reported symptoms to an urgency level and a
// recommended care setting. It contains the rule-based classifier, the
// urgency-ordered queue comparator, and the LLM-backed delegate with its
// fail-safe policy.
package triage
