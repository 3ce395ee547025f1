// Package preconsult provides the business boundary for patient pre-consult
// records: the status lifecycle (pending, accepted, deferred), derived
// screening tasks, the Store interface, and the clinician-facing Service.
package preconsult
