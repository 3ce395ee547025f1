// Package facility looks up nearby care facilities for a recommended care
// setting, from either a static table or the Places API.
package facility

import (
	"context"

	"github.com/linnemanlabs/carecompass/internal/triage"
)

// Facility is a care location shown to the patient after triage.
type Facility struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Address      string        `json:"address"`
	DistanceKm   float64       `json:"distance_km"`
	SupportsCare []triage.Care `json:"supports_care"`
}

// Directory resolves facilities for a care setting near a location. lat/lng
// may both be zero when the caller has no position; implementations then
// fall back to un-localized results.
type Directory interface {
	Nearby(ctx context.Context, care triage.Care, lat, lng float64) ([]Facility, error)
}
