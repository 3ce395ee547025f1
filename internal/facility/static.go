package facility

import (
	"context"
	"slices"

	"github.com/linnemanlabs/carecompass/internal/triage"
)

// staticFacilities is the built-in table used when no Places API key is
// configured, and as the fallback when the Places API fails.
var staticFacilities = []Facility{
	{
		ID:           "fac-1",
		Name:         "Downtown General Hospital ER",
		Type:         "ER",
		Address:      "123 Central Ave",
		DistanceKm:   2.3,
		SupportsCare: []triage.Care{triage.CareER},
	},
	{
		ID:           "fac-2",
		Name:         "City Walk-In Clinic",
		Type:         "Walk-In Clinic",
		Address:      "45 Maple Street",
		DistanceKm:   3.1,
		SupportsCare: []triage.Care{triage.CareWalkIn, triage.CareFamilyDoctor},
	},
	{
		ID:           "fac-3",
		Name:         "Sunrise Family Practice",
		Type:         "Family Practice",
		Address:      "78 Oak Crescent",
		DistanceKm:   4.5,
		SupportsCare: []triage.Care{triage.CareFamilyDoctor},
	},
	{
		ID:           "fac-4",
		Name:         "Virtual Care Connect",
		Type:         "Virtual Clinic",
		Address:      "Online",
		DistanceKm:   0.0,
		SupportsCare: []triage.Care{triage.CareVirtual},
	},
}

// Static serves facilities from the built-in table.
type Static struct{}

// NewStatic returns a static directory.
func NewStatic() *Static { return &Static{} }

// Nearby filters the static table by supported care setting. Location is
// ignored; the table carries fixed demo distances.
func (s *Static) Nearby(_ context.Context, care triage.Care, _, _ float64) ([]Facility, error) {
	var out []Facility
	for _, f := range staticFacilities {
		if slices.Contains(f.SupportsCare, care) {
			out = append(out, f)
		}
	}
	return out, nil
}
