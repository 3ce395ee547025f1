package facility

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/carecompass/internal/triage"
)

// DefaultPlacesBaseURL is the hosted Places nearby-search endpoint.
const DefaultPlacesBaseURL = "https://maps.googleapis.com/maps/api/place"

const searchRadiusMeters = 5000

// Places resolves facilities via the Places nearby-search API, falling back
// to the static table when the lookup fails (degrade, don't fail: the
// patient still gets somewhere to go).
type Places struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	fallback   *Static
	logger     log.Logger
}

// NewPlaces creates a Places directory. baseURL may be empty to use the
// hosted endpoint.
func NewPlaces(apiKey, baseURL string, logger log.Logger) *Places {
	if baseURL == "" {
		baseURL = DefaultPlacesBaseURL
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Places{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		fallback: NewStatic(),
		logger:   logger,
	}
}

// careSearch maps a care setting to the nearby-search type and keyword.
func careSearch(care triage.Care) (placeType, keyword string) {
	switch care {
	case triage.CareER:
		return "hospital", "emergency room"
	case triage.CareWalkIn:
		return "doctor", "walk in clinic"
	case triage.CareFamilyDoctor:
		return "doctor", "family doctor"
	default:
		return "doctor", "telehealth clinic"
	}
}

type placesResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string `json:"place_id"`
		Name     string `json:"name"`
		Vicinity string `json:"vicinity"`
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Nearby queries the Places API for facilities supporting the care setting.
func (p *Places) Nearby(ctx context.Context, care triage.Care, lat, lng float64) ([]Facility, error) {
	facilities, err := p.search(ctx, care, lat, lng)
	if err != nil {
		p.logger.Error(ctx, err, "places lookup failed, serving static facilities", "care", string(care))
		return p.fallback.Nearby(ctx, care, lat, lng)
	}
	return facilities, nil
}

func (p *Places) search(ctx context.Context, care triage.Care, lat, lng float64) ([]Facility, error) {
	placeType, keyword := careSearch(care)

	q := url.Values{}
	q.Set("key", p.apiKey)
	q.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("radius", fmt.Sprintf("%d", searchRadiusMeters))
	q.Set("type", placeType)
	q.Set("keyword", keyword)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/nearbysearch/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places api status %d", resp.StatusCode)
	}

	var out placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Status != "OK" && out.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places api status %q", out.Status)
	}

	facilities := make([]Facility, 0, len(out.Results))
	for _, r := range out.Results {
		facilities = append(facilities, Facility{
			ID:           r.PlaceID,
			Name:         r.Name,
			Type:         keyword,
			Address:      r.Vicinity,
			DistanceKm:   haversineKm(lat, lng, r.Geometry.Location.Lat, r.Geometry.Location.Lng),
			SupportsCare: []triage.Care{care},
		})
	}
	return facilities, nil
}

// haversineKm is the great-circle distance between two coordinates.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
