package careapi

import (
	"net/http"
	"strconv"

	"github.com/linnemanlabs/carecompass/internal/triage"
)

// handleFacilities returns nearby facilities for a recommended care setting.
// lat/lng are optional; without them the directory serves un-localized
// results.
func (a *API) handleFacilities(w http.ResponseWriter, r *http.Request) {
	care := r.URL.Query().Get("care")
	if !triage.ValidCare(care) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown care setting"})
		return
	}

	lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, _ := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)

	facilities, err := a.directory.Nearby(r.Context(), triage.Care(care), lat, lng)
	if err != nil {
		a.logger.Error(r.Context(), err, "facility lookup failed", "care", care)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"facilities": facilities})
}
