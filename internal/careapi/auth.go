package careapi

import (
	"encoding/json"
	"net/http"

	"github.com/linnemanlabs/carecompass/internal/session"
)

// handleLoginURL returns the hosted authorize URL for a role. The role and
// return path travel in the opaque state blob and come back on callback.
func (a *API) handleLoginURL(w http.ResponseWriter, r *http.Request) {
	if a.flow == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "hosted login is not configured"})
		return
	}

	role := session.Role(r.URL.Query().Get("role"))
	returnPath := r.URL.Query().Get("return")

	url, err := a.flow.LoginURL(role, returnPath)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to build login url")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (a *API) handleLogoutURL(w http.ResponseWriter, r *http.Request) {
	if a.flow == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "hosted login is not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": a.flow.LogoutURL()})
}

type callbackRequest struct {
	Code    string `json:"code"`
	State   string `json:"state"`
	IDToken string `json:"id_token,omitempty"`
}

// handleCallback resolves the provider redirect parameters into an explicit
// session the client routes on.
func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	if a.flow == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "hosted login is not configured"})
		return
	}

	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	sess, err := a.flow.Resolve(req.Code, req.State, req.IDToken)
	if err != nil {
		a.logger.Warn(r.Context(), "sign-in callback rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid callback"})
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
