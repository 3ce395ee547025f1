package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	OpenAIAPIKey          string
	OpenAIModel           string
	OpenAIBaseURL         string
	OIDCAuthority         string
	OIDCClientID          string
	OIDCRedirectURI       string
	OIDCLogoutURI         string
	PlacesAPIKey          string
	PlacesBaseURL         string
	SlackWebhookURL       string
	ClinicianAPIToken     string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the LLM completion endpoint (empty = triage delegate and chat degrade to fixed safe replies)")
	fs.StringVar(&c.OpenAIModel, "openai-model", "gpt-4o-mini", "completion model to use")
	fs.StringVar(&c.OpenAIBaseURL, "openai-base-url", "", "override for the completion endpoint base URL (empty = hosted endpoint)")
	fs.StringVar(&c.OIDCAuthority, "oidc-authority", "", "hosted login domain, e.g. https://example.auth.us-west-2.amazoncognito.com")
	fs.StringVar(&c.OIDCClientID, "oidc-client-id", "", "OIDC app client ID")
	fs.StringVar(&c.OIDCRedirectURI, "oidc-redirect-uri", "", "redirect URI registered with the identity provider")
	fs.StringVar(&c.OIDCLogoutURI, "oidc-logout-uri", "", "post-logout landing URI")
	fs.StringVar(&c.PlacesAPIKey, "places-api-key", "", "Places API key for facility lookup (empty = static facility table)")
	fs.StringVar(&c.PlacesBaseURL, "places-base-url", "", "override for the Places API base URL (empty = hosted endpoint)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for emergency pre-consult notifications")
	fs.StringVar(&c.ClinicianAPIToken, "clinician-api-token", "", "bearer token protecting clinician endpoints (empty = unprotected, dev only)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
//
// Missing upstream credentials (LLM key, Places key, Slack webhook) are not
// validation errors: those subsystems degrade to fixed safe behavior instead
// of refusing to start.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Completion model must be set even without a key so the degrade path
	// still has a coherent config to log.
	if c.OpenAIModel == "" {
		errs = append(errs, errors.New("OPENAI_MODEL is required"))
	}

	// Hosted login is optional, but partial configuration is a deployment
	// mistake rather than a degrade path.
	if c.OIDCConfigured() {
		if c.OIDCAuthority == "" {
			errs = append(errs, errors.New("OIDC_AUTHORITY is required when hosted login is configured"))
		}
		if c.OIDCClientID == "" {
			errs = append(errs, errors.New("OIDC_CLIENT_ID is required when hosted login is configured"))
		}
		if c.OIDCRedirectURI == "" {
			errs = append(errs, errors.New("OIDC_REDIRECT_URI is required when hosted login is configured"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// OIDCConfigured reports whether any hosted-login field is set.
func (c *Config) OIDCConfigured() bool {
	return c.OIDCAuthority != "" || c.OIDCClientID != "" || c.OIDCRedirectURI != "" || c.OIDCLogoutURI != ""
}
