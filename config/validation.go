package config

import (
	"cryptodash/internal/market"
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ConfigValidationError is returned when config validation fails.
type ConfigValidationError struct {
	Errors []ValidationError
}

func (e *ConfigValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "config validation failed"
	}
	return "config validation failed: " + e.Errors[0].Field + ": " + e.Errors[0].Message
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateBackend(&c.Backend)...)
	errors = append(errors, validateDashboard(&c.Dashboard)...)
	errors = append(errors, validateAlerts(&c.Alerts)...)
	errors = append(errors, validateServer(&c.Server)...)
	errors = append(errors, validateGist(&c.Gist)...)

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// Err returns the validation result as an error, or nil if valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ConfigValidationError{Errors: r.Errors}
}

func validateBackend(b *BackendConfig) []ValidationError {
	var errors []ValidationError

	if u, err := url.Parse(b.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.base_url",
			Message: "must be an absolute URL",
		})
	}

	if b.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.timeout",
			Message: "must be positive",
		})
	}

	if b.RequestsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.requests_per_second",
			Message: "must be positive",
		})
	}

	if b.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "backend.burst",
			Message: "must be at least 1",
		})
	}

	return errors
}

func validateDashboard(d *DashboardConfig) []ValidationError {
	var errors []ValidationError

	if _, err := market.ParseAsset(d.DefaultCoin); err != nil {
		errors = append(errors, ValidationError{
			Field:   "dashboard.default_coin",
			Message: fmt.Sprintf("unsupported coin %q", d.DefaultCoin),
		})
	}

	if d.RefreshInterval < 5*time.Second {
		errors = append(errors, ValidationError{
			Field:   "dashboard.refresh_interval",
			Message: "must be at least 5 seconds",
		})
	}

	if d.NewsLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "dashboard.news_limit",
			Message: "must be at least 1",
		})
	}

	return errors
}

func validateAlerts(a *AlertsConfig) []ValidationError {
	var errors []ValidationError

	if a.PriceSwingPct <= 0 {
		errors = append(errors, ValidationError{
			Field:   "alerts.price_swing_pct",
			Message: "must be positive",
		})
	}

	if a.ForecastMovePct <= 0 {
		errors = append(errors, ValidationError{
			Field:   "alerts.forecast_move_pct",
			Message: "must be positive",
		})
	}

	if a.Cooldown < 1*time.Minute {
		errors = append(errors, ValidationError{
			Field:   "alerts.cooldown",
			Message: "must be at least 1 minute",
		})
	}

	return errors
}

func validateServer(s *ServerConfig) []ValidationError {
	var errors []ValidationError

	if s.Port < 1 || s.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", s.Port),
		})
	}

	return errors
}

func validateGist(g *GistConfig) []ValidationError {
	var errors []ValidationError

	if g.Token != "" && g.StateFile == "" {
		errors = append(errors, ValidationError{
			Field:   "gist.state_file",
			Message: "required when gist storage is enabled",
		})
	}

	if g.SaveInterval < 1*time.Minute {
		errors = append(errors, ValidationError{
			Field:   "gist.save_interval",
			Message: "must be at least 1 minute",
		})
	}

	return errors
}
