package config

import "time"

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// ProviderConfig configures the outbound payment provider client.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	AccessToken string        `yaml:"access_token" validate:"required"`
	Timeout     time.Duration `yaml:"timeout"`

	// Caller-side retry policy around provider fetches.
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
}

// ReconcileConfig configures the reconciliation sweep and the internal
// endpoints' authorization.
type ReconcileConfig struct {
	// InternalToken authorizes platform callers via X-Internal-Token.
	InternalToken string `yaml:"internal_token"`
	// JWTSecret verifies operator tokens as an alternative to the
	// internal token.
	JWTSecret string `yaml:"jwt_secret"`
	// AdminEmails lists operator identities allowed to trigger a sweep.
	AdminEmails []string `yaml:"admin_emails"`
	// Schedule is a cron expression for the periodic sweep; empty
	// disables scheduling.
	Schedule string `yaml:"schedule"`
	// DefaultLookbackDays is used when a trigger omits the window.
	DefaultLookbackDays int `yaml:"default_lookback_days"`
	// PipelineTimeout bounds one webhook-triggered pipeline run.
	PipelineTimeout time.Duration `yaml:"pipeline_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	FilePath    string `yaml:"file_path"`
	Development bool   `yaml:"development"`
}
