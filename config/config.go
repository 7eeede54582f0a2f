// Package config defines the process configuration for the coaching tools. Values come
// from the environment (prefix COACH_), optionally seeded from a .env file, and are
// validated once at startup.
package config

import (
	"time"

	"github.com/lucasjlepore/fit-coach/feedback"
)

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString hides its value from fmt and encoding/json.
type SecretString string

func (s SecretString) String() string {
	return redactedPlaceholder
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// Config is the top-level configuration, populated by Load.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"tint" validate:"oneof=tint text json"`

	Feedback  FeedbackConfig
	Generator GeneratorConfig
	Server    ServerConfig
}

// FeedbackConfig holds the poll cadence and the tunable rule thresholds.
type FeedbackConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s" validate:"gt=0"`
	// MinInterval of 0 disables the minimum spacing rule.
	MinInterval  time.Duration `envconfig:"MIN_INTERVAL" default:"30s" validate:"gte=0"`
	MaxInterval  time.Duration `envconfig:"MAX_INTERVAL" default:"5m" validate:"gt=0"`
	InitialAfter time.Duration `envconfig:"INITIAL_AFTER" default:"30s" validate:"gte=0"`
}

// Thresholds returns the rule thresholds with the configured durations applied.
func (c FeedbackConfig) Thresholds() feedback.Thresholds {
	t := feedback.DefaultThresholds()
	t.MinInterval = c.MinInterval
	t.MaxInterval = c.MaxInterval
	t.InitialAfter = c.InitialAfter
	return t
}

// GeneratorConfig selects the remote feedback generator. An empty Endpoint selects the
// offline template generator.
type GeneratorConfig struct {
	Endpoint   string        `envconfig:"ENDPOINT" validate:"omitempty,url"`
	APIKey     SecretString  `envconfig:"API_KEY"`
	Model      string        `envconfig:"MODEL"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"20s" validate:"gt=0"`
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"2" validate:"gte=0,lte=10"`
}

// ServerConfig holds the status HTTP listener.
type ServerConfig struct {
	Addr string `envconfig:"ADDR" default:":9464" validate:"required"`
}
