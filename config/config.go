// Package config loads and validates the runtime configuration file.
package config

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/hauntsaninja/slackreact/errors"
	"github.com/hauntsaninja/slackreact/event"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvToken is the environment variable that overrides the configured
// credential. Keeps the token out of files checked into version control.
const EnvToken = "SLACK_TOKEN"

// Dispatch tunes the event dispatch pool.
type Dispatch struct {
	// Workers is the number of concurrent dispatch batches.
	Workers int `json:"workers"`
	// QueueSize bounds events waiting for a worker.
	QueueSize int `json:"queue_size"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Config is the full runtime configuration.
type Config struct {
	// Token is the API credential. SLACK_TOKEN overrides it when set.
	Token string `json:"token"`

	// Rules selects which registered rules run. Empty means all of them.
	Rules []string `json:"rules"`

	// ReportTo is the operator identity that receives fault reports as
	// direct messages. Empty disables the mirror.
	ReportTo event.ID `json:"report_to"`

	Dispatch Dispatch `json:"dispatch"`
	Metrics  Metrics  `json:"metrics"`
}

// Default returns the configuration used when a field is absent.
func Default() Config {
	return Config{
		Dispatch: Dispatch{Workers: 4, QueueSize: 64},
		Metrics:  Metrics{Enabled: false, Port: 9090},
	}
}

// Load reads the configuration file, applies defaults for absent fields,
// applies the environment override, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.WrapInvalid(err, "Config", "Load", "file read")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.WrapInvalid(err, "Config", "Load", "file parsing")
	}

	if env := os.Getenv(EnvToken); env != "" {
		cfg.Token = env
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the runtime cannot start
// with.
func (c Config) Validate() error {
	if c.Token == "" {
		return errors.WrapInvalid(errors.ErrMissingToken, "Config", "Validate", "token")
	}
	if c.Dispatch.Workers < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: dispatch workers must not be negative", errors.ErrInvalidConfig),
			"Config", "Validate", "dispatch.workers")
	}
	if c.Dispatch.QueueSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: dispatch queue size must not be negative", errors.ErrInvalidConfig),
			"Config", "Validate", "dispatch.queue_size")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: metrics port %d out of range", errors.ErrInvalidConfig, c.Metrics.Port),
			"Config", "Validate", "metrics.port")
	}
	return nil
}
