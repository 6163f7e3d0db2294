// Package config loads process-wide defaults for the eVM CLI from
// the environment, so a host embedding evm in a larger deployment can
// tune it without touching flags.
package config

import "github.com/caarlos0/env/v6"

// Config holds the tunables `evm run` falls back to when the
// corresponding flag is not given on the command line.
type Config struct {
	// StackCapacity is the default operand stack depth for `evm run`.
	StackCapacity uint16 `env:"EVM_STACK_CAPACITY" envDefault:"1024"`

	// MaxOps bounds a single run() call, matching the interpreter's
	// cooperative step budget.
	MaxOps int `env:"EVM_MAX_OPS" envDefault:"1000000"`

	// LogLevel is a logr verbosity level: 0 is info-and-above, higher
	// numbers are progressively more verbose trace output.
	LogLevel int `env:"EVM_LOG_LEVEL" envDefault:"0"`
}

// Load reads Config from the environment, applying the declared
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
