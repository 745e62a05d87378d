package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable, e.g. PAYROLL_HTTP_ADDR.
const EnvPrefix = "PAYROLL"

// parseEnv overlays variables that are set; unset ones keep the value
// from the previous layers.
func parseEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
