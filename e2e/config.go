package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SYNCX_E2E_ADDR is the base URL of a running server, e.g. http://localhost:8080.
	// The suite is skipped when empty.
	Addr     string `envconfig:"SYNCX_E2E_ADDR"`
	AdminKey string `envconfig:"SYNCX_E2E_ADMIN_KEY"`
	// E2E_DEBUG_JSON dumps full response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
