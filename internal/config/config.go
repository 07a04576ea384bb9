// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything cmd/api needs to wire the service. The auth
// signing secret is deliberately not here: internal/auth loads it lazily
// from HIP_AUTH_SECRET so library consumers without HTTP do not pay for it.
type Config struct {
	HTTPAddr        string `env:"HIP_HTTP_ADDR" envDefault:":8080"`
	PGDSN           string `env:"HIP_PG_DSN"`
	AdminAddress    string `env:"HIP_ADMIN_ADDRESS,required"`
	AdminSecretHash string `env:"HIP_ADMIN_SECRET_HASH"`
	RateBurst       int    `env:"HIP_RATE_BURST" envDefault:"20"`
	RatePerSec      int    `env:"HIP_RATE_PER_SEC" envDefault:"10"`
	MaxBodyBytes    int64  `env:"HIP_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
