package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/byterank/byterank/pkg/crypto"
)

const (
	jwtSecretBytes         = 48
	defaultShutdownTimeout = 15 * time.Second
)

// ApplyRuntimeDefaults fills settings that must not stay empty, such as the
// token secret of a local development setup. It returns which keys were
// generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}

	return generated, nil
}
