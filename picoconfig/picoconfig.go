// Package picoconfig loads runtime configuration from the environment,
// the way the teacher's cmd/server/main.go reads PORT: os.Getenv with
// a hardcoded default, no config file or flag parsing.
package picoconfig

import (
	"os"
	"strconv"

	"github.com/vertexhub/libpico/continuous"
	"github.com/vertexhub/libpico/picocrypto"
)

// Error is the typed error category for configuration failures.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Config is the process-wide configuration a pico/service binary
// needs at startup.
type Config struct {
	UsersFile   string
	BeaconsFile string
	Continuous  continuous.Config
}

const (
	envCurve           = "PICO_CURVE"
	envUsersFile       = "PICO_USERS_FILE"
	envBeaconsFile     = "PICO_BEACONS_FILE"
	envActiveTimeout   = "PICO_ACTIVE_TIMEOUT_MS"
	envPausedTimeout   = "PICO_PAUSED_TIMEOUT_MS"
	envTimeoutLeeway   = "PICO_TIMEOUT_LEEWAY_MS"
	defaultUsersFile   = "users.txt"
	defaultBeaconsFile = "beacons.txt"
	defaultActiveMs    = 5000
	defaultPausedMs    = 20000
	defaultLeewayMs    = 1000
)

// FromEnv reads the PICO_* environment variables, applying the
// teacher's default-on-empty-string convention for each. PICO_CURVE is
// validated against the build's compiled-in curve (curve selection
// itself is a build-tag choice, §1 Non-goals rule out a runtime
// switch) — a mismatch is a misconfigured deployment, not a silent
// fallback.
func FromEnv() (*Config, error) {
	if curve := os.Getenv(envCurve); curve != "" && curve != picocrypto.ActiveCurveName() {
		return nil, &Error{Message: "PICO_CURVE=" + curve + " does not match binary built for " + picocrypto.ActiveCurveName()}
	}

	activeMs, err := envIntOrDefault(envActiveTimeout, defaultActiveMs)
	if err != nil {
		return nil, err
	}
	pausedMs, err := envIntOrDefault(envPausedTimeout, defaultPausedMs)
	if err != nil {
		return nil, err
	}
	leewayMs, err := envIntOrDefault(envTimeoutLeeway, defaultLeewayMs)
	if err != nil {
		return nil, err
	}

	return &Config{
		UsersFile:   stringOrDefault(envUsersFile, defaultUsersFile),
		BeaconsFile: stringOrDefault(envBeaconsFile, defaultBeaconsFile),
		Continuous: continuous.Config{
			ActiveTimeoutMs: activeMs,
			PausedTimeoutMs: pausedMs,
			TimeoutLeewayMs: leewayMs,
		},
	}, nil
}

func stringOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{Message: key + ": " + err.Error()}
	}
	return n, nil
}
