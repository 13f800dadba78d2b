package app

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read on top of the config file.
const (
	EnvServer        = "IRMA_SERVER"
	EnvAuthMethod    = "IRMA_AUTH_METHOD"
	EnvAuthKey       = "IRMA_AUTH_KEY" // #nosec G101 -- variable name, not a credential
	EnvAuthKeyFile   = "IRMA_AUTH_KEY_FILE"
	EnvRequestorName = "IRMA_REQUESTOR_NAME"
	EnvLanguage      = "IRMA_LANGUAGE"
	EnvPush          = "IRMA_PUSH"
	EnvPollInterval  = "IRMA_POLL_INTERVAL"
	EnvPushTimeout   = "IRMA_PUSH_TIMEOUT"
	EnvHTTPTimeout   = "IRMA_HTTP_TIMEOUT"
	EnvLogLevel      = "IRMA_LOG_LEVEL"
	EnvLogFormat     = "IRMA_LOG_FORMAT"
	EnvMetricsAddr   = "IRMA_METRICS_ADDR"
)

// EnvString reads a string env var with a default.
func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// EnvDuration reads a positive duration env var with a default.
// An unparsable or non-positive value is a configuration error.
func EnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s=%q is not a positive duration", ErrConfig, key, v)
	}
	return d, nil
}
