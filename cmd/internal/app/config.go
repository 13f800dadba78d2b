package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/privacybydesign/irmajs/cmd/security/keys"
	"github.com/privacybydesign/irmajs/cmd/security/requestor"
	"github.com/privacybydesign/irmajs/cmd/status"
)

// ErrConfig matches every configuration error.
var ErrConfig = errors.New("invalid configuration")

// Config is the CLI runtime configuration.
//
// Precedence: defaults < TOML file < IRMA_* environment < flags.
type Config struct {
	Server   string     `toml:"server"`
	Auth     AuthConfig `toml:"auth"`
	Language string     `toml:"language"`

	Push         string        `toml:"push"`
	PollInterval time.Duration `toml:"poll-interval"`
	PushTimeout  time.Duration `toml:"push-timeout"`
	HTTPTimeout  time.Duration `toml:"http-timeout"`

	LogLevel    string `toml:"log-level"`
	LogFormat   string `toml:"log-format"`
	MetricsAddr string `toml:"metrics-addr"`
}

// AuthConfig configures requestor authentication.
type AuthConfig struct {
	Method  string `toml:"method"`
	Key     string `toml:"key"`
	KeyFile string `toml:"key-file"`
	Name    string `toml:"name"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server:       "http://localhost:8088",
		Auth:         AuthConfig{Method: string(requestor.MethodNone)},
		Language:     "en",
		Push:         string(status.ModeSSE),
		PollInterval: status.DefaultPollInterval,
		PushTimeout:  status.DefaultPushTimeout,
		HTTPTimeout:  30 * time.Second,
		LogLevel:     "info",
		LogFormat:    "pretty",
	}
}

// LoadConfig applies the TOML file at path (when non-empty) and the
// environment on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse config file %s: %v", ErrConfig, path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrConfig, undecoded[0].String(), path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server = EnvString(EnvServer, c.Server)
	c.Auth.Method = EnvString(EnvAuthMethod, c.Auth.Method)
	c.Auth.Key = EnvString(EnvAuthKey, c.Auth.Key)
	c.Auth.KeyFile = EnvString(EnvAuthKeyFile, c.Auth.KeyFile)
	c.Auth.Name = EnvString(EnvRequestorName, c.Auth.Name)
	c.Language = EnvString(EnvLanguage, c.Language)
	c.Push = EnvString(EnvPush, c.Push)
	c.LogLevel = EnvString(EnvLogLevel, c.LogLevel)
	c.LogFormat = EnvString(EnvLogFormat, c.LogFormat)
	c.MetricsAddr = EnvString(EnvMetricsAddr, c.MetricsAddr)

	var err error
	if c.PollInterval, err = EnvDuration(EnvPollInterval, c.PollInterval); err != nil {
		return err
	}
	if c.PushTimeout, err = EnvDuration(EnvPushTimeout, c.PushTimeout); err != nil {
		return err
	}
	if c.HTTPTimeout, err = EnvDuration(EnvHTTPTimeout, c.HTTPTimeout); err != nil {
		return err
	}
	return nil
}

// bindFlags registers the runtime flags on fs.
func bindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a TOML config file")
	fs.String("server", "", "IRMA server URL")
	fs.String("auth-method", "", "requestor authentication: none, token, hmac or publickey")
	fs.String("auth-key", "", "requestor token, HMAC secret or PEM private key")
	fs.String("auth-key-file", "", "file holding the requestor key")
	fs.String("requestor-name", "", "requestor name, sent as JWT issuer")
	fs.String("language", "", "presentation language (en, nl)")
	fs.String("push", "", "status push mechanism: sse, websocket or none")
	fs.Duration("poll-interval", 0, "status polling interval")
	fs.Duration("push-timeout", 0, "silence after which status push falls back to polling")
	fs.Duration("http-timeout", 0, "timeout of non-streaming HTTP requests")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: json or pretty")
	fs.String("metrics-addr", "", "serve /metrics and /healthz on this address while running")
}

// applyFlags overrides c with every flag set explicitly on fs.
func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	strs := map[string]*string{
		"server":         &c.Server,
		"auth-method":    &c.Auth.Method,
		"auth-key":       &c.Auth.Key,
		"auth-key-file":  &c.Auth.KeyFile,
		"requestor-name": &c.Auth.Name,
		"language":       &c.Language,
		"push":           &c.Push,
		"log-level":      &c.LogLevel,
		"log-format":     &c.LogFormat,
		"metrics-addr":   &c.MetricsAddr,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return fmt.Errorf("%w: --%s: %v", ErrConfig, name, err)
		}
		*dst = strings.TrimSpace(v)
	}

	durs := map[string]*time.Duration{
		"poll-interval": &c.PollInterval,
		"push-timeout":  &c.PushTimeout,
		"http-timeout":  &c.HTTPTimeout,
	}
	for name, dst := range durs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetDuration(name)
		if err != nil {
			return fmt.Errorf("%w: --%s: %v", ErrConfig, name, err)
		}
		*dst = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server) == "" {
		return fmt.Errorf("%w: server is required", ErrConfig)
	}
	if _, err := status.ParseMode(c.Push); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if _, err := requestor.ParseMethod(c.Auth.Method); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.PollInterval <= 0 || c.PushTimeout <= 0 || c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: intervals and timeouts must be positive", ErrConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "pretty":
	default:
		return fmt.Errorf("%w: log format %q", ErrConfig, c.LogFormat)
	}
	return nil
}

// RequestorAuth resolves the configured requestor authentication and its key.
func (c Config) RequestorAuth() (requestor.Auth, error) {
	method, err := requestor.ParseMethod(c.Auth.Method)
	if err != nil {
		return requestor.Auth{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	auth := requestor.Auth{Method: method, Name: c.Auth.Name}
	if method == requestor.MethodNone {
		return auth, nil
	}

	raw := []byte(c.Auth.Key)
	if c.Auth.KeyFile != "" {
		if raw, err = keys.LoadFile(c.Auth.KeyFile); err != nil {
			return requestor.Auth{}, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if len(raw) == 0 {
		return requestor.Auth{}, fmt.Errorf("%w: auth method %s needs a key", ErrConfig, method)
	}

	switch method {
	case requestor.MethodToken:
		auth.Key = strings.TrimSpace(string(raw))
	case requestor.MethodHMAC:
		k, err := keys.HMACKey(string(raw))
		if err != nil {
			return requestor.Auth{}, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		auth.Key = k
	case requestor.MethodPublicKey:
		k, err := keys.RSAPrivateKey(raw)
		if err != nil {
			return requestor.Auth{}, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		auth.Key = k
	}
	return auth, nil
}

func (c Config) watchConfig() status.Config {
	mode, _ := status.ParseMode(c.Push)
	return status.Config{
		Push:         mode,
		PollInterval: c.PollInterval,
		PushTimeout:  c.PushTimeout,
	}
}
