package app

import (
	"crypto/rsa"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/privacybydesign/irmajs/cmd/security/requestor"
	"github.com/privacybydesign/irmajs/cmd/status"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeFile(t, "irma.toml", `
server = "https://file.example"
language = "nl"
poll-interval = "250ms"

[auth]
method = "token"
key = "from-file"
`)
	t.Setenv(EnvServer, "https://env.example")
	t.Setenv(EnvPushTimeout, "3s")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(fs)
	if err := fs.Parse([]string{"--language=en", "--push=none"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := cfg.applyFlags(fs); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}

	if cfg.Server != "https://env.example" {
		t.Fatalf("server=%q want env value", cfg.Server)
	}
	if cfg.Language != "en" || cfg.Push != "none" {
		t.Fatalf("flags not applied: language=%q push=%q", cfg.Language, cfg.Push)
	}
	if cfg.PollInterval != 250*time.Millisecond || cfg.PushTimeout != 3*time.Second {
		t.Fatalf("poll=%v push-timeout=%v", cfg.PollInterval, cfg.PushTimeout)
	}
	if cfg.HTTPTimeout != DefaultConfig().HTTPTimeout {
		t.Fatalf("http timeout=%v want default", cfg.HTTPTimeout)
	}
	if cfg.Auth.Method != "token" || cfg.Auth.Key != "from-file" {
		t.Fatalf("auth=%+v", cfg.Auth)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if w := cfg.watchConfig(); w.Push != status.ModeNone || w.PollInterval != 250*time.Millisecond {
		t.Fatalf("watch config=%+v", w)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	unknown := writeFile(t, "unknown.toml", `servr = "typo"`)
	if _, err := LoadConfig(unknown); !errors.Is(err, ErrConfig) {
		t.Fatalf("unknown key err=%v want ErrConfig", err)
	}

	broken := writeFile(t, "broken.toml", `server = `)
	if _, err := LoadConfig(broken); !errors.Is(err, ErrConfig) {
		t.Fatalf("broken file err=%v want ErrConfig", err)
	}

	t.Setenv(EnvPollInterval, "soon")
	if _, err := LoadConfig(""); !errors.Is(err, ErrConfig) {
		t.Fatalf("bad env duration err=%v want ErrConfig", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server", func(c *Config) { c.Server = " " }},
		{"push mode", func(c *Config) { c.Push = "longpoll" }},
		{"auth method", func(c *Config) { c.Auth.Method = "basic" }},
		{"poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: err=%v want ErrConfig", tc.name, err)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestRequestorAuth(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	auth, err := cfg.RequestorAuth()
	if err != nil || auth.Method != requestor.MethodNone {
		t.Fatalf("none=%+v,%v", auth, err)
	}

	cfg.Auth = AuthConfig{Method: "hmac", Key: "0123456789abcdef0123456789abcdef", Name: "tests"}
	auth, err = cfg.RequestorAuth()
	if err != nil {
		t.Fatalf("hmac: %v", err)
	}
	if k, ok := auth.Key.([]byte); !ok || len(k) != 32 || auth.Name != "tests" {
		t.Fatalf("hmac auth=%+v", auth)
	}

	cfg.Auth = AuthConfig{Method: "hmac", Key: "short"}
	if _, err := cfg.RequestorAuth(); !errors.Is(err, ErrConfig) {
		t.Fatalf("short hmac err=%v want ErrConfig", err)
	}

	cfg.Auth = AuthConfig{Method: "token"}
	if _, err := cfg.RequestorAuth(); !errors.Is(err, ErrConfig) {
		t.Fatalf("token without key err=%v want ErrConfig", err)
	}

	cfg.Auth = AuthConfig{Method: "publickey", KeyFile: writeFile(t, "key.pem", testRSAKeyPEM(t))}
	auth, err = cfg.RequestorAuth()
	if err != nil {
		t.Fatalf("publickey: %v", err)
	}
	if _, ok := auth.Key.(*rsa.PrivateKey); !ok {
		t.Fatalf("publickey key type %T", auth.Key)
	}
}
