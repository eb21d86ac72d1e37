// Package config loads server configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file (path from --config or CLOCKLAYER_CONFIG), then CLOCKLAYER_*
// environment variables. Later layers win.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"clocklayer/pkg/platform/middleware/metadata"
)

// EnvConfigPath names the variable consulted when no --config flag is given.
const EnvConfigPath = "CLOCKLAYER_CONFIG"

const devSigningKey = "dev-secret-key-change-in-production"

type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the full server configuration.
type Config struct {
	Environment Environment      `yaml:"environment"`
	Log         LogConfig        `yaml:"log"`
	Server      Server           `yaml:"server"`
	Postgres    PostgresConfig   `yaml:"postgres"`
	Redis       RedisConfig      `yaml:"redis"`
	S3          S3Config         `yaml:"s3"`
	Identity    IdentityConfig   `yaml:"identity"`
	Liveness    LivenessConfig   `yaml:"liveness"`
	TaskLedger  TaskLedgerConfig `yaml:"taskledger"`
	Judge       JudgeConfig      `yaml:"judge"`
	Auth        AuthConfig       `yaml:"auth"`
	Admin       AdminConfig      `yaml:"admin"`
	Waitlist    WaitlistConfig   `yaml:"waitlist"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	RateLimit   RateLimitConfig  `yaml:"ratelimit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// TrustedProxies may report the client address in forwarding headers.
	TrustedProxies    []string      `yaml:"trusted_proxies"`
}

// PostgresConfig configures the profile and broadcast stores. An empty DSN
// selects the in-memory stores.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig configures the wizard session store. An empty URL selects the
// in-memory store.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// S3Config configures profile image storage. An empty bucket keeps images in
// memory.
type S3Config struct {
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	PublicBaseURL string `yaml:"public_base_url"`
	PathStyle     bool   `yaml:"path_style"`
}

// IdentityConfig points at the identity gateway. An empty BaseURL selects
// the fake gateway.
type IdentityConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	RequestURI string `yaml:"request_uri"`
}

type LivenessConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type TaskLedgerConfig struct {
	BaseURL   string `yaml:"base_url"`
	Community string `yaml:"community"`
	APIKey    string `yaml:"api_key"`
}

// JudgeConfig is the retry and breaker policy shared by outbound adapters.
type JudgeConfig struct {
	MaxAttempts      int           `yaml:"max_attempts"`
	AttemptTimeout   time.Duration `yaml:"attempt_timeout"`
	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

type AuthConfig struct {
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	Audience   string        `yaml:"audience"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

// AdminConfig holds the shared secret for the broadcast panel. Empty
// disables the panel.
type AdminConfig struct {
	Token string `yaml:"token"`
}

type WaitlistConfig struct {
	PublicBaseURL string        `yaml:"public_base_url"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

// KafkaConfig enables the Kafka audit sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	AuditTopic  string   `yaml:"audit_topic"`
	AuditBuffer int      `yaml:"audit_buffer"`
}

// RateLimitConfig overrides the per-class limits. Zero values keep the
// built-in defaults.
type RateLimitConfig struct {
	Disabled  bool        `yaml:"disabled"`
	PhoneCode LimitConfig `yaml:"phone_code"`
	Identity  LimitConfig `yaml:"identity"`
	Signup    LimitConfig `yaml:"signup"`
}

type LimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Default returns the development defaults every layer starts from.
func Default() *Config {
	return &Config{
		Environment: Development,
		Log:         LogConfig{Level: "info", Format: "json"},
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			RequestTimeout:    30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			TrustedProxies: []string{
				"127.0.0.0/8", "::1/128",
				"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
			},
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		S3: S3Config{Region: "us-east-1"},
		Judge: JudgeConfig{
			MaxAttempts:      3,
			AttemptTimeout:   10 * time.Second,
			InitialBackoff:   200 * time.Millisecond,
			MaxBackoff:       2 * time.Second,
			FailureThreshold: 5,
		},
		Auth: AuthConfig{
			SigningKey: devSigningKey,
			Issuer:     "clocklayer",
			Audience:   "clocklayer-web",
			TokenTTL:   24 * time.Hour,
		},
		Waitlist: WaitlistConfig{
			PublicBaseURL: "http://localhost:3000",
			SessionTTL:    24 * time.Hour,
		},
		Kafka: KafkaConfig{
			AuditTopic:  "clocklayer.audit",
			AuditBuffer: 256,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// non-empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decodeYAML(raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML overlays raw onto cfg. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func (c *Config) decodeYAML(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Environment {
	case Development, Production:
	default:
		errs = append(errs, fmt.Errorf("environment: unknown value %q", c.Environment))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr: required"))
	}
	if _, err := metadata.ParseProxies(c.Server.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}
	if c.Auth.SigningKey == "" {
		errs = append(errs, errors.New("auth.signing_key: required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl: must be positive"))
	}
	if c.Environment == Production {
		errs = append(errs, c.productionErrors()...)
	}
	if c.Waitlist.PublicBaseURL == "" {
		errs = append(errs, errors.New("waitlist.public_base_url: required"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("kafka.audit_topic: required when brokers are set"))
	}
	if c.S3.Bucket != "" && c.S3.Region == "" {
		errs = append(errs, errors.New("s3.region: required when bucket is set"))
	}
	return errors.Join(errs...)
}

// productionErrors lists the settings whose absence would make the server
// fall back to in-process fakes. Fakes admit anyone, so production refuses them.
func (c *Config) productionErrors() []error {
	var errs []error
	if c.Auth.SigningKey == devSigningKey {
		errs = append(errs, errors.New("auth.signing_key: development key used in production"))
	}
	required := []struct {
		key, value string
	}{
		{"postgres.dsn", c.Postgres.DSN},
		{"identity.base_url", c.Identity.BaseURL},
		{"liveness.url", c.Liveness.URL},
		{"taskledger.base_url", c.TaskLedger.BaseURL},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s: required in production", r.key))
		}
	}
	return errs
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
