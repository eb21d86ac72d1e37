package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (r *envReader) str(key string, dst *string) {
	if v, ok := r.lookup(key); ok {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (r *envReader) boolean(key string, dst *bool) {
	v, ok := r.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (r *envReader) list(key string, dst *[]string) {
	if v, ok := r.lookup(key); ok {
		*dst = splitList(v)
	}
}

// applyEnv overlays CLOCKLAYER_* variables. Malformed values are collected
// and returned together.
func (c *Config) applyEnv(lookup LookupFunc) error {
	r := &envReader{lookup: lookup}

	var env string
	r.str("CLOCKLAYER_ENV", &env)
	if env != "" {
		c.Environment = Environment(env)
	}
	r.str("CLOCKLAYER_LOG_LEVEL", &c.Log.Level)
	r.str("CLOCKLAYER_LOG_FORMAT", &c.Log.Format)

	r.str("CLOCKLAYER_ADDR", &c.Server.Addr)
	r.duration("CLOCKLAYER_READ_HEADER_TIMEOUT", &c.Server.ReadHeaderTimeout)
	r.duration("CLOCKLAYER_REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	r.list("CLOCKLAYER_TRUSTED_PROXIES", &c.Server.TrustedProxies)
	r.duration("CLOCKLAYER_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	r.str("CLOCKLAYER_POSTGRES_DSN", &c.Postgres.DSN)
	r.integer("CLOCKLAYER_POSTGRES_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns)
	r.integer("CLOCKLAYER_POSTGRES_MAX_IDLE_CONNS", &c.Postgres.MaxIdleConns)
	r.duration("CLOCKLAYER_POSTGRES_CONN_MAX_LIFETIME", &c.Postgres.ConnMaxLifetime)

	r.str("CLOCKLAYER_REDIS_URL", &c.Redis.URL)
	r.integer("CLOCKLAYER_REDIS_POOL_SIZE", &c.Redis.PoolSize)
	r.integer("CLOCKLAYER_REDIS_MIN_IDLE_CONNS", &c.Redis.MinIdleConns)

	r.str("CLOCKLAYER_S3_REGION", &c.S3.Region)
	r.str("CLOCKLAYER_S3_ACCESS_KEY", &c.S3.AccessKey)
	r.str("CLOCKLAYER_S3_SECRET_KEY", &c.S3.SecretKey)
	r.str("CLOCKLAYER_S3_ENDPOINT", &c.S3.Endpoint)
	r.str("CLOCKLAYER_S3_BUCKET", &c.S3.Bucket)
	r.str("CLOCKLAYER_S3_PUBLIC_BASE_URL", &c.S3.PublicBaseURL)
	r.boolean("CLOCKLAYER_S3_PATH_STYLE", &c.S3.PathStyle)

	r.str("CLOCKLAYER_IDENTITY_BASE_URL", &c.Identity.BaseURL)
	r.str("CLOCKLAYER_IDENTITY_API_KEY", &c.Identity.APIKey)
	r.str("CLOCKLAYER_IDENTITY_REQUEST_URI", &c.Identity.RequestURI)

	r.str("CLOCKLAYER_LIVENESS_URL", &c.Liveness.URL)
	r.str("CLOCKLAYER_LIVENESS_API_KEY", &c.Liveness.APIKey)

	r.str("CLOCKLAYER_TASKLEDGER_BASE_URL", &c.TaskLedger.BaseURL)
	r.str("CLOCKLAYER_TASKLEDGER_COMMUNITY", &c.TaskLedger.Community)
	r.str("CLOCKLAYER_TASKLEDGER_API_KEY", &c.TaskLedger.APIKey)

	r.integer("CLOCKLAYER_JUDGE_MAX_ATTEMPTS", &c.Judge.MaxAttempts)
	r.duration("CLOCKLAYER_JUDGE_ATTEMPT_TIMEOUT", &c.Judge.AttemptTimeout)

	r.str("CLOCKLAYER_JWT_SIGNING_KEY", &c.Auth.SigningKey)
	r.duration("CLOCKLAYER_TOKEN_TTL", &c.Auth.TokenTTL)

	r.str("CLOCKLAYER_ADMIN_TOKEN", &c.Admin.Token)

	r.str("CLOCKLAYER_PUBLIC_BASE_URL", &c.Waitlist.PublicBaseURL)
	r.duration("CLOCKLAYER_SESSION_TTL", &c.Waitlist.SessionTTL)

	r.list("CLOCKLAYER_KAFKA_BROKERS", &c.Kafka.Brokers)
	r.str("CLOCKLAYER_KAFKA_AUDIT_TOPIC", &c.Kafka.AuditTopic)

	r.boolean("CLOCKLAYER_RATELIMIT_DISABLED", &c.RateLimit.Disabled)

	return errors.Join(r.errs...)
}
