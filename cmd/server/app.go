package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"clocklayer/internal/blob"
	broadcasthandler "clocklayer/internal/broadcast/handler"
	broadcastservice "clocklayer/internal/broadcast/service"
	broadcastmemory "clocklayer/internal/broadcast/store/memory"
	broadcastpostgres "clocklayer/internal/broadcast/store/postgres"
	"clocklayer/internal/dashboard"
	"clocklayer/internal/identity"
	"clocklayer/internal/judge"
	jwttoken "clocklayer/internal/jwt_token"
	"clocklayer/internal/liveness"
	"clocklayer/internal/platform/config"
	"clocklayer/internal/platform/httpserver"
	"clocklayer/internal/platform/metrics"
	"clocklayer/internal/platform/postgres"
	platformredis "clocklayer/internal/platform/redis"
	"clocklayer/internal/profile"
	profilememory "clocklayer/internal/profile/store/memory"
	profilepostgres "clocklayer/internal/profile/store/postgres"
	"clocklayer/internal/ratelimit"
	"clocklayer/internal/referral"
	signuphandler "clocklayer/internal/signup/handler"
	signupservice "clocklayer/internal/signup/service"
	signupmemory "clocklayer/internal/signup/store/memory"
	signupredis "clocklayer/internal/signup/store/redis"
	"clocklayer/internal/taskledger"
	"clocklayer/internal/waitlist"
	"clocklayer/pkg/platform/audit"
	"clocklayer/pkg/platform/audit/publisher"
	kafkastore "clocklayer/pkg/platform/audit/store/kafka"
	auditmemory "clocklayer/pkg/platform/audit/store/memory"
	"clocklayer/pkg/platform/circuit"
	"clocklayer/pkg/platform/httputil"
	"clocklayer/pkg/platform/middleware/metadata"
	"clocklayer/pkg/platform/middleware/request"
	"clocklayer/pkg/platform/middleware/requesttime"
)

// app owns every long-lived resource. Collaborators without configuration
// fall back to their in-process adapters so the server runs locally with
// no infrastructure.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	db       *sql.DB
	listener *pq.Listener
	redis    *goredis.Client
	kafka    *kafkastore.Store
	audit    *publisher.Publisher

	profiles      profile.Store
	profileSource *profilepostgres.Store
	counter       *waitlist.Counter
	proxies       *metadata.Proxies
	router        http.Handler
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.proxies, err = metadata.ParseProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}
	if err := a.openStores(ctx); err != nil {
		return nil, err
	}
	if err := a.openAudit(ctx); err != nil {
		return nil, err
	}

	blobs, err := a.blobStore(ctx)
	if err != nil {
		return nil, err
	}

	tokens := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	validator := tokens.Validator()

	counterOpts := []waitlist.Option{waitlist.WithLogger(logger)}
	if a.redis != nil {
		counterOpts = append(counterOpts, waitlist.WithMirror(waitlist.NewRedisMirror(a.redis)))
	}
	a.counter = waitlist.New(a.profiles, counterOpts...)

	var sessions signupservice.SessionStore = signupmemory.NewInMemoryStore()
	if a.redis != nil {
		sessions = signupredis.New(a.redis)
	}

	signup := signupservice.New(signupservice.Deps{
		Sessions:  sessions,
		Gateway:   a.identityGateway(),
		Profiles:  a.profiles,
		Blobs:     blobs,
		Liveness:  a.livenessJudge(),
		Ledger:    a.taskLedger(),
		Referrals: referral.New(a.profiles, logger),
		Counter:   a.counter,
		Tokens:    tokens,
	},
		signupservice.WithLogger(logger),
		signupservice.WithAuditPublisher(a.audit),
		signupservice.WithMetrics(a.metrics),
		signupservice.WithSessionTTL(cfg.Waitlist.SessionTTL),
	)

	var messages broadcastservice.Store = broadcastmemory.NewInMemoryStore()
	if a.db != nil {
		messages = broadcastpostgres.New(a.db)
	}
	inbox := broadcastservice.New(messages,
		broadcastservice.WithLogger(logger),
		broadcastservice.WithAuditPublisher(a.audit),
		broadcastservice.WithMetrics(a.metrics),
	)

	board := dashboard.New(a.profiles, cfg.Waitlist.PublicBaseURL, dashboard.WithLogger(logger))

	a.router = a.routes(
		signuphandler.New(signup, logger, validator, signuphandler.WithLimiter(a.rateLimiter())),
		waitlist.NewHandler(a.counter, logger),
		dashboard.NewHandler(board, logger, validator),
		broadcasthandler.New(inbox, logger, validator, cfg.Admin.Token),
	)
	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	db, err := postgres.Open(ctx, a.cfg.Postgres)
	if err != nil {
		return err
	}
	if db == nil {
		a.logger.WarnContext(ctx, "postgres not configured, using in-memory profile and message stores")
		a.profiles = profilememory.NewInMemoryStore(a.logger)
	} else {
		a.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		a.listener, err = postgres.NewListener(a.cfg.Postgres.DSN, profilepostgres.ChangeChannel, a.logger)
		if err != nil {
			return err
		}
		a.profileSource = profilepostgres.New(db, profilepostgres.WithLogger(a.logger))
		a.profiles = a.profileSource
	}

	a.redis, err = platformredis.Open(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	if a.redis == nil {
		a.logger.WarnContext(ctx, "redis not configured, wizard sessions are kept in memory")
	}
	return nil
}

func (a *app) openAudit(ctx context.Context) error {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if len(a.cfg.Kafka.Brokers) > 0 {
		k, err := kafkastore.Dial(a.cfg.Kafka.Brokers, a.cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := k.EnsureTopic(topicCtx); err != nil {
			a.logger.WarnContext(ctx, "could not ensure audit topic, relying on auto creation",
				"topic", a.cfg.Kafka.AuditTopic, "error", err)
		}
		cancel()
		a.kafka = k
		store = k
	}
	a.audit = publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(a.cfg.Kafka.AuditBuffer),
		publisher.WithLogger(a.logger),
	)
	return nil
}

func (a *app) blobStore(ctx context.Context) (blob.Store, error) {
	s3 := a.cfg.S3
	if s3.Bucket == "" {
		return blob.NewMemoryStore(strings.TrimRight(a.cfg.Waitlist.PublicBaseURL, "/") + "/blobs"), nil
	}
	store, err := blob.NewS3Store(ctx, blob.S3Config{
		Region:        s3.Region,
		AccessKey:     s3.AccessKey,
		SecretKey:     s3.SecretKey,
		Endpoint:      s3.Endpoint,
		Bucket:        s3.Bucket,
		PublicBaseURL: s3.PublicBaseURL,
		PathStyle:     s3.PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}
	return store, nil
}

// caller builds the retry and breaker policy for one outbound collaborator.
func (a *app) caller(name string) *judge.Caller {
	j := a.cfg.Judge
	return judge.NewCaller(name,
		judge.WithMaxAttempts(j.MaxAttempts),
		judge.WithAttemptTimeout(j.AttemptTimeout),
		judge.WithBackoff(j.InitialBackoff, j.MaxBackoff),
		judge.WithBreaker(circuit.New(name, circuit.WithFailureThreshold(j.FailureThreshold))),
		judge.WithLogger(a.logger),
		judge.WithObserver(a.metrics),
	)
}

func (a *app) identityGateway() identity.Gateway {
	c := a.cfg.Identity
	if c.BaseURL == "" {
		a.logger.Warn("identity gateway not configured, using the fake gateway")
		return identity.NewFake()
	}
	return identity.NewHTTPGateway(c.BaseURL, c.APIKey, c.RequestURI, http.DefaultClient, a.caller("identity"))
}

func (a *app) livenessJudge() liveness.Judge {
	c := a.cfg.Liveness
	if c.URL == "" {
		a.logger.Warn("liveness judge not configured, every frame passes")
		return liveness.NewFake()
	}
	return liveness.NewHTTPJudge(c.URL, c.APIKey, http.DefaultClient, a.caller("liveness"))
}

func (a *app) taskLedger() taskledger.Judge {
	opts := []taskledger.Option{taskledger.WithLogger(a.logger)}
	c := a.cfg.TaskLedger
	if c.BaseURL != "" {
		opts = append(opts, taskledger.WithBoard(
			taskledger.NewHTTPBoard(c.BaseURL, c.Community, c.APIKey, http.DefaultClient, a.caller("taskledger")),
		))
	} else {
		a.logger.Warn("task board not configured, widget scores are trusted")
	}
	return taskledger.New(a.profiles, opts...)
}

func (a *app) rateLimiter() *ratelimit.Middleware {
	var store ratelimit.Store = ratelimit.NewInMemoryStore()
	if a.redis != nil {
		store = ratelimit.NewRedisStore(a.redis)
	}
	rl := a.cfg.RateLimit
	return ratelimit.New(store, a.logger,
		ratelimit.WithDisabled(rl.Disabled),
		ratelimit.WithObserver(a.metrics),
		ratelimit.WithLimit(ratelimit.ClassPhoneCode, ratelimit.Limit{Requests: rl.PhoneCode.Requests, Window: rl.PhoneCode.Window}),
		ratelimit.WithLimit(ratelimit.ClassIdentity, ratelimit.Limit{Requests: rl.Identity.Requests, Window: rl.Identity.Window}),
		ratelimit.WithLimit(ratelimit.ClassSignup, ratelimit.Limit{Requests: rl.Signup.Requests, Window: rl.Signup.Window}),
	)
}

type registrar interface {
	Register(r chi.Router)
}

func (a *app) routes(handlers ...registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(a.logger))
	r.Use(request.Logger(a.logger))
	r.Use(httpserver.Instrument(a.metrics))
	r.Use(metadata.ClientMetadata(a.proxies))
	r.Use(requesttime.Middleware)
	r.Use(timeoutExceptStreams(a.cfg.Server.RequestTimeout))

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

// timeoutExceptStreams bounds every request except the SSE endpoints, which
// live until the client goes away.
func timeoutExceptStreams(d time.Duration) func(http.Handler) http.Handler {
	timeout := request.Timeout(d)
	return func(next http.Handler) http.Handler {
		bounded := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/stream") {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	checks := map[string]string{}
	var failed error
	if a.db != nil {
		checks["postgres"] = "ok"
		if err := a.db.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			failed = err
		}
	}
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			failed = err
		}
	}
	if failed != nil {
		a.logger.WarnContext(ctx, "health check failed", "error", failed,
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": checks})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "checks": checks})
}

// run serves HTTP and the background subscribers until ctx ends or one of
// them fails.
func (a *app) run(ctx context.Context) error {
	srv := httpserver.New(a.cfg.Server, a.router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.counter.Run(gctx)
	})
	if a.profileSource != nil {
		g.Go(func() error {
			return a.profileSource.Listen(gctx, a.listener)
		})
	}
	g.Go(func() error {
		a.logger.InfoContext(gctx, "starting clocklayer", "addr", srv.Addr, "environment", a.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// close releases resources in reverse order of acquisition. The audit
// publisher drains before the Kafka client goes away.
func (a *app) close() {
	if a.audit != nil {
		a.audit.Close()
	}
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.listener != nil {
		_ = a.listener.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
