package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	StepTransitions   *prometheus.CounterVec
	IdentityLinks     *prometheus.CounterVec
	UsersCreated      prometheus.Counter
	Admissions        prometheus.Counter
	JudgeCallDuration *prometheus.HistogramVec
	BreakerChanges    *prometheus.CounterVec
	BreakerOpen       *prometheus.GaugeVec
	MessagesSent      prometheus.Counter
	RateLimited       *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clocklayer_signup_step_total",
			Help: "Signup operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		IdentityLinks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clocklayer_identity_links_total",
			Help: "Identity links by kind (new, existing, returning)",
		}, []string{"kind"}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "clocklayer_users_created_total",
			Help: "Total number of user records created",
		}),
		Admissions: f.NewCounter(prometheus.CounterOpts{
			Name: "clocklayer_waitlist_admissions_total",
			Help: "Total number of users admitted through the task gate",
		}),
		JudgeCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clocklayer_judge_call_duration_seconds",
			Help:    "Duration of calls to external collaborators, retries included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"collaborator", "outcome"}),
		BreakerChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clocklayer_circuit_breaker_changes_total",
			Help: "Circuit breaker state changes by collaborator and new state",
		}, []string{"collaborator", "state"}),
		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clocklayer_circuit_breaker_open",
			Help: "1 while the collaborator's circuit breaker is open",
		}, []string{"collaborator"}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "clocklayer_broadcast_messages_total",
			Help: "Total number of broadcast messages sent",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clocklayer_rate_limited_total",
			Help: "Requests rejected by rate limiting, by endpoint class",
		}, []string{"class"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clocklayer_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveStep records the outcome of a signup operation.
func (m *Metrics) ObserveStep(operation, outcome string) {
	m.StepTransitions.WithLabelValues(operation, outcome).Inc()
}

// IncrementIdentityLinks counts a link of the given kind.
func (m *Metrics) IncrementIdentityLinks(kind string) {
	m.IdentityLinks.WithLabelValues(kind).Inc()
}

// IncrementUsersCreated increments the users created counter by 1
func (m *Metrics) IncrementUsersCreated() {
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementAdmissions() {
	m.Admissions.Inc()
}

func (m *Metrics) IncrementMessagesSent() {
	m.MessagesSent.Inc()
}

// ObserveJudgeCall implements judge.Observer.
func (m *Metrics) ObserveJudgeCall(name, outcome string, d time.Duration) {
	m.JudgeCallDuration.WithLabelValues(name, outcome).Observe(d.Seconds())
}

// ObserveBreakerChange implements judge.Observer.
func (m *Metrics) ObserveBreakerChange(name string, open bool) {
	state, v := "closed", 0.0
	if open {
		state, v = "open", 1.0
	}
	m.BreakerChanges.WithLabelValues(name, state).Inc()
	m.BreakerOpen.WithLabelValues(name).Set(v)
}

// ObserveRateLimited implements ratelimit.Observer.
func (m *Metrics) ObserveRateLimited(class string) {
	m.RateLimited.WithLabelValues(class).Inc()
}

// ObserveHTTP records a request served by route.
func (m *Metrics) ObserveHTTP(method, route, status string, start time.Time) {
	m.HTTPDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}
