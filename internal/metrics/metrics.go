package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tolar_client"

// Service owns a private registry with the pipeline's counters. A nil
// *Service is valid and records nothing.
type Service struct {
	registry      *prometheus.Registry
	rpcCalls      *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
	pollAttempts  prometheus.Counter
	pollOutcomes  *prometheus.CounterVec
	groupOutcomes *prometheus.CounterVec
}

func New() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "JSON-RPC calls by method and result.",
		}, []string{"method", "result"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "JSON-RPC call latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transaction submissions by mode and result.",
		}, []string{"mode", "result"}),
		pollAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_poll_attempts_total",
			Help:      "Receipt queries issued by pollers.",
		}),
		pollOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_poll_outcomes_total",
			Help:      "Terminal poller states.",
		}, []string{"outcome"}),
		groupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_mutations_total",
			Help:      "Group mutation orchestrations by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}

	s.registry.MustRegister(
		s.rpcCalls,
		s.rpcDuration,
		s.submissions,
		s.pollAttempts,
		s.pollOutcomes,
		s.groupOutcomes,
	)

	return s
}

func (s *Service) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}

	return s.registry
}

// Handler serves the private registry in the Prometheus text format.
func (s *Service) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Service) ObserveRPC(method string, took time.Duration, err error) {
	if s == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}

	s.rpcCalls.WithLabelValues(method, result).Inc()
	s.rpcDuration.WithLabelValues(method).Observe(took.Seconds())
}

func (s *Service) Submission(mode, result string) {
	if s == nil {
		return
	}

	s.submissions.WithLabelValues(mode, result).Inc()
}

func (s *Service) PollAttempt() {
	if s == nil {
		return
	}

	s.pollAttempts.Inc()
}

func (s *Service) PollOutcome(outcome string) {
	if s == nil {
		return
	}

	s.pollOutcomes.WithLabelValues(outcome).Inc()
}

func (s *Service) GroupOutcome(operation, outcome string) {
	if s == nil {
		return
	}

	s.groupOutcomes.WithLabelValues(operation, outcome).Inc()
}

// Submissions exposes the submission counter for tests.
func (s *Service) Submissions() *prometheus.CounterVec {
	return s.submissions
}

// PollAttempts exposes the attempt counter for tests.
func (s *Service) PollAttempts() prometheus.Counter {
	return s.pollAttempts
}

// GroupOutcomes exposes the orchestration counter for tests.
func (s *Service) GroupOutcomes() *prometheus.CounterVec {
	return s.groupOutcomes
}
