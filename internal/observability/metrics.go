package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	settlementCounter        *prometheus.CounterVec
	insufficientFundsCounter prometheus.Counter
	invariantCounter         *prometheus.CounterVec
	idempotencyCounter       *prometheus.CounterVec
	notificationCounter      *prometheus.CounterVec
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		settlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bid_settlements_total",
			Help: "Bid acceptance settlement outcomes",
		}, []string{"result"})

		insufficientFundsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escrow_insufficient_funds_total",
			Help: "Settlements declined because the employer balance was short",
		})

		invariantCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Reconciliation findings that should always be zero",
		}, []string{"invariant"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Outbox notification delivery outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			settlementCounter,
			insufficientFundsCounter,
			invariantCounter,
			idempotencyCounter,
			notificationCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementSettlement(result string) {
	if settlementCounter == nil {
		return
	}
	settlementCounter.WithLabelValues(result).Inc()
}

func IncrementInsufficientFunds() {
	if insufficientFundsCounter == nil {
		return
	}
	insufficientFundsCounter.Inc()
}

func IncrementInvariantViolation(invariant string) {
	if invariantCounter == nil {
		return
	}
	invariantCounter.WithLabelValues(invariant).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementNotificationDispatch(result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
