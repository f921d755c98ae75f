package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EvaluationMetrics tracks promotion evaluation outcomes and ledger commits.
type EvaluationMetrics struct {
	promotionsApplied  *prometheus.CounterVec
	promotionsRejected *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	ledgerCommits      *prometheus.CounterVec
	expiryTransitions  prometheus.Counter
}

var (
	evaluationMetricsOnce sync.Once
	evaluationMetrics     *EvaluationMetrics
)

func Evaluation() *EvaluationMetrics {
	return EvaluationWithConfig(Config{})
}

func EvaluationWithConfig(cfg Config) *EvaluationMetrics {
	evaluationMetricsOnce.Do(func() {
		evaluationMetrics = newEvaluationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return evaluationMetrics
}

func ResetEvaluationMetricsForTest() {
	evaluationMetricsOnce = sync.Once{}
	evaluationMetrics = nil
}

func newEvaluationMetrics(registerer prometheus.Registerer, cfg Config) *EvaluationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "promokit"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	promotionsApplied := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promokit_promotions_applied_total",
			Help:        "Promotions successfully applied to orders.",
			ConstLabels: constLabels,
		},
		[]string{"promotion_type"},
	)

	promotionsRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promokit_promotions_rejected_total",
			Help:        "Promotions dropped from an order, by rejection reason.",
			ConstLabels: constLabels,
		},
		[]string{"reason"},
	)

	evaluationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "promokit_evaluation_duration_seconds",
			Help:        "Time spent evaluating an order against the active catalog.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			ConstLabels: constLabels,
		},
		[]string{"result"}, // applied | empty | error
	)

	ledgerCommits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promokit_ledger_commits_total",
			Help:        "Atomic ledger commit attempts by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"}, // applied | denied | reversed | failed
	)

	expiryTransitions := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "promokit_promotions_finished_total",
			Help:        "Promotions flipped to Finished by the expiry worker.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		promotionsApplied,
		promotionsRejected,
		evaluationDuration,
		ledgerCommits,
		expiryTransitions,
	)

	return &EvaluationMetrics{
		promotionsApplied:  promotionsApplied,
		promotionsRejected: promotionsRejected,
		evaluationDuration: evaluationDuration,
		ledgerCommits:      ledgerCommits,
		expiryTransitions:  expiryTransitions,
	}
}

func (m *EvaluationMetrics) IncApplied(promotionType string) {
	if m == nil {
		return
	}
	m.promotionsApplied.WithLabelValues(promotionType).Inc()
}

func (m *EvaluationMetrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.promotionsRejected.WithLabelValues(reason).Inc()
}

func (m *EvaluationMetrics) ObserveEvaluation(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluationDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *EvaluationMetrics) IncLedgerCommit(outcome string) {
	if m == nil {
		return
	}
	m.ledgerCommits.WithLabelValues(outcome).Inc()
}

func (m *EvaluationMetrics) IncFinished() {
	if m == nil {
		return
	}
	m.expiryTransitions.Inc()
}
