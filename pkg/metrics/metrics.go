package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rejection reasons used as label values.
const (
	ReasonBudgetExhausted = "budget_exhausted"
	ReasonBudgetPreflight = "budget_preflight"
	ReasonValidation      = "validation"
)

// Metrics contains the Prometheus collectors for image generation and budget
// tracking. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	generations      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	providerDuration prometheus.Histogram
	promptTokens     prometheus.Histogram
	spend            prometheus.Gauge
	usage            prometheus.Gauge
	ledgerErrors     *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		generations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegen_generations_total",
				Help: "Total number of successful image generations",
			},
			[]string{"quality", "size"},
		),

		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegen_rejections_total",
				Help: "Total number of generation requests rejected before reaching the provider",
			},
			[]string{"reason"},
		),

		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegen_provider_errors_total",
				Help: "Total number of failed provider calls",
			},
			[]string{"code"},
		),

		providerDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imagegen_provider_duration_seconds",
				Help:    "Duration of image provider calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to 64s
			},
		),

		promptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imagegen_prompt_tokens",
				Help:    "Approximate prompt length in cl100k_base tokens per accepted generation",
				Buckets: prometheus.ExponentialBuckets(8, 2, 8), // 8 to 1024
			},
		),

		spend: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "imagegen_budget_spent_usd",
				Help: "Spend recorded for the current month in USD",
			},
		),

		usage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "imagegen_budget_usage_percentage",
				Help: "Current month spend as a percentage of the monthly limit",
			},
		),

		ledgerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagegen_ledger_errors_total",
				Help: "Total number of cost record read or write failures",
			},
			[]string{"operation"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration records a successful, charged generation.
func (m *Metrics) RecordGeneration(quality, size string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(quality, size).Inc()
}

// RecordRejection records a request rejected before the provider call.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordProviderCall observes a provider round-trip. code is empty on success.
func (m *Metrics) RecordProviderCall(d time.Duration, code string) {
	if m == nil {
		return
	}
	m.providerDuration.Observe(d.Seconds())
	if code != "" {
		m.providerErrors.WithLabelValues(code).Inc()
	}
}

// RecordPromptTokens observes the approximate token length of a prompt.
func (m *Metrics) RecordPromptTokens(n int64) {
	if m == nil {
		return
	}
	m.promptTokens.Observe(float64(n))
}

// UpdateBudget sets the spend and usage gauges.
func (m *Metrics) UpdateBudget(spent, percentage float64) {
	if m == nil {
		return
	}
	m.spend.Set(spent)
	m.usage.Set(percentage)
}

// RecordLedgerError counts a failed ledger read or write.
func (m *Metrics) RecordLedgerError(operation string) {
	if m == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(operation).Inc()
}
