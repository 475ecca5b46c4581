package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type ReferralMetrics struct {
	registrations *prometheus.CounterVec
	distributions *prometheus.CounterVec
	payouts       *prometheus.CounterVec
	forfeits      *prometheus.CounterVec
	residual      prometheus.Gauge
}

var (
	referralOnce     sync.Once
	referralRegistry *ReferralMetrics
)

// Referral returns the lazily registered referral engine metrics.
func Referral() *ReferralMetrics {
	referralOnce.Do(func() {
		referralRegistry = &ReferralMetrics{
			registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "referral_registrations_total",
				Help: "Referrer registrations segmented by outcome.",
			}, []string{"outcome"}),
			distributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "referral_distributions_total",
				Help: "Reward distributions segmented by outcome.",
			}, []string{"outcome"}),
			payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "referral_payouts_total",
				Help: "Shares credited to referrers by level.",
			}, []string{"level"}),
			forfeits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "referral_forfeits_total",
				Help: "Shares forfeited because the referrer was inactive, by level.",
			}, []string{"level"}),
			residual: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "referral_last_residual",
				Help: "Residual retained by the referee in the most recent distribution.",
			}),
		}
		prometheus.MustRegister(
			referralRegistry.registrations,
			referralRegistry.distributions,
			referralRegistry.payouts,
			referralRegistry.forfeits,
			referralRegistry.residual,
		)
	})
	return referralRegistry
}

func (m *ReferralMetrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *ReferralMetrics) ObserveDistribution(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.distributions.WithLabelValues(outcome).Inc()
}

func (m *ReferralMetrics) ObservePayout(level int) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(strconv.Itoa(level)).Inc()
}

func (m *ReferralMetrics) ObserveForfeit(level int) {
	if m == nil {
		return
	}
	m.forfeits.WithLabelValues(strconv.Itoa(level)).Inc()
}

// SetResidual records the residual as a float; precision loss above 2^53 is
// acceptable for dashboards.
func (m *ReferralMetrics) SetResidual(value float64) {
	if m == nil {
		return
	}
	m.residual.Set(value)
}
