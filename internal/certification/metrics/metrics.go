package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks certification issuance and lifecycle outcomes.
type Metrics struct {
	Mints          prometheus.Counter
	MintRejections *prometheus.CounterVec
	Burns          prometheus.Counter
	BurnRejections *prometheus.CounterVec
	FeeFailures    *prometheus.CounterVec
	MintDuration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mints: factory.NewCounter(prometheus.CounterOpts{
			Name: "certreg_certifications_minted_total",
			Help: "Certifications minted",
		}),
		MintRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certreg_mint_rejections_total",
			Help: "Mint attempts rejected, by error code name",
		}, []string{"code"}),
		Burns: factory.NewCounter(prometheus.CounterOpts{
			Name: "certreg_certifications_burned_total",
			Help: "Certifications burned",
		}),
		BurnRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certreg_burn_rejections_total",
			Help: "Burn attempts refused, by reason",
		}, []string{"reason"}),
		FeeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "certreg_fee_failures_total",
			Help: "Payment collaborator failures during mint, by stage",
		}, []string{"stage"}),
		MintDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "certreg_mint_duration_seconds",
			Help:    "Time spent processing mint requests",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncMint() {
	if m != nil {
		m.Mints.Inc()
	}
}

func (m *Metrics) IncMintRejection(code string) {
	if m != nil {
		m.MintRejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncBurn() {
	if m != nil {
		m.Burns.Inc()
	}
}

func (m *Metrics) IncBurnRejection(reason string) {
	if m != nil {
		m.BurnRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncFeeFailure(stage string) {
	if m != nil {
		m.FeeFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ObserveMintDuration(start time.Time) {
	if m != nil {
		m.MintDuration.Observe(time.Since(start).Seconds())
	}
}
