package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the ledger, challenge and
// authentication paths. All methods are safe on a nil receiver.
type Metrics struct {
	BlocksAppended    prometheus.Counter
	PowHashes         prometheus.Counter
	AdmissionRefusals prometheus.Counter
	TokensIssued      prometheus.Counter
	AuthOutcomes      *prometheus.CounterVec
	AuthDuration      prometheus.Histogram
	ValidatorSetSize  prometheus.Gauge
}

// New creates and registers all metrics on reg. A nil reg registers on the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		BlocksAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "shardauth_ledger_blocks_appended_total",
			Help: "Total number of identity blocks admitted to the ledger",
		}),
		PowHashes: f.NewCounter(prometheus.CounterOpts{
			Name: "shardauth_ledger_pow_hashes_total",
			Help: "Total number of digests computed while mining blocks",
		}),
		AdmissionRefusals: f.NewCounter(prometheus.CounterOpts{
			Name: "shardauth_ledger_admission_refusals_total",
			Help: "Total number of blocks refused by the sampled validators",
		}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "shardauth_challenge_tokens_issued_total",
			Help: "Total number of challenge tokens issued",
		}),
		AuthOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shardauth_auth_outcomes_total",
			Help: "Authentication outcomes by result",
		}, []string{"result"}), // result: "accepted", "rejected", "error"
		AuthDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "shardauth_auth_duration_seconds",
			Help:    "Duration of authenticate calls including the consensus vote",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ValidatorSetSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "shardauth_validator_set_size",
			Help: "Size of the validator set seen by the last vote",
		}),
	}
}

// IncrementBlocksAppended records an admitted block.
func (m *Metrics) IncrementBlocksAppended() {
	if m != nil {
		m.BlocksAppended.Inc()
	}
}

// AddPowHashes records n digests computed by the miner.
func (m *Metrics) AddPowHashes(n uint64) {
	if m != nil {
		m.PowHashes.Add(float64(n))
	}
}

// IncrementAdmissionRefusals records a block refused by validators.
func (m *Metrics) IncrementAdmissionRefusals() {
	if m != nil {
		m.AdmissionRefusals.Inc()
	}
}

// IncrementTokensIssued records an issued challenge token.
func (m *Metrics) IncrementTokensIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

// IncrementAuthOutcome records an authentication result.
func (m *Metrics) IncrementAuthOutcome(result string) {
	if m != nil {
		m.AuthOutcomes.WithLabelValues(result).Inc()
	}
}

// ObserveAuth records the duration of an authentication.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveAuth(start time.Time) {
	if m != nil {
		m.AuthDuration.Observe(time.Since(start).Seconds())
	}
}

// SetValidatorSetSize records the number of validators that took part in a vote.
func (m *Metrics) SetValidatorSetSize(n int) {
	if m != nil {
		m.ValidatorSetSize.Set(float64(n))
	}
}
