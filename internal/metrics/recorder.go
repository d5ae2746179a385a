package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

// Recorder exports pool activity and ledger levels to Prometheus.
type Recorder struct {
	events      *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	assets      *prometheus.GaugeVec
	liabilities *prometheus.GaugeVec
	fees        *prometheus.GaugeVec
	pps         *prometheus.GaugeVec
	ratio       *prometheus.GaugeVec
	sequence    *prometheus.GaugeVec
}

// NewRecorder builds a recorder and registers it on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_events_total",
			Help: "Committed pool events by kind.",
		}, []string{"pool", "event"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_operations_rejected_total",
			Help: "Operations rejected by the pool, by operation.",
		}, []string{"op"}),
		assets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_assets",
			Help: "Assets held for liquidity providers, in asset units.",
		}, []string{"pool"}),
		liabilities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_liabilities",
			Help: "Amount owed to liquidity providers, in asset units.",
		}, []string{"pool"}),
		fees: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_protocol_fees",
			Help: "Uncollected protocol fees, in asset units.",
		}, []string{"pool"}),
		pps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_price_per_share",
			Help: "Liabilities per LP share.",
		}, []string{"pool"}),
		ratio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_collateralization_ratio",
			Help: "Assets divided by liabilities.",
		}, []string{"pool"}),
		sequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_event_sequence",
			Help: "Sequence number of the last committed event.",
		}, []string{"pool"}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.events, r.rejected, r.assets, r.liabilities, r.fees, r.pps, r.ratio, r.sequence} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// PutEventBatch counts committed events.
func (r *Recorder) PutEventBatch(_ context.Context, events []model.PoolEvent) error {
	if r == nil {
		return nil
	}
	for _, ev := range events {
		r.events.WithLabelValues(ev.Pool, ev.EventName).Inc()
	}
	return nil
}

// ObserveRejected counts an operation the pool refused.
func (r *Recorder) ObserveRejected(op string) {
	if r == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	r.rejected.WithLabelValues(op).Inc()
}

// ObserveSnapshot sets the ledger gauges from a snapshot.
func (r *Recorder) ObserveSnapshot(snap model.PoolSnapshot) {
	if r == nil {
		return
	}
	r.assets.WithLabelValues(snap.Pool).Set(units(snap.Assets, snap.Decimals))
	r.liabilities.WithLabelValues(snap.Pool).Set(units(snap.Liabilities, snap.Decimals))
	r.fees.WithLabelValues(snap.Pool).Set(units(snap.ProtocolFees, snap.Decimals))
	r.pps.WithLabelValues(snap.Pool).Set(units(snap.PricePerShare, wad.Decimals))
	r.ratio.WithLabelValues(snap.Pool).Set(units(snap.CollateralizationRatio, wad.Decimals))
	r.sequence.WithLabelValues(snap.Pool).Set(float64(snap.Sequence))
}

func units(value string, decimals uint8) float64 {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	return d.Shift(-int32(decimals)).InexactFloat64()
}
