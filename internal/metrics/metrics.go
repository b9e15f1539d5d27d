// Package metrics exposes engine activity and catalog state to Prometheus.
//
// Observer counts operation outcomes as they happen; Collector reads the
// catalog counters at scrape time, so the gauges always agree with the
// engine without being pushed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/genlock/internal/engine"
	"github.com/roach88/genlock/internal/ir"
)

const namespace = "genlock"

// Observer implements engine.Observer with Prometheus counters.
type Observer struct {
	applied  *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver registers the operation counters with reg.
func NewObserver(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)
	return &Observer{
		// Labels: op
		applied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "applied_total",
			Help:      "Operations that changed state and were journaled",
		}, []string{"op"}),
		// Labels: op, category (authorization, validation, state, economic, sequencing)
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rejected_total",
			Help:      "Operations rejected by a policy check",
		}, []string{"op", "category"}),
	}
}

// Applied implements engine.Observer.
func (o *Observer) Applied(op ir.Op) {
	o.applied.WithLabelValues(string(op)).Inc()
}

// Rejected implements engine.Observer.
func (o *Observer) Rejected(op ir.Op, category engine.Category) {
	o.rejected.WithLabelValues(string(op), string(category)).Inc()
}

// CatalogSource is the read side of the engine the collector needs.
type CatalogSource interface {
	Generations() []ir.Generation
	AssetCount() int
	Seq() int64
}

// Collector reports per-generation counters at scrape time.
type Collector struct {
	src CatalogSource

	unlocks     *prometheus.Desc
	activations *prometheus.Desc
	enabled     *prometheus.Desc
	assets      *prometheus.Desc
	seq         *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over src. Register it with
// prometheus.Registerer.Register.
func NewCollector(src CatalogSource) *Collector {
	labels := []string{"generation", "name"}
	return &Collector{
		src: src,
		unlocks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "generation", "unlocks"),
			"Live assets holding the generation",
			labels, nil),
		activations: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "generation", "activations"),
			"Live assets with the generation active",
			labels, nil),
		enabled: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "generation", "enabled"),
			"1 if the generation is enabled",
			labels, nil),
		assets: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "assets"),
			"Live assets in the ledger",
			nil, nil),
		seq: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "journal_seq"),
			"Sequence number of the last applied operation",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.unlocks
	ch <- c.activations
	ch <- c.enabled
	ch <- c.assets
	ch <- c.seq
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, g := range c.src.Generations() {
		id := g.ID.String()
		ch <- prometheus.MustNewConstMetric(c.unlocks, prometheus.GaugeValue, float64(g.Unlocks), id, g.Name)
		ch <- prometheus.MustNewConstMetric(c.activations, prometheus.GaugeValue, float64(g.Activations), id, g.Name)
		enabled := 0.0
		if g.Enabled {
			enabled = 1
		}
		ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, enabled, id, g.Name)
	}
	ch <- prometheus.MustNewConstMetric(c.assets, prometheus.GaugeValue, float64(c.src.AssetCount()))
	ch <- prometheus.MustNewConstMetric(c.seq, prometheus.CounterValue, float64(c.src.Seq()))
}
