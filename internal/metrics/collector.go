// Package metrics exposes a Prometheus Collector over the digipeater and
// QoS counters (spec.md section 6's getMetrics() observability surface),
// grounded on the lazy-pull shape of the retrieved conniver/sockstats
// TCPInfoCollector: Collect() walks live subsystem state at scrape time
// rather than mirroring it into pre-registered gauges on every update.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/na4wx/nexdigi/internal/digipeater"
	"github.com/na4wx/nexdigi/internal/qos"
)

var (
	digipeatsDesc   = prometheus.NewDesc("nexdigi_digipeats_total", "Frames successfully digipeated.", nil, nil)
	duplicatesDesc  = prometheus.NewDesc("nexdigi_duplicates_suppressed_total", "Frames dropped as duplicates.", nil, nil)
	wideBlockedDesc = prometheus.NewDesc("nexdigi_wide_blocked_total", "WIDE1 frames blocked on a wide-role channel.", nil, nil)
	maxWideDesc     = prometheus.NewDesc("nexdigi_max_wide_blocked_total", "Frames blocked for exceeding maxWideN.", nil, nil)
	txFailedDesc    = prometheus.NewDesc("nexdigi_transmit_failed_total", "Digipeated frames that failed to transmit.", nil, nil)
	stationsDesc    = prometheus.NewDesc("nexdigi_unique_stations", "Distinct source stations heard.", nil, nil)
	seenSizeDesc    = prometheus.NewDesc("nexdigi_seen_cache_size", "Current seen-cache entry count.", nil, nil)

	qosQueuedDesc    = prometheus.NewDesc("nexdigi_qos_queue_depth", "Current queue depth per priority class.", []string{"priority"}, nil)
	qosProcessedDesc = prometheus.NewDesc("nexdigi_qos_processed_total", "Packets serviced per priority class.", []string{"priority"}, nil)
	qosDroppedDesc   = prometheus.NewDesc("nexdigi_qos_dropped_total", "Packets dropped per priority class on overflow.", []string{"priority"}, nil)
	qosAvgWaitDesc   = prometheus.NewDesc("nexdigi_qos_avg_wait_ms", "Rolling average queue wait time per priority class.", []string{"priority"}, nil)
)

// Collector implements prometheus.Collector, pulling a fresh snapshot from
// each wired subsystem on every scrape.
type Collector struct {
	digipeater *digipeater.Engine
	scheduler  *qos.Scheduler
}

// New constructs a Collector. Either source may be nil, in which case its
// metrics are simply omitted from the scrape.
func New(engine *digipeater.Engine, scheduler *qos.Scheduler) *Collector {
	return &Collector{digipeater: engine, scheduler: scheduler}
}

// Describe sends every metric's Desc down descs, satisfying
// prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- digipeatsDesc
	descs <- duplicatesDesc
	descs <- wideBlockedDesc
	descs <- maxWideDesc
	descs <- txFailedDesc
	descs <- stationsDesc
	descs <- seenSizeDesc
	descs <- qosQueuedDesc
	descs <- qosProcessedDesc
	descs <- qosDroppedDesc
	descs <- qosAvgWaitDesc
}

// Collect pulls live counters and emits them as constant metrics.
func (c *Collector) Collect(out chan<- prometheus.Metric) {
	if c.digipeater != nil {
		snap := c.digipeater.Metrics()
		out <- prometheus.MustNewConstMetric(digipeatsDesc, prometheus.CounterValue, float64(snap.Digipeats))
		out <- prometheus.MustNewConstMetric(duplicatesDesc, prometheus.CounterValue, float64(snap.DuplicatesSuppressed))
		out <- prometheus.MustNewConstMetric(wideBlockedDesc, prometheus.CounterValue, float64(snap.ServicedWideBlocked))
		out <- prometheus.MustNewConstMetric(maxWideDesc, prometheus.CounterValue, float64(snap.MaxWideBlocked))
		out <- prometheus.MustNewConstMetric(txFailedDesc, prometheus.CounterValue, float64(snap.TransmitFailed))
		out <- prometheus.MustNewConstMetric(stationsDesc, prometheus.GaugeValue, float64(snap.UniqueStations))
		out <- prometheus.MustNewConstMetric(seenSizeDesc, prometheus.GaugeValue, float64(c.digipeater.SeenCacheSize()))
	}

	if c.scheduler != nil {
		for pr, counters := range c.scheduler.Counters() {
			name := pr.String()
			out <- prometheus.MustNewConstMetric(qosQueuedDesc, prometheus.GaugeValue, float64(counters.Queued), name)
			out <- prometheus.MustNewConstMetric(qosProcessedDesc, prometheus.CounterValue, float64(counters.Processed), name)
			out <- prometheus.MustNewConstMetric(qosDroppedDesc, prometheus.CounterValue, float64(counters.Dropped), name)
			out <- prometheus.MustNewConstMetric(qosAvgWaitDesc, prometheus.GaugeValue, counters.AvgWaitMS, name)
		}
	}
}
