package pool

import "github.com/prometheus/client_golang/prometheus"

var (
	idleConnsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webhttp_pool_idle_connections",
		Help: "Idle connections currently held per pool key.",
	}, []string{"pool_key"})

	activeConnsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webhttp_pool_active_connections",
		Help: "Active (checked-out) connections per pool key.",
	}, []string{"pool_key"})

	totalPoolsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webhttp_pool_total_pools",
		Help: "Number of distinct host pool keys currently tracked.",
	})
)

func init() {
	prometheus.MustRegister(idleConnsGauge, activeConnsGauge, totalPoolsGauge)
}

// observeStats publishes a Stats snapshot to the package's Prometheus
// collectors. Per-key gauges are reset and rewritten each call so pool keys
// that drop to zero connections stop being reported as stale data.
func observeStats(stats Stats) {
	idleConnsGauge.Reset()
	activeConnsGauge.Reset()
	for key, hs := range stats.PerHost {
		idleConnsGauge.WithLabelValues(key).Set(float64(hs.Idle))
		activeConnsGauge.WithLabelValues(key).Set(float64(hs.Active))
	}
	totalPoolsGauge.Set(float64(stats.TotalPools))
}
