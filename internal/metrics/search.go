package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SearchesTotal counts searches by mode: "index" for asynchronous
	// index-backed searches, "fallback" for synchronous filtered lists.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incsearch",
			Name:      "searches_total",
			Help:      "Total number of searches started, by mode",
		},
		[]string{"mode"},
	)

	// UpdatesTotal counts incremental result polls.
	UpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "incsearch",
			Name:      "search_updates_total",
			Help:      "Total number of incremental search polls",
		},
	)

	// RowsTransmittedTotal counts result rows sent to clients.
	RowsTransmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "incsearch",
			Name:      "search_rows_transmitted_total",
			Help:      "Total number of result rows transmitted to clients",
		},
	)

	// ActiveSessions tracks search sessions currently running.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "incsearch",
			Name:      "search_active_sessions",
			Help:      "Number of active search sessions",
		},
	)
)

// RegisterSearchMetrics registers the search collectors with the default
// registry. Called once from main; embedders that never serve /metrics can
// skip it.
func RegisterSearchMetrics() {
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(UpdatesTotal)
	prometheus.MustRegister(RowsTransmittedTotal)
	prometheus.MustRegister(ActiveSessions)
}
