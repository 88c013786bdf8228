// Package metrics exposes Prometheus collectors for the indexer service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal counts page fetches by the path that served them.
	FetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrapsama_fetches_total",
		Help: "Total page fetches, labeled by serving path (bypass or direct).",
	}, []string{"path"})

	// BypassFallbacksTotal counts bypass failures that were recovered by a direct request.
	BypassFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapsama_bypass_fallbacks_total",
		Help: "Total bypass failures demoted to a direct-request fallback.",
	})

	// SessionsCreatedTotal counts bypass sessions created.
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrapsama_solverr_sessions_created_total",
		Help: "Total bypass-service sessions created.",
	})

	// RowsSavedTotal counts upserted rows by entity and outcome.
	RowsSavedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrapsama_rows_saved_total",
		Help: "Total rows upserted, labeled by entity and outcome (new or updated).",
	}, []string{"entity", "outcome"})

	// IndexErrorsTotal counts errors encountered while indexing.
	IndexErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrapsama_index_errors_total",
		Help: "Total indexing errors, labeled by stage.",
	}, []string{"stage"})
)

// SaveOutcome maps an isNew flag to the rows_saved outcome label.
func SaveOutcome(isNew bool) string {
	if isNew {
		return "new"
	}
	return "updated"
}
