package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type StatsSnapshot struct {
	PagesFetched      uint64            `json:"pages_fetched"`
	ErrorsTotal       uint64            `json:"errors_total"`
	FetchSecondsAvg   float64           `json:"fetch_seconds_avg"`
	Runs              map[string]uint64 `json:"runs,omitempty"`
	Deliveries        map[string]uint64 `json:"deliveries,omitempty"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
}

var (
	Registry = prometheus.NewRegistry()

	pagesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pagewatch_pages_fetched_total",
		Help: "Pages fetched successfully.",
	})
	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagewatch_fetch_duration_seconds",
		Help:    "Duration of page fetches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagewatch_runs_total",
		Help: "Completed runs by outcome.",
	}, []string{"outcome"})
	deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagewatch_deliveries_total",
		Help: "Notification deliveries by result.",
	}, []string{"result"})
	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pagewatch_errors_total",
		Help: "Errors by type and component.",
	}, []string{"type", "component"})
)

func init() {
	Registry.MustRegister(pagesFetched, fetchDuration, runs, deliveries, errorsTotal)
}

func IncPagesFetched() {
	pagesFetched.Inc()
}

func ObserveFetchDuration(seconds float64) {
	if seconds <= 0 {
		return
	}
	fetchDuration.Observe(seconds)
}

func IncRun(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	runs.WithLabelValues(outcome).Inc()
}

func IncDelivery(ok bool) {
	result := "failed"
	if ok {
		result = "delivered"
	}
	deliveries.WithLabelValues(result).Inc()
}

func IncError(errType, component string) {
	if errType == "" {
		errType = "unknown"
	}
	if component == "" {
		component = "unknown"
	}
	errorsTotal.WithLabelValues(errType, component).Inc()
}

// Snapshot gathers the registry into a flat summary suitable for a log line.
func Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Runs:              map[string]uint64{},
		Deliveries:        map[string]uint64{},
		ErrorsByType:      map[string]uint64{},
		ErrorsByComponent: map[string]uint64{},
	}

	families, err := Registry.Gather()
	if err != nil {
		return snap
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch mf.GetName() {
			case "pagewatch_pages_fetched_total":
				snap.PagesFetched = uint64(m.GetCounter().GetValue())
			case "pagewatch_fetch_duration_seconds":
				h := m.GetHistogram()
				if h.GetSampleCount() > 0 {
					snap.FetchSecondsAvg = h.GetSampleSum() / float64(h.GetSampleCount())
				}
			case "pagewatch_runs_total":
				snap.Runs[label(m, "outcome")] += uint64(m.GetCounter().GetValue())
			case "pagewatch_deliveries_total":
				snap.Deliveries[label(m, "result")] += uint64(m.GetCounter().GetValue())
			case "pagewatch_errors_total":
				v := uint64(m.GetCounter().GetValue())
				snap.ErrorsTotal += v
				snap.ErrorsByType[label(m, "type")] += v
				snap.ErrorsByComponent[label(m, "component")] += v
			}
		}
	}
	return snap
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
