// Package telemetry defines the Prometheus collectors shared by the API
// client, list views, mutations and the statistics view.
package telemetry

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "libradesk"

// Metrics groups every collector. The zero value is not usable; call New.
type Metrics struct {
	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	StaleResponses   *prometheus.CounterVec
	MutationFailures *prometheus.CounterVec
	UnparsedDates    prometheus.Counter
	FallbackLoads    prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which suits tests and one-shot CLI runs.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by endpoint and outcome.",
		}, []string{"endpoint", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request was issued.",
		}, []string{"view"}),
		MutationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mutation",
			Name:      "failures_total",
			Help:      "Mutations rolled back after the backend rejected them.",
		}, []string{"kind"}),
		UnparsedDates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "unparsed_dates_total",
			Help:      "Transaction timestamps no known layout could parse.",
		}),
		FallbackLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "fallback_loads_total",
			Help:      "Statistics loads served from the loans source.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.RequestDuration, m.StaleResponses,
			m.MutationFailures, m.UnparsedDates, m.FallbackLoads)
	}
	return m
}

// Stale returns the stale-response counter for one view.
func (m *Metrics) Stale(view string) prometheus.Counter {
	return m.StaleResponses.WithLabelValues(view)
}

// Failures returns the mutation failure counter for one entity kind.
func (m *Metrics) Failures(kind string) prometheus.Counter {
	return m.MutationFailures.WithLabelValues(kind)
}

// Sample is one counter reading.
type Sample struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64           `json:"value" yaml:"value"`
}

// Counters reads every non-zero counter, sorted by name. The CLI prints
// it when run with --debug.
func (m *Metrics) Counters() []Sample {
	var out []Sample
	collect := func(name string, c prometheus.Collector) {
		ch := make(chan prometheus.Metric, 16)
		go func() {
			c.Collect(ch)
			close(ch)
		}()
		for metric := range ch {
			var pb dto.Metric
			if err := metric.Write(&pb); err != nil || pb.GetCounter() == nil {
				continue
			}
			v := pb.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			s := Sample{Name: name, Value: v}
			for _, lp := range pb.GetLabel() {
				if s.Labels == nil {
					s.Labels = make(map[string]string)
				}
				s.Labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, s)
		}
	}
	collect("api_requests_total", m.Requests)
	collect("view_stale_responses_total", m.StaleResponses)
	collect("mutation_failures_total", m.MutationFailures)
	collect("stats_unparsed_dates_total", m.UnparsedDates)
	collect("stats_fallback_loads_total", m.FallbackLoads)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
