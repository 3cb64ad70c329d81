// Package metrics mirrors the teacher's metrics.Scope: a thin,
// prefix-scoped wrapper that lets every component bump counters and
// gauges without taking a direct dependency on the Prometheus client
// library's registration machinery. Grounded on metrics/metrics.go and
// cmd/shell.go's StatsAndLogging in the teacher repo.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Scope is a narrow facade over a set of Prometheus collectors, keyed
// by a dotted name the way the teacher's statsd-backed Scope was.
type Scope struct {
	reg        prometheus.Registerer
	namespace  string
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewScope builds a Scope backed by reg (normally
// prometheus.DefaultRegisterer, via cmd's wiring).
func NewScope(reg prometheus.Registerer, namespace string) *Scope {
	return &Scope{
		reg:        reg,
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (s *Scope) counter(name string, labels []string) *prometheus.CounterVec {
	if c, ok := s.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: s.namespace,
		Name:      name,
	}, labels)
	_ = s.reg.Register(c)
	s.counters[name] = c
	return c
}

func (s *Scope) gauge(name string, labels []string) *prometheus.GaugeVec {
	if g, ok := s.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: s.namespace,
		Name:      name,
	}, labels)
	_ = s.reg.Register(g)
	s.gauges[name] = g
	return g
}

func (s *Scope) histogram(name string, labels []string) *prometheus.HistogramVec {
	if h, ok := s.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: s.namespace,
		Name:      name,
		Buckets:   prometheus.DefBuckets,
	}, labels)
	_ = s.reg.Register(h)
	s.histograms[name] = h
	return h
}

// Inc increments a named counter with the given label values.
func (s *Scope) Inc(name string, labelValues ...string) {
	s.counter(name, labelNames(len(labelValues))).WithLabelValues(labelValues...).Inc()
}

// Gauge sets a named gauge to val.
func (s *Scope) Gauge(name string, val float64, labelValues ...string) {
	s.gauge(name, labelNames(len(labelValues))).WithLabelValues(labelValues...).Set(val)
}

// Timing observes a duration (in seconds) against a named histogram.
func (s *Scope) Timing(name string, seconds float64, labelValues ...string) {
	s.histogram(name, labelNames(len(labelValues))).WithLabelValues(labelValues...).Observe(seconds)
}

func labelNames(n int) []string {
	if n == 0 {
		return nil
	}
	names := make([]string, n)
	for i := range names {
		names[i] = labelName(i)
	}
	return names
}

func labelName(i int) string {
	return "label" + string(rune('a'+i))
}
