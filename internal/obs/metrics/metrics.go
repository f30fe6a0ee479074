// Package metrics provides a Prometheus-backed implementation of obs.Metrics.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"ragengine/internal/obs"
)

// Prometheus adapts a prometheus.Registerer to obs.Metrics, lazily creating
// a CounterVec/HistogramVec per (name, sorted label keys) pair the first
// time it is observed — the same instrument-caching shape as an
// OpenTelemetry meter adapter, just against a different backend.
type Prometheus struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// New constructs a Prometheus-backed metrics sink registered against reg.
// Pass prometheus.DefaultRegisterer to export via the default /metrics
// handler.
func New(reg prometheus.Registerer) *Prometheus {
	return &Prometheus{
		reg:        reg,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

var _ obs.Metrics = (*Prometheus)(nil)

func (p *Prometheus) IncCounter(name string, labels map[string]string) {
	keys, vals := split(labels)
	c := p.counterFor(name, keys)
	c.WithLabelValues(vals...).Inc()
}

func (p *Prometheus) ObserveHistogram(name string, value float64, labels map[string]string) {
	keys, vals := split(labels)
	h := p.histogramFor(name, keys)
	h.WithLabelValues(vals...).Observe(value)
}

func (p *Prometheus) counterFor(name string, keys []string) *prometheus.CounterVec {
	cacheKey := name + "|" + strings.Join(keys, ",")
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[cacheKey]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: sanitize(name), Help: name}, keys)
	_ = p.reg.Register(c)
	p.counters[cacheKey] = c
	return c
}

func (p *Prometheus) histogramFor(name string, keys []string) *prometheus.HistogramVec {
	cacheKey := name + "|" + strings.Join(keys, ",")
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[cacheKey]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: sanitize(name), Help: name}, keys)
	_ = p.reg.Register(h)
	p.histograms[cacheKey] = h
	return h
}

func split(labels map[string]string) (keys, vals []string) {
	keys = make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals = make([]string, len(keys))
	for i, k := range keys {
		vals[i] = labels[k]
	}
	return keys, vals
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, name)
}

// Mock is an in-memory metrics sink for tests, grounded on the teacher's
// internal/rag/obs.MockMetrics.
type Mock struct {
	mu       sync.Mutex
	Counters map[string]int
	Hists    map[string][]float64
}

func NewMock() *Mock {
	return &Mock{Counters: map[string]int{}, Hists: map[string][]float64{}}
}

func (m *Mock) IncCounter(name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *Mock) ObserveHistogram(name string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Hists[name] = append(m.Hists[name], value)
}
