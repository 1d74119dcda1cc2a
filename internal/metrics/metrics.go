// Package metrics exposes cache events as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the cache counters and implements cache.Observer.
type Collector struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Evictions   prometheus.Counter
	Expirations prometheus.Counter

	registry *prometheus.Registry
}

// NewCollector registers the counters on a fresh registry under namespace.
// size, when non-nil, backs an entries gauge read at scrape time.
func NewCollector(namespace string, size func() int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Total number of lookups that found a live entry",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Total number of lookups that found nothing",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of entries evicted to respect capacity",
		}),
		Expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expirations_total",
			Help:      "Total number of entries removed after their TTL",
		}),
		registry: reg,
	}

	reg.MustRegister(c.Hits, c.Misses, c.Evictions, c.Expirations)
	if size != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Number of entries currently stored",
		}, func() float64 { return float64(size()) }))
	}

	return c
}

func (c *Collector) Hit()    { c.Hits.Inc() }
func (c *Collector) Miss()   { c.Misses.Inc() }
func (c *Collector) Evict()  { c.Evictions.Inc() }
func (c *Collector) Expire() { c.Expirations.Inc() }

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
