// Package metrics bundles the Prometheus collectors for the import
// service on a dedicated registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry         *prometheus.Registry
	ImportsTotal     *prometheus.CounterVec
	ImportDuration   prometheus.Histogram
	ProductsImported prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	PagesScraped     prometheus.Counter
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	imports := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_requests_total",
			Help: "Total import requests by retailer and outcome.",
		},
		[]string{"retailer", "outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "import_duration_seconds",
			Help:    "Wall-clock duration of the authenticate-and-extract sequence.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	products := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "products_imported_total",
			Help: "Total canonical products returned to callers.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_errors_total",
			Help: "Total classified scrape errors by kind.",
		},
		[]string{"kind"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pages_scraped_total",
			Help: "Total order-history pages walked.",
		},
	)

	registry.MustRegister(imports, duration, products, errorsTotal, pages)

	return &Metrics{
		Registry:         registry,
		ImportsTotal:     imports,
		ImportDuration:   duration,
		ProductsImported: products,
		ErrorsTotal:      errorsTotal,
		PagesScraped:     pages,
	}
}

// ObserveImport records one finished import request.
func (m *Metrics) ObserveImport(retailer, outcome string, count int, elapsed time.Duration) {
	m.ImportsTotal.WithLabelValues(retailer, outcome).Inc()
	m.ImportDuration.Observe(elapsed.Seconds())
	m.ProductsImported.Add(float64(count))
}
