package metrics

import (
	"net/http"
	"time"

	"github.com/aistrack/platform/pkg/enrichment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aistrack"

// Sentence outcomes.
const (
	OutcomePosition  = "position"
	OutcomeStatic    = "static"
	OutcomeUnhandled = "unhandled"
	OutcomeFragment  = "fragment"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
)

// Upsert results.
const (
	UpsertApplied  = "applied"
	UpsertDropped  = "dropped"
	UpsertRejected = "rejected"
)

// Metrics holds the tracker's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	sentences       *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	upserts         *prometheus.CounterVec
	feederConnected *prometheus.GaugeVec
	vessels         *prometheus.GaugeVec
	evictions       prometheus.Counter
	fetches         *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	queries         *prometheus.CounterVec
}

// New registers the collectors on registerer, or on the default registerer
// when it is nil.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_total",
			Help:      "AIS sentences received by feeder and decode outcome.",
		}, []string{"feeder", "outcome"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Sentences rejected by the decoder by reason.",
		}, []string{"reason"}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_upserts_total",
			Help:      "Vessel store upserts by report kind and result.",
		}, []string{"kind", "result"}),
		feederConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feeder_connected",
			Help:      "1 while a feeder connection is established.",
		}, []string{"feeder"}),
		vessels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vessels",
			Help:      "Trackable vessels in the store.",
		}, []string{"scope"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_evictions_total",
			Help:      "Vessels removed by the retention sweep.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_fetches_total",
			Help:      "Completed enrichment fetches by outcome.",
		}, []string{"state"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_fetch_duration_seconds",
			Help:      "Enrichment fetch latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Query API calls by route and status class.",
		}, []string{"route", "status"}),
	}

	registerer.MustRegister(
		m.sentences,
		m.decodeErrors,
		m.upserts,
		m.feederConnected,
		m.vessels,
		m.evictions,
		m.fetches,
		m.fetchDuration,
		m.queries,
	)
	return m
}

// Handler exposes gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSentence(feeder, outcome string) {
	if m == nil {
		return
	}
	m.sentences.WithLabelValues(feeder, outcome).Inc()
}

func (m *Metrics) ObserveDecodeError(reason string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveUpsert(kind, result string) {
	if m == nil {
		return
	}
	m.upserts.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SetFeederConnected(feeder string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.feederConnected.WithLabelValues(feeder).Set(v)
}

func (m *Metrics) SetVesselCounts(total, withStatic int) {
	if m == nil {
		return
	}
	m.vessels.WithLabelValues("all").Set(float64(total))
	m.vessels.WithLabelValues("with_static").Set(float64(withStatic))
}

func (m *Metrics) ObserveEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// ObserveFetch satisfies enrichment.Observer.
func (m *Metrics) ObserveFetch(state enrichment.FetchState, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(string(state)).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveQuery(route string, status int) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
