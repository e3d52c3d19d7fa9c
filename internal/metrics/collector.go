package metrics

import (
	"time"

	"github.com/BaSui01/sunyadvisor/rag"
	"github.com/BaSui01/sunyadvisor/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector owns every SunyAdvisor Prometheus metric. It satisfies the
// observer interfaces of the agent, orchestrator, rag and ingest packages.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec

	retrievalsTotal   *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
	retrievalHits     prometheus.Histogram

	ingestDocuments *prometheus.CounterVec
	ingestPoints    prometheus.Counter

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	dbConnectionsOpen prometheus.Gauge
	dbConnectionsIdle prometheus.Gauge
	dbConnectionsUse  prometheus.Gauge

	logger *zap.Logger
}

// NewCollector registers the metrics on reg. Use prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	c.httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	c.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"method", "path"})
	c.httpRequestSize = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_size_bytes",
		Help:      "HTTP request size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})
	c.httpResponseSize = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	c.llmRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Chat completions issued, by agent",
	}, []string{"agent", "model", "status"})
	c.llmRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_request_duration_seconds",
		Help:      "Chat completion latency in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"agent", "model"})
	c.llmTokensUsed = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_used_total",
		Help:      "Tokens consumed, by type (prompt or completion)",
	}, []string{"agent", "model", "type"})

	c.turnsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Student turns handled, by route (direct or knowledge)",
	}, []string{"route", "status"})
	c.turnDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "turn_duration_seconds",
		Help:      "End-to-end turn latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"route"})

	c.retrievalsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rag_retrievals_total",
		Help:      "Knowledge-base searches, by university filter",
	}, []string{"university", "status"})
	c.retrievalDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rag_retrieval_duration_seconds",
		Help:      "Embed, search and rerank latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"university"})
	c.retrievalHits = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rag_retrieval_hits",
		Help:      "Passages returned per search",
		Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
	})

	c.ingestDocuments = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_documents_total",
		Help:      "Documents processed by ingestion, by outcome",
	}, []string{"university", "doc_type", "outcome"})
	c.ingestPoints = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_points_total",
		Help:      "Vector points upserted",
	})

	c.cacheHits = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	}, []string{"cache_type"})
	c.cacheMisses = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	}, []string{"cache_type"})

	c.dbConnectionsOpen = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_open",
		Help:      "Open database connections",
	})
	c.dbConnectionsIdle = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_idle",
		Help:      "Idle database connections",
	})
	c.dbConnectionsUse = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "db_connections_in_use",
		Help:      "Database connections in use",
	})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordHTTPRequest records one served request. path should be the route
// pattern, not the raw URL, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// ObserveCompletion implements agent.Observer.
func (c *Collector) ObserveCompletion(agent, model string, duration time.Duration, usage types.TokenUsage, err error) {
	c.llmRequestsTotal.WithLabelValues(agent, model, outcome(err)).Inc()
	c.llmRequestDuration.WithLabelValues(agent, model).Observe(duration.Seconds())
	if usage.PromptTokens > 0 {
		c.llmTokensUsed.WithLabelValues(agent, model, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		c.llmTokensUsed.WithLabelValues(agent, model, "completion").Add(float64(usage.CompletionTokens))
	}
}

// ObserveTurn implements orchestrator.Observer.
func (c *Collector) ObserveTurn(routed bool, duration time.Duration, err error) {
	route := "direct"
	if routed {
		route = "knowledge"
	}
	c.turnsTotal.WithLabelValues(route, outcome(err)).Inc()
	c.turnDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveRetrieval implements rag.RetrievalObserver.
func (c *Collector) ObserveRetrieval(university string, hits int, duration time.Duration, err error) {
	if university == "" {
		university = "all"
	}
	c.retrievalsTotal.WithLabelValues(university, outcome(err)).Inc()
	c.retrievalDuration.WithLabelValues(university).Observe(duration.Seconds())
	if err == nil {
		c.retrievalHits.Observe(float64(hits))
	}
}

// ObserveDocument implements ingest.Observer.
func (c *Collector) ObserveDocument(university string, docType rag.DocType, outcome string) {
	c.ingestDocuments.WithLabelValues(university, string(docType), outcome).Inc()
}

// ObservePoints implements ingest.Observer.
func (c *Collector) ObservePoints(n int) {
	c.ingestPoints.Add(float64(n))
}

func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBConnections copies pool statistics into the gauges.
func (c *Collector) RecordDBConnections(open, inUse, idle int) {
	c.dbConnectionsOpen.Set(float64(open))
	c.dbConnectionsUse.Set(float64(inUse))
	c.dbConnectionsIdle.Set(float64(idle))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
