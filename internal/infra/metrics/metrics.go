package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	RouteRequestsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "route_requests_total", Help: "Route optimization requests by priority"}, []string{"priority"})
	RoutesScoredTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "routes_scored_total", Help: "Total candidate paths scored"})
	NoRouteFoundTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "no_route_found_total", Help: "Requests where no path existed"})
	PathCandidates       = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "path_candidates", Help: "Candidate paths per request", Buckets: prometheus.LinearBuckets(1, 1, 10)})
	RouteScore           = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "route_score", Help: "Total score of winning routes", Buckets: prometheus.LinearBuckets(0, 10, 11)})
	ScoringLatencyMs     = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "scoring_latency_ms", Help: "Route scoring latency", Buckets: prometheus.LinearBuckets(1, 25, 20)})
	CacheHitsTotal       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_cache_hits_total", Help: "Telemetry cache hits by keyspace"}, []string{"keyspace"})
	CacheMissesTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_cache_misses_total", Help: "Telemetry cache misses by keyspace"}, []string{"keyspace"})
	FetchFailuresTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_fetch_failures_total", Help: "Telemetry fetch failures by chain"}, []string{"chain"})
	DegradedStatsTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "degraded_stats_total", Help: "Degraded chain stat snapshots served"})
	RPCLatencyMs         = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "rpc_latency_ms", Help: "Chain RPC latency by chain", Buckets: prometheus.LinearBuckets(5, 50, 20)}, []string{"chain"})
	RPCReconnectsTotal   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rpc_reconnects_total", Help: "Chain RPC reconnects by chain"}, []string{"chain"})
	MonitorCyclesTotal   = prometheus.NewCounter(prometheus.CounterOpts{Name: "monitor_cycles_total", Help: "Background telemetry refresh cycles"})
	ChainCongestionScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "chain_congestion_score", Help: "Last observed congestion score by chain"}, []string{"chain"})
	ChainHealthy         = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "chain_healthy", Help: "Chain health flag (1 healthy, 0 degraded)"}, []string{"chain"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		RouteRequestsTotal, RoutesScoredTotal, NoRouteFoundTotal, PathCandidates,
		RouteScore, ScoringLatencyMs,
		CacheHitsTotal, CacheMissesTotal, FetchFailuresTotal, DegradedStatsTotal,
		RPCLatencyMs, RPCReconnectsTotal, MonitorCyclesTotal,
		ChainCongestionScore, ChainHealthy,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
