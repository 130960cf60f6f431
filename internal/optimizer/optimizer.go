// Package optimizer ranks candidate transfer paths by a priority-weighted
// combination of gas cost, transfer time, reliability, and live congestion.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"korox/internal/chain"
	"korox/internal/config"
	"korox/internal/graph"
	"korox/internal/infra/log"
	"korox/internal/infra/metrics"
	"korox/internal/telemetry"
)

// Priority names a weight profile over the four scoring factors.
type Priority string

const (
	PriorityFastest  Priority = "fastest"
	PriorityCheapest Priority = "cheapest"
	PriorityBalanced Priority = "balanced"
	PriorityReliable Priority = "reliable"
)

// Priorities lists every profile in comparison order.
var Priorities = []Priority{PriorityFastest, PriorityCheapest, PriorityBalanced, PriorityReliable}

// IsValidPriority reports whether p names a known profile.
func IsValidPriority(p Priority) bool {
	for _, known := range Priorities {
		if known == p {
			return true
		}
	}
	return false
}

type weights struct {
	gas, time, reliability, congestion float64
}

func weightsFor(p Priority) weights {
	switch p {
	case PriorityFastest:
		return weights{gas: 0.10, time: 0.50, reliability: 0.20, congestion: 0.20}
	case PriorityCheapest:
		return weights{gas: 0.50, time: 0.10, reliability: 0.20, congestion: 0.20}
	case PriorityReliable:
		return weights{gas: 0.15, time: 0.15, reliability: 0.50, congestion: 0.20}
	default:
		return weights{gas: 0.25, time: 0.25, reliability: 0.25, congestion: 0.25}
	}
}

// Normalization reference windows: typical XCM fees run 0.01-0.05 WND and
// transfers 24s (1 hop) to 100s (3 hops).
const (
	minGas  = 0.01
	maxGas  = 0.05
	minTime = 24.0
	maxTime = 100.0
)

// Breakdown carries the raw factors behind a route's score.
type Breakdown struct {
	GasCost         float64 `json:"gasCost"`       // WND
	EstimatedTime   int     `json:"estimatedTime"` // seconds
	Reliability     float64 `json:"reliability"`   // 0-100
	CongestionScore float64 `json:"congestionScore"`
}

// Savings reports gas saved by the winning route, in whole percent.
type Savings struct {
	VsDirectRoute     *int `json:"vsDirectRoute,omitempty"`
	VsBestAlternative *int `json:"vsBestAlternative,omitempty"`
}

// Route is the recommended path with its score and rationale.
type Route struct {
	Path           []chain.Name `json:"path"`
	Hops           int          `json:"hops"`
	Priority       Priority     `json:"priority"`
	Score          int          `json:"score"` // 0-100, higher is better
	Breakdown      Breakdown    `json:"breakdown"`
	Recommendation string       `json:"recommendation"`
	Savings        *Savings     `json:"savings,omitempty"`
}

// scoredPath pairs a candidate with its factor values and total score.
type scoredPath struct {
	path        graph.Path
	gasCost     float64
	reliability float64
	congestion  float64
	totalScore  float64
}

// Optimizer is stateless between calls; it reads the graph snapshot and the
// telemetry cache on each request.
type Optimizer struct {
	graph  *graph.Graph
	cache  *telemetry.Cache
	logger log.Logger

	maxHops        int
	minReliability float64
}

func New(g *graph.Graph, cache *telemetry.Cache, cfg config.Config, logger log.Logger) *Optimizer {
	maxHops := cfg.Routing.MaxHops
	if maxHops <= 0 {
		maxHops = 3
	}
	minReliability := cfg.Routing.MinReliability
	if minReliability <= 0 {
		minReliability = 85
	}
	o := &Optimizer{graph: g, cache: cache, logger: logger, maxHops: maxHops, minReliability: minReliability}
	logger.Info().Int("max_hops", maxHops).Float64("min_reliability", minReliability).Msg("route optimizer initialized")
	return o
}

// FindOptimalRoute scores every simple path from source to destination and
// returns the best one for the given priority, nil when no path exists.
// Telemetry failures degrade into conservative factor values and never
// surface as errors.
func (o *Optimizer) FindOptimalRoute(ctx context.Context, source, destination chain.Name, asset string, priority Priority) *Route {
	if !IsValidPriority(priority) {
		priority = PriorityBalanced
	}
	metrics.RouteRequestsTotal.WithLabelValues(string(priority)).Inc()
	o.logger.Info().
		Str("source", string(source)).
		Str("destination", string(destination)).
		Str("asset", asset).
		Str("priority", string(priority)).
		Msg("finding optimal route")

	candidates := o.graph.AllSimplePaths(source, destination, o.maxHops)
	if len(candidates) == 0 {
		metrics.NoRouteFoundTotal.Inc()
		o.logger.Warn().Str("source", string(source)).Str("destination", string(destination)).Msg("no route found")
		return nil
	}
	metrics.PathCandidates.Observe(float64(len(candidates)))

	start := time.Now()
	scored := o.scoreAll(ctx, candidates, priority)
	metrics.ScoringLatencyMs.Observe(float64(time.Since(start).Milliseconds()))

	// stable sort keeps enumeration order among equal scores
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].totalScore > scored[j].totalScore })

	best := scored[0]
	var runnerUp *scoredPath
	if len(scored) > 1 {
		runnerUp = &scored[1]
	}
	route := o.buildRoute(ctx, best, runnerUp, priority)

	metrics.RouteScore.Observe(best.totalScore)
	o.logger.Info().
		Str("path", best.path.String()).
		Float64("score", best.totalScore).
		Msg("best route selected")
	return route
}

// scoreAll fans out one scoring goroutine per candidate and waits for all of
// them; ranking needs comparable data for every path. Results land at their
// enumeration index so ordering stays deterministic.
func (o *Optimizer) scoreAll(ctx context.Context, candidates []graph.Path, priority Priority) []scoredPath {
	scored := make([]scoredPath, len(candidates))
	var wg sync.WaitGroup
	for i, p := range candidates {
		wg.Add(1)
		go func(i int, p graph.Path) {
			defer wg.Done()
			scored[i] = o.scorePath(ctx, p, priority)
		}(i, p)
	}
	wg.Wait()
	return scored
}

func (o *Optimizer) scorePath(ctx context.Context, p graph.Path, priority Priority) scoredPath {
	metrics.RoutesScoredTotal.Inc()

	// gather stats for every chain on the path concurrently; degraded
	// snapshots count as congestion 100, never as an abort
	stats := make([]telemetry.ChainStats, len(p.Chains))
	var wg sync.WaitGroup
	for i, c := range p.Chains {
		wg.Add(1)
		go func(i int, c chain.Name) {
			defer wg.Done()
			stats[i] = o.cache.GetChainStats(ctx, c)
		}(i, c)
	}
	wg.Wait()

	gasCost := o.pathGasCost(ctx, p)

	var congestionSum float64
	for _, s := range stats {
		congestionSum += float64(s.CongestionScore)
	}
	avgCongestion := congestionSum / float64(len(stats))

	w := weightsFor(priority)
	gasScore := normalize(gasCost, minGas, maxGas)
	timeScore := normalize(float64(p.EstimatedTime), minTime, maxTime)
	reliabilityScore := p.TotalReliability
	congestionScore := 100 - avgCongestion

	total := gasScore*w.gas + timeScore*w.time + reliabilityScore*w.reliability + congestionScore*w.congestion

	return scoredPath{
		path:        p,
		gasCost:     gasCost,
		reliability: p.TotalReliability,
		congestion:  avgCongestion,
		totalScore:  total,
	}
}

// pathGasCost sums the fee estimate of every hop.
func (o *Optimizer) pathGasCost(ctx context.Context, p graph.Path) float64 {
	var total float64
	for i := 0; i < len(p.Chains)-1; i++ {
		est := o.cache.GetFeeEstimate(ctx, p.Chains[i], p.Chains[i+1])
		total += est.EstimatedFee
	}
	return total
}

// normalize maps v within [lo,hi] to a 0-100 lower-is-better score,
// clamped at the window edges.
func normalize(v, lo, hi float64) float64 {
	score := 100 - (v-lo)/(hi-lo)*100
	return math.Max(0, math.Min(100, score))
}

func (o *Optimizer) buildRoute(ctx context.Context, best scoredPath, runnerUp *scoredPath, priority Priority) *Route {
	var savings *Savings
	if runnerUp != nil && runnerUp.gasCost > 0 {
		pct := int(math.Round((runnerUp.gasCost - best.gasCost) / runnerUp.gasCost * 100))
		savings = &Savings{VsBestAlternative: &pct}
	}

	src := best.path.Chains[0]
	dst := best.path.Chains[len(best.path.Chains)-1]
	if best.path.Hops > 1 && o.graph.HasDirectEdge(src, dst) {
		directFee := o.cache.GetFeeEstimate(ctx, src, dst).EstimatedFee
		if directFee > 0 {
			pct := int(math.Round((directFee - best.gasCost) / directFee * 100))
			if savings == nil {
				savings = &Savings{}
			}
			savings.VsDirectRoute = &pct
		}
	}

	return &Route{
		Path:           best.path.Chains,
		Hops:           best.path.Hops,
		Priority:       priority,
		Score:          int(math.Round(best.totalScore)),
		Breakdown: Breakdown{
			GasCost:         math.Round(best.gasCost*10000) / 10000,
			EstimatedTime:   best.path.EstimatedTime,
			Reliability:     math.Round(best.reliability),
			CongestionScore: math.Round(best.congestion),
		},
		Recommendation: o.recommendation(best, savings),
		Savings:        savings,
	}
}

// recommendation renders the human-readable rationale. Direct-route savings
// take precedence over alternative savings; congestion and reliability
// caveats are appended when warranted.
func (o *Optimizer) recommendation(best scoredPath, savings *Savings) string {
	if best.path.Hops == 1 {
		return fmt.Sprintf("Direct route with %.0f%% reliability. Estimated time: %ds.", best.reliability, best.path.EstimatedTime)
	}

	msg := fmt.Sprintf("%d-hop route", best.path.Hops)
	if savings != nil && savings.VsDirectRoute != nil && *savings.VsDirectRoute > 0 {
		msg += fmt.Sprintf(" saves %d%% vs direct route", *savings.VsDirectRoute)
	} else if savings != nil && savings.VsBestAlternative != nil && *savings.VsBestAlternative > 0 {
		msg += fmt.Sprintf(" saves %d%% vs alternative", *savings.VsBestAlternative)
	}

	if best.congestion < 30 {
		msg += ". Low network congestion."
	} else if best.congestion > 70 {
		msg += ". Warning: High network congestion."
	}

	if best.reliability < o.minReliability {
		msg += fmt.Sprintf(" Note: Below-average reliability (%.0f%%).", best.reliability)
	}
	return msg
}

// CompareRoutes runs the optimization under every priority profile and
// returns the non-empty results in profile order.
func (o *Optimizer) CompareRoutes(ctx context.Context, source, destination chain.Name, asset string) []*Route {
	results := make([]*Route, len(Priorities))
	var wg sync.WaitGroup
	for i, p := range Priorities {
		wg.Add(1)
		go func(i int, p Priority) {
			defer wg.Done()
			results[i] = o.FindOptimalRoute(ctx, source, destination, asset, p)
		}(i, p)
	}
	wg.Wait()

	out := make([]*Route, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Recommend is the default-priority shortcut used by intent solving.
func (o *Optimizer) Recommend(ctx context.Context, source, destination chain.Name, asset string) *Route {
	return o.FindOptimalRoute(ctx, source, destination, asset, PriorityBalanced)
}

// GraphStats exposes graph counters for diagnostics endpoints.
func (o *Optimizer) GraphStats() graph.Stats {
	return o.graph.Stats()
}
