package optimizer

import (
	"context"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korox/internal/chain"
	"korox/internal/config"
	"korox/internal/graph"
	"korox/internal/telemetry"
)

// quietSource reports idle, healthy chains unless told to fail.
type quietSource struct {
	mu      sync.Mutex
	failAll bool
}

func (q *quietSource) failing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failAll
}

func (q *quietSource) LatestHeight(ctx context.Context, c chain.Name) (uint64, error) {
	if q.failing() {
		return 0, telemetry.ErrConnection
	}
	return 5000, nil
}

func (q *quietSource) BlockFullness(ctx context.Context, c chain.Name) (float64, error) {
	if q.failing() {
		return 0, telemetry.ErrConnection
	}
	return 0, nil
}

func (q *quietSource) PendingQueueSize(ctx context.Context, c chain.Name) (int, error) {
	if q.failing() {
		return 0, telemetry.ErrConnection
	}
	return 0, nil
}

func (q *quietSource) Connect(ctx context.Context, c chain.Name) error {
	if q.failing() {
		return telemetry.ErrConnection
	}
	return nil
}

func (q *quietSource) IsConnected(c chain.Name) bool { return !q.failing() }
func (q *quietSource) DisconnectAll()                {}

// lineEdges is the A -> B -> C line with a weaker direct A -> C leg:
// assetHub -> hydration (95%, 20s), hydration -> moonbeam (90%, 20s),
// assetHub -> moonbeam (80%, 50s).
func lineEdges() []graph.Edge {
	return []graph.Edge{
		{From: chain.AssetHub, To: chain.Hydration, Active: true, AvgTransferTime: 20, Reliability: 95, SupportedAssets: []string{"WND"}},
		{From: chain.Hydration, To: chain.Moonbeam, Active: true, AvgTransferTime: 20, Reliability: 90, SupportedAssets: []string{"WND"}},
		{From: chain.AssetHub, To: chain.Moonbeam, Active: true, AvgTransferTime: 50, Reliability: 80, SupportedAssets: []string{"WND"}},
	}
}

func newTestOptimizer(t *testing.T, edges []graph.Edge) (*Optimizer, *quietSource) {
	return newTestOptimizerCfg(t, edges, config.Load())
}

func newTestOptimizerCfg(t *testing.T, edges []graph.Edge, cfg config.Config) (*Optimizer, *quietSource) {
	t.Helper()
	g, err := graph.New(edges, zerolog.Nop())
	require.NoError(t, err)
	src := &quietSource{}
	cache := telemetry.NewCache(cfg, src, zerolog.Nop(), clock.NewMock())
	return New(g, cache, cfg, zerolog.Nop()), src
}

func TestWeightVectorsSumToOne(t *testing.T) {
	for _, p := range Priorities {
		w := weightsFor(p)
		assert.InDelta(t, 1.0, w.gas+w.time+w.reliability+w.congestion, 1e-9, "priority %s", p)
	}
}

func TestNormalizeGasMonotonic(t *testing.T) {
	// decreasing gas within the reference window strictly increases the score
	prev := normalize(0.05, minGas, maxGas)
	for gas := 0.045; gas >= 0.01; gas -= 0.005 {
		score := normalize(gas, minGas, maxGas)
		assert.Greater(t, score, prev, "gas %.3f", gas)
		prev = score
	}
	// clamped outside the window
	assert.Equal(t, 100.0, normalize(0.001, minGas, maxGas))
	assert.Equal(t, 0.0, normalize(0.1, minGas, maxGas))
}

func TestFindOptimalRouteReliablePrefersCompoundedPath(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())

	route := o.FindOptimalRoute(context.Background(), chain.AssetHub, chain.Moonbeam, "WND", PriorityReliable)
	require.NotNil(t, route)

	// 2-hop reliability 95*90/100 = 85.5 beats the direct leg's 80 under
	// the 0.5 reliability weight:
	//   2-hop: 0.15*69.5 + 0.15*78.947 + 0.5*85.5 + 0.2*100 = 85.017
	//   direct: 0.15*97.5 + 0.15*65.789 + 0.5*80 + 0.2*100 = 84.493
	assert.Equal(t, []chain.Name{chain.AssetHub, chain.Hydration, chain.Moonbeam}, route.Path)
	assert.Equal(t, 2, route.Hops)
	assert.Equal(t, 85, route.Score)
	assert.Equal(t, 40, route.Breakdown.EstimatedTime)
	assert.InDelta(t, 86, route.Breakdown.Reliability, 0.5) // 85.5 rounded
	assert.InDelta(t, 0.0222, route.Breakdown.GasCost, 1e-9)

	// the multi-hop route costs more gas than the direct leg, so savings
	// are negative and stay out of the rationale
	require.NotNil(t, route.Savings)
	require.NotNil(t, route.Savings.VsDirectRoute)
	assert.Negative(t, *route.Savings.VsDirectRoute)
	assert.Equal(t, "2-hop route. Low network congestion.", route.Recommendation)
}

func TestFindOptimalRouteCheapestPrefersDirect(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())

	route := o.FindOptimalRoute(context.Background(), chain.AssetHub, chain.Moonbeam, "WND", PriorityCheapest)
	require.NotNil(t, route)
	assert.Equal(t, []chain.Name{chain.AssetHub, chain.Moonbeam}, route.Path)
	assert.Equal(t, 1, route.Hops)
	assert.Equal(t, "Direct route with 80% reliability. Estimated time: 50s.", route.Recommendation)
}

func TestFindOptimalRouteNoPath(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())
	assert.Nil(t, o.FindOptimalRoute(context.Background(), chain.Moonbeam, chain.AssetHub, "WND", PriorityBalanced))
}

func TestFindOptimalRouteSurvivesTelemetryOutage(t *testing.T) {
	o, src := newTestOptimizer(t, lineEdges())
	src.mu.Lock()
	src.failAll = true
	src.mu.Unlock()

	route := o.FindOptimalRoute(context.Background(), chain.AssetHub, chain.Moonbeam, "WND", PriorityBalanced)
	require.NotNil(t, route, "telemetry outage must degrade, not abort")
	assert.Equal(t, 100.0, route.Breakdown.CongestionScore)
}

func TestFindOptimalRouteUnknownPriorityDefaultsBalanced(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())
	route := o.FindOptimalRoute(context.Background(), chain.AssetHub, chain.Moonbeam, "WND", Priority("warp-speed"))
	require.NotNil(t, route)
	assert.Equal(t, PriorityBalanced, route.Priority)
}

func TestCompareRoutesPriorityOrder(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())

	routes := o.CompareRoutes(context.Background(), chain.AssetHub, chain.Moonbeam, "WND")
	require.Len(t, routes, 4)
	for i, p := range Priorities {
		assert.Equal(t, p, routes[i].Priority)
	}
}

func TestCompareRoutesNoPath(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())
	assert.Empty(t, o.CompareRoutes(context.Background(), chain.Moonbeam, chain.AssetHub, "WND"))
}

func TestRecommendUsesBalancedPriority(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())
	route := o.Recommend(context.Background(), chain.AssetHub, chain.Moonbeam, "WND")
	require.NotNil(t, route)
	assert.Equal(t, PriorityBalanced, route.Priority)
}

func TestRecommendationCaveats(t *testing.T) {
	// two-hop path with weak legs trips the reliability caveat
	edges := []graph.Edge{
		{From: chain.AssetHub, To: chain.Astar, Active: true, AvgTransferTime: 30, Reliability: 85, SupportedAssets: []string{"WND"}},
		{From: chain.Astar, To: chain.Interlay, Active: true, AvgTransferTime: 30, Reliability: 85, SupportedAssets: []string{"WND"}},
	}
	o, _ := newTestOptimizer(t, edges)

	route := o.FindOptimalRoute(context.Background(), chain.AssetHub, chain.Interlay, "WND", PriorityBalanced)
	require.NotNil(t, route)
	// 85 * 85 / 100 = 72.25
	assert.Contains(t, route.Recommendation, "Below-average reliability (72%)")
}

func TestRecommendationReliabilityThresholdConfigurable(t *testing.T) {
	cfg := config.Load()
	cfg.Routing.MinReliability = 90
	o, _ := newTestOptimizerCfg(t, lineEdges(), cfg)

	// 2-hop reliability 85.5 clears the default 85 bar but not a raised one
	route := o.FindOptimalRoute(context.Background(), chain.AssetHub, chain.Moonbeam, "WND", PriorityReliable)
	require.NotNil(t, route)
	assert.Contains(t, route.Recommendation, "Below-average reliability (86%)")
}

func TestGraphStatsPassthrough(t *testing.T) {
	o, _ := newTestOptimizer(t, lineEdges())
	s := o.GraphStats()
	assert.Equal(t, 3, s.ActiveEdges)
	assert.Equal(t, 0, s.InactiveEdges)
}
