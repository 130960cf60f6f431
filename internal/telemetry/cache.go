package telemetry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"korox/internal/chain"
	"korox/internal/config"
	"korox/internal/infra/log"
	"korox/internal/infra/metrics"
)

// CongestionLevel buckets a 0-100 congestion score.
type CongestionLevel string

const (
	CongestionLow    CongestionLevel = "low"
	CongestionMedium CongestionLevel = "medium"
	CongestionHigh   CongestionLevel = "high"
)

// Confidence labels how trustworthy a fee estimate is given the health and
// congestion of the endpoints involved.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ChainStats is an immutable snapshot of one chain's live state. A fetch
// that fails produces a snapshot with Degraded=true, conservative values,
// and no cache entry.
type ChainStats struct {
	Chain           chain.Name      `json:"chain"`
	Healthy         bool            `json:"healthy"`
	CurrentBlock    uint64          `json:"currentBlock"`
	AvgBlockTime    int             `json:"avgBlockTime"` // milliseconds
	Congestion      CongestionLevel `json:"congestion"`
	CongestionScore int             `json:"congestionScore"` // 0-100
	EstimatedGas    float64         `json:"estimatedGas"`    // WND
	Degraded        bool            `json:"degraded"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// FeeEstimate is an immutable per-edge XCM fee snapshot. Fallback=true
// marks the fixed placeholder produced when live data was unavailable.
type FeeEstimate struct {
	Source       chain.Name `json:"sourceChain"`
	Dest         chain.Name `json:"destChain"`
	EstimatedFee float64    `json:"estimatedFee"`
	Currency     string     `json:"currency"`
	Confidence   Confidence `json:"confidence"`
	Fallback     bool       `json:"fallback"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CacheStats exposes hit counters for diagnostics endpoints.
type CacheStats struct {
	Keys   int    `json:"keys"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

const (
	baseXcmFee     = 0.01 // flat XCM protocol fee in WND
	fallbackFee    = 0.05
	cacheMaxChains = 64
	cacheMaxPairs  = 256
)

type pairKey struct{ src, dst chain.Name }

// Cache serves ChainStats and FeeEstimates from two TTL-checked keyspaces,
// fetching through Source on miss. Entries are whole immutable values
// replaced atomically; concurrent misses for one key may both fetch, which
// is tolerated (last write wins).
type Cache struct {
	cfg    config.Config
	source Source
	logger log.Logger
	clock  clock.Clock

	stats *lru.Cache[chain.Name, ChainStats]
	fees  *lru.Cache[pairKey, FeeEstimate]

	mu     sync.Mutex
	hits   uint64
	misses uint64
	stop   chan struct{}
}

// NewCache builds a cache over source. The clock is injectable so TTL
// behavior is testable without sleeping.
func NewCache(cfg config.Config, source Source, logger log.Logger, clk clock.Clock) *Cache {
	statsLRU, _ := lru.New[chain.Name, ChainStats](cacheMaxChains)
	feesLRU, _ := lru.New[pairKey, FeeEstimate](cacheMaxPairs)
	return &Cache{
		cfg:    cfg,
		source: source,
		logger: logger,
		clock:  clk,
		stats:  statsLRU,
		fees:   feesLRU,
	}
}

func (c *Cache) ttl() time.Duration {
	return time.Duration(c.cfg.Telemetry.CacheTTLSeconds) * time.Second
}

func (c *Cache) fetchTimeout() time.Duration {
	return time.Duration(c.cfg.Telemetry.FetchTimeoutSeconds) * time.Second
}

// GetChainStats returns the cached snapshot when younger than the TTL,
// otherwise fetches fresh data. On fetch failure it returns a degraded
// snapshot which is not cached, so the next call retries the live path.
func (c *Cache) GetChainStats(ctx context.Context, name chain.Name) ChainStats {
	if cached, ok := c.stats.Get(name); ok && c.clock.Since(cached.UpdatedAt) < c.ttl() {
		c.hit("stats")
		return cached
	}
	c.miss("stats")

	stats, err := c.fetchChainStats(ctx, name)
	if err != nil {
		metrics.FetchFailuresTotal.WithLabelValues(string(name)).Inc()
		metrics.DegradedStatsTotal.Inc()
		metrics.ChainHealthy.WithLabelValues(string(name)).Set(0)
		c.logger.Warn().Err(err).Str("chain", string(name)).Msg("chain stats fetch failed, serving degraded snapshot")
		return c.degradedStats(name)
	}
	c.stats.Add(name, stats)
	metrics.ChainHealthy.WithLabelValues(string(name)).Set(1)
	metrics.ChainCongestionScore.WithLabelValues(string(name)).Set(float64(stats.CongestionScore))
	return stats
}

func (c *Cache) fetchChainStats(ctx context.Context, name chain.Name) (ChainStats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout())
	defer cancel()

	height, err := c.source.LatestHeight(ctx, name)
	if err != nil {
		return ChainStats{}, err
	}
	fullness, err := c.source.BlockFullness(ctx, name)
	if err != nil {
		return ChainStats{}, err
	}
	queue, err := c.source.PendingQueueSize(ctx, name)
	if err != nil {
		return ChainStats{}, err
	}

	score := congestionScore(fullness, queue)
	level := congestionLevel(score)
	meta, _ := chain.Lookup(name)

	return ChainStats{
		Chain:           name,
		Healthy:         true,
		CurrentBlock:    height,
		AvgBlockTime:    meta.AvgBlockTime,
		Congestion:      level,
		CongestionScore: score,
		EstimatedGas:    estimateGas(meta.AvgGasCost, level),
		UpdatedAt:       c.clock.Now(),
	}, nil
}

// degradedStats is the conservative placeholder for an unreachable chain:
// unhealthy, fully congested, baseline gas from static metadata.
func (c *Cache) degradedStats(name chain.Name) ChainStats {
	meta, _ := chain.Lookup(name)
	return ChainStats{
		Chain:           name,
		Healthy:         false,
		CurrentBlock:    0,
		AvgBlockTime:    meta.AvgBlockTime,
		Congestion:      CongestionHigh,
		CongestionScore: 100,
		EstimatedGas:    meta.AvgGasCost,
		Degraded:        true,
		UpdatedAt:       c.clock.Now(),
	}
}

// congestionScore weights block fullness at 60% and pool depth at 40%,
// with the pool saturating at 50 pending extrinsics.
func congestionScore(blockFullness float64, queueSize int) int {
	fullnessPct := math.Min(blockFullness*100, 100)
	queuePct := math.Min(float64(queueSize)/50*100, 100)
	return int(math.Round(fullnessPct*0.6 + queuePct*0.4))
}

func congestionLevel(score int) CongestionLevel {
	switch {
	case score < 30:
		return CongestionLow
	case score < 70:
		return CongestionMedium
	default:
		return CongestionHigh
	}
}

// estimateGas scales a chain's baseline cost by its congestion level.
func estimateGas(baseGas float64, level CongestionLevel) float64 {
	multiplier := 1.0
	switch level {
	case CongestionMedium:
		multiplier = 1.2
	case CongestionHigh:
		multiplier = 1.5
	}
	return round4(baseGas * multiplier)
}

// GetFeeEstimate returns the cached XCM fee for the ordered pair when fresh,
// otherwise computes it from both endpoints' stats. If either endpoint's
// stats came back degraded the estimate is a fixed fallback with low
// confidence and is not cached.
func (c *Cache) GetFeeEstimate(ctx context.Context, src, dst chain.Name) FeeEstimate {
	key := pairKey{src, dst}
	if cached, ok := c.fees.Get(key); ok && c.clock.Since(cached.UpdatedAt) < c.ttl() {
		c.hit("fees")
		return cached
	}
	c.miss("fees")

	srcStats := c.GetChainStats(ctx, src)
	dstStats := c.GetChainStats(ctx, dst)
	if srcStats.Degraded && dstStats.Degraded {
		c.logger.Warn().Str("src", string(src)).Str("dst", string(dst)).Msg("fee estimate unavailable, serving fallback")
		return FeeEstimate{
			Source:       src,
			Dest:         dst,
			EstimatedFee: fallbackFee,
			Currency:     "WND",
			Confidence:   ConfidenceLow,
			Fallback:     true,
			UpdatedAt:    c.clock.Now(),
		}
	}

	multiplier := 1.0
	switch {
	case srcStats.CongestionScore > 70 || dstStats.CongestionScore > 70:
		multiplier = 1.3
	case srcStats.CongestionScore > 40 || dstStats.CongestionScore > 40:
		multiplier = 1.15
	}
	total := (baseXcmFee + srcStats.EstimatedGas + dstStats.EstimatedGas*0.5) * multiplier

	confidence := ConfidenceHigh
	switch {
	case !srcStats.Healthy || !dstStats.Healthy:
		confidence = ConfidenceLow
	case srcStats.CongestionScore > 50 || dstStats.CongestionScore > 50:
		confidence = ConfidenceMedium
	}

	estimate := FeeEstimate{
		Source:       src,
		Dest:         dst,
		EstimatedFee: round4(total),
		Currency:     "WND",
		Confidence:   confidence,
		UpdatedAt:    c.clock.Now(),
	}
	// estimates derived from a degraded endpoint are served but not stored
	if srcStats.Degraded || dstStats.Degraded {
		estimate.Fallback = true
		return estimate
	}
	c.fees.Add(key, estimate)
	return estimate
}

// StatsForAll refreshes stats for every known chain, best effort. Failures
// surface as degraded snapshots in the returned slice, never as an error.
func (c *Cache) StatsForAll(ctx context.Context) []ChainStats {
	out := make([]ChainStats, len(chain.All))
	var wg sync.WaitGroup
	for i, name := range chain.All {
		wg.Add(1)
		go func(i int, name chain.Name) {
			defer wg.Done()
			out[i] = c.GetChainStats(ctx, name)
		}(i, name)
	}
	wg.Wait()
	return out
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.stats.Purge()
	c.fees.Purge()
	c.logger.Info().Msg("telemetry cache cleared")
}

// Stats reports cache key and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Keys:   c.stats.Len() + c.fees.Len(),
		Hits:   c.hits,
		Misses: c.misses,
	}
}

func (c *Cache) hit(keyspace string) {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	metrics.CacheHitsTotal.WithLabelValues(keyspace).Inc()
}

func (c *Cache) miss(keyspace string) {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	metrics.CacheMissesTotal.WithLabelValues(keyspace).Inc()
}

// StartMonitoring launches the background refresh loop so steady-state
// readers hit warm entries. Calling it while running is a no-op. Refresh
// cycles may overlap under slow sources; entries are immutable point values
// so the last write simply wins.
func (c *Cache) StartMonitoring(ctx context.Context) {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		c.logger.Warn().Msg("telemetry monitoring already started")
		return
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	interval := time.Duration(c.cfg.Telemetry.MonitorIntervalSeconds) * time.Second
	c.logger.Info().Dur("interval", interval).Msg("starting chain monitoring")

	go func() {
		ticker := c.clock.Ticker(interval)
		defer ticker.Stop()
		// warm the cache right away
		c.refreshAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				c.refreshAll(ctx)
			}
		}
	}()
}

func (c *Cache) refreshAll(ctx context.Context) {
	metrics.MonitorCyclesTotal.Inc()
	stats := c.StatsForAll(ctx)
	degraded := 0
	for _, s := range stats {
		if s.Degraded {
			degraded++
		}
	}
	c.logger.Debug().Int("chains", len(stats)).Int("degraded", degraded).Msg("monitor cycle complete")
}

// StopMonitoring halts the refresh loop. Safe to call repeatedly and safe
// to call before StartMonitoring.
func (c *Cache) StopMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
	c.logger.Info().Msg("chain monitoring stopped")
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
