package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korox/internal/chain"
	"korox/internal/config"
	"korox/internal/graph"
	"korox/internal/optimizer"
	"korox/internal/telemetry"
)

type idleSource struct{}

func (idleSource) LatestHeight(ctx context.Context, c chain.Name) (uint64, error) {
	return 5000, nil
}
func (idleSource) BlockFullness(ctx context.Context, c chain.Name) (float64, error) { return 0, nil }
func (idleSource) PendingQueueSize(ctx context.Context, c chain.Name) (int, error)  { return 0, nil }
func (idleSource) Connect(ctx context.Context, c chain.Name) error                  { return nil }
func (idleSource) IsConnected(c chain.Name) bool                                    { return true }
func (idleSource) DisconnectAll()                                                   {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Load()
	g, err := graph.New(graph.XCMRoutes, zerolog.Nop())
	require.NoError(t, err)
	cache := telemetry.NewCache(cfg, idleSource{}, zerolog.Nop(), clock.NewMock())
	opt := optimizer.New(g, cache, cfg, zerolog.Nop())
	srv := httptest.NewServer(NewServer(cfg, opt, cache, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestSolveIntent(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/v1/intents/solve",
		`{"sourceChain":"assetHub","destChain":"moonbeam","asset":"USDT","priority":"cheapest"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success           bool               `json:"success"`
		Route             *optimizer.Route   `json:"route"`
		AlternativeRoutes []*optimizer.Route `json:"alternativeRoutes"`
		Analytics         *struct {
			RoutesAnalyzed    int     `json:"routesAnalyzed"`
			TotalGas          float64 `json:"totalGas"`
			SavingsPercentage float64 `json:"savingsPercentage"`
			NetworkHealth     string  `json:"networkHealth"`
		} `json:"analytics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	require.NotNil(t, out.Route)
	assert.Equal(t, optimizer.PriorityCheapest, out.Route.Priority)
	assert.Equal(t, chain.AssetHub, out.Route.Path[0])
	assert.Equal(t, chain.Moonbeam, out.Route.Path[len(out.Route.Path)-1])
	assert.NotEmpty(t, out.Route.Recommendation)

	require.NotNil(t, out.Analytics)
	assert.Equal(t, 4, out.Analytics.RoutesAnalyzed)
	assert.Equal(t, out.Route.Breakdown.GasCost, out.Analytics.TotalGas)
	assert.GreaterOrEqual(t, out.Analytics.SavingsPercentage, 0.0)
	assert.Equal(t, "excellent", out.Analytics.NetworkHealth)

	// alternatives never repeat the recommended path or each other
	assert.LessOrEqual(t, len(out.AlternativeRoutes), 3)
	seen := map[string]bool{pathKey(out.Route.Path): true}
	for _, alt := range out.AlternativeRoutes {
		key := pathKey(alt.Path)
		assert.False(t, seen[key], "duplicate path %s", key)
		seen[key] = true
	}
}

func TestSolveIntentDefaultsPriorityAndAsset(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/api/v1/intents/solve",
		`{"sourceChain":"assetHub","destChain":"hydration"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Route *optimizer.Route `json:"route"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Route)
	assert.Equal(t, optimizer.PriorityBalanced, out.Route.Priority)
}

func TestSolveIntentValidation(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name string
		body string
		code string
	}{
		{"unknown source", `{"sourceChain":"narnia","destChain":"moonbeam"}`, "UNKNOWN_CHAIN"},
		{"unknown destination", `{"sourceChain":"assetHub","destChain":"narnia"}`, "UNKNOWN_CHAIN"},
		{"same chain", `{"sourceChain":"assetHub","destChain":"assetHub"}`, "INVALID_REQUEST"},
		{"bad asset", `{"sourceChain":"assetHub","destChain":"moonbeam","asset":"DOGE"}`, "INVALID_REQUEST"},
		{"bad priority", `{"sourceChain":"assetHub","destChain":"moonbeam","priority":"yolo"}`, "INVALID_REQUEST"},
		{"malformed body", `{not json`, "INVALID_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/v1/intents/solve", tc.body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var out map[string]struct {
				Code string `json:"code"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tc.code, out["error"].Code)
		})
	}
}

func TestSolveIntentNoRoute(t *testing.T) {
	srv := newTestServer(t)
	// interlay's only edge is inactive, so nothing reaches it
	resp := postJSON(t, srv.URL+"/api/v1/intents/solve",
		`{"sourceChain":"assetHub","destChain":"interlay"}`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListChains(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/intents/chains")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Chains []struct {
			Name        chain.Name `json:"name"`
			DisplayName string     `json:"displayName"`
			IsConnected bool       `json:"isConnected"`
		} `json:"chains"`
		Tokens []string `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Chains, len(chain.All))
	assert.Contains(t, out.Tokens, "WND")
	// idleSource reports a live height for every chain
	for _, c := range out.Chains {
		assert.True(t, c.IsConnected, "chain %s", c.Name)
	}
}

func TestAlternativeRoutesDistinctAndCapped(t *testing.T) {
	direct := &optimizer.Route{Path: []chain.Name{chain.AssetHub, chain.Moonbeam}, Score: 80}
	viaHydration := &optimizer.Route{Path: []chain.Name{chain.AssetHub, chain.Hydration, chain.Moonbeam}, Score: 85}
	viaAstar := &optimizer.Route{Path: []chain.Name{chain.AssetHub, chain.Astar, chain.Moonbeam}, Score: 78}
	all := []*optimizer.Route{direct, viaHydration, viaAstar, direct}

	alts := alternativeRoutes(all, direct, 3)
	require.Len(t, alts, 2)
	// ranked by score, the recommendation's path excluded
	assert.Equal(t, viaHydration.Path, alts[0].Path)
	assert.Equal(t, viaAstar.Path, alts[1].Path)

	assert.Len(t, alternativeRoutes(all, direct, 1), 1)
}

func TestCompareRoutes(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/routes/compare?from=assetHub&to=moonbeam")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Routes []*optimizer.Route `json:"routes"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Routes, 4)
	assert.Equal(t, optimizer.PriorityFastest, out.Routes[0].Priority)
}

func TestCompareRoutesValidation(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/routes/compare?from=narnia&to=moonbeam")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGraphStats(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/v1/graph/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Graph graph.Stats          `json:"graph"`
		Cache telemetry.CacheStats `json:"cache"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 10, out.Graph.ActiveEdges)
}
