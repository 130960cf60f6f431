package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"korox/internal/chain"
	"korox/internal/config"
)

func rpcTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result any
		switch req.Method {
		case "chain_getHeader":
			result = map[string]string{"number": "0x3e8"} // block 1000
		case "chain_getBlock":
			extrinsics := make([]string, 20)
			for i := range extrinsics {
				extrinsics[i] = "0x00"
			}
			result = map[string]any{"block": map[string]any{"extrinsics": extrinsics}}
		case "author_pendingExtrinsics":
			result = []string{"0x00", "0x00", "0x00"}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

func newTestClient(t *testing.T, endpoint string) *SubstrateClient {
	t.Helper()
	cfg := config.Load()
	cfg.Telemetry.Endpoints = map[string]string{string(chain.AssetHub): endpoint}
	return NewSubstrateClient(cfg, zerolog.Nop())
}

func TestSubstrateClientLatestHeight(t *testing.T) {
	srv := rpcTestServer(t)
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	height, err := c.LatestHeight(context.Background(), chain.AssetHub)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), height)
}

func TestSubstrateClientBlockFullness(t *testing.T) {
	srv := rpcTestServer(t)
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	ratio, err := c.BlockFullness(context.Background(), chain.AssetHub)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, ratio, 1e-9)
}

func TestSubstrateClientPendingQueueSize(t *testing.T) {
	srv := rpcTestServer(t)
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	n, err := c.PendingQueueSize(context.Background(), chain.AssetHub)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSubstrateClientUnreachableEndpoint(t *testing.T) {
	srv := rpcTestServer(t)
	srv.Close() // refuse connections
	c := newTestClient(t, srv.URL)

	_, err := c.LatestHeight(context.Background(), chain.AssetHub)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestSubstrateClientUnknownChain(t *testing.T) {
	c := NewSubstrateClient(config.Load(), zerolog.Nop())
	_, err := c.LatestHeight(context.Background(), chain.Name("nonsense"))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestConnectUnknownChain(t *testing.T) {
	c := NewSubstrateClient(config.Load(), zerolog.Nop())
	err := c.Connect(context.Background(), chain.Name("nonsense"))
	assert.ErrorIs(t, err, ErrConnection)
}

func TestConnectHTTPEndpointIsStateless(t *testing.T) {
	srv := rpcTestServer(t)
	t.Cleanup(srv.Close)
	c := newTestClient(t, srv.URL)

	require.NoError(t, c.Connect(context.Background(), chain.AssetHub))
}

func TestConnectRetryCooldown(t *testing.T) {
	cfg := config.Load()
	cfg.Telemetry.ConnectRetries = 2
	cfg.Telemetry.RetryCooldownSeconds = 60
	// nothing listens on the discard port, so every dial is refused
	cfg.Telemetry.Endpoints = map[string]string{string(chain.AssetHub): "ws://127.0.0.1:9"}
	c := NewSubstrateClient(cfg, zerolog.Nop())

	for i := 0; i < 2; i++ {
		err := c.Connect(context.Background(), chain.AssetHub)
		assert.ErrorIs(t, err, ErrConnection, "dial %d", i)
	}
	assert.False(t, c.IsConnected(chain.AssetHub))

	// the retry budget is spent, so the next attempt fails without dialing
	err := c.Connect(context.Background(), chain.AssetHub)
	require.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "cooldown")
}
