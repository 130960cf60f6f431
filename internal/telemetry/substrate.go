package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"korox/internal/chain"
	"korox/internal/config"
	"korox/internal/infra/log"
	"korox/internal/infra/metrics"
	"korox/internal/infra/network"
)

// Most parachains carry on the order of 100 extrinsics per full block;
// fullness is measured against that.
const maxExtrinsicsPerBlock = 100

// SubstrateClient talks JSON-RPC over WebSocket to each parachain endpoint,
// pooling one connection per chain. Connection attempts are limited and the
// attempt counter resets after a cooldown so an endpoint that was down is
// retried again later instead of being written off for the process lifetime.
type SubstrateClient struct {
	cfg    config.Config
	logger log.Logger
	dialer *websocket.Dialer
	httpc  *http.Client
	bucket *network.TokenBucket

	mu        sync.Mutex
	conns     map[chain.Name]*wsConn
	attempts  map[chain.Name]int
	lastFail  map[chain.Name]time.Time
	latencyMs float64 // EWMA over observed round trips
}

type wsConn struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	nextID uint64
}

func NewSubstrateClient(cfg config.Config, logger log.Logger) *SubstrateClient {
	return &SubstrateClient{
		cfg:      cfg,
		logger:   logger,
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		httpc:    network.NewHTTPClient(),
		bucket:   network.NewTokenBucket(cfg.Telemetry.RequestBurst, cfg.Telemetry.RequestsPerSecond, cfg.Telemetry.BaselineLatencyMs),
		conns:    make(map[chain.Name]*wsConn),
		attempts: make(map[chain.Name]int),
		lastFail: make(map[chain.Name]time.Time),
	}
}

// endpoint resolves the RPC URL for a chain, preferring config overrides
// over the embedded catalog.
func (s *SubstrateClient) endpoint(c chain.Name) (string, error) {
	if url, ok := s.cfg.Telemetry.Endpoints[string(c)]; ok && url != "" {
		return url, nil
	}
	meta, ok := chain.Lookup(c)
	if !ok {
		return "", fmt.Errorf("%w: unknown chain %s", ErrConnection, c)
	}
	return meta.RPCEndpoint, nil
}

// conn returns a pooled connection, dialing if needed. Retry accounting:
// after ConnectRetries consecutive failures the chain is not dialed again
// until RetryCooldownSeconds has passed, at which point the counter resets.
func (s *SubstrateClient) conn(ctx context.Context, c chain.Name) (*wsConn, error) {
	s.mu.Lock()
	if wc, ok := s.conns[c]; ok {
		s.mu.Unlock()
		return wc, nil
	}
	cooldown := time.Duration(s.cfg.Telemetry.RetryCooldownSeconds) * time.Second
	if s.attempts[c] >= s.cfg.Telemetry.ConnectRetries {
		if time.Since(s.lastFail[c]) < cooldown {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s in retry cooldown", ErrConnection, c)
		}
		s.attempts[c] = 0
	}
	s.mu.Unlock()

	url, err := s.endpoint(c)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("chain", string(c)).Str("endpoint", url).Msg("dialing chain RPC")
	ws, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		s.mu.Lock()
		s.attempts[c]++
		s.lastFail[c] = time.Now()
		attempts := s.attempts[c]
		s.mu.Unlock()
		metrics.RPCReconnectsTotal.WithLabelValues(string(c)).Inc()
		s.logger.Warn().Err(err).Str("chain", string(c)).Int("attempt", attempts).Msg("chain dial failed")
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, c, err)
	}

	wc := &wsConn{ws: ws}
	s.mu.Lock()
	// another goroutine may have dialed concurrently; keep the first
	if existing, ok := s.conns[c]; ok {
		s.mu.Unlock()
		_ = ws.Close()
		return existing, nil
	}
	s.conns[c] = wc
	s.attempts[c] = 0
	s.mu.Unlock()
	s.logger.Info().Str("chain", string(c)).Msg("connected to chain RPC")
	return wc, nil
}

// observeLatency records one round trip and feeds the smoothed value back
// into the token bucket so sustained slowness throttles outbound calls.
func (s *SubstrateClient) observeLatency(c chain.Name, elapsed time.Duration) {
	ms := float64(elapsed.Milliseconds())
	metrics.RPCLatencyMs.WithLabelValues(string(c)).Observe(ms)

	s.mu.Lock()
	if s.latencyMs == 0 {
		s.latencyMs = ms
	} else {
		s.latencyMs = s.latencyMs*0.8 + ms*0.2
	}
	smoothed := s.latencyMs
	s.mu.Unlock()

	s.bucket.AdjustForLatency(smoothed)
}

// drop discards a connection after an I/O error so the next call redials.
func (s *SubstrateClient) drop(c chain.Name, wc *wsConn) {
	s.mu.Lock()
	if s.conns[c] == wc {
		delete(s.conns, c)
	}
	s.mu.Unlock()
	_ = wc.ws.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call performs one JSON-RPC round trip. Requests on a connection are
// serialized; this client never pipelines.
func (s *SubstrateClient) call(ctx context.Context, c chain.Name, method string, params ...any) (json.RawMessage, error) {
	if !s.bucket.Allow(time.Now()) {
		return nil, fmt.Errorf("%w: %s request rate exceeded", ErrConnection, c)
	}
	if url, err := s.endpoint(c); err == nil && strings.HasPrefix(url, "http") {
		return s.httpCall(ctx, c, url, method, params)
	}
	wc, err := s.conn(ctx, c)
	if err != nil {
		return nil, err
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()

	wc.nextID++
	req := rpcRequest{JSONRPC: "2.0", ID: wc.nextID, Method: method, Params: params}
	if params == nil {
		req.Params = []any{}
	}
	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	start := time.Now()
	_ = wc.ws.SetWriteDeadline(deadline)
	if err := wc.ws.WriteJSON(req); err != nil {
		s.drop(c, wc)
		return nil, fmt.Errorf("%w: write %s: %v", ErrConnection, c, err)
	}
	_ = wc.ws.SetReadDeadline(deadline)
	var resp rpcResponse
	if err := wc.ws.ReadJSON(&resp); err != nil {
		s.drop(c, wc)
		return nil, fmt.Errorf("%w: read %s: %v", ErrConnection, c, err)
	}
	s.observeLatency(c, time.Since(start))
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s rpc error %d: %s", ErrConnection, c, resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// httpCall handles endpoints configured with an http(s) URL, mostly used by
// tests and by deployments that sit behind an RPC gateway.
func (s *SubstrateClient) httpCall(ctx context.Context, c chain.Name, url, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s request: %v", ErrConnection, method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := s.httpc.Do(req)
	if err != nil {
		metrics.RPCReconnectsTotal.WithLabelValues(string(c)).Inc()
		return nil, fmt.Errorf("%w: post %s: %v", ErrConnection, c, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ErrConnection, c, err)
	}
	s.observeLatency(c, time.Since(start))
	if out.Error != nil {
		return nil, fmt.Errorf("%w: %s rpc error %d: %s", ErrConnection, c, out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}

// LatestHeight reads the best block number from chain_getHeader.
func (s *SubstrateClient) LatestHeight(ctx context.Context, c chain.Name) (uint64, error) {
	raw, err := s.call(ctx, c, "chain_getHeader")
	if err != nil {
		return 0, err
	}
	var header struct {
		Number string `json:"number"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return 0, fmt.Errorf("%w: decode header from %s: %v", ErrConnection, c, err)
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(header.Number, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse block number %q from %s: %v", ErrConnection, header.Number, c, err)
	}
	return n, nil
}

// BlockFullness derives the latest block's fill ratio from its extrinsic
// count relative to a typical full block.
func (s *SubstrateClient) BlockFullness(ctx context.Context, c chain.Name) (float64, error) {
	raw, err := s.call(ctx, c, "chain_getBlock")
	if err != nil {
		return 0, err
	}
	var blk struct {
		Block struct {
			Extrinsics []json.RawMessage `json:"extrinsics"`
		} `json:"block"`
	}
	if err := json.Unmarshal(raw, &blk); err != nil {
		return 0, fmt.Errorf("%w: decode block from %s: %v", ErrConnection, c, err)
	}
	ratio := float64(len(blk.Block.Extrinsics)) / maxExtrinsicsPerBlock
	if ratio > 1 {
		ratio = 1
	}
	return ratio, nil
}

// PendingQueueSize reads the transaction pool depth.
func (s *SubstrateClient) PendingQueueSize(ctx context.Context, c chain.Name) (int, error) {
	raw, err := s.call(ctx, c, "author_pendingExtrinsics")
	if err != nil {
		return 0, err
	}
	var pending []json.RawMessage
	if err := json.Unmarshal(raw, &pending); err != nil {
		return 0, fmt.Errorf("%w: decode pending extrinsics from %s: %v", ErrConnection, c, err)
	}
	return len(pending), nil
}

// Connect dials the chain's endpoint eagerly. Endpoints configured with an
// http(s) URL are stateless, so they count as connected without a dial.
func (s *SubstrateClient) Connect(ctx context.Context, c chain.Name) error {
	url, err := s.endpoint(c)
	if err != nil {
		return err
	}
	if strings.HasPrefix(url, "http") {
		return nil
	}
	_, err = s.conn(ctx, c)
	return err
}

// IsConnected reports whether a pooled session to the chain is open.
func (s *SubstrateClient) IsConnected(c chain.Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[c]
	return ok
}

// DisconnectAll closes every pooled connection and clears retry state.
func (s *SubstrateClient) DisconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c, wc := range s.conns {
		_ = wc.ws.Close()
		delete(s.conns, c)
	}
	s.attempts = make(map[chain.Name]int)
	s.lastFail = make(map[chain.Name]time.Time)
	s.logger.Info().Msg("all chain connections closed")
}
