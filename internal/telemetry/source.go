// Package telemetry provides live per-chain statistics and cross-chain fee
// estimates with a TTL cache and graceful degradation when chains are
// unreachable.
package telemetry

import (
	"context"
	"errors"

	"korox/internal/chain"
)

// ErrConnection wraps any failure to reach a chain endpoint. It never
// escapes the cache layer; callers above see degraded snapshots instead.
var ErrConnection = errors.New("telemetry: connection failed")

// Source is the raw per-chain query contract. Implementations own the
// connection lifecycle to each chain endpoint.
type Source interface {
	// Connect establishes a session to the chain's endpoint, honoring the
	// implementation's retry and cooldown accounting. Query methods connect
	// lazily, so calling it is optional.
	Connect(ctx context.Context, c chain.Name) error
	// LatestHeight returns the current best block number.
	LatestHeight(ctx context.Context, c chain.Name) (uint64, error)
	// BlockFullness returns the fill ratio of the latest block in [0,1].
	BlockFullness(ctx context.Context, c chain.Name) (float64, error)
	// PendingQueueSize returns the transaction pool depth.
	PendingQueueSize(ctx context.Context, c chain.Name) (int, error)
	// IsConnected reports whether a live session to the chain exists.
	IsConnected(c chain.Name) bool
	// DisconnectAll tears down every open session.
	DisconnectAll()
}
