// Package graph holds the static XCM connectivity map between parachains
// and answers path-enumeration queries over it.
package graph

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"korox/internal/chain"
)

// ErrEmptyCatalog is returned when the route catalog has no edges.
var ErrEmptyCatalog = errors.New("graph: empty route catalog")

// Edge is a directed XCM connection between two parachains.
// Edges are static configuration; Active=false edges are excluded from
// traversal but kept for stats.
type Edge struct {
	From            chain.Name
	To              chain.Name
	Active          bool
	AvgTransferTime int     // seconds
	Reliability     float64 // 0-100
	SupportedAssets []string
}

// Path is an ordered sequence of at least two distinct chains where every
// consecutive pair is connected by an active edge.
type Path struct {
	Chains           []chain.Name
	Hops             int
	EstimatedTime    int     // seconds, sum of edge transfer times
	TotalReliability float64 // 0-100, compounded across hops
}

// Stats summarizes the loaded catalog.
type Stats struct {
	ChainCount     int     `json:"chainCount"`
	ActiveEdges    int     `json:"activeEdges"`
	InactiveEdges  int     `json:"inactiveEdges"`
	TotalEdges     int     `json:"totalEdges"`
	AvgReliability float64 `json:"avgReliability"`
}

// Graph is read-only after New; no locking is needed for concurrent queries.
type Graph struct {
	edges     []Edge
	adjacency map[chain.Name][]chain.Name
	direct    map[edgeKey]Edge
}

type edgeKey struct{ from, to chain.Name }

// New builds adjacency and direct-edge lookups from the edge list.
// Duplicate (from,to) definitions keep the first-loaded edge and log a
// warning. An empty catalog is a startup failure.
func New(edges []Edge, logger zerolog.Logger) (*Graph, error) {
	if len(edges) == 0 {
		return nil, ErrEmptyCatalog
	}
	g := &Graph{
		edges:     edges,
		adjacency: make(map[chain.Name][]chain.Name),
		direct:    make(map[edgeKey]Edge),
	}
	for _, e := range edges {
		if !e.Active {
			continue
		}
		key := edgeKey{e.From, e.To}
		if _, dup := g.direct[key]; dup {
			logger.Warn().Str("from", string(e.From)).Str("to", string(e.To)).Msg("duplicate route definition ignored")
			continue
		}
		g.direct[key] = e
		g.adjacency[e.From] = append(g.adjacency[e.From], e.To)
	}
	logger.Info().Int("routes", len(edges)).Int("active", len(g.direct)).Msg("route graph initialized")
	return g, nil
}

// DirectEdge returns the active edge between from and to, ok=false if none.
func (g *Graph) DirectEdge(from, to chain.Name) (Edge, bool) {
	e, ok := g.direct[edgeKey{from, to}]
	return e, ok
}

// HasDirectEdge reports whether an active edge connects from to to.
func (g *Graph) HasDirectEdge(from, to chain.Name) bool {
	_, ok := g.DirectEdge(from, to)
	return ok
}

// Neighbors returns the chains directly reachable from c via active edges,
// in catalog order. Unknown chains yield an empty list.
func (g *Graph) Neighbors(c chain.Name) []chain.Name {
	return g.adjacency[c]
}

// IsAssetSupported reports whether a direct active edge exists and carries
// the given asset.
func (g *Graph) IsAssetSupported(from, to chain.Name, asset string) bool {
	e, ok := g.DirectEdge(from, to)
	if !ok {
		return false
	}
	for _, a := range e.SupportedAssets {
		if a == asset {
			return true
		}
	}
	return false
}

// AllEdges returns every catalog edge, active and inactive.
func (g *Graph) AllEdges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// AllSimplePaths enumerates every simple path from source to destination
// whose hop count does not exceed maxHops, via backtracking DFS. The same
// chain may appear in different branches; the visited set is unwound on
// return so sibling branches are never falsely pruned.
func (g *Graph) AllSimplePaths(source, destination chain.Name, maxHops int) []Path {
	if source == destination {
		return nil
	}
	var paths []Path
	visited := make(map[chain.Name]bool)

	var dfs func(current chain.Name, trail []chain.Name, hops int)
	dfs = func(current chain.Name, trail []chain.Name, hops int) {
		if current == destination {
			if p, ok := g.buildPath(trail); ok {
				paths = append(paths, p)
			}
			return
		}
		if hops >= maxHops {
			return
		}
		visited[current] = true
		for _, next := range g.Neighbors(current) {
			if !visited[next] {
				dfs(next, append(trail, next), hops+1)
			}
		}
		visited[current] = false
	}

	dfs(source, []chain.Name{source}, 0)
	return paths
}

// ShortestPathByHops finds the fewest-hop path via BFS, nil if unreachable.
// Ties are broken by neighbor expansion order, which is deterministic given
// the fixed catalog ordering.
func (g *Graph) ShortestPathByHops(source, destination chain.Name) *Path {
	if source == destination {
		return nil
	}
	type item struct {
		c     chain.Name
		trail []chain.Name
	}
	queue := []item{{c: source, trail: []chain.Name{source}}}
	visited := map[chain.Name]bool{source: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.c == destination {
			if p, ok := g.buildPath(cur.trail); ok {
				return &p
			}
			return nil
		}
		for _, next := range g.Neighbors(cur.c) {
			if !visited[next] {
				visited[next] = true
				trail := make([]chain.Name, len(cur.trail), len(cur.trail)+1)
				copy(trail, cur.trail)
				queue = append(queue, item{c: next, trail: append(trail, next)})
			}
		}
	}
	return nil
}

// buildPath computes hop metrics for a chain sequence. A sequence missing
// an active edge on any hop is invalid and discarded.
func (g *Graph) buildPath(trail []chain.Name) (Path, bool) {
	if len(trail) < 2 {
		return Path{}, false
	}
	chains := make([]chain.Name, len(trail))
	copy(chains, trail)

	totalTime := 0
	reliability := 100.0
	for i := 0; i < len(chains)-1; i++ {
		e, ok := g.DirectEdge(chains[i], chains[i+1])
		if !ok {
			return Path{}, false
		}
		totalTime += e.AvgTransferTime
		reliability *= e.Reliability / 100
	}
	return Path{
		Chains:           chains,
		Hops:             len(chains) - 1,
		EstimatedTime:    totalTime,
		TotalReliability: reliability,
	}, true
}

// Stats aggregates catalog counters for diagnostics.
func (g *Graph) Stats() Stats {
	active := 0
	var sum float64
	for _, e := range g.edges {
		if e.Active {
			active++
			sum += e.Reliability
		}
	}
	s := Stats{
		ChainCount:    len(g.adjacency),
		ActiveEdges:   active,
		InactiveEdges: len(g.edges) - active,
		TotalEdges:    len(g.edges),
	}
	if active > 0 {
		s.AvgReliability = sum / float64(active)
	}
	return s
}

// String renders a path like "assetHub -> hydration -> moonbeam".
func (p Path) String() string {
	out := ""
	for i, c := range p.Chains {
		if i > 0 {
			out += " -> "
		}
		out += string(c)
	}
	return fmt.Sprintf("%s (%d hops)", out, p.Hops)
}
