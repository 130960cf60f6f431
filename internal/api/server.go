// Package api exposes the route engine over HTTP. Request validation lives
// here: the optimizer below assumes well-formed chain names.
package api

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"korox/internal/chain"
	"korox/internal/config"
	"korox/internal/infra/log"
	"korox/internal/optimizer"
	"korox/internal/telemetry"
)

const (
	errCodeInvalidRequest = "INVALID_REQUEST"
	errCodeUnknownChain   = "UNKNOWN_CHAIN"
	errCodeNoRoute        = "NO_ROUTE_FOUND"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	router    *mux.Router
	cfg       config.Config
	logger    log.Logger
	optimizer *optimizer.Optimizer
	cache     *telemetry.Cache
}

func NewServer(cfg config.Config, opt *optimizer.Optimizer, cache *telemetry.Cache, logger log.Logger) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		cfg:       cfg,
		logger:    logger,
		optimizer: opt,
		cache:     cache,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/intents/solve", s.handleSolveIntent).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/intents/chains", s.handleListChains).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/routes/compare", s.handleCompareRoutes).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/graph/stats", s.handleGraphStats).Methods(http.MethodGet)
}

// Handler wraps the router with CORS for browser-based clients.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

type solveIntentRequest struct {
	SourceChain string `json:"sourceChain"`
	DestChain   string `json:"destChain"`
	Asset       string `json:"asset"`
	Priority    string `json:"priority"`
}

type solveIntentResponse struct {
	Success           bool               `json:"success"`
	Route             *optimizer.Route   `json:"route,omitempty"`
	AlternativeRoutes []*optimizer.Route `json:"alternativeRoutes"`
	Analytics         *solveAnalytics    `json:"analytics,omitempty"`
}

// solveAnalytics summarizes the comparison that produced the recommendation.
type solveAnalytics struct {
	RoutesAnalyzed    int     `json:"routesAnalyzed"`
	TotalGas          float64 `json:"totalGas"`
	SavingsPercentage float64 `json:"savingsPercentage"`
	AvgGasSaving      int     `json:"avgGasSaving"`
	AvgTimeEstimate   int     `json:"avgTimeEstimate"` // seconds
	NetworkHealth     string  `json:"networkHealth"`
}

func (s *Server) handleSolveIntent(w http.ResponseWriter, r *http.Request) {
	var req solveIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "malformed JSON body")
		return
	}

	src := chain.Name(req.SourceChain)
	dst := chain.Name(req.DestChain)
	if !chain.IsKnown(src) {
		s.writeError(w, http.StatusBadRequest, errCodeUnknownChain, "unknown source chain: "+req.SourceChain)
		return
	}
	if !chain.IsKnown(dst) {
		s.writeError(w, http.StatusBadRequest, errCodeUnknownChain, "unknown destination chain: "+req.DestChain)
		return
	}
	if src == dst {
		s.writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "source and destination must differ")
		return
	}
	asset := req.Asset
	if asset == "" {
		asset = "WND"
	}
	if !chain.IsSupportedToken(asset) {
		s.writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "unsupported asset: "+asset)
		return
	}
	priority := optimizer.Priority(req.Priority)
	if req.Priority == "" {
		priority = optimizer.Priority(s.cfg.Routing.DefaultPriority)
	}
	if !optimizer.IsValidPriority(priority) {
		s.writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "unknown priority: "+req.Priority)
		return
	}

	all := s.optimizer.CompareRoutes(r.Context(), src, dst, asset)
	if len(all) == 0 {
		s.writeError(w, http.StatusNotFound, errCodeNoRoute, "no route from "+req.SourceChain+" to "+req.DestChain)
		return
	}
	route := all[0]
	for _, candidate := range all {
		if candidate.Priority == priority {
			route = candidate
			break
		}
	}

	s.writeJSON(w, http.StatusOK, solveIntentResponse{
		Success:           true,
		Route:             route,
		AlternativeRoutes: alternativeRoutes(all, route, s.cfg.Routing.MaxAlternatives),
		Analytics:         buildAnalytics(all, route),
	})
}

// alternativeRoutes returns the highest-scoring routes whose path differs
// from the recommendation and from each other, at most limit of them.
func alternativeRoutes(all []*optimizer.Route, best *optimizer.Route, limit int) []*optimizer.Route {
	ranked := make([]*optimizer.Route, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	seen := map[string]bool{pathKey(best.Path): true}
	out := make([]*optimizer.Route, 0, limit)
	for _, r := range ranked {
		key := pathKey(r.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out
}

func pathKey(path []chain.Name) string {
	parts := make([]string, len(path))
	for i, c := range path {
		parts[i] = string(c)
	}
	return strings.Join(parts, "-")
}

func buildAnalytics(all []*optimizer.Route, best *optimizer.Route) *solveAnalytics {
	var gasSum float64
	for _, r := range all {
		gasSum += r.Breakdown.GasCost
	}
	avgGas := gasSum / float64(len(all))

	var savings float64
	if avgGas > 0 {
		savings = math.Max(0, (avgGas-best.Breakdown.GasCost)/avgGas*100)
	}

	avgGasSaving := 0
	if best.Savings != nil && best.Savings.VsBestAlternative != nil {
		avgGasSaving = *best.Savings.VsBestAlternative
	}

	health := "degraded"
	switch {
	case best.Breakdown.CongestionScore < 30:
		health = "excellent"
	case best.Breakdown.CongestionScore < 70:
		health = "good"
	}

	return &solveAnalytics{
		RoutesAnalyzed:    len(all),
		TotalGas:          best.Breakdown.GasCost,
		SavingsPercentage: math.Round(savings*100) / 100,
		AvgGasSaving:      avgGasSaving,
		AvgTimeEstimate:   best.Breakdown.EstimatedTime,
		NetworkHealth:     health,
	}
}

type chainInfo struct {
	Name        chain.Name     `json:"name"`
	DisplayName string         `json:"displayName"`
	Category    chain.Category `json:"category"`
	Features    []string       `json:"features"`
	IsConnected bool           `json:"isConnected"`
}

func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	connected := make(map[chain.Name]bool, len(chain.All))
	for _, stats := range s.cache.StatsForAll(r.Context()) {
		connected[stats.Chain] = stats.CurrentBlock > 0
	}

	out := make([]chainInfo, 0, len(chain.All))
	for _, name := range chain.All {
		meta, _ := chain.Lookup(name)
		out = append(out, chainInfo{
			Name:        name,
			DisplayName: meta.DisplayName,
			Category:    meta.Category,
			Features:    meta.Features,
			IsConnected: connected[name],
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"chains": out, "tokens": chain.SupportedTokens})
}

func (s *Server) handleCompareRoutes(w http.ResponseWriter, r *http.Request) {
	src := chain.Name(r.URL.Query().Get("from"))
	dst := chain.Name(r.URL.Query().Get("to"))
	asset := r.URL.Query().Get("asset")
	if asset == "" {
		asset = "WND"
	}
	if !chain.IsKnown(src) || !chain.IsKnown(dst) {
		s.writeError(w, http.StatusBadRequest, errCodeUnknownChain, "from and to must name known chains")
		return
	}
	if src == dst {
		s.writeError(w, http.StatusBadRequest, errCodeInvalidRequest, "from and to must differ")
		return
	}

	routes := s.optimizer.CompareRoutes(r.Context(), src, dst, asset)
	if len(routes) == 0 {
		s.writeError(w, http.StatusNotFound, errCodeNoRoute, "no route from "+string(src)+" to "+string(dst))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"routes": routes})
}

func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"graph": s.optimizer.GraphStats(),
		"cache": s.cache.Stats(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}
