// Package adminapi exposes the operational HTTP surface documented in
// spec.md §6: a health probe, admin-triggered cycle/monitor endpoints, and
// the read-only dashboard views. Router shape is grounded on
// XavierBriggs-Services/bot-service's chi wiring
// (cmd/bot-service/main.go), handler style on its internal/handler
// package (respondJSON/respondError, one handler struct per concern).
package adminapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/predimarket/tradingcore/internal/application/orchestrator"
	"github.com/predimarket/tradingcore/internal/application/orders"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
)

// Server wires the orchestrator, order monitor, and store behind chi
// routes. Nothing here surfaces as a bare 500 for expected failure
// modes (§7): every handler translates domain errors into a structured
// JSON body with a 200 or 4xx status and a success flag.
type Server struct {
	Orchestrator  *orchestrator.Orchestrator
	Orders        *orders.Service
	Store         ports.Store
	MonitorSecret string
	AdminSecret   string
}

// Router builds the chi mux with every documented route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(20 * time.Minute)) // covers the 15-minute cycle deadline plus margin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Secret"},
		MaxAge:           300,
	}))

	r.Get("/health", s.health)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/run-cycle", s.requireSecret(s.AdminSecret, s.runCycle))
		r.Post("/monitor-orders", s.requireSecret(s.MonitorSecret, s.monitorOrders))
		r.Post("/initialize-portfolios", s.requireSecret(s.AdminSecret, s.initializePortfolios))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", s.leaderboard)
		r.Get("/live-metrics", s.liveMetrics)
		r.Get("/active-positions", s.activePositions)
		r.Get("/ai-decisions-history", s.aiDecisionsHistory)
		r.Get("/cancelled-orders", s.cancelledOrders)
		r.Get("/recent-trades", s.recentTrades)
		r.Get("/ai-trades/{firm}", s.aiTrades)
	})

	return r
}

// requireSecret gates a handler behind an exact match of the given
// shared secret in the X-Admin-Secret header, per §6's admin-endpoint
// authentication requirement.
func (s *Server) requireSecret(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret == "" || r.Header.Get("X-Admin-Secret") != secret {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) runCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Orchestrator.RunCycle(r.Context())
	if err != nil {
		slog.Error("adminapi: run-cycle failed", "err", err)
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"cycle_id":         summary.CycleID,
		"status":           summary.Status,
		"markets_fetched":  summary.MarketsFetched,
		"markets_tradable": summary.MarketsTradable,
		"bets_approved":    summary.BetsApproved,
		"bets_executed":    summary.BetsExecuted,
		"bets_failed":      summary.BetsFailed,
	})
}

func (s *Server) monitorOrders(w http.ResponseWriter, r *http.Request) {
	reviewed, strikes, cancelled, err := s.Orders.RunMonitor(r.Context())
	if err != nil {
		slog.Error("adminapi: monitor-orders failed", "err", err)
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"reviewed":       reviewed,
		"strikes_issued": strikes,
		"cancelled":      cancelled,
	})
}

func (s *Server) initializePortfolios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	firms, err := s.Store.Firms(ctx)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	var body struct {
		InitialBalance float64 `json:"initial_balance"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.InitialBalance <= 0 {
		respondError(w, http.StatusBadRequest, "initial_balance must be positive")
		return
	}

	initialized := 0
	for _, firm := range firms {
		exists, err := s.Store.PortfolioExists(ctx, firm.Name)
		if err != nil {
			respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
			return
		}
		if exists {
			continue
		}
		portfolio := domain.Portfolio{
			FirmName:       firm.Name,
			Balance:        body.InitialBalance,
			InitialBalance: body.InitialBalance,
			PeakBalance:    body.InitialBalance,
			LastUpdate:     time.Now().UTC(),
		}
		if err := s.Store.Tx(ctx, func(ctx context.Context) error {
			return s.Store.SavePortfolio(ctx, portfolio)
		}); err != nil {
			respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
			return
		}
		initialized++
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "initialized": initialized, "skipped": len(firms) - initialized})
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Store.Leaderboard(r.Context())
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(rows), "leaderboard": rows})
}

func (s *Server) liveMetrics(w http.ResponseWriter, r *http.Request) {
	positions, err := s.Store.ActivePositions(r.Context())
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	leaderboard, err := s.Store.Leaderboard(r.Context())
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"open_positions":  len(positions),
		"tracked_firms":   len(leaderboard),
	})
}

func (s *Server) activePositions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Store.ActivePositions(r.Context())
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(rows), "positions": rows})
}

func (s *Server) aiDecisionsHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	rows, err := s.Store.PredictionHistory(r.Context(), limit)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(rows), "decisions": rows})
}

func (s *Server) cancelledOrders(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)
	rows, err := s.Store.CancelledOrders(r.Context(), limit)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(rows), "cancelled_orders": rows})
}

func (s *Server) recentTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)
	rows, err := s.Store.RecentTrades(r.Context(), limit)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(rows), "trades": rows})
}

func (s *Server) aiTrades(w http.ResponseWriter, r *http.Request) {
	firm := chi.URLParam(r, "firm")
	limit := parseLimit(r, 50)
	rows, err := s.Store.FirmTrades(r.Context(), firm, limit)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(rows), "trades": rows})
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > 500 {
		return 500
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"success": false, "error": message})
}
