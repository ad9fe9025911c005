// Command tradercore is the trading core's daemon entrypoint: it loads
// configuration, wires every C1-C9 component, and runs the daily cycle
// and order monitor on cron schedules alongside the admin HTTP surface.
// Flag handling and signal-driven shutdown are grounded on
// AlejandroRuiz99-polybot/cmd/scanner/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"

	"github.com/predimarket/tradingcore/config"
	"github.com/predimarket/tradingcore/internal/adapters/collector"
	"github.com/predimarket/tradingcore/internal/adapters/console"
	"github.com/predimarket/tradingcore/internal/adapters/modelclient"
	"github.com/predimarket/tradingcore/internal/adapters/venue"
	"github.com/predimarket/tradingcore/internal/adminapi"
	"github.com/predimarket/tradingcore/internal/auditlog"
	"github.com/predimarket/tradingcore/internal/application/assembler"
	"github.com/predimarket/tradingcore/internal/application/orchestrator"
	"github.com/predimarket/tradingcore/internal/application/orders"
	"github.com/predimarket/tradingcore/internal/application/risk"
	"github.com/predimarket/tradingcore/internal/application/sizing"
	"github.com/predimarket/tradingcore/internal/cache"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
	"github.com/predimarket/tradingcore/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one cycle and exit instead of scheduling")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, secrets, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("tradingcore starting", "config", *configPath, "bankroll_mode", cfg.Bankroll.Mode, "firms", len(cfg.Firms))

	db, err := store.Open(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}

	rejectionLog, err := auditlog.Open(cfg.Storage.AuditDSN)
	if err != nil {
		slog.Error("failed to open rejected-markets audit log", "err", err, "dsn", cfg.Storage.AuditDSN)
		os.Exit(1)
	}
	defer rejectionLog.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := registerFirms(ctx, db, cfg); err != nil {
		slog.Error("failed to register firms", "err", err)
		os.Exit(1)
	}

	venueClient := venue.New(venue.Config{
		MarketsBase:       cfg.Venue.MarketsBase,
		OrdersBase:        cfg.Venue.OrdersBase,
		APIKey:            secrets.VenueAPIKey,
		MarketsRatePerSec: cfg.Venue.MarketsRatePerSec,
		BooksRatePerSec:   cfg.Venue.BooksRatePerSec,
		OrdersRatePerSec:  cfg.Venue.OrdersRatePerSec,
		PageSize:          cfg.Venue.PageSize,
		MaxMarkets:        cfg.Venue.MaxMarkets,
		LowGasThreshold:   cfg.Venue.LowGasThreshold,
		AuditLog:          rejectionLog,
	})

	dataCache := cache.New()
	notifier := console.New()

	asm := assembler.New(dataCache, buildCollectors(cfg, secrets))
	ordersSvc := orders.New(db, venueClient, venueClient, nil, cfg.Venue.TakerFeeRate)

	orch := &orchestrator.Orchestrator{
		Store:     db,
		Markets:   venueClient,
		Books:     venueClient,
		Assembler: asm,
		Models:    buildModelClients(cfg, secrets),
		Orders:    ordersSvc,
		Cache:     dataCache,
		Cfg: orchestrator.Config{
			FeeRate:                cfg.Venue.TakerFeeRate,
			SizingCoefficients:     sizingCoefficients(cfg.Sizing),
			RiskTiers:              riskTable(cfg.Risk.Tiers),
			CircuitBreaker:         riskBreaker(cfg.Risk),
			CategoryExposureCapPct: cfg.Risk.CategoryExposureCapPct,
			DailySpendCap:          cfg.Bankroll.DailySpendCap(),
			CycleDeadline:          cfg.Schedule.CycleDeadline,
		},
	}
	ordersSvc.Reval = orchestrator.NewReevaluator(orch)

	srv := &adminapi.Server{
		Orchestrator:  orch,
		Orders:        ordersSvc,
		Store:         db,
		MonitorSecret: secrets.MonitorSharedSecret,
		AdminSecret:   secrets.AdminSharedSecret,
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 20 * time.Minute,
	}

	if *once {
		summary, err := orch.RunCycle(ctx)
		if err != nil {
			slog.Error("cycle failed", "err", err)
			os.Exit(1)
		}
		slog.Info("cycle complete", "status", summary.Status, "bets_executed", summary.BetsExecuted)
		_ = notifier.Notify(ctx, "cycle complete", fmt.Sprintf("status=%s approved=%d executed=%d failed=%d",
			summary.Status, summary.BetsApproved, summary.BetsExecuted, summary.BetsFailed))
		return
	}

	go func() {
		slog.Info("admin http listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin http server error", "err", err)
			os.Exit(1)
		}
	}()

	go runScheduler(ctx, cfg.Schedule.DailyCycleCron, "daily cycle", func(ctx context.Context) {
		summary, err := orch.RunCycle(ctx)
		if err != nil {
			slog.Error("scheduled cycle failed", "err", err)
			_ = notifier.Notify(ctx, "cycle failed", err.Error())
			return
		}
		slog.Info("scheduled cycle complete", "status", summary.Status, "bets_executed", summary.BetsExecuted)
		_ = notifier.Notify(ctx, "cycle complete", fmt.Sprintf("status=%s approved=%d executed=%d failed=%d",
			summary.Status, summary.BetsApproved, summary.BetsExecuted, summary.BetsFailed))
	})

	go runScheduler(ctx, cfg.Schedule.MonitorCron, "order monitor", func(ctx context.Context) {
		reviewed, strikes, cancelled, err := ordersSvc.RunMonitor(ctx)
		if err != nil {
			slog.Error("scheduled monitor failed", "err", err)
			_ = notifier.Notify(ctx, "monitor failed", err.Error())
			return
		}
		slog.Info("scheduled monitor complete", "reviewed", reviewed, "strikes", strikes, "cancelled", cancelled)
		if cancelled > 0 {
			_ = notifier.Notify(ctx, "monitor complete", fmt.Sprintf("reviewed=%d strikes=%d cancelled=%d", reviewed, strikes, cancelled))
		}
	})

	<-ctx.Done()
	slog.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "err", err)
	}
	slog.Info("tradingcore stopped cleanly")
}

// runScheduler polls expr every minute via gronx.IsDue and invokes fn
// exactly once per due minute, until ctx is cancelled.
func runScheduler(ctx context.Context, expr, label string, fn func(ctx context.Context)) {
	g := gronx.New()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := g.IsDue(expr)
			if err != nil {
				slog.Error("scheduler: invalid cron expression", "label", label, "expr", expr, "err", err)
				continue
			}
			if due {
				slog.Info("scheduler: triggering", "label", label)
				fn(ctx)
			}
		}
	}
}

func registerFirms(ctx context.Context, db *store.Store, cfg *config.Config) error {
	for _, fc := range cfg.Firms {
		firm := fc.Domain()
		if err := db.Tx(ctx, func(ctx context.Context) error {
			return db.UpsertFirm(ctx, firm)
		}); err != nil {
			return fmt.Errorf("register firm %s: %w", firm.Name, err)
		}

		exists, err := db.PortfolioExists(ctx, firm.Name)
		if err != nil {
			return fmt.Errorf("check portfolio for %s: %w", firm.Name, err)
		}
		if exists {
			continue
		}
		initial := cfg.Bankroll.InitialBalance()
		if err := db.Tx(ctx, func(ctx context.Context) error {
			return db.SavePortfolio(ctx, domain.Portfolio{
				FirmName:       firm.Name,
				Balance:        initial,
				InitialBalance: initial,
				PeakBalance:    initial,
				LastUpdate:     time.Now().UTC(),
			})
		}); err != nil {
			return fmt.Errorf("initialize portfolio for %s: %w", firm.Name, err)
		}
	}
	return nil
}

func buildModelClients(cfg *config.Config, secrets *config.Secrets) map[string]ports.ModelClient {
	keysByOrdinal := []string{
		secrets.ModelAPIKeyFirm1,
		secrets.ModelAPIKeyFirm2,
		secrets.ModelAPIKeyFirm3,
		secrets.ModelAPIKeyFirm4,
		secrets.ModelAPIKeyFirm5,
	}
	clients := make(map[string]ports.ModelClient, len(cfg.Firms))
	for i, fc := range cfg.Firms {
		apiKey := ""
		if i < len(keysByOrdinal) {
			apiKey = keysByOrdinal[i]
		}
		clients[fc.Name] = modelclient.New(cfg.External.ModelBase, apiKey, fc.ModelID)
	}
	return clients
}

func buildCollectors(cfg *config.Config, secrets *config.Secrets) assembler.Collectors {
	base := cfg.External.DataSourceBase
	key := secrets.DataSourceAPIKey
	return assembler.Collectors{
		Sentiment:   collector.New(base, key, "sentiment"),
		News:        collector.New(base, key, "news"),
		Technical:   collector.New(base, key, "technical"),
		Fundamental: collector.New(base, key, "fundamental"),
		Volatility:  collector.New(base, key, "volatility"),
	}
}

func sizingCoefficients(s config.SizingDefaults) sizing.Coefficients {
	return sizing.Coefficients{
		KellyFractionOfFull:          s.KellyFractionOfFull,
		FixedFractionalHigh:          s.FixedFractionalTiers.High,
		FixedFractionalMedium:        s.FixedFractionalTiers.Medium,
		FixedFractionalLow:           s.FixedFractionalTiers.Low,
		FixedFractionalFloor:         s.FixedFractionalTiers.Floor,
		ProportionalK:                s.ProportionalK,
		MartingaleMultiplier:         s.MartingaleMultiplier,
		MartingaleMaxEscalations:     s.MartingaleMaxEscalate,
		AntiMartingaleMultiplier:     s.AntiMartingaleMultiplier,
		AntiMartingaleMaxEscalations: s.AntiMartingaleMaxEscalate,
		MinimumBet:                   s.MinimumBet,
	}
}

func riskTable(tiers []config.RiskTierConfig) risk.Table {
	table := make(risk.Table, 0, len(tiers))
	for _, t := range tiers {
		table = append(table, risk.Tier{
			Name:                 t.Name,
			MinRatio:             t.MinRatio,
			MaxBetFraction:       t.MaxBetFraction,
			DailyLossCapFraction: t.DailyLossCapFraction,
			MaxOpenPositions:     t.MaxOpenPositions,
		})
	}
	return table
}

func riskBreaker(r config.RiskConfig) risk.CircuitBreaker {
	return risk.CircuitBreaker{
		MaxConsecutiveLosses: r.CircuitBreakerMaxConsecutiveLosses,
		MaxDrawdownPct:       r.CircuitBreakerMaxDrawdownPct,
		Cooldown:             r.CircuitBreakerCooldown,
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
