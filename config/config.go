// Package config loads the trading core's configuration: a YAML file plus
// environment overrides via viper (ambient settings), and a separate
// env-only Secrets struct via caarlos0/env so credentials never need to
// round-trip through a file on disk. A local .env is loaded for
// development via godotenv.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/domain"
)

// BankrollMode selects the preset bankroll/spend-cap regime, per §6.
type BankrollMode string

const (
	BankrollTest       BankrollMode = "TEST"
	BankrollProduction BankrollMode = "PRODUCTION"
)

// Config is the full ambient + domain configuration of the trading core.
type Config struct {
	SystemEnabled bool           `mapstructure:"system_enabled"`
	Firms         []FirmConfig   `mapstructure:"firms"`
	Bankroll      BankrollConfig `mapstructure:"bankroll"`
	Venue         VenueConfig    `mapstructure:"venue"`
	External      ExternalConfig `mapstructure:"external"`
	Sizing        SizingDefaults `mapstructure:"sizing"`
	Risk          RiskConfig     `mapstructure:"risk"`
	Schedule      ScheduleConfig `mapstructure:"schedule"`
	Server        ServerConfig   `mapstructure:"server"`
	Storage       StorageConfig  `mapstructure:"storage"`
	Log           LogConfig      `mapstructure:"log"`
}

// FirmConfig registers one of the five model-backed firms.
type FirmConfig struct {
	Name           string `mapstructure:"name"`
	ModelID        string `mapstructure:"model_id"`
	ColorTag       string `mapstructure:"color_tag"`
	SizingStrategy string `mapstructure:"sizing_strategy"`
}

// Domain converts a FirmConfig into the domain.Firm it registers.
func (f FirmConfig) Domain() domain.Firm {
	return domain.Firm{
		Name:           f.Name,
		ModelID:        f.ModelID,
		ColorTag:       f.ColorTag,
		SizingStrategy: domain.SizingStrategy(f.SizingStrategy),
	}
}

// BankrollConfig holds the two presets named in §6: TEST (initial 50,
// daily spend cap 5) and PRODUCTION (initial 5000, no daily spend cap).
type BankrollConfig struct {
	Mode                  BankrollMode `mapstructure:"mode"`
	TestInitialBalance    float64      `mapstructure:"test_initial_balance"`
	TestDailySpendCap     float64      `mapstructure:"test_daily_spend_cap"`
	ProdInitialBalance    float64      `mapstructure:"prod_initial_balance"`
}

// InitialBalance returns the initial per-firm bankroll for the active mode.
func (b BankrollConfig) InitialBalance() float64 {
	if b.Mode == BankrollProduction {
		return b.ProdInitialBalance
	}
	return b.TestInitialBalance
}

// DailySpendCap returns the global daily spend cap for the active mode, or
// 0 meaning "no cap" in PRODUCTION.
func (b BankrollConfig) DailySpendCap() float64 {
	if b.Mode == BankrollProduction {
		return 0
	}
	return b.TestDailySpendCap
}

// ExternalConfig holds the base URLs of the out-of-scope external
// collaborators: the firms' LLM providers and the shared market-data
// provider backing the five collectors (§1).
type ExternalConfig struct {
	ModelBase      string `mapstructure:"model_base"`
	DataSourceBase string `mapstructure:"data_source_base"`
}

// VenueConfig holds the venue API's base URLs and rate limits.
type VenueConfig struct {
	MarketsBase     string  `mapstructure:"markets_base"`
	OrdersBase      string  `mapstructure:"orders_base"`
	TakerFeeRate    float64 `mapstructure:"taker_fee_rate"`
	MarketsRatePerSec float64 `mapstructure:"markets_rate_per_sec"`
	BooksRatePerSec   float64 `mapstructure:"books_rate_per_sec"`
	OrdersRatePerSec  float64 `mapstructure:"orders_rate_per_sec"`
	PageSize        int     `mapstructure:"page_size"`
	MaxMarkets      int     `mapstructure:"max_markets"`
	LowGasThreshold float64 `mapstructure:"low_gas_threshold"`
}

// SizingDefaults exposes every sizing-strategy coefficient as a
// configurable default, per spec.md §9's "treat values in §4.6 as
// configurable defaults" design note.
type SizingDefaults struct {
	KellyFractionOfFull   float64 `mapstructure:"kelly_fraction_of_full"`
	FixedFractionalTiers  FixedFractionalTiers `mapstructure:"fixed_fractional_tiers"`
	ProportionalK         float64 `mapstructure:"proportional_k"`
	MartingaleMultiplier  float64 `mapstructure:"martingale_multiplier"`
	MartingaleMaxEscalate int     `mapstructure:"martingale_max_escalations"`
	AntiMartingaleMultiplier float64 `mapstructure:"anti_martingale_multiplier"`
	AntiMartingaleMaxEscalate int  `mapstructure:"anti_martingale_max_escalations"`
	MinimumBet            float64 `mapstructure:"minimum_bet"`
}

// FixedFractionalTiers holds the confidence-banded bankroll fractions.
type FixedFractionalTiers struct {
	High   float64 `mapstructure:"high"`   // confidence >= 80
	Medium float64 `mapstructure:"medium"` // confidence >= 70
	Low    float64 `mapstructure:"low"`    // confidence >= 60
	Floor  float64 `mapstructure:"floor"`  // below 60
}

// RiskTierConfig is one row of the 4-tier table (§4.7), fully overridable.
type RiskTierConfig struct {
	Name               string  `mapstructure:"name"`
	MinRatio           float64 `mapstructure:"min_ratio"`
	MaxBetFraction     float64 `mapstructure:"max_bet_fraction"`
	DailyLossCapFraction float64 `mapstructure:"daily_loss_cap_fraction"`
	MaxOpenPositions   int     `mapstructure:"max_open_positions"`
}

// RiskConfig holds the 4-tier table plus the supplemented per-category
// exposure cap and circuit-breaker thresholds.
type RiskConfig struct {
	Tiers                  []RiskTierConfig `mapstructure:"tiers"`
	CategoryExposureCapPct float64          `mapstructure:"category_exposure_cap_pct"`
	CircuitBreakerMaxConsecutiveLosses int  `mapstructure:"circuit_breaker_max_consecutive_losses"`
	CircuitBreakerMaxDrawdownPct       float64 `mapstructure:"circuit_breaker_max_drawdown_pct"`
	CircuitBreakerCooldown time.Duration `mapstructure:"circuit_breaker_cooldown"`
}

// DefaultRiskTiers returns the §4.7 table verbatim — this spec's numbers
// are authoritative over original_source/risk_tiers.py's different
// thresholds (90/70/50/40%); see DESIGN.md.
func DefaultRiskTiers() []RiskTierConfig {
	return []RiskTierConfig{
		{Name: "Conservative", MinRatio: 0.85, MaxBetFraction: 0.02, DailyLossCapFraction: 0.10, MaxOpenPositions: 5},
		{Name: "Defensive", MinRatio: 0.70, MaxBetFraction: 0.01, DailyLossCapFraction: 0.07, MaxOpenPositions: 3},
		{Name: "Recovery", MinRatio: 0.60, MaxBetFraction: 0.005, DailyLossCapFraction: 0.05, MaxOpenPositions: 2},
		{Name: "Emergency", MinRatio: 0.50, MaxBetFraction: 0.0025, DailyLossCapFraction: 0.03, MaxOpenPositions: 1},
		{Name: "Suspended", MinRatio: 0, MaxBetFraction: 0, DailyLossCapFraction: 0, MaxOpenPositions: 0},
	}
}

// ScheduleConfig holds the gronx cron expressions driving C8's monitor and
// C9's daily cycle.
type ScheduleConfig struct {
	DailyCycleCron   string        `mapstructure:"daily_cycle_cron"`
	MonitorCron      string        `mapstructure:"monitor_cron"`
	CycleDeadline    time.Duration `mapstructure:"cycle_deadline"`
}

// ServerConfig holds the admin HTTP surface's listen address.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig points at the single embedded database file, plus the
// separate pure-Go rejected-markets audit log (internal/auditlog).
type StorageConfig struct {
	DSN      string `mapstructure:"dsn"`
	AuditDSN string `mapstructure:"audit_dsn"`
}

// LogConfig controls log level/format, as in the teacher's setupLogger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Secrets holds every credential: the venue API key and custody wallet
// private key, the five model API credentials, the data-source
// credentials, and the monitor endpoint's shared secret. Loaded strictly
// from the environment — never written to or read from the YAML file.
type Secrets struct {
	VenueAPIKey             string `env:"VENUE_API_KEY,required"`
	CustodyWalletPrivateKey string `env:"CUSTODY_WALLET_PRIVATE_KEY,required"`
	ModelAPIKeyFirm1        string `env:"MODEL_API_KEY_FIRM1"`
	ModelAPIKeyFirm2        string `env:"MODEL_API_KEY_FIRM2"`
	ModelAPIKeyFirm3        string `env:"MODEL_API_KEY_FIRM3"`
	ModelAPIKeyFirm4        string `env:"MODEL_API_KEY_FIRM4"`
	ModelAPIKeyFirm5        string `env:"MODEL_API_KEY_FIRM5"`
	DataSourceAPIKey        string `env:"DATA_SOURCE_API_KEY"`
	MonitorSharedSecret     string `env:"MONITOR_SHARED_SECRET,required"`
	AdminSharedSecret       string `env:"ADMIN_SHARED_SECRET,required"`
}

// Load reads the YAML config at path via viper, applies env-var overrides
// (AutomaticEnv with a "." -> "_" key replacer, matching
// Praying-binance-trade-bot-go's LoadConfig), fills in defaults, and
// parses Secrets separately from the environment.
func Load(path string) (*Config, *Secrets, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, &apperr.ConfigError{Field: "config file", Err: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, &apperr.ConfigError{Field: "unmarshal", Err: err}
	}
	if len(cfg.Risk.Tiers) == 0 {
		cfg.Risk.Tiers = DefaultRiskTiers()
	}

	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return nil, nil, &apperr.ConfigError{Field: "secrets", Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, &secrets, nil
}

func (c Config) validate() error {
	if len(c.Firms) == 0 {
		return &apperr.ConfigError{Field: "firms", Err: fmt.Errorf("at least one firm must be registered")}
	}
	if c.Bankroll.Mode != BankrollTest && c.Bankroll.Mode != BankrollProduction {
		return &apperr.ConfigError{Field: "bankroll.mode", Err: fmt.Errorf("must be TEST or PRODUCTION, got %q", c.Bankroll.Mode)}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("system_enabled", true)
	v.SetDefault("bankroll.mode", string(BankrollTest))
	v.SetDefault("bankroll.test_initial_balance", 50.0)
	v.SetDefault("bankroll.test_daily_spend_cap", 5.0)
	v.SetDefault("bankroll.prod_initial_balance", 5000.0)

	v.SetDefault("venue.taker_fee_rate", 0.03)
	v.SetDefault("venue.markets_rate_per_sec", 18)
	v.SetDefault("venue.books_rate_per_sec", 30)
	v.SetDefault("venue.orders_rate_per_sec", 10)
	v.SetDefault("venue.page_size", 20)
	v.SetDefault("venue.max_markets", 200)
	v.SetDefault("venue.low_gas_threshold", 1.0)

	v.SetDefault("external.model_base", "")
	v.SetDefault("external.data_source_base", "")

	v.SetDefault("sizing.kelly_fraction_of_full", 0.25)
	v.SetDefault("sizing.fixed_fractional_tiers.high", 0.02)
	v.SetDefault("sizing.fixed_fractional_tiers.medium", 0.015)
	v.SetDefault("sizing.fixed_fractional_tiers.low", 0.01)
	v.SetDefault("sizing.fixed_fractional_tiers.floor", 0.005)
	v.SetDefault("sizing.proportional_k", 0.015)
	v.SetDefault("sizing.martingale_multiplier", 1.5)
	v.SetDefault("sizing.martingale_max_escalations", 3)
	v.SetDefault("sizing.anti_martingale_multiplier", 1.3)
	v.SetDefault("sizing.anti_martingale_max_escalations", 3)
	v.SetDefault("sizing.minimum_bet", 1.50)

	v.SetDefault("risk.category_exposure_cap_pct", 0.25)
	v.SetDefault("risk.circuit_breaker_max_consecutive_losses", 5)
	v.SetDefault("risk.circuit_breaker_max_drawdown_pct", 0.30)
	v.SetDefault("risk.circuit_breaker_cooldown", "12h")

	v.SetDefault("schedule.daily_cycle_cron", "0 13 * * *")
	v.SetDefault("schedule.monitor_cron", "*/30 * * * *")
	v.SetDefault("schedule.cycle_deadline", "15m")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("storage.dsn", "tradingcore.db")
	v.SetDefault("storage.audit_dsn", "tradingcore_rejections.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
