// Package assembler implements the Analysis Assembler (C4): for a (firm,
// market) pair it gathers the five analytic reports (through the C3
// cache, so the five firms share one fetch per symbol per cycle), formats
// the per-firm persona preamble, and invokes the firm's model client,
// which retries internally per ports.ModelClient's contract.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/predimarket/tradingcore/internal/cache"
	"github.com/predimarket/tradingcore/internal/domain"
	"github.com/predimarket/tradingcore/internal/ports"
)

// Collectors bundles the five best-effort market-data collector classes.
type Collectors struct {
	Sentiment   ports.Collector
	News        ports.Collector
	Technical   ports.Collector
	Fundamental ports.Collector
	Volatility  ports.Collector
}

// Assembler wires the shared cache and the five collectors. Retrying the
// model call itself is the model client's responsibility (ports.ModelClient's
// contract): Assemble calls Predict exactly once per pair.
type Assembler struct {
	Cache      *cache.Cache
	Collectors Collectors
}

// New builds an Assembler.
func New(c *cache.Cache, collectors Collectors) *Assembler {
	return &Assembler{Cache: c, Collectors: collectors}
}

// areaReports is every (score, analysis) the five collectors produced for
// one market, keyed by area name for prompt formatting.
type areaReports struct {
	sentiment, news, technical, fundamental, volatility ports.AreaReport
}

// collect fetches all five area reports for marketID through the shared
// single-flight cache, substituting a neutral report for any collector
// that fails, per §4.4.
func (a *Assembler) collect(ctx context.Context, marketID string) areaReports {
	return areaReports{
		sentiment:   a.collectOne(ctx, "sentiment", marketID, a.Collectors.Sentiment),
		news:        a.collectOne(ctx, "news", marketID, a.Collectors.News),
		technical:   a.collectOne(ctx, "technical", marketID, a.Collectors.Technical),
		fundamental: a.collectOne(ctx, "fundamental", marketID, a.Collectors.Fundamental),
		volatility:  a.collectOne(ctx, "volatility", marketID, a.Collectors.Volatility),
	}
}

func (a *Assembler) collectOne(ctx context.Context, source, marketID string, c ports.Collector) ports.AreaReport {
	if c == nil {
		return ports.NeutralAreaReport("no collector configured")
	}
	v, err := a.Cache.Get(cache.Key{Symbol: marketID, Source: source}, func() (any, error) {
		return c.Collect(ctx, marketID)
	})
	if err != nil {
		slog.Warn("assembler: collector failed, using neutral report", "source", source, "market_id", marketID, "err", err)
		return ports.NeutralAreaReport(err.Error())
	}
	return v.(ports.AreaReport)
}

// Prompt is the structured input handed to a firm's model client. Its
// exact prose is a non-goal (spec.md §1); only the shape (persona +
// five area reports) is specified here.
type Prompt struct {
	Firm   domain.Firm
	Market domain.Market
	Areas  areaReports
}

// String renders the prompt as the flat text payload sent to the model
// client.
func (p Prompt) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a prediction-market trading analyst (model: %s).\n", p.Firm.Name, p.Firm.ModelID)
	fmt.Fprintf(&b, "Market: %s (%s)\n\n", p.Market.Title, p.Market.MarketID)
	fmt.Fprintf(&b, "Sentiment [%v/10]: %s\n", p.Areas.sentiment.Score, p.Areas.sentiment.Analysis)
	fmt.Fprintf(&b, "News [%v/10]: %s\n", p.Areas.news.Score, p.Areas.news.Analysis)
	fmt.Fprintf(&b, "Technical [%v/10]: %s\n", p.Areas.technical.Score, p.Areas.technical.Analysis)
	fmt.Fprintf(&b, "Fundamental [%v/10]: %s\n", p.Areas.fundamental.Score, p.Areas.fundamental.Analysis)
	fmt.Fprintf(&b, "Volatility [%v/10]: %s\n", p.Areas.volatility.Score, p.Areas.volatility.Analysis)
	return b.String()
}

// Assemble gathers the five area reports, builds the prompt, and invokes
// model. If the model call fails after retries, the (firm, market) pair is
// skipped with a warning — the caller (orchestrator) treats a non-nil
// error here as "skip this pair, other firms proceed".
func (a *Assembler) Assemble(ctx context.Context, firm domain.Firm, market domain.Market, model ports.ModelClient) ([]byte, error) {
	areas := a.collect(ctx, market.MarketID)
	prompt := Prompt{Firm: firm, Market: market, Areas: areas}

	blob, err := model.Predict(ctx, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("assembler: model predict failed for firm %s market %s: %w", firm.Name, market.MarketID, err)
	}
	return blob, nil
}
