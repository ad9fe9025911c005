package ports

import "context"

// ModelClient is one of the five LLM firm endpoints. Predict returns the
// model's raw decision blob (untrusted, arbitrary JSON shape); it is the
// Decision Validator's job (C5), not the client's, to make sense of it.
// Rate-limit responses are handled internally by the client via
// internal/retry before it returns to the caller.
type ModelClient interface {
	Predict(ctx context.Context, prompt string) (json []byte, err error)
}

// AreaReport is one collector's output for one market: a numeric score in
// [0,10] and the free-text analysis backing it.
type AreaReport struct {
	Score    float64
	Analysis string
	Failed   bool // true when the collector fell back to a neutral report
}

// NeutralAreaReport is returned by C4 in place of a failed collector call,
// per §4.4: score defaults to 5/10, analysis records the failure.
func NeutralAreaReport(reason string) AreaReport {
	return AreaReport{Score: 5, Analysis: "collector unavailable: " + reason, Failed: true}
}

// Collector is one of the five market-data collector classes
// (technical/news/sentiment/fundamental/volatility). All are best-effort:
// Collect returns an error on upstream outage, a non-2xx status or a
// malformed response, and the Analysis Assembler (C4) substitutes
// NeutralAreaReport for the failed call.
type Collector interface {
	Collect(ctx context.Context, marketID string) (AreaReport, error)
}
