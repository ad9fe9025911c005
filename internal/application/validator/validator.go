// Package validator implements the Decision Validator (C5): it turns a
// model's untrusted raw JSON blob into a canonical domain.Prediction or a
// rejection. Grounded in style on AlejandroRuiz99-polybot's mapping.go
// defensive parsing of untrusted upstream fields (string-or-number
// coercion, missing-field defaulting).
package validator

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/domain"
)

// rawDecision is the loosely-typed shape a model's JSON blob is expected
// to roughly conform to. Every field that can plausibly arrive as either a
// string or a number is typed as any and coerced in Parse.
type rawDecision struct {
	Probability          any    `json:"probability"`
	Confidence           any    `json:"confidence"`
	Sentiment            any    `json:"sentiment_score"`
	News                 any    `json:"news_score"`
	Technical            any    `json:"technical_score"`
	Fundamental          any    `json:"fundamental_score"`
	Volatility           any    `json:"volatility_score"`
	SentimentAnalysis    *string `json:"sentiment_analysis"`
	NewsAnalysis         *string `json:"news_analysis"`
	TechnicalAnalysis    *string `json:"technical_analysis"`
	FundamentalAnalysis  *string `json:"fundamental_analysis"`
	VolatilityAnalysis   *string `json:"volatility_analysis"`
	ProbabilityReasoning *string `json:"probability_reasoning"`
}

// Parse normalises a model's raw decision blob into a canonical
// domain.Prediction for (firm, marketID), per §4.5's rules. It never
// returns a Prediction that fails InRange; any unrecoverable violation
// returns a *apperr.SchemaError instead.
func Parse(firm, marketID string, blob []byte) (domain.Prediction, error) {
	var raw rawDecision
	if err := json.Unmarshal(blob, &raw); err != nil {
		return domain.Prediction{}, &apperr.SchemaError{Field: "body", Err: err}
	}

	prob, err := parseProbability(raw.Probability)
	if err != nil {
		return domain.Prediction{}, &apperr.SchemaError{Field: "probability", Err: err}
	}

	confidence, err := asFloat(raw.Confidence)
	if err != nil {
		return domain.Prediction{}, &apperr.SchemaError{Field: "confidence", Err: err}
	}
	if confidence < 0 || confidence > 10 {
		return domain.Prediction{}, &apperr.SchemaError{Field: "confidence", Err: fmt.Errorf("out of [0,10]: %v", confidence)}
	}

	if raw.ProbabilityReasoning == nil {
		return domain.Prediction{}, &apperr.SchemaError{Field: "probability_reasoning", Err: fmt.Errorf("missing")}
	}

	p := domain.Prediction{
		Firm:        firm,
		MarketID:    marketID,
		Probability: prob,
		Confidence:  confidence,
		Scores: domain.AreaScores{
			Sentiment:   scoreOrDefault(raw.Sentiment),
			News:        scoreOrDefault(raw.News),
			Technical:   scoreOrDefault(raw.Technical),
			Fundamental: scoreOrDefault(raw.Fundamental),
			Volatility:  scoreOrDefault(raw.Volatility),
		},
		Analyses: domain.AreaAnalyses{
			Sentiment:   stringOrEmpty(raw.SentimentAnalysis),
			News:        stringOrEmpty(raw.NewsAnalysis),
			Technical:   stringOrEmpty(raw.TechnicalAnalysis),
			Fundamental: stringOrEmpty(raw.FundamentalAnalysis),
			Volatility:  stringOrEmpty(raw.VolatilityAnalysis),
		},
		ProbabilityReasoning: *raw.ProbabilityReasoning,
	}

	if !p.InRange() {
		return domain.Prediction{}, &apperr.SchemaError{Field: "prediction", Err: fmt.Errorf("failed range validation")}
	}
	return p, nil
}

// parseProbability implements §4.5/§8's percent-normalisation rule:
// values in (1, 100] are interpreted as a percent and divided by 100.
// 0 and 1 stay as-is (boundary cases). Anything outside [0, 100] rejects.
func parseProbability(v any) (float64, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f > 1 && f <= 100 {
		f = f / 100
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("out of range after percent normalisation: %v", f)
	}
	return f, nil
}

// scoreOrDefault returns the coerced numeric score, or 5 (neutral) if
// missing/unparsable, per §4.5's "missing scores default to 5" rule.
func scoreOrDefault(v any) float64 {
	f, err := asFloat(v)
	if err != nil {
		return 5
	}
	if f < 0 || f > 10 {
		return 5
	}
	return f
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// asFloat coerces a JSON-decoded value (float64, json.Number, or string)
// into a float64, the defensive string-or-number handling pattern
// grounded on the teacher's upstream JSON mapping.
func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("missing")
	case float64:
		return t, nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number: %w", t, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
