package domain

import "time"

// AreaScores are the five 0-10 analytic scores that back a Prediction.
// A missing score defaults to 5 (neutral) per the Decision Validator.
type AreaScores struct {
	Sentiment   float64
	News        float64
	Technical   float64
	Fundamental float64
	Volatility  float64
}

// AreaAnalyses are the five free-text reports backing a Prediction. Each
// may be an empty string; the Decision Validator does not reject a blob
// that omits one, and a missing analysis is stored as "".
type AreaAnalyses struct {
	Sentiment   string
	News        string
	Technical   string
	Fundamental string
	Volatility  string
}

// Prediction is the canonical, validated output of one (firm, market)
// evaluation. One exists for every event a firm evaluated, whether or not
// a bet followed.
type Prediction struct {
	ID                   uint `gorm:"primaryKey;autoIncrement"`
	Firm                 string
	MarketID             string
	Probability          float64
	Confidence           float64
	Scores               AreaScores `gorm:"embedded"`
	Analyses             AreaAnalyses `gorm:"embedded"`
	ProbabilityReasoning string
	SkipReason           string // empty when a bet followed
	CreatedAt            time.Time
}

// InRange validates the §4.5/§4.6/§8(I6) invariants: probability in [0,1],
// confidence and all five area scores in [0,10].
func (p Prediction) InRange() bool {
	if p.Probability < 0 || p.Probability > 1 {
		return false
	}
	if p.Confidence < 0 || p.Confidence > 10 {
		return false
	}
	for _, s := range []float64{p.Scores.Sentiment, p.Scores.News, p.Scores.Technical, p.Scores.Fundamental, p.Scores.Volatility} {
		if s < 0 || s > 10 {
			return false
		}
	}
	return true
}
