// Package collector adapts the external market-data providers (news,
// sentiment, technical, fundamental, volatility feeds) to ports.Collector.
// These providers are external collaborators (out of scope per
// spec.md §1); this is one generic HTTP client reused for all five areas,
// differing only by path and the data-source API key already carried in
// config.Secrets.
package collector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/ports"
)

// Client queries one area endpoint of a shared market-data provider.
type Client struct {
	http *resty.Client
	area string
}

var _ ports.Collector = (*Client)(nil)

// New builds a Client for one area ("sentiment", "news", "technical",
// "fundamental", "volatility") against baseURL.
func New(baseURL, apiKey, area string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("X-API-Key", apiKey),
		area: area,
	}
}

type areaResponse struct {
	Score    float64 `json:"score"`
	Analysis string  `json:"analysis"`
}

// Collect fetches the area score/analysis for marketID. A non-2xx or
// malformed response is surfaced as an error; the assembler substitutes
// a neutral report rather than aborting the whole (firm, market) pair.
func (c *Client) Collect(ctx context.Context, marketID string) (ports.AreaReport, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("market_id", marketID).
		Get("/v1/" + c.area)
	if err != nil {
		return ports.AreaReport{}, &apperr.TransientError{Op: "collector." + c.area, Err: err}
	}
	if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
		return ports.AreaReport{}, &apperr.TransientError{Op: "collector." + c.area, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}
	if resp.IsError() {
		return ports.AreaReport{}, fmt.Errorf("collector.%s: status %d", c.area, resp.StatusCode())
	}

	var out areaResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return ports.AreaReport{}, fmt.Errorf("collector.%s: decode response: %w", c.area, err)
	}
	return ports.AreaReport{Score: out.Score, Analysis: out.Analysis}, nil
}
