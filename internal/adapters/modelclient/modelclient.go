// Package modelclient adapts a firm's externally hosted LLM endpoint to
// ports.ModelClient. The five LLM backends are external collaborators
// (out of scope per spec.md §1) — this is a thin, generic HTTP client
// good enough for any firm whose provider accepts a flat prompt string
// and returns a raw decision blob, grounded on the same
// go-resty/resty/v2 transport internal/adapters/venue uses.
package modelclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/predimarket/tradingcore/internal/apperr"
	"github.com/predimarket/tradingcore/internal/ports"
	"github.com/predimarket/tradingcore/internal/retry"
)

// Client calls one firm's model endpoint with a bearer-token API key.
type Client struct {
	http        *resty.Client
	modelID     string
	retryPolicy retry.Policy
}

var _ ports.ModelClient = (*Client)(nil)

// New builds a Client against baseURL, authenticating with apiKey and
// identifying itself with modelID in the request body.
func New(baseURL, apiKey, modelID string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json"),
		modelID:     modelID,
		retryPolicy: retry.Default(),
	}
}

type predictRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// Predict posts prompt to the provider's completion endpoint and returns
// the raw response body for validator.Parse to unmarshal. Rate-limit and
// 5xx responses are retried with backoff internally; the caller
// (assembler) only ever sees a terminal failure.
func (c *Client) Predict(ctx context.Context, prompt string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, c.retryPolicy, classify, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(predictRequest{Model: c.modelID, Prompt: prompt}).
			Post("/v1/complete")
		if err != nil {
			return &apperr.TransientError{Op: "model.predict", Err: err}
		}
		if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
			return &apperr.TransientError{Op: "model.predict", Err: fmt.Errorf("status %d", resp.StatusCode())}
		}
		if resp.IsError() {
			return fmt.Errorf("model.predict: status %d: %s", resp.StatusCode(), resp.String())
		}
		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func classify(err error) retry.Decision {
	var transient *apperr.TransientError
	if errors.As(err, &transient) {
		return retry.Retry
	}
	return retry.Stop
}
