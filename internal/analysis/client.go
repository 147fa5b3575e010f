// Package analysis talks to the external text-analysis collaborator that
// scores complaint descriptions. The core treats the scores as opaque
// inputs; when the collaborator is unreachable the caller degrades to the
// classifier defaults instead of failing intake.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Scores carries the analysis output for one complaint text.
type Scores struct {
	Urgency   float64 `json:"urgency_score"`
	Sentiment float64 `json:"sentiment_score"`
}

// Provider scores complaint text.
type Provider interface {
	Analyze(ctx context.Context, text string) (Scores, error)
}

// ErrUnavailable marks collaborator failures callers may degrade on.
var ErrUnavailable = errors.New("analysis service unavailable")

// HTTPProvider calls a JSON scoring endpoint.
type HTTPProvider struct {
	url    string
	client *http.Client
}

// NewHTTPProvider builds a provider for the given endpoint. An empty URL
// yields a provider whose Analyze always reports ErrUnavailable, which
// keeps intake working in deployments without an analyzer.
func NewHTTPProvider(url string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// Analyze posts the text and decodes the scores.
func (p *HTTPProvider) Analyze(ctx context.Context, text string) (Scores, error) {
	if p.url == "" {
		return Scores{}, ErrUnavailable
	}

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return Scores{}, fmt.Errorf("analysis: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Scores{}, fmt.Errorf("analysis: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Scores{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Scores{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var scores Scores
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return Scores{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return scores, nil
}
