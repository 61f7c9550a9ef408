// Package provider implements Decision Provider clients.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/adopshq/adflow/pkg/protocol"
)

const defaultRequestTimeout = 60 * time.Second

// HTTPProvider calls a Decision Provider over HTTP: POST {template, context}
// to the endpoint, expecting {content, structured} back. The core imposes no
// retry semantics of its own; failures surface to the step-retry wrapper.
type HTTPProvider struct {
	endpoint string
	client   *http.Client
}

func NewHTTPProvider(endpoint string) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (p *HTTPProvider) Decide(ctx context.Context, req protocol.DecisionRequest) (*protocol.DecisionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decision request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build decision request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("decision provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decision provider returned status %d", resp.StatusCode)
	}

	var result protocol.DecisionResult

	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("failed to decode decision response: %w", err)
	}

	return &result, nil
}
