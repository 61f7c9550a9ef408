package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/adopshq/adflow/pkg/protocol"
)

// StubProvider returns canned results keyed by template name. Tests and local
// development use it in place of a live Decision Provider.
type StubProvider struct {
	mu      sync.Mutex
	results map[string]*protocol.DecisionResult
	errs    map[string]error
	calls   []protocol.DecisionRequest
}

func NewStubProvider() *StubProvider {
	return &StubProvider{
		results: make(map[string]*protocol.DecisionResult),
		errs:    make(map[string]error),
	}
}

// On registers the result returned for a template.
func (p *StubProvider) On(template string, result *protocol.DecisionResult) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.results[template] = result

	return p
}

// OnError registers an error returned for a template.
func (p *StubProvider) OnError(template string, err error) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errs[template] = err

	return p
}

// Calls returns the requests received so far.
func (p *StubProvider) Calls() []protocol.DecisionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]protocol.DecisionRequest, len(p.calls))
	copy(out, p.calls)

	return out
}

func (p *StubProvider) Decide(_ context.Context, req protocol.DecisionRequest) (*protocol.DecisionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)

	if err, ok := p.errs[req.Template]; ok {
		return nil, err
	}

	result, ok := p.results[req.Template]
	if !ok {
		return nil, fmt.Errorf("no stubbed decision for template %q", req.Template)
	}

	return result, nil
}
