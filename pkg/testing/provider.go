// SPDX-License-Identifier: Apache-2.0

// Package testing provides scripted provider doubles for exercising the
// analysis chain without network access.
package testing

import (
	"context"
	"sync"

	"github.com/mvolkov/fleetsense/pkg/llm"
)

// ScriptProvider is a scripted llm.Provider double. It returns queued
// responses in order and captures every request for assertions.
type ScriptProvider struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	requests     []llm.GenerateRequest
	defaultError error
	onGenerate   func(req llm.GenerateRequest) (*llm.GenerateResponse, error)
}

// ScriptedResponse defines one queued response.
type ScriptedResponse struct {
	Text  string
	Error error
	Usage llm.Usage
	// Condition gates the response; when it returns false the next
	// queued response is tried instead.
	Condition func(req llm.GenerateRequest) bool
}

// NewScriptProvider creates an empty scripted provider.
func NewScriptProvider() *ScriptProvider {
	return &ScriptProvider{}
}

// AddResponse queues a successful text response.
func (p *ScriptProvider) AddResponse(text string) *ScriptProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Text: text})
	return p
}

// AddErrorResponse queues a failure.
func (p *ScriptProvider) AddErrorResponse(err error) *ScriptProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, ScriptedResponse{Error: err})
	return p
}

// AddScriptedResponse queues a fully configured response.
func (p *ScriptProvider) AddScriptedResponse(resp ScriptedResponse) *ScriptProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return p
}

// WithDefaultError sets the error returned once the script runs out.
func (p *ScriptProvider) WithDefaultError(err error) *ScriptProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultError = err
	return p
}

// OnGenerate installs a handler that bypasses the script entirely.
func (p *ScriptProvider) OnGenerate(fn func(req llm.GenerateRequest) (*llm.GenerateResponse, error)) *ScriptProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onGenerate = fn
	return p
}

// Generate implements llm.Provider.
func (p *ScriptProvider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.onGenerate != nil {
		return p.onGenerate(req)
	}

	for p.currentIndex < len(p.responses) {
		resp := p.responses[p.currentIndex]
		p.currentIndex++
		if resp.Condition != nil && !resp.Condition(req) {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return &llm.GenerateResponse{Text: resp.Text, Usage: resp.Usage}, nil
	}

	if p.defaultError != nil {
		return nil, p.defaultError
	}
	return &llm.GenerateResponse{Text: ""}, nil
}

// Requests returns a copy of every captured request.
func (p *ScriptProvider) Requests() []llm.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.GenerateRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// CallCount returns how many times Generate was invoked.
func (p *ScriptProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// LastRequest returns the most recent request, or false when none.
func (p *ScriptProvider) LastRequest() (llm.GenerateRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return llm.GenerateRequest{}, false
	}
	return p.requests[len(p.requests)-1], true
}

// Reset clears the script position and captured requests.
func (p *ScriptProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentIndex = 0
	p.requests = nil
}
