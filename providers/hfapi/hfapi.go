// SPDX-License-Identifier: Apache-2.0

// Package hfapi provides a hosted-inference provider backed by the
// Hugging Face Inference API. Endpoints are tried in a fixed priority
// order, from cheapest to most capable; the first endpoint returning a
// successful status with extractable text wins.
package hfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mvolkov/fleetsense/pkg/errors"
	"github.com/mvolkov/fleetsense/pkg/llm"
)

const (
	// DefaultTimeout bounds each endpoint attempt.
	DefaultTimeout = 90 * time.Second

	// DefaultPromptLimit truncates prompts before sending; small hosted
	// models reject or mangle long inputs.
	DefaultPromptLimit = 800

	// defaultTemperature keeps hosted completions close to deterministic.
	defaultTemperature = 0.3
)

// Endpoint is one hosted model endpoint with its generation budget.
type Endpoint struct {
	Name      string
	URL       string
	MaxTokens int
}

// DefaultEndpoints returns the endpoint ladder, ordered from lightest to
// heaviest model.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "TinyGPT2", URL: "https://api-inference.huggingface.co/models/sshleifer/tiny-gpt2", MaxTokens: 300},
		{Name: "Flan-T5-Small", URL: "https://api-inference.huggingface.co/models/google/flan-t5-small", MaxTokens: 400},
		{Name: "GPT-Neo-125M", URL: "https://api-inference.huggingface.co/models/EleutherAI/gpt-neo-125m", MaxTokens: 500},
		{Name: "DistilGPT2", URL: "https://api-inference.huggingface.co/models/distilgpt2", MaxTokens: 500},
		{Name: "Phi-2", URL: "https://api-inference.huggingface.co/models/microsoft/phi-2", MaxTokens: 700},
	}
}

// Client implements llm.Provider against the hosted inference API.
type Client struct {
	apiKey      string
	endpoints   []Endpoint
	client      *http.Client
	promptLimit int
	temperature float64
}

// Option configures the Client.
type Option func(*Client)

// WithEndpoints replaces the default endpoint ladder.
func WithEndpoints(endpoints []Endpoint) Option {
	return func(c *Client) {
		if len(endpoints) > 0 {
			c.endpoints = endpoints
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithPromptLimit sets the prompt truncation length in bytes.
func WithPromptLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.promptLimit = n
		}
	}
}

// New creates a hosted-inference client. The credential is required; an
// unconfigured hosted tier should be skipped by the orchestrator, not
// constructed.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		endpoints:   DefaultEndpoints(),
		client:      &http.Client{Timeout: DefaultTimeout},
		promptLimit: DefaultPromptLimit,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type hostedRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters hostedParameters `json:"parameters"`
}

type hostedParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

// Generate walks the endpoint ladder, returning the first extractable
// completion. Transport failures, non-success statuses, and empty
// extractions all advance to the next endpoint; exhausting the ladder
// yields a TRANSPORT_ERROR.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, errors.New(errors.CodeTransport, "hosted api credential not configured", nil).
			WithRecoverable(true)
	}

	prompt := req.Prompt
	if len(prompt) > c.promptLimit {
		prompt = prompt[:c.promptLimit]
	}

	var lastErr error
	for _, ep := range c.endpoints {
		maxTokens := ep.MaxTokens
		if req.MaxTokens > 0 && req.MaxTokens < maxTokens {
			maxTokens = req.MaxTokens
		}

		text, err := c.attempt(ctx, ep, prompt, maxTokens)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return &llm.GenerateResponse{
			Text: fmt.Sprintf("Анализ (модель: %s):\n\n%s", ep.Name, text),
		}, nil
	}

	return nil, errors.New(errors.CodeTransport, "all hosted endpoints failed", lastErr).
		WithContext("endpoints", len(c.endpoints)).
		WithRecoverable(true)
}

func (c *Client) attempt(ctx context.Context, ep Endpoint, prompt string, maxTokens int) (string, error) {
	payload := hostedRequest{
		Inputs: prompt,
		Parameters: hostedParameters{
			MaxNewTokens:   maxTokens,
			Temperature:    c.temperature,
			ReturnFullText: false,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request for %s: %w", ep.Name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request for %s: %w", ep.Name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("endpoint %s: %w", ep.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("endpoint %s returned status %d", ep.Name, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", ep.Name, err)
	}

	text := ExtractText(raw)
	if text == "" {
		return "", fmt.Errorf("endpoint %s returned no extractable text", ep.Name)
	}
	return text, nil
}

// textKeys are the payload fields checked, in order, when a hosted
// endpoint answers with an object instead of the documented list shape.
var textKeys = []string{"generated_text", "text", "output", "response"}

// metaKeys never carry the completion and are skipped by the last-resort
// object scan.
var metaKeys = map[string]bool{"error": true, "warnings": true, "status": true}

// ExtractText pulls the completion out of a hosted response body. Hosted
// payload shapes vary by model family, so a small set of expected shapes
// is tried in order, falling back to the raw body:
//
//  1. list of objects with generated_text (the documented shape)
//  2. object with one of the known text keys
//  3. bare JSON string
//  4. raw body as-is
func ExtractText(raw []byte) string {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if text := textFromObject(list[0]); text != "" {
			return text
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) > 0 {
		if text := textFromObject(obj); text != "" {
			return text
		}
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	return string(bytes.TrimSpace(raw))
}

func textFromObject(obj map[string]json.RawMessage) string {
	for _, key := range textKeys {
		if v, ok := obj[key]; ok {
			return stringify(v)
		}
	}
	// Last resort: first non-meta field, stringified.
	for key, v := range obj {
		if !metaKeys[key] {
			return stringify(v)
		}
	}
	return ""
}

func stringify(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Ensure Client implements llm.Provider.
var _ llm.Provider = (*Client)(nil)
