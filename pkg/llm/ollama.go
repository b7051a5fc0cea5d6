package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mvolkov/fleetsense/pkg/errors"
)

// DefaultLocalModel is the model pulled by the local runtime when none is
// configured.
const DefaultLocalModel = "qwen2.5:3b-instruct"

// OllamaProvider implements Provider against a local Ollama runtime.
//
// The model is loaded lazily on first use and exactly once for the process
// lifetime; after a successful warm-up the loaded weights are shared
// read-only across calls. A failed warm-up is remembered and reported as
// RUNTIME_UNAVAILABLE without retrying the load.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client

	loadOnce sync.Once
	loadErr  error
}

// OllamaOption configures the OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaModel sets the model identifier to pull and generate with.
func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOllamaHTTPClient overrides the HTTP client, mainly for tests.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// NewOllama creates a local-runtime provider.
func NewOllama(baseURL string, opts ...OllamaOption) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	p := &OllamaProvider{
		baseURL: baseURL,
		model:   DefaultLocalModel,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Model returns the configured model identifier.
func (p *OllamaProvider) Model() string {
	return p.model
}

type ollamaPullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Load pulls the configured model into the runtime. It is idempotent: the
// pull happens once per process and subsequent calls return the cached
// outcome.
func (p *OllamaProvider) Load(ctx context.Context) error {
	p.loadOnce.Do(func() {
		p.loadErr = p.pull(ctx)
	})
	return p.loadErr
}

func (p *OllamaProvider) pull(ctx context.Context) error {
	body, err := json.Marshal(ollamaPullRequest{Name: p.model, Stream: false})
	if err != nil {
		return errors.New(errors.CodeRuntimeUnavailable, "failed to marshal pull request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.CodeRuntimeUnavailable, "failed to create pull request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.New(errors.CodeRuntimeUnavailable, "local runtime unreachable", err).
			WithContext("base_url", p.baseURL).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.CodeRuntimeUnavailable, "model pull failed", nil).
			WithContext("model", p.model).
			WithContext("status", resp.StatusCode).
			WithRecoverable(true)
	}
	return nil
}

// Generate sends a completion request to the local runtime, loading the
// model first if needed.
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := p.Load(ctx); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	oReq := ollamaGenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
	}
	options := make(map[string]any)
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if req.Temperature != 0 {
		options["temperature"] = req.Temperature
	}
	if len(options) > 0 {
		oReq.Options = options
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("local runtime call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("local runtime returned status: %d", resp.StatusCode)
	}

	var oResp ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, fmt.Errorf("failed to decode runtime response: %w", err)
	}

	return &GenerateResponse{
		Text: oResp.Response,
		Usage: Usage{
			PromptTokens:     oResp.PromptEvalCount,
			CompletionTokens: oResp.EvalCount,
			TotalTokens:      oResp.PromptEvalCount + oResp.EvalCount,
		},
	}, nil
}

// Ensure OllamaProvider implements Provider.
var _ Provider = (*OllamaProvider)(nil)
