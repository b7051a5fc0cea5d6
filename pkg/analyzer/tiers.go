package analyzer

import (
	"context"

	"github.com/mvolkov/fleetsense/pkg/anomaly"
	"github.com/mvolkov/fleetsense/pkg/errors"
	"github.com/mvolkov/fleetsense/pkg/llm"
)

// Tier names, reported in logs and metrics.
const (
	TierHosted = "hosted_api"
	TierLocal  = "local_model"
	TierRules  = "rule_based"
)

// request carries one analysis job through the chain. Inference tiers
// consume the rendered prompt; the rule tier works from the structured
// inputs directly.
type request struct {
	prompt  string
	fleet   *anomaly.Context
	query   QueryMetrics
	isQuery bool
}

// tier is one attempt stage of the provider chain.
type tier interface {
	name() string
	attempt(ctx context.Context, req request) (string, error)
}

type hostedTier struct {
	provider  llm.Provider
	maxTokens int
}

func (t hostedTier) name() string { return TierHosted }

func (t hostedTier) attempt(ctx context.Context, req request) (string, error) {
	resp, err := t.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:    req.prompt,
		MaxTokens: t.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Text == "" {
		return "", errors.New(errors.CodeUnacceptableResponse, "hosted api returned empty output", nil)
	}
	return resp.Text, nil
}

type localTier struct {
	provider    llm.Provider
	maxTokens   int
	temperature float64
}

func (t localTier) name() string { return TierLocal }

func (t localTier) attempt(ctx context.Context, req request) (string, error) {
	resp, err := t.provider.Generate(ctx, llm.GenerateRequest{
		Prompt:      req.prompt,
		MaxTokens:   t.maxTokens,
		Temperature: t.temperature,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Text == "" {
		return "", errors.New(errors.CodeUnacceptableResponse, "local model returned empty output", nil)
	}
	return resp.Text, nil
}

type ruleTier struct {
	engine *RuleEngine
}

func (t ruleTier) name() string { return TierRules }

func (t ruleTier) attempt(_ context.Context, req request) (string, error) {
	if req.isQuery {
		return t.engine.AnalyzeQuery(req.query), nil
	}
	return t.engine.AnalyzeContext(req.fleet), nil
}
