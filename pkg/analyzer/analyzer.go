// Package analyzer turns fleet metric contexts and free-text questions
// into Russian-language operational narratives. It walks a fixed chain
// of providers from most to least capable: a hosted inference API, a
// local model runtime, and a deterministic rule engine that always
// answers. Analyze never returns an error; degraded providers only
// lower the quality of the narrative, never its availability.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mvolkov/fleetsense/pkg/anomaly"
	"github.com/mvolkov/fleetsense/pkg/errors"
	"github.com/mvolkov/fleetsense/pkg/llm"
	"github.com/mvolkov/fleetsense/pkg/resilience"
	"github.com/mvolkov/fleetsense/pkg/telemetry"
)

// Mode selects which tiers participate in the chain. The rule engine is
// always the terminal stage regardless of mode.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeHosted Mode = "hosted"
	ModeLocal  Mode = "local"
	ModeRules  Mode = "rules"
)

const (
	// DefaultAttemptTimeout bounds a single inference attempt. Hosted
	// endpoints can hold a connection open for minutes while a model
	// cold-starts; past this point the next tier is a better bet.
	DefaultAttemptTimeout = 90 * time.Second

	// DefaultMaxTokens is the generation budget requested from
	// inference providers.
	DefaultMaxTokens = 400

	localTemperature = 0.7
)

// Analyzer runs the provider chain.
type Analyzer struct {
	hosted         llm.Provider
	local          llm.Provider
	rules          *RuleEngine
	mode           Mode
	minUsable      int
	attemptTimeout time.Duration
	maxTokens      int
	retry          resilience.RetryConfig
	metrics        *telemetry.ChainMetrics
	logger         *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithHostedProvider installs the hosted inference tier. Without it the
// chain starts at the local tier.
func WithHostedProvider(p llm.Provider) Option {
	return func(a *Analyzer) { a.hosted = p }
}

// WithLocalProvider installs the local model tier.
func WithLocalProvider(p llm.Provider) Option {
	return func(a *Analyzer) { a.local = p }
}

// WithMode selects the chain composition.
func WithMode(m Mode) Option {
	return func(a *Analyzer) { a.mode = m }
}

// WithThresholds replaces the rule engine bands.
func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) { a.rules = NewRuleEngine(t) }
}

// WithMinUsableLength overrides the acceptance bar for sanitized output.
func WithMinUsableLength(n int) Option {
	return func(a *Analyzer) { a.minUsable = n }
}

// WithAttemptTimeout overrides the per-attempt deadline. Zero disables it.
func WithAttemptTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.attemptTimeout = d }
}

// WithMaxTokens overrides the generation budget.
func WithMaxTokens(n int) Option {
	return func(a *Analyzer) { a.maxTokens = n }
}

// WithRetry overrides the per-tier retry policy. The default is a
// single attempt; the chain itself is the recovery mechanism.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *Analyzer) { a.retry = cfg }
}

// WithChainMetrics installs chain instrumentation.
func WithChainMetrics(m *telemetry.ChainMetrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New builds an Analyzer. With no options only the rule engine runs.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rules:          NewRuleEngine(DefaultThresholds()),
		mode:           ModeAuto,
		minUsable:      MinUsableLength,
		attemptTimeout: DefaultAttemptTimeout,
		maxTokens:      DefaultMaxTokens,
		retry:          resilience.DefaultRetryConfig(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces a narrative for a fleet context. It always returns a
// non-empty narrative; provider failures degrade to the rule engine.
func (a *Analyzer) Analyze(ctx context.Context, fc *anomaly.Context) string {
	return a.run(ctx, request{prompt: BuildPrompt(fc), fleet: fc})
}

// AnalyzeQuery answers a free-text operator question.
func (a *Analyzer) AnalyzeQuery(ctx context.Context, query string) string {
	return a.run(ctx, request{
		prompt:  BuildQueryPrompt(query),
		query:   ParseQueryMetrics(query),
		isQuery: true,
	})
}

// inferenceTiers returns the non-terminal stages for the configured
// mode. Unconfigured tiers are skipped, not errored on.
func (a *Analyzer) inferenceTiers() []tier {
	var tiers []tier
	useHosted := a.mode == ModeAuto || a.mode == ModeHosted
	useLocal := a.mode == ModeAuto || a.mode == ModeLocal

	if useHosted && a.hosted != nil {
		tiers = append(tiers, hostedTier{provider: a.hosted, maxTokens: a.maxTokens})
	}
	if useLocal && a.local != nil {
		tiers = append(tiers, localTier{provider: a.local, maxTokens: a.maxTokens, temperature: localTemperature})
	}
	return tiers
}

func (a *Analyzer) run(ctx context.Context, req request) string {
	id := uuid.NewString()
	tiers := a.inferenceTiers()

	for i, t := range tiers {
		a.metrics.RecordAttempt(ctx, t.name())
		start := time.Now()
		var text string
		err := a.retry.Do(ctx, func() error {
			var attemptErr error
			text, attemptErr = resilience.WithTimeoutResult(ctx,
				resilience.TimeoutConfig{Duration: a.attemptTimeout},
				func(ctx context.Context) (string, error) {
					return t.attempt(ctx, req)
				})
			return attemptErr
		})
		a.metrics.RecordLatency(ctx, t.name(), time.Since(start).Seconds())

		if err == nil {
			clean := SanitizeResponse(text)
			if Usable(clean, a.minUsable) {
				a.metrics.RecordAccepted(ctx, t.name())
				a.logger.InfoContext(ctx, "analysis accepted",
					slog.String("request_id", id),
					slog.String("tier", t.name()))
				return clean
			}
			err = errors.New(errors.CodeUnacceptableResponse, "sanitized response below usable length", nil)
		}

		code := string(errors.AsError(err).Code)
		a.metrics.RecordFailure(ctx, t.name(), code)
		next := TierRules
		if i+1 < len(tiers) {
			next = tiers[i+1].name()
		}
		a.metrics.RecordFallback(ctx, t.name(), next)
		a.logger.WarnContext(ctx, "provider attempt failed, falling back",
			slog.String("request_id", id),
			slog.String("tier", t.name()),
			slog.String("next", next),
			slog.String("code", code),
			slog.String("error", err.Error()))
	}

	// Terminal stage: pure computation, ignores deadlines, cannot fail.
	a.metrics.RecordAttempt(ctx, TierRules)
	text, _ := ruleTier{engine: a.rules}.attempt(ctx, req)
	a.metrics.RecordAccepted(ctx, TierRules)
	a.logger.InfoContext(ctx, "analysis accepted",
		slog.String("request_id", id),
		slog.String("tier", TierRules))
	return text
}
