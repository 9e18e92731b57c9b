package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

const (
	DefaultMaxTokens = 200
	blankLineStop    = "\n\n"
)

// OpinionProvider asks a generative model for a verdict on a feature record.
type OpinionProvider struct {
	gen         Generator
	schema      *jsonschema.Schema
	maxTokens   int
	temperature float32
	logger      *slog.Logger
}

type ProviderOption func(*OpinionProvider)

func WithMaxTokens(n int) ProviderOption {
	return func(p *OpinionProvider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

func WithTemperature(t float32) ProviderOption {
	return func(p *OpinionProvider) { p.temperature = t }
}

// NewOpinionProvider accepts a nil generator; Opinion then always returns nil.
func NewOpinionProvider(gen Generator, logger *slog.Logger, opts ...ProviderOption) (*OpinionProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := CompileSchema(BuildOpinionJSONSchema())
	if err != nil {
		return nil, err
	}
	p := &OpinionProvider{gen: gen, schema: schema, maxTokens: DefaultMaxTokens, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Opinion makes one generation attempt. Any failure yields nil.
func (p *OpinionProvider) Opinion(ctx context.Context, f entity.FeatureSet) *entity.JudgeOpinion {
	if p == nil || p.gen == nil {
		return nil
	}
	start := time.Now()
	backend := p.gen.Name()

	raw, err := p.gen.Generate(ctx, GenerateRequest{
		System:      judgeSystemPrompt,
		Prompt:      BuildJudgePrompt(f),
		MaxTokens:   p.maxTokens,
		Stop:        []string{blankLineStop},
		Temperature: p.temperature,
	})
	if err != nil {
		p.logger.Warn("llm.judge.generate_failed", "backend", backend, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}

	op, dropped, err := ParseOpinion(raw, p.schema)
	if len(dropped) > 0 {
		p.logger.Warn("llm.judge.lenient_sanitize_applied", "backend", backend, "dropped", dropped)
	}
	if err != nil {
		p.logger.Warn("llm.judge.unparseable", "backend", backend, "error", err,
			"raw", truncate(raw, 512), "elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}

	p.logger.Info("llm.judge.ok",
		"backend", backend,
		"has_probabilities", op.RealProbability != nil && op.FakeProbability != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return op
}
