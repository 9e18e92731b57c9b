package llm

import "context"

// GenerateRequest is one single-shot text generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Stop        []string
	Temperature float32
}

// Generator is a generative-model backend (OpenAI, Gemini, ...).
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Name() string
}
