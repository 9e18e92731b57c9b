package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/listing-verifier/internal/core/llm"
)

type Config struct {
	APIKey string
	Model  string // default "gemini-1.5-flash"
}

// Client implements llm.Generator on the Gemini API. The underlying SDK
// client is created on first use and reused.
type Client struct {
	cfg    Config
	logger *slog.Logger

	once   sync.Once
	client *genai.Client
	err    error
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}, nil
}

func (c *Client) Name() string { return "gemini:" + c.cfg.Model }

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		c.client, c.err = genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(c.cfg.APIKey))
		if c.err != nil {
			c.logger.Error("llm.gemini.init_failed", "error", c.err)
		}
	})
	return c.client, c.err
}

// Close releases the SDK client if it was created.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	cl, err := c.sdk(ctx)
	if err != nil {
		return "", err
	}
	m := cl.GenerativeModel(c.cfg.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}

	cfg := genai.GenerationConfig{
		Temperature:   ptr(req.Temperature),
		StopSequences: req.Stop,
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = ptr(int32(req.MaxTokens))
	}
	m.GenerationConfig = cfg
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}

func ptr[T any](v T) *T { return &v }
