// Package app assembles the analysis pipeline from configuration. It is shared
// by the service, batch and debugging binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/listing-verifier/constants"
	"github.com/joseph-ayodele/listing-verifier/internal/common"
	"github.com/joseph-ayodele/listing-verifier/internal/core"
	"github.com/joseph-ayodele/listing-verifier/internal/core/llm"
	"github.com/joseph-ayodele/listing-verifier/internal/core/llm/gemini"
	"github.com/joseph-ayodele/listing-verifier/internal/core/llm/openai"
	"github.com/joseph-ayodele/listing-verifier/internal/core/ocr"
	"github.com/joseph-ayodele/listing-verifier/internal/core/vision"
	"github.com/joseph-ayodele/listing-verifier/internal/fetch"
	"github.com/joseph-ayodele/listing-verifier/internal/repository"
)

// Components holds the wired pipeline and whatever must be released on exit.
type Components struct {
	Fetcher   *fetch.Fetcher
	Extractor *ocr.Extractor
	Documents *ocr.DocumentReader
	Detector  *vision.Detector
	Judge     *llm.OpinionProvider
	Analyzer  *core.Analyzer

	models  vision.ModelSource
	db      *repository.DB
	closers []func() error
	logger  *slog.Logger
}

// Build wires every collaborator. Optional capabilities that fail to
// initialise are logged and left out; only a broken fetch cache is fatal.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Components{logger: logger}

	fetchOpts := []fetch.Option{
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithLogger(logger),
	}
	if dsn := strings.TrimSpace(cfg.Fetch.CacheDSN); dsn != "" {
		cache, err := c.openCache(ctx, dsn, cfg.Fetch.CacheTTL)
		if err != nil {
			c.Close()
			return nil, err
		}
		fetchOpts = append(fetchOpts, fetch.WithCache(cache, cfg.Fetch.CacheTTL))
	}
	c.Fetcher = fetch.New(fetchOpts...)

	c.Extractor = ocr.NewExtractor(ocr.Config{
		PrimaryLang:      cfg.OCR.PrimaryLang,
		SecondaryLang:    cfg.OCR.SecondaryLang,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPDFPages,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)
	c.Documents = ocr.NewDocumentReader(c.Fetcher, c.Extractor, logger)

	c.models = modelSource(cfg.Vision, logger)
	c.Detector = vision.NewDetector(c.Fetcher, c.models, logger,
		vision.WithMaxImages(cfg.Vision.MaxImages),
		vision.WithMaxSide(cfg.Vision.MaxSide),
	)

	judge, err := c.buildJudge(cfg.LLM)
	if err != nil {
		logger.Error("llm.judge.unavailable", "provider", cfg.LLM.Provider, "error", err)
	}
	c.Judge = judge

	// a nil *OpinionProvider is safe to call, but keep the interface nil so the
	// analyzer skips the judge step entirely
	var op core.OpinionProvider
	if judge != nil {
		op = judge
	}
	c.Analyzer = core.NewAnalyzer(c.Documents, c.Detector, op, logger,
		core.WithParallel(cfg.Analysis.Parallel),
	)

	logger.Info("app.ready",
		"vision_backend", cfg.Vision.Backend,
		"llm_provider", cfg.LLM.Provider,
		"judge", judge != nil,
		"fetch_cache", c.db != nil,
		"parallel", cfg.Analysis.Parallel,
	)
	return c, nil
}

func (c *Components) openCache(ctx context.Context, dsn string, ttl time.Duration) (fetch.Cache, error) {
	db, err := repository.Open(ctx, repository.Config{DSN: dsn, DialTimeout: 5 * time.Second}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("open fetch cache: %w", err)
	}
	c.db = db
	c.closers = append(c.closers, func() error { repository.Close(db, c.logger); return nil })

	repo, err := repository.NewFetchCacheRepository(ctx, db, c.logger)
	if err != nil {
		return nil, fmt.Errorf("init fetch cache: %w", err)
	}
	if ttl > 0 {
		if n, err := repo.Prune(ctx, ttl); err != nil {
			c.logger.Warn("fetch.cache.prune_failed", "error", err)
		} else if n > 0 {
			c.logger.Info("fetch.cache.pruned", "rows", n)
		}
	}
	return repo, nil
}

func modelSource(cfg common.VisionConfig, logger *slog.Logger) vision.ModelSource {
	var factory func(ctx context.Context) (vision.Model, error)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case constants.VisionBackendHTTP:
		factory = func(ctx context.Context) (vision.Model, error) {
			m := vision.NewHTTPModel(cfg.Endpoint, cfg.Timeout)
			if err := m.Ping(ctx); err != nil {
				return nil, fmt.Errorf("detection endpoint %s: %w", cfg.Endpoint, err)
			}
			return m, nil
		}
	case constants.VisionBackendCommand:
		factory = func(ctx context.Context) (vision.Model, error) {
			return vision.NewCommandModel(ctx, vision.CommandConfig{
				Command:    cfg.Command,
				WeightsURL: cfg.WeightsURL,
				WeightsDir: cfg.WeightsDir,
				Timeout:    cfg.Timeout,
			}, ocr.ExecRunner{}, logger)
		}
	default:
		logger.Info("vision.disabled", "backend", cfg.Backend)
		return nil
	}
	// the first caller's deadline must not decide the outcome for the whole process
	return vision.NewLazyModel(func(ctx context.Context) (vision.Model, error) {
		return factory(context.WithoutCancel(ctx))
	}, logger)
}

func (c *Components) buildJudge(cfg common.LLMConfig) (*llm.OpinionProvider, error) {
	var gen llm.Generator
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case constants.ProviderOpenAI:
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, c.logger)
		if err != nil {
			return nil, err
		}
		gen = client
	case constants.ProviderGemini:
		client, err := gemini.NewClient(gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model}, c.logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, client.Close)
		gen = client
	default:
		c.logger.Info("llm.judge.disabled", "provider", cfg.Provider)
		return nil, nil
	}
	return llm.NewOpinionProvider(gen, c.logger,
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	)
}

// Warm initialises the detection model ahead of the first request.
func (c *Components) Warm(ctx context.Context) {
	if c.models == nil {
		return
	}
	if _, err := c.models.Model(ctx); err != nil {
		c.logger.Warn("vision.warmup_failed", "error", err)
	}
}

// Ready reports whether the fetch cache, when configured, is reachable.
func (c *Components) Ready(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	return repository.HealthCheck(ctx, c.db, 2*time.Second, c.logger)
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("app.close", "error", err)
		}
	}
	c.closers = nil
}
