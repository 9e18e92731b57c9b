package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/listing-verifier/internal/common"
	"github.com/joseph-ayodele/listing-verifier/internal/core/ocr"
	"github.com/joseph-ayodele/listing-verifier/internal/core/vin"
	"github.com/joseph-ayodele/listing-verifier/internal/fetch"
)

// runocr prints the OCR text and VIN candidates for one document reference.
func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := common.NewLoggerTo(os.Stderr, cfg.Log.Level, "text")

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <path|url|data-uri>")
		os.Exit(2)
	}
	ref := strings.TrimSpace(os.Args[1])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fetcher := fetch.New(
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
		fetch.WithLogger(logger),
	)
	data, err := fetcher.Fetch(ctx, ref)
	if err != nil {
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}

	ocrx := ocr.NewExtractor(ocr.Config{
		PrimaryLang:      cfg.OCR.PrimaryLang,
		SecondaryLang:    cfg.OCR.SecondaryLang,
		DPI:              cfg.OCR.DPI,
		MaxPages:         cfg.OCR.MaxPDFPages,
		TessdataDir:      cfg.OCR.TessdataDir,
		HeicConverter:    cfg.OCR.HeicConverter,
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
	}, logger)

	start := time.Now()
	res, err := ocrx.ExtractBytes(ctx, data, ocr.IsPDF(ref, data))
	if err != nil {
		logger.Error("text extraction failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"source_type", res.SourceType,
		"method", res.Method,
		"pages", res.Pages,
		"lang", res.Language,
		"chars", len(res.Text),
		"warnings", res.Warnings,
		"duration_ms", res.Duration.Milliseconds(),
	)

	fmt.Println(res.Text)
	fmt.Println("---")
	vins := vin.Extract(res.Text)
	if len(vins) == 0 {
		fmt.Println("no VIN candidates")
		return
	}
	for _, v := range vins {
		fmt.Println(v)
	}
}
