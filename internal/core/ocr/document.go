package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/listing-verifier/internal/core/vin"
	"github.com/joseph-ayodele/listing-verifier/internal/entity"
)

// Fetcher resolves a reference to bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// TextExtractor is satisfied by *Extractor.
type TextExtractor interface {
	ExtractBytes(ctx context.Context, data []byte, isPDF bool) (ExtractionResult, error)
}

// DocumentReader turns a registration document reference into text and VIN candidates.
type DocumentReader struct {
	fetcher   Fetcher
	extractor TextExtractor
	logger    *slog.Logger
}

func NewDocumentReader(fetcher Fetcher, extractor TextExtractor, logger *slog.Logger) *DocumentReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentReader{fetcher: fetcher, extractor: extractor, logger: logger}
}

// Read never fails: any problem yields an empty document.
func (r *DocumentReader) Read(ctx context.Context, ref string) entity.ExtractedDocument {
	empty := entity.ExtractedDocument{VINs: []string{}}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return empty
	}

	start := time.Now()
	data, err := r.fetcher.Fetch(ctx, ref)
	if err != nil {
		r.logger.Warn("ocr.document.fetch_failed", "ref", redact(ref), "error", err)
		return empty
	}
	if len(data) == 0 {
		r.logger.Warn("ocr.document.empty", "ref", redact(ref))
		return empty
	}

	res, err := r.extractor.ExtractBytes(ctx, data, IsPDF(ref, data))
	if err != nil {
		r.logger.Warn("ocr.document.extract_failed", "ref", redact(ref), "error", err)
		return empty
	}

	vins := vin.Extract(res.Text)
	r.logger.Info("ocr.document.done",
		"source_type", res.SourceType,
		"pages", res.Pages,
		"lang", res.Language,
		"chars", len(res.Text),
		"vins", len(vins),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.ExtractedDocument{Text: res.Text, VINs: vins}
}

// redact keeps data: URIs out of logs.
func redact(ref string) string {
	if strings.HasPrefix(strings.ToLower(ref), "data:") {
		if i := strings.IndexByte(ref, ','); i > 0 {
			return ref[:i] + ",..."
		}
		return "data:..."
	}
	return ref
}
