package ocr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/listing-verifier/constants"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	PrimaryLang   string // default "eng"
	SecondaryLang string // default "ara"
	DPI           int    // rasterization DPI for PDFs, default 300
	MaxPages      int    // PDF pages to rasterize, default 2

	TessdataDir      string
	HeicConverter    string
	ArtifactCacheDir string

	PSM int // tesseract page segmentation mode; 0 leaves the default
}

type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     string // "pdf-ocr" | "image-ocr"
	Language   string // language set of the winning attempt(s)
	Duration   time.Duration
	Warnings   []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner swaps the command runner, mainly for tests.
func WithRunner(r Runner) Option { return func(e *Extractor) { e.runner = r } }

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.PrimaryLang == "" && cfg.SecondaryLang == "" {
		cfg.PrimaryLang, cfg.SecondaryLang = "eng", "ara"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 2
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	e := &Extractor{cfg: cfg, runner: ExecRunner{}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// IsPDF reports whether data (or, failing that, the reference name) denotes a PDF.
func IsPDF(ref string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return true
	}
	return constants.NormalizeExt(filepath.Ext(ref)) == "pdf"
}

// ExtractBytes spools data to a temp file and runs Extract on it.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, isPDF bool) (ExtractionResult, error) {
	if len(data) == 0 {
		return ExtractionResult{}, fmt.Errorf("empty document")
	}
	ext := ".png"
	switch {
	case isPDF:
		ext = ".pdf"
	case IsHEIC(data):
		ext = ".heic"
	}

	tmp, err := os.CreateTemp("", "lv-doc-*"+ext)
	if err != nil {
		return ExtractionResult{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return ExtractionResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return ExtractionResult{}, err
	}

	sum := sha256.Sum256(data)
	return e.extract(ctx, tmp.Name(), hex.EncodeToString(sum[:]))
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	return e.extract(ctx, path, "")
}

func (e *Extractor) extract(ctx context.Context, path, hashHex string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("ocr.extract.start", "path", path, "ext", ext)

	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		var warns []string
		if constants.IsHEICExt(ext) {
			out, w, cleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
			if cleanup != nil {
				defer cleanup()
			}
			warns = append(warns, w...)
			if err != nil {
				e.logger.Warn("ocr.heic.failed", "path", path, "error", err)
				return ExtractionResult{SourceType: constants.IMAGE, Warnings: warns}, err
			}
			path = out
		}
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		res.Warnings = append(res.Warnings, warns...)
		return res, err
	default:
		e.logger.Warn("ocr.extract.unsupported", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}
