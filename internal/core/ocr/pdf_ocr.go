package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/listing-verifier/constants"
)

// extractPDF rasterizes the first MaxPages pages and OCRs each one.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF, Method: "pdf-ocr"}

	tmpDir, err := os.MkdirTemp("", "lv-pp-*")
	if err != nil {
		return res, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.pdf.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -f 1 -l <n> -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger,
		"-f", "1", "-l", fmt.Sprintf("%d", e.cfg.MaxPages),
		"-r", fmt.Sprintf("%d", e.cfg.DPI),
		"-png", path, prefix)
	if err != nil {
		res.Warnings = []string{string(errb)}
		return res, fmt.Errorf("pdftoppm: %w", err)
	}

	// pdftoppm names pages prefix-1.png or prefix-01.png depending on page count
	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		res.Warnings = []string{"pdftoppm produced no images"}
		return res, fmt.Errorf("no pages rendered")
	}

	var (
		b       strings.Builder
		langs   []string
		failed  int
		lastErr error
	)
	for _, img := range pages {
		txt, lang, w, err := e.recognize(ctx, img)
		res.Warnings = append(res.Warnings, w...)
		if err != nil {
			failed++
			lastErr = err
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		if strings.TrimSpace(txt) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
		langs = append(langs, lang)
	}
	if failed == len(pages) {
		return res, lastErr
	}

	res.Text = Normalize(b.String())
	res.Pages = len(pages)
	res.Language = strings.Join(langs, ",")
	return res, nil
}
