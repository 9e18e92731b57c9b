package ocr

import (
	"context"
	"fmt"
	"strings"
)

// LanguageAttempts returns the ordered tesseract language sets: both
// languages combined, then each alone. Empty entries and duplicates are skipped.
func LanguageAttempts(primary, secondary string) []string {
	primary, secondary = strings.TrimSpace(primary), strings.TrimSpace(secondary)
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		for _, x := range out {
			if x == s {
				return
			}
		}
		out = append(out, s)
	}
	if primary != "" && secondary != "" {
		add(primary + "+" + secondary)
	}
	add(primary)
	add(secondary)
	return out
}

// recognize runs tesseract over one image with the language fallback chain.
// The first attempt yielding non-blank text wins; otherwise the last attempt's
// output is returned. An error is returned only when every attempt failed.
func (e *Extractor) recognize(ctx context.Context, path string) (string, string, []string, error) {
	attempts := LanguageAttempts(e.cfg.PrimaryLang, e.cfg.SecondaryLang)
	var (
		warns   []string
		lastTxt string
		lastErr error
		failed  int
	)
	for _, lang := range attempts {
		txt, w, err := e.tesseractOCR(ctx, path, lang)
		warns = append(warns, w...)
		if err != nil {
			failed++
			lastErr = err
			lastTxt = ""
			e.logger.Debug("ocr.attempt.failed", "lang", lang, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		lastTxt = txt
		if strings.TrimSpace(txt) != "" {
			return txt, lang, warns, nil
		}
		e.logger.Debug("ocr.attempt.blank", "lang", lang)
	}
	if failed == len(attempts) && lastErr != nil {
		return "", "", warns, lastErr
	}
	if ctx.Err() != nil {
		return lastTxt, "", warns, ctx.Err()
	}
	return lastTxt, attempts[len(attempts)-1], warns, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path, lang string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{path, "stdout", "-l", lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract -l %s: %w", lang, err)
	}
	return string(out), nil, nil
}
