package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mkarwowski/receipt2ledger/internal/common"
)

// minPDFTextChars is the smallest text layer worth trusting; anything below
// it is treated as a scanned document and rasterized.
const minPDFTextChars = 32

// extractPDF tries the embedded text layer first, then falls back to
// rasterizing the pages and running tesseract on each.
func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", path, "format", "pdf")

	var warnings []string

	text, warn, err := e.pdfText(ctx, path)
	warnings = append(warnings, warn...)
	if err != nil {
		warnings = append(warnings, "pdftotext: "+err.Error())
		e.logger.Warn("ocr.pdf.text_layer_failed", "path", path, "error", err)
	} else {
		text = normalizeText(text)
		if len(text) >= minPDFTextChars {
			// A digital text layer carries no recognition noise; only the
			// content heuristic tempers it.
			conf := heuristicConfidence(text) + 0.3
			if conf > 0.98 {
				conf = 0.98
			}
			res := Result{
				Text:       text,
				Confidence: conf,
				LowTrust:   conf < e.cfg.MinConfidence,
				Method:     "pdf-text",
				Language:   e.cfg.TesseractLang,
				Duration:   time.Since(start),
				Warnings:   warnings,
			}
			e.logger.Info("ocr.extract.ok",
				"path", path,
				"method", res.Method,
				"text_bytes", len(text),
				"confidence", conf,
				"elapsed_ms", res.Duration.Milliseconds(),
			)
			return res, nil
		}
		warnings = append(warnings, "pdf text layer too small; rasterizing")
	}

	text, conf, warn, err := e.pdfRaster(ctx, path)
	warnings = append(warnings, warn...)
	if err != nil {
		return Result{Warnings: warnings}, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	text = normalizeText(text)
	if strings.TrimSpace(text) == "" {
		return Result{Warnings: warnings}, fmt.Errorf("%w: no text found in %s", common.ErrExtraction, filepath.Base(path))
	}

	res := Result{
		Text:       text,
		Confidence: conf,
		LowTrust:   conf < e.cfg.MinConfidence,
		Method:     "pdf-ocr",
		Language:   e.cfg.TesseractLang,
		Duration:   time.Since(start),
		Warnings:   warnings,
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", res.Method,
		"text_bytes", len(text),
		"confidence", conf,
		"low_trust", res.LowTrust,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) pdfText(ctx context.Context, path string) (string, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext,
		"-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", []string{truncate(string(errb), 512)}, err
	}
	return string(out), nil, nil
}

// pdfRaster renders the pages to PNG and OCRs each one. Page texts are joined
// with a form-feed marker; confidence is the per-page mean.
func (e *Extractor) pdfRaster(ctx context.Context, path string) (string, float32, []string, error) {
	tmpDir, err := os.MkdirTemp("", "r2l-pdf-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix); err != nil {
		return "", 0, []string{truncate(string(errb), 512)}, fmt.Errorf("pdftoppm: %w", err)
	}

	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	if len(pages) == 0 {
		return "", 0, nil, fmt.Errorf("pdftoppm produced no pages")
	}

	var b strings.Builder
	var warnings []string
	var confSum float32
	ocrPages := 0
	for _, page := range pages {
		txt, warn, err := e.tesseract(ctx, page)
		warnings = append(warnings, warn...)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
		confSum += e.confidence(ctx, page, txt, &warnings)
		ocrPages++
	}
	if ocrPages == 0 {
		return "", 0, warnings, fmt.Errorf("no page produced text")
	}
	return b.String(), confSum / float32(ocrPages), warnings, nil
}
