package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkarwowski/receipt2ledger/constants"
	"github.com/mkarwowski/receipt2ledger/internal/common"
)

// Config for the tesseract-backed extractor.
type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string

	// Preprocessor is the ImageMagick binary used for the cleanup pass
	// (deskew, contrast, denoise) before OCR. Empty disables preprocessing.
	Preprocessor string

	// Poppler binaries for the PDF path: pdftotext for the text layer,
	// pdftoppm to rasterize scanned PDFs for tesseract.
	Pdftotext string
	Pdftoppm  string
	DPI       int // rasterization resolution, default 300
	MaxPages  int // cap on rasterized pages per document, default 10

	PSM int // 6 works well for receipt blocks
	OEM int // 1 = LSTM; 0 = engine default

	// MinConfidence marks results below it as low-trust. The result still
	// flows downstream; the gate factors it into the overall decision.
	MinConfidence float32
}

// Result is the outcome of one extraction: the recognized text plus a
// confidence in [0,1].
type Result struct {
	Text       string
	Confidence float32
	LowTrust   bool
	Method     string // "image-ocr" | "image-ocr-preprocessed" | "pdf-text" | "pdf-ocr"
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// Extractor wraps the external OCR engine. It is the pipeline's only view of
// optical character recognition.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.4
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// ExtractBytes writes the document to a scratch file and runs Extract on it.
func (e *Extractor) ExtractBytes(ctx context.Context, image []byte, ext string) (Result, error) {
	ext = constants.NormalizeExt(ext)
	if constants.MapExtToFormat(ext) == "" {
		return Result{}, fmt.Errorf("%w: unsupported extension %q", common.ErrExtraction, ext)
	}
	tmp, err := os.CreateTemp("", "r2l-ocr-*."+ext)
	if err != nil {
		return Result{}, fmt.Errorf("%w: scratch file: %v", common.ErrExtraction, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(image); err != nil {
		_ = tmp.Close()
		return Result{}, fmt.Errorf("%w: scratch write: %v", common.ErrExtraction, err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("%w: scratch close: %v", common.ErrExtraction, err)
	}
	return e.Extract(ctx, tmp.Name())
}

// Extract picks a strategy from the file extension: rasterize-or-text-layer
// for PDFs, preprocess-then-tesseract for images. Fails with
// common.ErrExtraction when the engine is unreachable or no usable text
// comes back.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return e.extractPDF(ctx, path)
	case constants.IMAGE:
		return e.extractImage(ctx, path)
	default:
		return Result{}, fmt.Errorf("%w: unsupported extension %q", common.ErrExtraction, ext)
	}
}

func (e *Extractor) extractImage(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	e.logger.Debug("ocr.extract.start", "path", path, "lang", e.cfg.TesseractLang)

	var warnings []string
	method := "image-ocr"

	ocrPath := path
	if e.cfg.Preprocessor != "" {
		cleaned, cleanup, err := e.preprocess(ctx, path)
		if err != nil {
			// Preprocessing is best-effort: fall back to the raw image.
			warnings = append(warnings, "preprocess: "+err.Error())
			e.logger.Warn("ocr.preprocess.failed", "path", path, "error", err)
		} else {
			defer cleanup()
			ocrPath = cleaned
			method = "image-ocr-preprocessed"
		}
	}

	text, warn, err := e.tesseract(ctx, ocrPath)
	warnings = append(warnings, warn...)
	if err != nil {
		return Result{Warnings: warnings}, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	text = normalizeText(text)
	if strings.TrimSpace(text) == "" {
		return Result{Warnings: warnings}, fmt.Errorf("%w: no text found in %s", common.ErrExtraction, filepath.Base(path))
	}

	conf := e.confidence(ctx, ocrPath, text, &warnings)

	res := Result{
		Text:       text,
		Confidence: conf,
		LowTrust:   conf < e.cfg.MinConfidence,
		Method:     method,
		Language:   e.cfg.TesseractLang,
		Duration:   time.Since(start),
		Warnings:   warnings,
	}
	e.logger.Info("ocr.extract.ok",
		"path", path,
		"method", method,
		"text_bytes", len(text),
		"confidence", conf,
		"low_trust", res.LowTrust,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// preprocess runs the cleanup pass: grayscale, deskew, light denoise,
// contrast stretch. Output goes to a temp PNG the caller must clean up.
func (e *Extractor) preprocess(ctx context.Context, in string) (string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "r2l-prep-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	args := []string{in,
		"-colorspace", "Gray",
		"-deskew", "40%",
		"-despeckle",
		"-contrast-stretch", "2%x1%",
		out,
	}
	if _, errb, err := e.runner.Run(ctx, e.cfg.Preprocessor, args...); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%s: %v: %s", e.cfg.Preprocessor, err, truncate(string(errb), 512))
	}
	if _, err := os.Stat(out); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("preprocessor produced no output: %v", err)
	}
	return out, cleanup, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

// confidence blends tesseract's own word confidences with a content
// heuristic; TSV failures degrade to the heuristic alone.
func (e *Extractor) confidence(ctx context.Context, path, text string, warnings *[]string) float32 {
	heur := heuristicConfidence(text)
	tsv, err := e.tesseractTSVConfidence(ctx, path)
	if err != nil {
		*warnings = append(*warnings, "tsv confidence: "+err.Error())
		return heur
	}
	if tsv <= 0 {
		return heur
	}
	conf := 0.7*tsv + 0.3*heur
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

// normalizeText collapses OCR line noise without touching content.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = reBoxNoise.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, ln := range lines {
		trimmed := strings.TrimRight(ln, " \t")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
