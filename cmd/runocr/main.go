// runocr runs the text-extraction stage alone and prints the result, for
// debugging OCR quality without touching the model or the store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/ocr"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <image-file>")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		Preprocessor:  cfg.OCR.Preprocessor,
		Pdftotext:     cfg.OCR.Pdftotext,
		Pdftoppm:      cfg.OCR.Pdftoppm,
		DPI:           cfg.OCR.PDFDPI,
		MaxPages:      cfg.OCR.PDFMaxPages,
		PSM:           cfg.OCR.PSM,
		OEM:           cfg.OCR.OEM,
		MinConfidence: cfg.OCR.MinConfidence,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := extractor.Extract(ctx, os.Args[1])
	if err != nil {
		logger.Error("extraction failed", "error", err)
		os.Exit(1)
	}

	logger.Info("extraction ok",
		"method", res.Method,
		"confidence", res.Confidence,
		"low_trust", res.LowTrust,
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	fmt.Println(res.Text)
}
