package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mkarwowski/receipt2ledger/internal/analyzer"
	"github.com/mkarwowski/receipt2ledger/internal/category"
	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
	"github.com/mkarwowski/receipt2ledger/internal/export"
	"github.com/mkarwowski/receipt2ledger/internal/gate"
	"github.com/mkarwowski/receipt2ledger/internal/ingest"
	"github.com/mkarwowski/receipt2ledger/internal/ledger"
	"github.com/mkarwowski/receipt2ledger/internal/ocr"
	"github.com/mkarwowski/receipt2ledger/internal/parser"
	"github.com/mkarwowski/receipt2ledger/internal/pipeline"
	repo "github.com/mkarwowski/receipt2ledger/internal/repository"
)

func main() {
	var (
		dir        = flag.String("dir", "", "directory of documents to process")
		file       = flag.String("file", "", "single document to process")
		account    = flag.String("account", "", "target ledger account id")
		tags       = flag.String("tags", "", "comma-separated extra tags")
		unattended = flag.Bool("unattended", false, "allow auto-submission of high-confidence transactions")
		exportPath = flag.String("export", "", "write an XLSX of all recorded transactions to this path")
		reviewOnly = flag.Bool("review-only", false, "restrict --export to the review queue")
		recursive  = flag.Bool("recursive", true, "recurse into subdirectories with --dir")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *dir == "" && *file == "" && *exportPath == "" {
		fmt.Fprintln(os.Stderr, "usage: receipt2ledger (--dir <path> | --file <path>) [--account <id>] [--unattended] [--export <out.xlsx>]")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if *unattended {
		cfg.Gate.Unattended = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := repo.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	runsRepo := repo.NewRunRepository(db)
	txsRepo := repo.NewTransactionRepository(db)
	dupes := repo.NewFingerprintLedger(db)

	// Ledger client is optional; without it everything lands in review.
	var ledgerClient ledger.Client
	if cfg.Ledger.BaseURL != "" {
		ledgerClient = ledger.NewFireflyClient(ledger.FireflyConfig{
			BaseURL: cfg.Ledger.BaseURL,
			Token:   cfg.Ledger.Token,
			Timeout: cfg.Ledger.Timeout,
		}, logger)
	} else {
		logger.Warn("LEDGER_BASE_URL not set; nothing will be auto-submitted")
	}

	taxonomy := loadTaxonomy(ctx, ledgerClient, logger)
	txCtx := entity.TxContext{AccountID: *account, Tags: splitTags(*tags)}
	if txCtx.ResolveAccount() == "" && ledgerClient != nil {
		if accounts, err := ledgerClient.ListAccounts(ctx); err == nil && len(accounts) > 0 {
			txCtx.DefaultAccountID = accounts[0].ID
			logger.Info("using default account", "id", accounts[0].ID, "name", accounts[0].Name)
		}
	}

	if *dir != "" || *file != "" {
		gemini, err := analyzer.NewGeminiClient(ctx, analyzer.GeminiConfig{
			Model:   cfg.Analyzer.Model,
			APIKey:  cfg.Analyzer.APIKey,
			Timeout: cfg.Analyzer.Timeout,
		}, logger)
		if err != nil {
			logger.Error("failed to create analyzer client", "error", err)
			os.Exit(1)
		}

		proc := pipeline.NewProcessor(pipeline.Deps{
			OCR: ocr.NewExtractor(ocr.Config{
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
			}, logger),
			Analyzer:   gemini,
			Parser:     parser.New(logger),
			Categories: category.NewResolver(taxonomy, logger),
			Gate: gate.New(gate.Config{
				AutoSubmitThreshold: cfg.Gate.AutoSubmitThreshold,
				ConfidenceFloor:     cfg.Gate.ConfidenceFloor,
				Unattended:          cfg.Gate.Unattended,
			}, dupes, logger),
			Dupes:               dupes,
			Ledger:              ledgerClient,
			Runs:                runsRepo,
			Txs:                 txsRepo,
			MaxAnalyzerInFlight: int64(cfg.Analyzer.MaxInFlight),
		}, logger)

		paths := []string{}
		if *file != "" {
			paths = append(paths, *file)
		}
		if *dir != "" {
			candidates, _, err := ingest.NewScanner(logger).ScanDirectory(*dir, *recursive)
			if err != nil {
				logger.Error("failed to scan directory", "dir", *dir, "error", err)
				os.Exit(1)
			}
			for _, c := range candidates {
				paths = append(paths, c.Path)
			}
		}

		submitted, review, rejected, failed := 0, 0, 0, 0
		for _, path := range paths {
			res, err := proc.ProcessFile(ctx, path, txCtx)
			if err != nil {
				logger.Error("document failed", "path", path, "error", err)
				failed++
				continue
			}
			switch res.Decision.Action {
			case entity.ActionAutoSubmit:
				submitted++
			case entity.ActionNeedsReview:
				review++
			case entity.ActionRejected:
				rejected++
			}
		}
		logger.Info("batch complete",
			"documents", len(paths),
			"submitted", submitted,
			"needs_review", review,
			"rejected", rejected,
			"failed", failed,
		)
	}

	if *exportPath != "" {
		xlsx, err := export.NewService(txsRepo, logger).ExportXLSX(ctx, *reviewOnly)
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, xlsx, 0o644); err != nil {
			logger.Error("failed to write export", "path", *exportPath, "error", err)
			os.Exit(1)
		}
		logger.Info("export written", "path", *exportPath)
	}
}

// loadTaxonomy starts from the built-in keyword taxonomy and appends ledger
// categories not already covered, each matchable by its own name.
func loadTaxonomy(ctx context.Context, client ledger.Client, logger *slog.Logger) category.Taxonomy {
	taxonomy := append(category.Taxonomy(nil), category.DefaultTaxonomy...)
	if client == nil {
		return taxonomy
	}
	cats, err := client.ListCategories(ctx)
	if err != nil {
		logger.Warn("could not list ledger categories; using built-in taxonomy", "error", err)
		return taxonomy
	}
	known := map[string]struct{}{}
	for _, e := range taxonomy {
		known[strings.ToLower(e.Name)] = struct{}{}
	}
	for _, c := range cats {
		if _, ok := known[strings.ToLower(c.Name)]; ok {
			continue
		}
		taxonomy = append(taxonomy, category.Entry{
			Name:     c.Name,
			Keywords: []string{strings.ToLower(c.Name)},
		})
	}
	return taxonomy
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
