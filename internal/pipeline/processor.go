// Package pipeline wires the stages together: one document in, one decision
// out. Each call is an isolated run; the only shared state is the taxonomy
// (read-only) and the duplicate-fingerprint ledger (atomic).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/mkarwowski/receipt2ledger/constants"
	"github.com/mkarwowski/receipt2ledger/internal/analyzer"
	"github.com/mkarwowski/receipt2ledger/internal/category"
	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
	"github.com/mkarwowski/receipt2ledger/internal/gate"
	"github.com/mkarwowski/receipt2ledger/internal/ledger"
	"github.com/mkarwowski/receipt2ledger/internal/ocr"
	"github.com/mkarwowski/receipt2ledger/internal/parser"
	"github.com/mkarwowski/receipt2ledger/internal/synth"
)

// TextExtractor is the OCR capability the pipeline depends on.
type TextExtractor interface {
	ExtractBytes(ctx context.Context, image []byte, ext string) (ocr.Result, error)
}

// RunStore persists run lifecycle state.
type RunStore interface {
	Start(ctx context.Context, sourcePath string) (runID uuid.UUID, err error)
	FinishOCR(ctx context.Context, id uuid.UUID, text string, confidence float32) error
	SetStatus(ctx context.Context, id uuid.UUID, status constants.RunStatus) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

// TxStore persists gate outcomes.
type TxStore interface {
	Record(ctx context.Context, runID uuid.UUID, tx entity.CanonicalTransaction, d entity.Decision, ledgerTxID string) (uuid.UUID, error)
}

// RawDocument is one uploaded file: immutable bytes plus declared extension.
type RawDocument struct {
	Path  string
	Bytes []byte
	Ext   string
}

// Result is everything one run produced.
type Result struct {
	RunID       uuid.UUID
	Transaction entity.CanonicalTransaction
	Decision    entity.Decision
	LedgerTxID  string
	OCROnly     bool
}

// Processor coordinates one run per document: OCR, analysis, parsing,
// category resolution, synthesis, the gate, and (on AutoSubmit) submission.
type Processor struct {
	logger     *slog.Logger
	ocr        TextExtractor
	analyzer   analyzer.Service
	parser     *parser.Parser
	categories *category.Resolver
	gate       *gate.Gate
	dupes      gate.DuplicateLedger
	ledger     ledger.Client
	runs       RunStore
	txs        TxStore

	// sem bounds concurrent analyzer calls; the model host is the
	// throughput bottleneck.
	sem *semaphore.Weighted
}

// Deps carries the collaborators; all are required except Ledger, which may
// be nil when no submission endpoint is configured (every AutoSubmit then
// degrades to NeedsReview).
type Deps struct {
	OCR        TextExtractor
	Analyzer   analyzer.Service
	Parser     *parser.Parser
	Categories *category.Resolver
	Gate       *gate.Gate
	Dupes      gate.DuplicateLedger
	Ledger     ledger.Client
	Runs       RunStore
	Txs        TxStore

	MaxAnalyzerInFlight int64
}

func NewProcessor(deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxAnalyzerInFlight <= 0 {
		deps.MaxAnalyzerInFlight = 2
	}
	return &Processor{
		logger:     logger,
		ocr:        deps.OCR,
		analyzer:   deps.Analyzer,
		parser:     deps.Parser,
		categories: deps.Categories,
		gate:       deps.Gate,
		dupes:      deps.Dupes,
		ledger:     deps.Ledger,
		runs:       deps.Runs,
		txs:        deps.Txs,
		sem:        semaphore.NewWeighted(deps.MaxAnalyzerInFlight),
	}
}

// ProcessFile loads the file and runs ProcessDocument on it.
func (p *Processor) ProcessFile(ctx context.Context, path string, txCtx entity.TxContext) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read document: %w", err)
	}
	doc := RawDocument{Path: path, Bytes: data, Ext: filepath.Ext(path)}
	return p.ProcessDocument(ctx, doc, txCtx)
}

// ProcessDocument runs the full pipeline for one document. Submission to the
// ledger is the single externally-visible side effect and happens only after
// the gate reaches AutoSubmit; an aborted context between stages leaves
// nothing submitted.
func (p *Processor) ProcessDocument(ctx context.Context, doc RawDocument, txCtx entity.TxContext) (Result, error) {
	runID, err := p.runs.Start(ctx, doc.Path)
	if err != nil {
		return Result{}, fmt.Errorf("start run: %w", err)
	}
	log := p.logger.With("run_id", runID)
	log.Info("run.start", "path", doc.Path, "bytes", len(doc.Bytes))

	res, err := p.process(ctx, log, runID, doc, txCtx)
	if err != nil {
		_ = p.runs.Fail(ctx, runID, err.Error())
		log.Error("run.failed", "error", err)
		return Result{RunID: runID}, err
	}
	return res, nil
}

func (p *Processor) process(ctx context.Context, log *slog.Logger, runID uuid.UUID, doc RawDocument, txCtx entity.TxContext) (Result, error) {
	if err := p.runs.SetStatus(ctx, runID, constants.RunStatusRunning); err != nil {
		return Result{}, err
	}

	// Stage 1: text extraction.
	ocrRes, err := p.ocr.ExtractBytes(ctx, doc.Bytes, doc.Ext)
	if err != nil {
		return Result{}, err
	}
	if err := p.runs.FinishOCR(ctx, runID, ocrRes.Text, ocrRes.Confidence); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Stage 2: multimodal analysis, with the OCR-only fallback when the
	// model service is down or slow.
	rec, ocrOnly, err := p.analyze(ctx, log, doc, ocrRes)
	if err != nil {
		return Result{}, err
	}
	if err := p.runs.SetStatus(ctx, runID, constants.RunStatusParsed); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Stage 3: category resolution and synthesis.
	cat := p.categories.Resolve(rec.Vendor, rec.Description, rec.Category)
	tx, err := synth.Synthesize(rec, cat, txCtx, ocrRes.Confidence, rec.Confidence, ocrOnly)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Stage 4: the gate.
	decision, err := p.gate.Evaluate(ctx, tx)
	if err != nil {
		return Result{}, err
	}
	if decision.Action == entity.ActionAutoSubmit && p.ledger == nil {
		decision = entity.Decision{
			Action: entity.ActionNeedsReview,
			Reason: "no ledger endpoint configured",
		}
	}

	result := Result{RunID: runID, Transaction: tx, Decision: decision, OCROnly: ocrOnly}

	switch decision.Action {
	case entity.ActionAutoSubmit:
		ledgerTxID, err := p.submit(ctx, tx)
		if err != nil {
			// The reservation must not survive a failed submission, or a
			// retry of this document would be rejected as a duplicate.
			_ = p.dupes.Release(ctx, tx.Fingerprint)
			return Result{}, err
		}
		result.LedgerTxID = ledgerTxID
		if err := p.runs.SetStatus(ctx, runID, constants.RunStatusSubmitted); err != nil {
			return Result{}, err
		}
	case entity.ActionNeedsReview:
		if err := p.runs.SetStatus(ctx, runID, constants.RunStatusReview); err != nil {
			return Result{}, err
		}
	case entity.ActionRejected:
		if err := p.runs.SetStatus(ctx, runID, constants.RunStatusRejected); err != nil {
			return Result{}, err
		}
	}

	if _, err := p.txs.Record(ctx, runID, tx, result.Decision, result.LedgerTxID); err != nil {
		return Result{}, err
	}

	log.Info("run.done",
		"action", string(decision.Action),
		"reason", decision.Reason,
		"vendor", tx.Record.Vendor,
		"amount", entity.FormatCents(tx.Record.AmountCents),
		"category", tx.Category.Name,
		"ledger_tx_id", result.LedgerTxID,
	)
	return result, nil
}

// analyze calls the model under the concurrency bound and parses its
// response. Analyzer unavailability degrades to the OCR-only heuristic
// record; everything else is surfaced.
func (p *Processor) analyze(ctx context.Context, log *slog.Logger, doc RawDocument, ocrRes ocr.Result) (entity.FinancialRecord, bool, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return entity.FinancialRecord{}, false, err
	}
	raw, err := p.analyzer.Infer(ctx, doc.Bytes, constants.MIMEForExt(doc.Ext), analyzer.BuildPrompt(ocrRes.Text))
	p.sem.Release(1)

	if err != nil {
		if errors.Is(err, common.ErrAnalyzerUnavailable) || errors.Is(err, common.ErrAnalyzerTimeout) {
			log.Warn("run.analyzer_fallback", "error", err)
			rec, ferr := p.parser.FromOCR(ocrRes.Text, ocrRes.Confidence)
			if ferr != nil {
				return entity.FinancialRecord{}, false, fmt.Errorf("analyzer failed and ocr fallback not viable: %w", errors.Join(err, ferr))
			}
			return rec, true, nil
		}
		return entity.FinancialRecord{}, false, err
	}

	rec, outcome, err := p.parser.Parse(raw, ocrRes.Text, ocrRes.Confidence)
	if err != nil {
		return entity.FinancialRecord{}, false, err
	}
	log.Debug("run.parsed", "outcome", outcome.String())
	return rec, false, nil
}

func (p *Processor) submit(ctx context.Context, tx entity.CanonicalTransaction) (string, error) {
	if p.ledger == nil {
		return "", fmt.Errorf("%w: no ledger client configured", ledger.ErrUnreachable)
	}
	payload, err := ledger.BuildPayload(tx)
	if err != nil {
		return "", err
	}
	id, err := p.ledger.Submit(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("submit to ledger: %w", err)
	}
	return id, nil
}
