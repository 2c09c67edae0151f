// Package gate is the decision point between extraction and ledger
// submission: one state machine per canonical transaction, from Evaluating
// to a terminal AutoSubmit, NeedsReview, or Rejected.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// Config holds the decision thresholds.
type Config struct {
	// AutoSubmitThreshold is the minimum overall confidence for unattended
	// submission.
	AutoSubmitThreshold float32
	// ConfidenceFloor is the hard floor below which a transaction is
	// rejected outright.
	ConfidenceFloor float32
	// Unattended is the caller's opt-in to auto-submission. Without it every
	// passing transaction goes to review.
	Unattended bool
}

// Gate evaluates canonical transactions against the duplicate ledger and the
// confidence thresholds.
type Gate struct {
	cfg    Config
	dupes  DuplicateLedger
	logger *slog.Logger
	now    func() time.Time
}

func New(cfg Config, dupes DuplicateLedger, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AutoSubmitThreshold <= 0 {
		cfg.AutoSubmitThreshold = 0.85
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = 0.15
	}
	return &Gate{cfg: cfg, dupes: dupes, logger: logger, now: time.Now}
}

// Evaluate runs the transition rules in order: rejection conditions first,
// then the fallback-path cap, then the confidence threshold. Every decision
// other than AutoSubmit carries a human-readable reason.
func (g *Gate) Evaluate(ctx context.Context, tx entity.CanonicalTransaction) (entity.Decision, error) {
	rec := tx.Record

	if rec.AmountCents <= 0 {
		return g.decide(tx, entity.ActionRejected,
			fmt.Sprintf("amount %s is not positive", entity.FormatCents(rec.AmountCents))), nil
	}
	if rec.Date.IsZero() || rec.Date.After(g.now().Add(24*time.Hour)) {
		return g.decide(tx, entity.ActionRejected, "transaction date is missing or in the future"), nil
	}

	free, err := g.dupes.CheckAndReserve(ctx, tx.Fingerprint)
	if err != nil {
		return entity.Decision{}, fmt.Errorf("duplicate check: %w", err)
	}
	if !free {
		return g.decide(tx, entity.ActionRejected,
			"already processed: a transaction with the same vendor, amount, date and account was submitted this session"), nil
	}

	overall := tx.OverallConfidence()
	if overall < g.cfg.ConfidenceFloor {
		// The fingerprint reservation stays released for rejects so a
		// better-quality re-upload is not blocked.
		_ = g.dupes.Release(ctx, tx.Fingerprint)
		return g.decide(tx, entity.ActionRejected,
			fmt.Sprintf("overall confidence %.2f is below the floor %.2f", overall, g.cfg.ConfidenceFloor)), nil
	}

	if tx.OCROnly {
		// No visual corroboration: never unattended, regardless of score.
		return g.decide(tx, entity.ActionNeedsReview,
			"document analyzer was unavailable; record was assembled from OCR text only"), nil
	}

	if overall >= g.cfg.AutoSubmitThreshold && g.cfg.Unattended {
		return g.decide(tx, entity.ActionAutoSubmit, ""), nil
	}

	if !g.cfg.Unattended {
		return g.decide(tx, entity.ActionNeedsReview, "unattended submission is not enabled"), nil
	}
	return g.decide(tx, entity.ActionNeedsReview,
		fmt.Sprintf("overall confidence %.2f is below the auto-submit threshold %.2f", overall, g.cfg.AutoSubmitThreshold)), nil
}

func (g *Gate) decide(tx entity.CanonicalTransaction, action entity.Action, reason string) entity.Decision {
	fp := tx.Fingerprint
	if len(fp) > 12 {
		fp = fp[:12]
	}
	g.logger.Info("gate.decision",
		"action", string(action),
		"reason", reason,
		"fingerprint", fp,
		"overall_confidence", tx.OverallConfidence(),
		"ocr_only", tx.OCROnly,
	)
	return entity.Decision{Action: action, Reason: reason}
}
