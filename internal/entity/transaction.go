package entity

import "time"

// TxContext is the caller-supplied side of a transaction: which account to
// post against, extra tags, and the date to assume when the document shows
// none.
type TxContext struct {
	AccountID        string
	DefaultAccountID string
	Tags             []string
	DefaultDate      time.Time
}

// ResolveAccount returns the effective target account, preferring the
// explicit one.
func (c TxContext) ResolveAccount() string {
	if c.AccountID != "" {
		return c.AccountID
	}
	return c.DefaultAccountID
}

// CanonicalTransaction merges the parsed record, the resolved category and
// the caller context. Owned by exactly one processing run.
type CanonicalTransaction struct {
	Record      FinancialRecord
	Category    ResolvedCategory
	AccountID   string
	Tags        []string
	Fingerprint string

	// Confidence signals carried forward for the gate.
	OCRConfidence      float32
	AnalysisConfidence float32

	// OCROnly marks a record assembled from raw OCR heuristics because the
	// analyzer was unavailable. Such records never auto-submit.
	OCROnly bool
}

// OverallConfidence is the weakest of the three signals; the gate thresholds
// apply to this value.
func (t CanonicalTransaction) OverallConfidence() float32 {
	conf := t.OCRConfidence
	if t.AnalysisConfidence < conf {
		conf = t.AnalysisConfidence
	}
	if t.Record.Confidence < conf {
		conf = t.Record.Confidence
	}
	return conf
}

// Action is the terminal outcome of the gate.
type Action string

const (
	ActionAutoSubmit  Action = "auto_submit"
	ActionNeedsReview Action = "needs_review"
	ActionRejected    Action = "rejected"
)

// Decision is the gate's terminal artifact. Reason is human-readable so a
// review surface can explain any non-auto-submit outcome.
type Decision struct {
	Action Action
	Reason string
}
