package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// TransactionRow is a processed transaction with its gate decision. Rows
// with decision needs_review double as the review queue.
type TransactionRow struct {
	ID             uuid.UUID
	RunID          uuid.UUID
	Fingerprint    string
	Type           string
	Date           string
	AmountCents    int64
	Vendor         string
	Description    string
	Category       string
	CategorySource string
	AccountID      string
	Decision       string
	DecisionReason string
	LedgerTxID     string
	Confidence     float32
	CreatedAt      time.Time
}

// TransactionRepository persists gate outcomes.
type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Record stores one canonical transaction with its decision. ledgerTxID is
// empty unless the transaction was submitted.
func (r *TransactionRepository) Record(ctx context.Context, runID uuid.UUID, tx entity.CanonicalTransaction, d entity.Decision, ledgerTxID string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.exec(ctx,
		`INSERT INTO transaction_record
			(id, run_id, fingerprint, tx_type, tx_date, amount_cents, vendor, description,
			 category, category_source, account_id, decision, decision_reason, ledger_tx_id,
			 confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), runID.String(), tx.Fingerprint,
		string(tx.Record.Type), tx.Record.Date.Format(entity.ISODate), tx.Record.AmountCents,
		tx.Record.Vendor, tx.Record.Description,
		tx.Category.Name, string(tx.Category.Source), tx.AccountID,
		string(d.Action), d.Reason, ledgerTxID,
		tx.OverallConfidence(), time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// ListByDecision returns rows with the given decision, newest first.
func (r *TransactionRepository) ListByDecision(ctx context.Context, action entity.Action) ([]TransactionRow, error) {
	rows, err := r.db.query(ctx,
		`SELECT id, run_id, fingerprint, tx_type, tx_date, amount_cents, vendor,
		        COALESCE(description, ''), COALESCE(category, ''), COALESCE(category_source, ''),
		        account_id, decision, COALESCE(decision_reason, ''), COALESCE(ledger_tx_id, ''),
		        COALESCE(confidence, 0), created_at
		 FROM transaction_record WHERE decision = ? ORDER BY created_at DESC`,
		string(action))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactionRows(rows)
}

// ListAll returns every recorded transaction, newest first.
func (r *TransactionRepository) ListAll(ctx context.Context) ([]TransactionRow, error) {
	rows, err := r.db.query(ctx,
		`SELECT id, run_id, fingerprint, tx_type, tx_date, amount_cents, vendor,
		        COALESCE(description, ''), COALESCE(category, ''), COALESCE(category_source, ''),
		        account_id, decision, COALESCE(decision_reason, ''), COALESCE(ledger_tx_id, ''),
		        COALESCE(confidence, 0), created_at
		 FROM transaction_record ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanTransactionRows(rows)
}

func scanTransactionRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]TransactionRow, error) {
	var out []TransactionRow
	for rows.Next() {
		var t TransactionRow
		var id, runID string
		if err := rows.Scan(&id, &runID, &t.Fingerprint, &t.Type, &t.Date, &t.AmountCents,
			&t.Vendor, &t.Description, &t.Category, &t.CategorySource, &t.AccountID,
			&t.Decision, &t.DecisionReason, &t.LedgerTxID, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.ID, _ = uuid.Parse(id)
		t.RunID, _ = uuid.Parse(runID)
		out = append(out, t)
	}
	return out, rows.Err()
}
