package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
	"github.com/mkarwowski/receipt2ledger/internal/repository"
)

func seededService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, common.DatabaseConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	runs := repository.NewRunRepository(db)
	txs := repository.NewTransactionRepository(db)

	runID, err := runs.Start(ctx, "a.jpg")
	require.NoError(t, err)

	tx := entity.CanonicalTransaction{
		Record: entity.FinancialRecord{
			Type:        entity.TxExpense,
			AmountCents: 2550,
			Vendor:      "SuperMart",
			Date:        time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			Confidence:  0.9,
		},
		Category:           entity.ResolvedCategory{Name: "Groceries", Source: entity.SourceKeywordMatch},
		AccountID:          "42",
		Fingerprint:        "fp-1",
		OCRConfidence:      0.9,
		AnalysisConfidence: 0.9,
	}
	_, err = txs.Record(ctx, runID, tx, entity.Decision{Action: entity.ActionAutoSubmit}, "ft-1")
	require.NoError(t, err)

	tx.Fingerprint = "fp-2"
	tx.Record.Vendor = "Corner Cafe"
	_, err = txs.Record(ctx, runID, tx, entity.Decision{Action: entity.ActionNeedsReview, Reason: "below threshold"}, "")
	require.NoError(t, err)

	return NewService(txs, nil)
}

func TestExportXLSX(t *testing.T) {
	svc := seededService(t)

	out, err := svc.ExportXLSX(context.Background(), false)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 transactions

	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Amount", rows[0][3])

	vendors := []string{rows[1][2], rows[2][2]}
	assert.Contains(t, vendors, "SuperMart")
	assert.Contains(t, vendors, "Corner Cafe")
	assert.Equal(t, "25.50", rows[1][3])
}

func TestExportXLSX_OnlyReview(t *testing.T) {
	svc := seededService(t)

	out, err := svc.ExportXLSX(context.Background(), true)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Transactions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Corner Cafe", rows[1][2])
	assert.Equal(t, string(entity.ActionNeedsReview), rows[1][7])
}
