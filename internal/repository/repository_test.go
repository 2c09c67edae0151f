package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarwowski/receipt2ledger/constants"
	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	ctx := context.Background()

	id, err := runs.Start(ctx, "receipts/supermart.jpg")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	run, err := runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusQueued, run.Status)
	assert.Equal(t, "receipts/supermart.jpg", run.SourcePath)

	require.NoError(t, runs.SetStatus(ctx, id, constants.RunStatusRunning))
	run, err = runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusRunning, run.Status)

	require.NoError(t, runs.FinishOCR(ctx, id, "SUPERMART\nTOTAL $25.50", 0.92))
	run, err = runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusOCROK, run.Status)
	assert.Equal(t, "SUPERMART\nTOTAL $25.50", run.OCRText)
	assert.InDelta(t, 0.92, run.OCRConfidence, 1e-6)

	require.NoError(t, runs.SetStatus(ctx, id, constants.RunStatusSubmitted))
	run, err = runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusSubmitted, run.Status)
}

func TestRunFail(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	ctx := context.Background()

	id, err := runs.Start(ctx, "receipts/blurry.png")
	require.NoError(t, err)
	require.NoError(t, runs.Fail(ctx, id, "ocr produced no usable text"))

	run, err := runs.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusFailed, run.Status)
	assert.Equal(t, "ocr produced no usable text", run.ErrorMessage)
}

func TestGetByID_NotFound(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	_, err := runs.GetByID(context.Background(), uuid.New())
	assert.Error(t, err)
}

func sampleTx(fingerprint string) entity.CanonicalTransaction {
	return entity.CanonicalTransaction{
		Record: entity.FinancialRecord{
			Type:        entity.TxExpense,
			AmountCents: 2550,
			Vendor:      "SuperMart",
			Date:        time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			Description: "weekly shop",
			Confidence:  0.95,
		},
		Category:           entity.ResolvedCategory{Name: "Groceries", Source: entity.SourceKeywordMatch},
		AccountID:          "42",
		Fingerprint:        fingerprint,
		OCRConfidence:      0.92,
		AnalysisConfidence: 0.95,
	}
}

func TestTransactionRecordAndList(t *testing.T) {
	db := openTestDB(t)
	runs := NewRunRepository(db)
	txs := NewTransactionRepository(db)
	ctx := context.Background()

	runID, err := runs.Start(ctx, "a.jpg")
	require.NoError(t, err)

	_, err = txs.Record(ctx, runID, sampleTx("fp-1"),
		entity.Decision{Action: entity.ActionAutoSubmit}, "ft-9")
	require.NoError(t, err)
	_, err = txs.Record(ctx, runID, sampleTx("fp-2"),
		entity.Decision{Action: entity.ActionNeedsReview, Reason: "unattended submission is not enabled"}, "")
	require.NoError(t, err)

	all, err := txs.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	review, err := txs.ListByDecision(ctx, entity.ActionNeedsReview)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "fp-2", review[0].Fingerprint)
	assert.Equal(t, "unattended submission is not enabled", review[0].DecisionReason)
	assert.Equal(t, "2025-09-01", review[0].Date)
	assert.Equal(t, int64(2550), review[0].AmountCents)
	assert.Empty(t, review[0].LedgerTxID)
	assert.InDelta(t, 0.92, review[0].Confidence, 1e-6)

	submitted, err := txs.ListByDecision(ctx, entity.ActionAutoSubmit)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, "ft-9", submitted[0].LedgerTxID)
}

func TestFingerprintLedger(t *testing.T) {
	db := openTestDB(t)
	ledger := NewFingerprintLedger(db)
	ctx := context.Background()

	ok, err := ledger.CheckAndReserve(ctx, "fp-abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.CheckAndReserve(ctx, "fp-abc")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same fingerprint must lose")

	ok, err = ledger.CheckAndReserve(ctx, "fp-other")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ledger.Release(ctx, "fp-abc"))
	ok, err = ledger.CheckAndReserve(ctx, "fp-abc")
	require.NoError(t, err)
	assert.True(t, ok, "released fingerprint is reservable again")
}
