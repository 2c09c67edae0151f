package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

func testTx(fingerprint string, conf float32) entity.CanonicalTransaction {
	return entity.CanonicalTransaction{
		Record: entity.FinancialRecord{
			Type:        entity.TxExpense,
			AmountCents: 2550,
			Vendor:      "SuperMart",
			Date:        time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			Confidence:  conf,
		},
		AccountID:          "acc-1",
		Fingerprint:        fingerprint,
		OCRConfidence:      conf,
		AnalysisConfidence: conf,
	}
}

func testGate(cfg Config) *Gate {
	g := New(cfg, NewMemLedger(), nil)
	g.now = func() time.Time { return time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC) }
	return g
}

func TestEvaluate_AutoSubmitWhenUnattendedAndConfident(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	d, err := g.Evaluate(context.Background(), testTx("fp-auto", 0.95))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionAutoSubmit, d.Action)
	assert.Empty(t, d.Reason)
}

func TestEvaluate_NeverAutoSubmitsBelowThreshold(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	for _, conf := range []float32{0.16, 0.5, 0.84, 0.8499} {
		d, err := g.Evaluate(context.Background(), testTx("fp-low", conf))
		require.NoError(t, err)
		assert.Equal(t, entity.ActionNeedsReview, d.Action, "confidence %v", conf)
		assert.NotEmpty(t, d.Reason)
		require.NoError(t, g.dupes.Release(context.Background(), "fp-low"))
	}
}

func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	d, err := g.Evaluate(context.Background(), testTx("fp-edge", 0.85))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionAutoSubmit, d.Action)
}

func TestEvaluate_OverallIsMinimumOfSignals(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	tx := testTx("fp-min", 0.95)
	tx.OCRConfidence = 0.45 // one weak signal drags the whole thing to review
	d, err := g.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionNeedsReview, d.Action)
}

func TestEvaluate_OCROnlyNeverAutoSubmits(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	tx := testTx("fp-ocr", 0.99)
	tx.OCROnly = true
	d, err := g.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionNeedsReview, d.Action)
	assert.Contains(t, d.Reason, "OCR text only")
}

func TestEvaluate_NotUnattendedGoesToReview(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: false})
	d, err := g.Evaluate(context.Background(), testTx("fp-attended", 0.95))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionNeedsReview, d.Action)
	assert.Contains(t, d.Reason, "unattended")
}

func TestEvaluate_RejectsBelowFloor(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	d, err := g.Evaluate(context.Background(), testTx("fp-floor", 0.10))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionRejected, d.Action)

	// A floor rejection releases the reservation, so a better-quality re-scan
	// of the same document is not treated as a duplicate.
	d, err = g.Evaluate(context.Background(), testTx("fp-floor", 0.95))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionAutoSubmit, d.Action)
}

func TestEvaluate_RejectsNonPositiveAmount(t *testing.T) {
	g := testGate(Config{Unattended: true})
	tx := testTx("fp-zero", 0.95)
	tx.Record.AmountCents = 0
	d, err := g.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionRejected, d.Action)
}

func TestEvaluate_RejectsFutureDate(t *testing.T) {
	g := testGate(Config{Unattended: true})
	tx := testTx("fp-future", 0.95)
	tx.Record.Date = time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	d, err := g.Evaluate(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionRejected, d.Action)
}

func TestEvaluate_DuplicateSecondUploadRejected(t *testing.T) {
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: false})

	// First pass reserves the fingerprint even though it only goes to review;
	// a second upload of the same receipt must not produce a second entry.
	d, err := g.Evaluate(context.Background(), testTx("fp-dup", 0.70))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionNeedsReview, d.Action)

	d, err = g.Evaluate(context.Background(), testTx("fp-dup", 0.70))
	require.NoError(t, err)
	assert.Equal(t, entity.ActionRejected, d.Action)
	assert.Contains(t, d.Reason, "already processed")
}

func TestEvaluate_ShortFingerprint(t *testing.T) {
	// Fingerprints shorter than the log truncation width must not trip the
	// decision logging.
	g := testGate(Config{AutoSubmitThreshold: 0.85, ConfidenceFloor: 0.15, Unattended: true})
	for _, fp := range []string{"", "a", "exactly-12ch"} {
		d, err := g.Evaluate(context.Background(), testTx(fp, 0.95))
		require.NoError(t, err, "fingerprint %q", fp)
		assert.Equal(t, entity.ActionAutoSubmit, d.Action)
	}
}

func TestMemLedger_CheckAndReserveIsAtomic(t *testing.T) {
	ledger := NewMemLedger()
	const n = 32
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.CheckAndReserve(context.Background(), "same-fp")
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	var reserved int
	for ok := range wins {
		if ok {
			reserved++
		}
	}
	assert.Equal(t, 1, reserved)
}

func TestMemLedger_ReleaseFreesFingerprint(t *testing.T) {
	ledger := NewMemLedger()
	ok, err := ledger.CheckAndReserve(context.Background(), "fp")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, ledger.Release(context.Background(), "fp"))

	ok, err = ledger.CheckAndReserve(context.Background(), "fp")
	require.NoError(t, err)
	assert.True(t, ok)
}
