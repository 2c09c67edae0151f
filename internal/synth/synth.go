// Package synth merges a parsed record, its resolved category, and the
// caller's context into the canonical transaction handed to the gate.
package synth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// Synthesize builds the canonical transaction. Fails with
// common.ErrIncompleteContext when no target account is resolvable.
//
// ocrConf and analysisConf travel with the transaction so the gate can take
// the overall minimum; ocrOnly marks records assembled without model
// corroboration.
func Synthesize(rec entity.FinancialRecord, cat entity.ResolvedCategory, txCtx entity.TxContext, ocrConf, analysisConf float32, ocrOnly bool) (entity.CanonicalTransaction, error) {
	account := txCtx.ResolveAccount()
	if account == "" {
		return entity.CanonicalTransaction{}, fmt.Errorf("%w: no target account supplied or defaultable", common.ErrIncompleteContext)
	}

	if rec.Date.IsZero() && !txCtx.DefaultDate.IsZero() {
		rec.Date = txCtx.DefaultDate
	}

	return entity.CanonicalTransaction{
		Record:             rec,
		Category:           cat,
		AccountID:          account,
		Tags:               append([]string(nil), txCtx.Tags...),
		Fingerprint:        Fingerprint(rec.Vendor, rec.AmountCents, rec.Date.Format(entity.ISODate), account),
		OCRConfidence:      ocrConf,
		AnalysisConfidence: analysisConf,
		OCROnly:            ocrOnly,
	}, nil
}

// Fingerprint is the stable idempotency hash over vendor, amount, date and
// account. Description and category are deliberately excluded: two uploads
// of the same physical receipt must collapse to the same fingerprint even
// when the wording differs.
func Fingerprint(vendor string, amountCents int64, isoDate, accountID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s",
		strings.ToLower(strings.TrimSpace(vendor)),
		amountCents,
		isoDate,
		accountID,
	)
	return hex.EncodeToString(h.Sum(nil))
}
