package parser

import (
	"fmt"
	"strings"

	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// FromOCR assembles a FinancialRecord from raw OCR text alone, for runs
// where the analyzer is unavailable. The result lacks visual corroboration,
// so callers must route it to review; the gate enforces that.
func (p *Parser) FromOCR(ocrText string, ocrConf float32) (entity.FinancialRecord, error) {
	r := recoverFields(ocrText)
	if r.Vendor == "" {
		r.Vendor = guessVendorFromOCR(ocrText)
	}
	if r.Amount == "" || r.Date == "" || r.Vendor == "" {
		return entity.FinancialRecord{}, fmt.Errorf(
			"%w: ocr text lacks recognizable fields (amount=%t date=%t vendor=%t)",
			common.ErrExtraction, r.Amount != "", r.Date != "", r.Vendor != "")
	}

	cents, err := parseAmountCents(r.Amount)
	if err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	if cents < 0 {
		return entity.FinancialRecord{}, fmt.Errorf("%w: negative amount in ocr text", common.ErrValidation)
	}
	date, err := parseDate(r.Date)
	if err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	// Heuristic extraction never earns more than half confidence.
	conf := ocrConf
	if conf > 0.5 {
		conf = 0.5
	}
	rec := entity.FinancialRecord{
		Type:        entity.TxExpense,
		AmountCents: cents,
		Vendor:      strings.TrimSpace(r.Vendor),
		Date:        date,
		Description: "Assembled from OCR text without model analysis",
		Confidence:  conf,
	}
	if err := rec.Validate(p.now()); err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return rec, nil
}
