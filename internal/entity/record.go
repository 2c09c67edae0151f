package entity

import (
	"fmt"
	"time"
)

// TxType is the closed set of transaction types the ledger accepts.
type TxType string

const (
	TxExpense  TxType = "expense"
	TxIncome   TxType = "income"
	TxTransfer TxType = "transfer"
)

// ValidTxType reports whether s is one of the closed enum values.
func ValidTxType(s string) bool {
	switch TxType(s) {
	case TxExpense, TxIncome, TxTransfer:
		return true
	}
	return false
}

// FinancialRecord is the parsed, validated description of one document.
// Immutable once it leaves the parser; amounts are integer cents so that
// wire round-trips are exact.
type FinancialRecord struct {
	Type        TxType
	AmountCents int64
	Vendor      string
	Date        time.Time // date-only, UTC
	Category    string    // model-supplied label, may be empty
	Description string
	Confidence  float32 // parser-normalized, always in [0,1]
}

// Validate enforces the record invariants: non-negative amount, a real
// calendar date no further than one day in the future, and a known type.
func (r FinancialRecord) Validate(now time.Time) error {
	if r.AmountCents < 0 {
		return fmt.Errorf("amount must be non-negative, got %s", FormatCents(r.AmountCents))
	}
	if r.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if r.Date.After(now.Add(24 * time.Hour)) {
		return fmt.Errorf("date %s is in the future", r.Date.Format(ISODate))
	}
	if !ValidTxType(string(r.Type)) {
		return fmt.Errorf("unknown transaction type %q", r.Type)
	}
	return nil
}

// ISODate is the date layout used everywhere at the boundaries.
const ISODate = "2006-01-02"

// FormatCents renders integer cents as a fixed-point decimal string ("25.50").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
