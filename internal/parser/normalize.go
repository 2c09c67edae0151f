package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

var (
	reAmountClean = regexp.MustCompile(`^-?\d+(\.\d{1,2})?$`)
	reThousands   = regexp.MustCompile(`,(\d{3})`)
	reCurrSymbol  = regexp.MustCompile(`[$£€]|\b[A-Z]{3}\b`)
)

// parseAmountCents coerces an amount string to integer cents. Accepts
// currency symbols, ISO codes, thousands separators, and a decimal comma
// ("25,50"). Runs on string math so cents survive exactly.
func parseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(reCurrSymbol.ReplaceAllString(strings.TrimSpace(s), ""))
	s = strings.TrimSpace(s)
	s = reThousands.ReplaceAllString(s, "$1")
	// A single remaining comma with 1-2 trailing digits is a decimal comma.
	if i := strings.LastIndex(s, ","); i != -1 && strings.Count(s, ",") == 1 && len(s)-i-1 <= 2 {
		s = s[:i] + "." + s[i+1:]
	}
	s = strings.ReplaceAll(s, " ", "")
	if !reAmountClean.MatchString(s) {
		return 0, fmt.Errorf("uncoercible amount %q", s)
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac := s, "00"
	if i := strings.Index(s, "."); i != -1 {
		whole, frac = s[:i], s[i+1:]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	var cents int64
	for _, c := range whole + frac {
		cents = cents*10 + int64(c-'0')
	}
	if neg {
		cents = -cents
	}
	return cents, nil
}

// dateLayouts is the small fixed set of accepted input formats. Everything
// else is rejected rather than guessed.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// parseDate normalizes a date string to a UTC calendar date. time.Parse
// rejects impossible dates (month 13, day 32) for us.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized or invalid date %q", s)
}

// contradictionSignals are words that argue against the "expense" default
// when the model omitted the transaction type.
var contradictionSignals = []string{"refund", "income", "deposit", "transfer", "payout", "salary", "credited"}

// normalizeType case-folds the model's type string onto the closed enum.
// When the type is absent it defaults to expense, but only if neither the
// model output nor the OCR text carries a contradicting signal.
func normalizeType(s, modelText, ocrText string) (entity.TxType, error) {
	folded := strings.ToLower(strings.TrimSpace(s))
	switch folded {
	case "expense", "purchase", "payment", "debit", "withdrawal":
		return entity.TxExpense, nil
	case "income", "deposit", "credit", "refund":
		return entity.TxIncome, nil
	case "transfer":
		return entity.TxTransfer, nil
	case "":
		haystack := strings.ToLower(modelText + " " + ocrText)
		for _, sig := range contradictionSignals {
			if strings.Contains(haystack, sig) {
				return "", fmt.Errorf("type missing and %q suggests it is not an expense", sig)
			}
		}
		return entity.TxExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// clampConfidence maps any parsed confidence into [0,1]. Missing or
// out-of-range values fall back to min(ocrConf, 0.5): uncertainty compounds,
// it never improves.
func clampConfidence(v *float64, ocrConf float32) float32 {
	fallback := ocrConf
	if fallback > 0.5 {
		fallback = 0.5
	}
	if v == nil || *v < 0 || *v > 1 {
		return fallback
	}
	return float32(*v)
}
