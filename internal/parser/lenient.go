package parser

import (
	"regexp"
	"strings"
)

// Lenient recovery: when the payload fails strict decoding we go after the
// individual fields with regexes before giving up. These patterns match both
// half-broken JSON (`"amount": 25.50`) and labeled prose ("Total: $25.50").
var (
	reFieldAmount = regexp.MustCompile(`(?i)"(?:amount|total)"\s*:\s*"?([$£€]?\s?-?\d[\d,]*(?:[.,]\d{1,2})?)"?`)
	reTextAmount  = regexp.MustCompile(`(?i)(?:total|amount|due|sum)\s*:?\s*([$£€]?\s?\d[\d,]*[.,]\d{2})`)
	reAnyAmount   = regexp.MustCompile(`[$£€]\s?(\d[\d,]*[.,]\d{2})|\b(\d[\d,]*\.\d{2})\b`)

	reFieldDate = regexp.MustCompile(`(?i)"(?:date|tx_date)"\s*:\s*"([^"]+)"`)
	reTextDate  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|\d{2}\.\d{2}\.\d{4})\b`)

	reFieldVendor = regexp.MustCompile(`(?i)"(?:vendor|merchant|merchant_name)"\s*:\s*"([^"]+)"`)
	reFieldType   = regexp.MustCompile(`(?i)"type"\s*:\s*"([^"]+)"`)
	reFieldDesc   = regexp.MustCompile(`(?i)"description"\s*:\s*"([^"]+)"`)
	reFieldConf   = regexp.MustCompile(`(?i)"confidence"\s*:\s*"?(\d(?:\.\d+)?)"?`)
)

// recovered holds whatever the lenient pass could pull out. Empty strings
// mean the field was not found.
type recovered struct {
	Amount      string
	Date        string
	Vendor      string
	Type        string
	Description string
	Confidence  string
}

// recoverFields scans free-form text field by field. It is shared by the
// lenient parse path and the OCR-only fallback assembly.
func recoverFields(text string) recovered {
	var r recovered
	if m := reFieldAmount.FindStringSubmatch(text); m != nil {
		r.Amount = m[1]
	} else if m := reTextAmount.FindStringSubmatch(text); m != nil {
		r.Amount = m[1]
	} else if m := reAnyAmount.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			r.Amount = m[1]
		} else {
			r.Amount = m[2]
		}
	}
	// An integer amount followed by the field separator ("amount":5,) leaves
	// the comma in the greedy capture; a bare trailing separator is never part
	// of the number.
	r.Amount = strings.TrimRight(r.Amount, ",.")
	if m := reFieldDate.FindStringSubmatch(text); m != nil {
		r.Date = m[1]
	} else if m := reTextDate.FindStringSubmatch(text); m != nil {
		r.Date = m[1]
	}
	if m := reFieldVendor.FindStringSubmatch(text); m != nil {
		r.Vendor = m[1]
	}
	if m := reFieldType.FindStringSubmatch(text); m != nil {
		r.Type = m[1]
	}
	if m := reFieldDesc.FindStringSubmatch(text); m != nil {
		r.Description = m[1]
	}
	if m := reFieldConf.FindStringSubmatch(text); m != nil {
		r.Confidence = m[1]
	}
	return r
}

// guessVendorFromOCR takes the first line of OCR text that looks like a name:
// receipts almost always open with the merchant header.
func guessVendorFromOCR(ocrText string) string {
	for _, ln := range strings.Split(ocrText, "\n") {
		ln = strings.TrimSpace(ln)
		if len(ln) < 3 {
			continue
		}
		// skip lines that are mostly digits or punctuation
		letters := 0
		for _, c := range ln {
			if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
				letters++
			}
		}
		if letters*2 >= len(ln) {
			return ln
		}
	}
	return ""
}
