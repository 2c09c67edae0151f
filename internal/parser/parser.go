// Package parser turns the analyzer's free-form output into a validated
// FinancialRecord. The upstream model's output is never guaranteed
// well-formed, so parsing is a two-pass affair: strict JSON decoding against
// a schema, then a lenient field-by-field recovery before giving up.
package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mkarwowski/receipt2ledger/internal/common"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// Outcome tags which decode path produced the record.
type Outcome int

const (
	Failed Outcome = iota
	StrictOK
	LenientOK
)

func (o Outcome) String() string {
	switch o {
	case StrictOK:
		return "strict"
	case LenientOK:
		return "lenient"
	default:
		return "failed"
	}
}

// rawFields mirrors the JSON shape requested from the model. Amount is `any`
// because models flip between numbers and strings.
type rawFields struct {
	Type        string   `json:"type"`
	Amount      any      `json:"amount"`
	Vendor      string   `json:"vendor"`
	Date        string   `json:"date"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Confidence  *float64 `json:"confidence"`
}

// Parser validates and normalizes analyzer responses.
type Parser struct {
	schema map[string]any
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		schema: BuildRecordJSONSchema(),
		logger: logger,
		now:    time.Now,
	}
}

// Parse extracts a FinancialRecord from the raw analyzer response. ocrText
// and ocrConf come from the extraction stage: the confidence feeds the
// compounded-uncertainty default, the text feeds the type-default guard.
//
// Failure modes: common.ErrMalformedResponse when no structured payload can
// be located or required fields are unrecoverable; common.ErrValidation when
// a located field is semantically invalid (negative amount, impossible
// date). Validation failures are never retried leniently — a bad amount is
// bad no matter how it was decoded.
func (p *Parser) Parse(raw string, ocrText string, ocrConf float32) (entity.FinancialRecord, Outcome, error) {
	payload := locatePayload(raw)
	if payload == "" {
		p.logger.Error("parse.no_payload", "raw_bytes", len(raw))
		return entity.FinancialRecord{}, Failed,
			fmt.Errorf("%w: no JSON object found in response: %s", common.ErrMalformedResponse, snippet(raw))
	}

	if err := ValidateJSONAgainstSchema(p.schema, []byte(payload)); err == nil {
		var rf rawFields
		if uerr := json.Unmarshal([]byte(payload), &rf); uerr == nil {
			rec, verr := p.normalize(rf, raw, ocrText, ocrConf)
			if verr != nil {
				return entity.FinancialRecord{}, Failed, verr
			}
			p.logger.Info("parse.ok", "outcome", StrictOK.String(), "vendor", rec.Vendor, "amount", entity.FormatCents(rec.AmountCents))
			return rec, StrictOK, nil
		}
	} else {
		p.logger.Warn("parse.strict_failed", "error", err)
	}

	// Lenient pass over the whole response, not just the located payload:
	// the fields may sit outside a broken object.
	rec, err := p.parseLenient(raw, ocrText, ocrConf)
	if err != nil {
		return entity.FinancialRecord{}, Failed, err
	}
	p.logger.Info("parse.ok", "outcome", LenientOK.String(), "vendor", rec.Vendor, "amount", entity.FormatCents(rec.AmountCents))
	return rec, LenientOK, nil
}

func (p *Parser) parseLenient(raw, ocrText string, ocrConf float32) (entity.FinancialRecord, error) {
	r := recoverFields(raw)
	if r.Amount == "" || r.Date == "" || r.Vendor == "" {
		return entity.FinancialRecord{}, fmt.Errorf(
			"%w: lenient recovery missing required fields (amount=%t date=%t vendor=%t): %s",
			common.ErrMalformedResponse, r.Amount != "", r.Date != "", r.Vendor != "", snippet(raw))
	}
	var conf *float64
	if r.Confidence != "" {
		if f, err := strconv.ParseFloat(r.Confidence, 64); err == nil {
			conf = &f
		}
	}
	rf := rawFields{
		Type:        r.Type,
		Amount:      r.Amount,
		Vendor:      r.Vendor,
		Date:        r.Date,
		Description: r.Description,
		Confidence:  conf,
	}
	rec, err := p.normalize(rf, raw, ocrText, ocrConf)
	if err != nil {
		return entity.FinancialRecord{}, err
	}
	// A leniently recovered record is worth less than a strict one.
	if rec.Confidence > 0.5 {
		rec.Confidence = 0.5
	}
	return rec, nil
}

// normalize applies the post-decode rules and enforces the record
// invariants. Anything touching financial correctness fails loudly here.
func (p *Parser) normalize(rf rawFields, modelText, ocrText string, ocrConf float32) (entity.FinancialRecord, error) {
	cents, err := coerceAmount(rf.Amount)
	if err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	if cents < 0 {
		return entity.FinancialRecord{}, fmt.Errorf("%w: negative amount %s", common.ErrValidation, entity.FormatCents(cents))
	}

	date, err := parseDate(rf.Date)
	if err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	txType, err := normalizeType(rf.Type, modelText, ocrText)
	if err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	vendor := strings.TrimSpace(rf.Vendor)
	if vendor == "" {
		return entity.FinancialRecord{}, fmt.Errorf("%w: vendor is empty", common.ErrMalformedResponse)
	}

	rec := entity.FinancialRecord{
		Type:        txType,
		AmountCents: cents,
		Vendor:      vendor,
		Date:        date,
		Category:    strings.TrimSpace(rf.Category),
		Description: strings.TrimSpace(rf.Description),
		Confidence:  clampConfidence(rf.Confidence, ocrConf),
	}
	if err := rec.Validate(p.now()); err != nil {
		return entity.FinancialRecord{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return rec, nil
}

// coerceAmount handles the number-or-string duality of model output.
func coerceAmount(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		// JSON numbers arrive as float64; format to 2 places and re-parse
		// so 25.50 lands on exactly 2550 cents.
		return parseAmountCents(strconv.FormatFloat(t, 'f', 2, 64))
	case string:
		return parseAmountCents(t)
	case nil:
		return 0, fmt.Errorf("amount is missing")
	default:
		return 0, fmt.Errorf("amount has unexpected type %T", v)
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 240 {
		return s[:240] + "…"
	}
	return s
}
