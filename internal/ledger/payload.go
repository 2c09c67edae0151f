package ledger

import (
	"fmt"

	"github.com/mkarwowski/receipt2ledger/constants"
	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// Transaction is the wire shape of one ledger split.
type Transaction struct {
	Type            string   `json:"type"`
	Date            string   `json:"date"`
	Amount          string   `json:"amount"`
	Description     string   `json:"description"`
	SourceAccountID string   `json:"source_id"`
	DestinationName string   `json:"destination_name"`
	CategoryName    string   `json:"category_name"`
	Tags            []string `json:"tags"`
}

// Payload is the ledger API's transaction envelope.
type Payload struct {
	ErrorIfDuplicateHash bool          `json:"error_if_duplicate_hash"`
	Transactions         []Transaction `json:"transactions"`
}

// BuildPayload serializes a canonical transaction into the ledger wire
// shape. Pure and side-effect free. The gate validates before anything
// reaches here, so a missing required field is an internal invariant
// violation, not a user error.
func BuildPayload(tx entity.CanonicalTransaction) (Payload, error) {
	rec := tx.Record
	if tx.AccountID == "" || rec.Vendor == "" || rec.Date.IsZero() {
		return Payload{}, fmt.Errorf("internal: transaction reached payload builder with missing fields (account=%t vendor=%t date=%t)",
			tx.AccountID != "", rec.Vendor != "", !rec.Date.IsZero())
	}

	description := rec.Description
	if description == "" {
		description = rec.Vendor
	}

	tags := make([]string, 0, len(tx.Tags)+1)
	seen := map[string]struct{}{}
	for _, t := range append(append([]string(nil), tx.Tags...), constants.ProvenanceTag) {
		if _, dup := seen[t]; t == "" || dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}

	return Payload{
		ErrorIfDuplicateHash: true,
		Transactions: []Transaction{{
			Type:            string(rec.Type),
			Date:            rec.Date.Format(entity.ISODate),
			Amount:          entity.FormatCents(rec.AmountCents),
			Description:     description,
			SourceAccountID: tx.AccountID,
			DestinationName: rec.Vendor,
			CategoryName:    tx.Category.Name,
			Tags:            tags,
		}},
	}, nil
}
