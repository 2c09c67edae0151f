// Package category maps vendor/description strings onto the configured
// taxonomy. Resolution is deterministic: same inputs and taxonomy, same
// answer.
package category

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/mkarwowski/receipt2ledger/internal/entity"
)

// Entry is one taxonomy category with its match keywords. Order of entries
// is significant: earlier wins ties.
type Entry struct {
	Name     string
	Keywords []string
}

// Taxonomy is the ordered category list, supplied at configuration time and
// read-only for the life of a run.
type Taxonomy []Entry

// DefaultTaxonomy covers the usual personal-finance buckets; deployments
// normally replace it with the ledger's own category list.
var DefaultTaxonomy = Taxonomy{
	{Name: "Groceries", Keywords: []string{"supermarket", "grocery", "market", "mart", "aldi", "lidl", "tesco", "costco"}},
	{Name: "Dining", Keywords: []string{"restaurant", "cafe", "coffee", "pizza", "burger", "bar", "bistro"}},
	{Name: "Transport", Keywords: []string{"fuel", "gas station", "petrol", "parking", "uber", "taxi", "transit", "rail"}},
	{Name: "Utilities", Keywords: []string{"electric", "water", "internet", "telecom", "mobile", "energy"}},
	{Name: "Health", Keywords: []string{"pharmacy", "clinic", "dental", "doctor", "drug"}},
	{Name: "Office", Keywords: []string{"office", "stationery", "printer", "software", "subscription"}},
	{Name: "Travel", Keywords: []string{"hotel", "airline", "airport", "booking", "hostel"}},
}

// Names returns the category names in declaration order.
func (t Taxonomy) Names() []string {
	names := make([]string, len(t))
	for i, e := range t {
		names[i] = e.Name
	}
	return names
}

// Resolver implements the keyword matcher with model-supplied precedence.
type Resolver struct {
	taxonomy Taxonomy
	logger   *slog.Logger
}

func NewResolver(taxonomy Taxonomy, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{taxonomy: taxonomy, logger: logger}
}

// Resolve picks a category for the record.
//
// If the model supplied a category and it exactly matches a taxonomy entry
// (case-insensitive), that wins: the model saw the document, keywords did
// not. Otherwise each entry's keywords are substring-matched against
// vendor+description; most distinct matches wins, declaration order breaks
// ties, and no match at all falls back to Uncategorized.
func (r *Resolver) Resolve(vendor, description, modelCategory string) entity.ResolvedCategory {
	if modelCategory != "" {
		for _, e := range r.taxonomy {
			if strings.EqualFold(strings.TrimSpace(modelCategory), e.Name) {
				r.logger.Debug("category.resolved", "name", e.Name, "source", entity.SourceModelSupplied)
				return entity.ResolvedCategory{
					Name:   e.Name,
					Source: entity.SourceModelSupplied,
				}
			}
		}
		r.logger.Debug("category.model_label_unknown", "label", modelCategory)
	}

	haystack := strings.ToLower(vendor + " " + description)

	bestIdx := -1
	var bestMatches []string
	for i, e := range r.taxonomy {
		var matched []string
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(haystack, kw) {
				matched = append(matched, kw)
			}
		}
		// strictly-greater keeps the first declared winner on ties
		if len(matched) > 0 && (bestIdx == -1 || len(matched) > len(bestMatches)) {
			bestIdx = i
			bestMatches = matched
		}
	}

	if bestIdx == -1 {
		return entity.ResolvedCategory{
			Name:   entity.UncategorizedName,
			Source: entity.SourceFallbackDefault,
		}
	}

	sort.Strings(bestMatches)
	res := entity.ResolvedCategory{
		Name:            r.taxonomy[bestIdx].Name,
		MatchedKeywords: bestMatches,
		Source:          entity.SourceKeywordMatch,
	}
	r.logger.Debug("category.resolved", "name", res.Name, "source", res.Source, "matched", len(bestMatches))
	return res
}
