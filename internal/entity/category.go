package entity

// CategorySource records how a category was chosen for a transaction.
type CategorySource string

const (
	SourceKeywordMatch    CategorySource = "keyword_match"
	SourceModelSupplied   CategorySource = "model_supplied"
	SourceFallbackDefault CategorySource = "fallback_default"
)

// UncategorizedName is the sentinel category when nothing matches.
const UncategorizedName = "Uncategorized"

// ResolvedCategory is the deterministic outcome of taxonomy resolution.
type ResolvedCategory struct {
	Name            string
	MatchedKeywords []string
	Source          CategorySource
}
