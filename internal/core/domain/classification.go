package domain

// ClassificationResult is the suggested category and priority for a
// ticket description. Both fields are always members of their enumerations.
type ClassificationResult struct {
	SuggestedCategory Category `json:"suggested_category" jsonschema:"enum=billing,enum=technical,enum=account,enum=general"`
	SuggestedPriority Priority `json:"suggested_priority" jsonschema:"enum=low,enum=medium,enum=high,enum=critical"`
}

const (
	// DefaultCategory is used when no valid category can be determined.
	DefaultCategory = CategoryGeneral
	// DefaultPriority is used when no valid priority can be determined.
	DefaultPriority = PriorityMedium
)

// FallbackClassification returns the result served whenever the
// classification pipeline cannot produce a validated answer.
func FallbackClassification() ClassificationResult {
	return ClassificationResult{
		SuggestedCategory: DefaultCategory,
		SuggestedPriority: DefaultPriority,
	}
}

// IsValid reports whether both fields are members of their enumerations.
func (r ClassificationResult) IsValid() bool {
	return r.SuggestedCategory.IsValid() && r.SuggestedPriority.IsValid()
}
