package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	apperrors "github.com/lorrc/ticket-triage/internal/core/errors"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

var (
	leadingFence  = regexp.MustCompile("^```[A-Za-z0-9_-]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

const (
	fieldCategory = "suggested_category"
	fieldPriority = "suggested_priority"
)

// ClassificationParser turns raw LLM text into a validated result.
type ClassificationParser struct {
	logger  *slog.Logger
	metrics ports.ClassificationMetrics
}

// NewClassificationParser creates a parser. metrics may be nil.
func NewClassificationParser(logger *slog.Logger, metrics ports.ClassificationMetrics) *ClassificationParser {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ClassificationParser{logger: logger, metrics: metrics}
}

// Parse fails when the text cannot be decoded as a JSON object or when a
// present field is not a string. Missing or unknown values are replaced with
// their defaults.
func (p *ClassificationParser) Parse(raw string) (domain.ClassificationResult, error) {
	text := StripCodeFences(raw)

	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedResponse, err)
	}
	if decoded == nil {
		return domain.ClassificationResult{}, fmt.Errorf("%w: got null", apperrors.ErrMalformedResponse)
	}

	// Type errors reject the whole response before any field is corrected.
	rawCategory, err := stringField(decoded, fieldCategory, string(domain.DefaultCategory))
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	rawPriority, err := stringField(decoded, fieldPriority, string(domain.DefaultPriority))
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	category := p.project(fieldCategory, rawCategory, string(domain.DefaultCategory), func(v string) bool {
		return domain.Category(v).IsValid()
	})
	priority := p.project(fieldPriority, rawPriority, string(domain.DefaultPriority), func(v string) bool {
		return domain.Priority(v).IsValid()
	})

	return domain.ClassificationResult{
		SuggestedCategory: domain.Category(category),
		SuggestedPriority: domain.Priority(priority),
	}, nil
}

// stringField returns the field's value, or fallback when the key is absent.
// null and other non-string JSON values are malformed.
func stringField(decoded map[string]any, field, fallback string) (string, error) {
	raw, present := decoded[field]
	if !present {
		return fallback, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, not a string", apperrors.ErrMalformedResponse, field, raw)
	}
	return value, nil
}

func (p *ClassificationParser) project(field, value, fallback string, valid func(string) bool) string {
	value = strings.ToLower(value)
	if !valid(value) {
		p.logger.Warn("LLM returned invalid value, defaulting",
			"field", field,
			"value", value,
			"default", fallback,
		)
		p.metrics.IncCorrection(field)
		return fallback
	}
	return value
}

// StripCodeFences trims whitespace and removes a surrounding markdown code
// fence, with or without a language tag.
func StripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
