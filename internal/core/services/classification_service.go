package services

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/lorrc/ticket-triage/internal/core/domain"
	"github.com/lorrc/ticket-triage/internal/core/ports"
)

// DefaultClassificationTimeout bounds a single LLM call.
const DefaultClassificationTimeout = 5 * time.Second

// ClassificationService suggests a category and priority using an LLM.
type ClassificationService struct {
	client  ports.CompletionClient
	parser  *ClassificationParser
	metrics ports.ClassificationMetrics
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.ClassificationService = (*ClassificationService)(nil)

// NewClassificationService creates a new classification service.
// metrics may be nil; a non-positive timeout uses the default.
func NewClassificationService(
	client ports.CompletionClient,
	metrics ports.ClassificationMetrics,
	timeout time.Duration,
	logger *slog.Logger,
) *ClassificationService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if timeout <= 0 {
		timeout = DefaultClassificationTimeout
	}
	logger = logger.With("component", "classifier")

	return &ClassificationService{
		client:  client,
		parser:  NewClassificationParser(logger, metrics),
		metrics: metrics,
		timeout: timeout,
		logger:  logger,
	}
}

// Classify always returns a valid result. Any failure along the way is
// logged and answered with domain.FallbackClassification.
func (s *ClassificationService) Classify(ctx context.Context, description string) domain.ClassificationResult {
	start := time.Now()

	if s.client == nil || !s.client.Configured() {
		s.logger.WarnContext(ctx, "LLM API key not set; returning default classification")
		s.metrics.ObserveClassification(ports.OutcomeNoCredential, time.Since(start))
		return domain.FallbackClassification()
	}

	system, user := BuildClassificationPrompt(description)

	// The call outlives a disconnecting caller but never the timeout.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	raw, err := s.client.Complete(callCtx, system, user)
	if err != nil {
		s.logger.ErrorContext(ctx, "LLM classification failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		s.metrics.ObserveClassification(ports.OutcomeCallFailed, time.Since(start))
		return domain.FallbackClassification()
	}

	result, err := s.parser.Parse(raw)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to parse LLM response",
			"error", err,
			"raw", truncate(raw, 200),
		)
		s.metrics.ObserveClassification(ports.OutcomeParseFailed, time.Since(start))
		return domain.FallbackClassification()
	}

	s.logger.DebugContext(ctx, "ticket classified",
		"category", result.SuggestedCategory,
		"priority", result.SuggestedPriority,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.metrics.ObserveClassification(ports.OutcomeSuccess, time.Since(start))
	return result
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

type noopMetrics struct{}

func (noopMetrics) ObserveClassification(string, time.Duration) {}
func (noopMetrics) IncCorrection(string)                         {}
