package llm

import (
	"context"

	"github.com/rs/zerolog"
)

// SummaryFailureMessage is the fixed text returned when summarization
// fails. Callers persist it in place of a summary; a summarization problem
// must never fail the overall parse.
const SummaryFailureMessage = "LLM summarization failed or encountered an error."

// Summarizer produces the one-shot methods+tables report.
type Summarizer struct {
	client Client
	logger zerolog.Logger
}

// NewSummarizer creates a summarizer over the given client.
func NewSummarizer(client Client, logger zerolog.Logger) *Summarizer {
	return &Summarizer{
		client: client,
		logger: logger.With().Str("component", "summarizer").Logger(),
	}
}

// Summarize asks the model for a medium-length report covering the methods
// used and each table's key findings. The reply is free text and is not
// stable across calls. On any failure the sentinel failure message is
// returned instead of an error.
func (s *Summarizer) Summarize(ctx context.Context, methodsText, tablesJSON string) string {
	report, err := s.client.Complete(ctx, summarySystemPrompt, buildSummaryPrompt(methodsText, tablesJSON))
	if err != nil {
		s.logger.Warn().Err(err).Msg("summarization call failed")
		return SummaryFailureMessage
	}
	return report
}
