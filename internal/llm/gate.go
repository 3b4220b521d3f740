package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// gateBatchSize is how many references travel in one validation call.
const gateBatchSize = 10

// gatedReference is a reference record plus the validity flag the model is
// asked to attach. The flag never leaves this package.
type gatedReference struct {
	domain.ReferenceRecord
	Valid bool `json:"valid"`
}

// ReferenceGate filters normalized references through the model's validity
// rubric. It is the only mutation references undergo after normalization:
// invalid entries are dropped and the validity flag is stripped.
type ReferenceGate struct {
	client Client
	logger zerolog.Logger
}

// NewReferenceGate creates a gate over the given client.
func NewReferenceGate(client Client, logger zerolog.Logger) *ReferenceGate {
	return &ReferenceGate{
		client: client,
		logger: logger.With().Str("component", "reference-gate").Logger(),
	}
}

// Filter validates references in batches of ten and returns the entries
// the model marked valid, in input order. A batch whose call fails or
// whose reply cannot be parsed as a JSON array contributes nothing; the
// other batches are unaffected. The returned records carry no validity
// flag. Filter never returns an error: with every batch lost the result
// is simply empty.
func (g *ReferenceGate) Filter(ctx context.Context, refs []domain.ReferenceRecord) []domain.ReferenceRecord {
	final := make([]domain.ReferenceRecord, 0, len(refs))

	for start := 0; start < len(refs); start += gateBatchSize {
		end := start + gateBatchSize
		if end > len(refs) {
			end = len(refs)
		}
		final = append(final, g.filterBatch(ctx, refs[start:end])...)
	}

	g.logger.Info().Int("input", len(refs)).Int("kept", len(final)).Msg("reference gate finished")
	return final
}

func (g *ReferenceGate) filterBatch(ctx context.Context, batch []domain.ReferenceRecord) []domain.ReferenceRecord {
	batchJSON, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		g.logger.Error().Err(err).Msg("failed to serialize reference batch")
		return nil
	}

	content, err := g.client.Complete(ctx, gateSystemPrompt, buildGatePrompt(string(batchJSON)))
	if err != nil {
		g.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("validation call failed, dropping batch")
		return nil
	}

	var validated []gatedReference
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &validated); err != nil {
		g.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("unparsable validation reply, dropping batch")
		return nil
	}

	kept := make([]domain.ReferenceRecord, 0, len(validated))
	for _, ref := range validated {
		if ref.Valid {
			kept = append(kept, ref.ReferenceRecord)
		}
	}
	return kept
}

// stripCodeFences removes markdown code fences the model sometimes wraps
// around JSON replies despite instructions not to.
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
