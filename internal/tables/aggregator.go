package tables

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// strategyPasses is the fixed cross-product of detection strategies:
// lattice and stream detection, each with rotation off and on. Overlapping
// passes often detect the same physical table; the duplicates are kept.
func strategyPasses(pages string) []Options {
	return []Options{
		{Pages: pages, Lattice: true, Guess: true},
		{Pages: pages, Stream: true, Guess: true},
		{Pages: pages, Lattice: true, Guess: true, Rotate: true},
		{Pages: pages, Stream: true, Guess: true, Rotate: true},
	}
}

// Aggregator pools table candidates from every strategy pass.
type Aggregator struct {
	extractor Extractor
	logger    zerolog.Logger
}

// NewAggregator creates an aggregator over the given extractor.
func NewAggregator(extractor Extractor, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		extractor: extractor,
		logger:    logger.With().Str("component", "table-aggregator").Logger(),
	}
}

// ExtractAll runs every strategy pass against the PDF and concatenates the
// results in pass order. A pass that fails contributes zero tables and does
// not affect the other passes. The only hard error is a missing input file,
// which fails before any pass runs.
func (a *Aggregator) ExtractAll(ctx context.Context, pdfPath, pages string) ([]domain.TableCandidate, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("tables: %w: %s", domain.ErrFileNotFound, pdfPath)
	}

	var all []domain.TableCandidate
	for _, opts := range strategyPasses(pageSelector(pages)) {
		candidates, err := a.extractor.Extract(ctx, pdfPath, opts)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Bool("lattice", opts.Lattice).
				Bool("stream", opts.Stream).
				Bool("rotate", opts.Rotate).
				Msg("extraction pass failed, continuing with remaining passes")
			continue
		}
		all = append(all, candidates...)
	}

	a.logger.Info().Int("tables", len(all)).Str("pdf", pdfPath).Msg("table extraction finished")
	return all, nil
}
