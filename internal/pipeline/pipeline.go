// Package pipeline orchestrates a parse run over a spooled PDF: structure
// extraction, markup reconciliation, table aggregation and LLM
// post-processing. Partial failure is the norm here — every stage that can
// degrade does so instead of aborting the run.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/domain"
	"github.com/helixir/paper-parsing-service/internal/grobid"
	"github.com/helixir/paper-parsing-service/internal/tei"
)

// StructureClient converts a local PDF into TEI markup.
type StructureClient interface {
	ProcessFulltext(ctx context.Context, pdfPath string, opts grobid.Options) ([]byte, error)
}

// TableSource pools table candidates across extraction strategies.
type TableSource interface {
	ExtractAll(ctx context.Context, pdfPath, pages string) ([]domain.TableCandidate, error)
}

// ReferenceFilter validates normalized references and drops the rest.
type ReferenceFilter interface {
	Filter(ctx context.Context, refs []domain.ReferenceRecord) []domain.ReferenceRecord
}

// MethodsSummarizer produces the methods+tables report. It never fails;
// call problems surface as a fixed failure message in the report text.
type MethodsSummarizer interface {
	Summarize(ctx context.Context, methodsText, tablesJSON string) string
}

// MethodsTablesResult is the outcome of a methods+tables run.
type MethodsTablesResult struct {
	MethodsText string
	Tables      []domain.TableCandidate
	Summary     string
}

// Service runs parse operations over spooled documents. It is stateless
// and safe for concurrent use.
type Service struct {
	structure  StructureClient
	tables     TableSource
	gate       ReferenceFilter
	summarizer MethodsSummarizer
	logger     zerolog.Logger
}

// NewService creates a pipeline service.
func NewService(structure StructureClient, tables TableSource, gate ReferenceFilter, summarizer MethodsSummarizer, logger zerolog.Logger) *Service {
	return &Service{
		structure:  structure,
		tables:     tables,
		gate:       gate,
		summarizer: summarizer,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// ExtractReferences runs the reference half of the pipeline: structure
// extraction with the bibliography preset, markup reconciliation,
// normalization, then the validity gate. A structure-service or markup
// failure degrades to an empty bibliography; a missing input file is the
// only hard error.
func (s *Service) ExtractReferences(ctx context.Context, pdfPath string) ([]domain.ReferenceRecord, error) {
	markup, err := s.structure.ProcessFulltext(ctx, pdfPath, grobid.ReferencesOptions())
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil, fmt.Errorf("pipeline: extract reference markup: %w", err)
		}
		s.logger.Warn().Err(err).Str("pdf", pdfPath).Msg("reference extraction failed, continuing with an empty bibliography")
		return []domain.ReferenceRecord{}, nil
	}

	root, err := tei.Parse(bytes.NewReader(markup))
	if err != nil {
		s.logger.Warn().Err(err).Str("pdf", pdfPath).Msg("reference markup did not parse, continuing with an empty bibliography")
		return []domain.ReferenceRecord{}, nil
	}

	normalized := tei.NormalizeReferences(root)
	kept := s.gate.Filter(ctx, normalized)

	s.logger.Info().
		Str("pdf", pdfPath).
		Int("normalized", len(normalized)).
		Int("kept", len(kept)).
		Msg("reference extraction finished")

	return kept, nil
}

// ExtractMethodsAndTables runs the methods+tables half of the pipeline.
// A failed methods extraction degrades to empty text and the run carries
// on with tables; a missing input file is the only hard error. The summary
// is always produced, over whatever survived.
func (s *Service) ExtractMethodsAndTables(ctx context.Context, pdfPath, pages string) (MethodsTablesResult, error) {
	var result MethodsTablesResult

	methodsText, err := s.extractMethods(ctx, pdfPath)
	if err != nil {
		s.logger.Warn().Err(err).Str("pdf", pdfPath).Msg("methods extraction failed, continuing without methods text")
	} else {
		result.MethodsText = methodsText
	}

	tables, err := s.tables.ExtractAll(ctx, pdfPath, pages)
	if err != nil {
		return MethodsTablesResult{}, fmt.Errorf("pipeline: extract tables: %w", err)
	}
	result.Tables = tables

	tablesJSON, err := json.Marshal(tables)
	if err != nil {
		return MethodsTablesResult{}, fmt.Errorf("pipeline: serialize tables: %w", err)
	}

	result.Summary = s.summarizer.Summarize(ctx, result.MethodsText, string(tablesJSON))

	s.logger.Info().
		Str("pdf", pdfPath).
		Int("tables", len(result.Tables)).
		Int("methods_chars", len(result.MethodsText)).
		Msg("methods and tables extraction finished")

	return result, nil
}

func (s *Service) extractMethods(ctx context.Context, pdfPath string) (string, error) {
	markup, err := s.structure.ProcessFulltext(ctx, pdfPath, grobid.MethodsOptions())
	if err != nil {
		return "", fmt.Errorf("pipeline: extract methods markup: %w", err)
	}

	root, err := tei.Parse(bytes.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("pipeline: reconcile methods markup: %w", err)
	}

	return tei.MethodsText(root), nil
}
