package tables

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

const defaultPassTimeout = 90 * time.Second

// TabulaConfig holds the invocation settings for the tabula extraction tool.
type TabulaConfig struct {
	// JavaPath is the java binary. Default: "java" from PATH.
	JavaPath string
	// JarPath is the path to the tabula jar. Required.
	JarPath string
	// PassTimeout bounds a single extraction pass. Default: 90 seconds.
	PassTimeout time.Duration
}

// TabulaExtractor shells out to the tabula JVM tool and parses its JSON
// output into table candidates. It is safe for concurrent use.
type TabulaExtractor struct {
	javaPath    string
	jarPath     string
	passTimeout time.Duration
	logger      zerolog.Logger
}

var _ Extractor = (*TabulaExtractor)(nil)

// NewTabulaExtractor creates an extractor from config.
func NewTabulaExtractor(cfg TabulaConfig, logger zerolog.Logger) *TabulaExtractor {
	if cfg.JavaPath == "" {
		cfg.JavaPath = "java"
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = defaultPassTimeout
	}
	return &TabulaExtractor{
		javaPath:    cfg.JavaPath,
		jarPath:     cfg.JarPath,
		passTimeout: cfg.PassTimeout,
		logger:      logger.With().Str("component", "tabula-extractor").Logger(),
	}
}

// Extract runs one tabula pass and returns the tables it detected. The
// Rotate option does not map to a tool flag; tabula detects rotated text on
// its own, and the option only distinguishes strategy passes upstream.
func (e *TabulaExtractor) Extract(ctx context.Context, pdfPath string, opts Options) ([]domain.TableCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, e.passTimeout)
	defer cancel()

	args := []string{"-jar", e.jarPath, "--format", "JSON", "--pages", pageSelector(opts.Pages)}
	if opts.Lattice {
		args = append(args, "--lattice")
	}
	if opts.Stream {
		args = append(args, "--stream")
	}
	if opts.Guess {
		args = append(args, "--guess")
	}
	args = append(args, pdfPath)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.javaPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tables: tabula pass failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	candidates, err := parseTabulaJSON(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Bool("lattice", opts.Lattice).
		Bool("stream", opts.Stream).
		Bool("rotate", opts.Rotate).
		Int("tables", len(candidates)).
		Dur("elapsed", time.Since(start)).
		Msg("tabula pass finished")

	return candidates, nil
}

func pageSelector(pages string) string {
	if pages == "" {
		return PagesAll
	}
	return pages
}

// tabulaTable mirrors the tool's JSON output: one object per detected
// table, cells as positioned text fragments.
type tabulaTable struct {
	Data [][]struct {
		Text string `json:"text"`
	} `json:"data"`
}

// parseTabulaJSON converts the tool's JSON output into table candidates.
// Cell geometry is discarded; only the cell text survives.
func parseTabulaJSON(raw []byte) ([]domain.TableCandidate, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var tables []tabulaTable
	if err := json.Unmarshal(trimmed, &tables); err != nil {
		return nil, fmt.Errorf("tables: parse tabula output: %w", err)
	}

	candidates := make([]domain.TableCandidate, 0, len(tables))
	for _, table := range tables {
		rows := make([][]string, 0, len(table.Data))
		for _, row := range table.Data {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cells = append(cells, cell.Text)
			}
			rows = append(rows, cells)
		}
		candidates = append(candidates, domain.TableCandidate{Rows: rows})
	}
	return candidates, nil
}
