// Package tables extracts tabular data from PDF documents by driving an
// external tabular-extraction tool across several detection strategies and
// pooling everything it finds. Detection is unreliable by nature, so the
// package accepts redundant candidates over missed tables and never lets a
// single failed strategy abort the run.
package tables

import (
	"context"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// PagesAll selects every page of the document.
const PagesAll = "all"

// Options select one extraction strategy for a single pass.
type Options struct {
	// Pages is a page selector: "all" or an explicit range such as "1-3".
	Pages string
	// Lattice detects tables by ruling lines (bordered tables).
	Lattice bool
	// Stream detects tables by whitespace alignment (borderless tables).
	Stream bool
	// Guess lets the tool guess table areas on each page.
	Guess bool
	// Rotate marks the pass that targets rotated page content.
	Rotate bool
}

// Extractor runs one extraction pass over a local PDF. Implementations may
// fail on malformed input; the aggregator treats a failed pass as zero
// tables.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string, opts Options) ([]domain.TableCandidate, error)
}
