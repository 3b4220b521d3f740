package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-parsing-service/internal/domain"
	"github.com/helixir/paper-parsing-service/internal/grobid"
)

const referencesMarkup = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><back>
	<div type="references"><listBibl>
		<biblStruct>
			<analytic>
				<title>A Study</title>
				<author><persName><forename>Jane</forename><surname>Doe</surname></persName></author>
			</analytic>
			<monogr><title level="j">Nature</title><imprint><date when="2019">2019</date></imprint></monogr>
		</biblStruct>
	</listBibl></div>
</back></text></TEI>`

const methodsMarkup = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>
	<div type="methods"><p>We used qPCR.</p></div>
</body></text></TEI>`

type fakeStructure struct {
	markup map[string][]byte
	err    error
	opts   []grobid.Options
}

func (f *fakeStructure) ProcessFulltext(_ context.Context, _ string, opts grobid.Options) ([]byte, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	key := "methods"
	if opts.ConsolidateCitations {
		key = "references"
	}
	return f.markup[key], nil
}

type fakeTables struct {
	tables []domain.TableCandidate
	err    error
}

func (f *fakeTables) ExtractAll(context.Context, string, string) ([]domain.TableCandidate, error) {
	return f.tables, f.err
}

type passthroughGate struct {
	dropped int
	seen    []domain.ReferenceRecord
}

func (g *passthroughGate) Filter(_ context.Context, refs []domain.ReferenceRecord) []domain.ReferenceRecord {
	g.seen = refs
	if g.dropped >= len(refs) {
		return nil
	}
	return refs[g.dropped:]
}

type recordingSummarizer struct {
	methods    string
	tablesJSON string
	report     string
}

func (r *recordingSummarizer) Summarize(_ context.Context, methodsText, tablesJSON string) string {
	r.methods = methodsText
	r.tablesJSON = tablesJSON
	return r.report
}

func TestService_ExtractReferences(t *testing.T) {
	t.Run("normalizes and gates bibliography markup", func(t *testing.T) {
		structure := &fakeStructure{markup: map[string][]byte{"references": []byte(referencesMarkup)}}
		gate := &passthroughGate{}
		svc := NewService(structure, &fakeTables{}, gate, &recordingSummarizer{}, zerolog.Nop())

		got, err := svc.ExtractReferences(context.Background(), "/tmp/paper.pdf")

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.ReferenceRecord{
			FirstName: "Jane", LastName: "Doe", Title: "A Study", Year: "2019", Journal: "Nature",
		}, got[0])

		require.Len(t, structure.opts, 1)
		assert.True(t, structure.opts[0].ConsolidateCitations, "bibliography preset used")
	})

	t.Run("structure failure degrades to an empty bibliography", func(t *testing.T) {
		structure := &fakeStructure{err: errors.New("service down")}
		svc := NewService(structure, &fakeTables{}, &passthroughGate{}, &recordingSummarizer{}, zerolog.Nop())

		got, err := svc.ExtractReferences(context.Background(), "/tmp/paper.pdf")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("unparsable markup degrades to an empty bibliography", func(t *testing.T) {
		structure := &fakeStructure{markup: map[string][]byte{"references": []byte("<broken")}}
		svc := NewService(structure, &fakeTables{}, &passthroughGate{}, &recordingSummarizer{}, zerolog.Nop())

		got, err := svc.ExtractReferences(context.Background(), "/tmp/paper.pdf")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("missing input file is a hard error", func(t *testing.T) {
		structure := &fakeStructure{err: fmt.Errorf("grobid: %w: /tmp/gone.pdf", domain.ErrFileNotFound)}
		svc := NewService(structure, &fakeTables{}, &passthroughGate{}, &recordingSummarizer{}, zerolog.Nop())

		_, err := svc.ExtractReferences(context.Background(), "/tmp/gone.pdf")
		assert.True(t, errors.Is(err, domain.ErrFileNotFound))
	})
}

func TestService_ExtractMethodsAndTables(t *testing.T) {
	t.Run("collects methods, tables and summary", func(t *testing.T) {
		structure := &fakeStructure{markup: map[string][]byte{"methods": []byte(methodsMarkup)}}
		tables := &fakeTables{tables: []domain.TableCandidate{{Rows: [][]string{{"Gene", "Fold"}}}}}
		summarizer := &recordingSummarizer{report: "a report"}
		svc := NewService(structure, tables, &passthroughGate{}, summarizer, zerolog.Nop())

		got, err := svc.ExtractMethodsAndTables(context.Background(), "/tmp/paper.pdf", "all")

		require.NoError(t, err)
		assert.Equal(t, "We used qPCR.", got.MethodsText)
		assert.Len(t, got.Tables, 1)
		assert.Equal(t, "a report", got.Summary)

		assert.Equal(t, "We used qPCR.", summarizer.methods)
		assert.Contains(t, summarizer.tablesJSON, "Gene")
	})

	t.Run("methods failure degrades to empty text and the run continues", func(t *testing.T) {
		structure := &fakeStructure{err: errors.New("structure service down")}
		tables := &fakeTables{tables: []domain.TableCandidate{{Rows: [][]string{{"only"}}}}}
		summarizer := &recordingSummarizer{report: "tables-only report"}
		svc := NewService(structure, tables, &passthroughGate{}, summarizer, zerolog.Nop())

		got, err := svc.ExtractMethodsAndTables(context.Background(), "/tmp/paper.pdf", "all")

		require.NoError(t, err)
		assert.Empty(t, got.MethodsText)
		assert.Len(t, got.Tables, 1)
		assert.Equal(t, "tables-only report", got.Summary)
		assert.Empty(t, summarizer.methods)
	})

	t.Run("table source failure is a hard error", func(t *testing.T) {
		structure := &fakeStructure{markup: map[string][]byte{"methods": []byte(methodsMarkup)}}
		tables := &fakeTables{err: domain.ErrFileNotFound}
		svc := NewService(structure, tables, &passthroughGate{}, &recordingSummarizer{}, zerolog.Nop())

		_, err := svc.ExtractMethodsAndTables(context.Background(), "/tmp/paper.pdf", "all")
		assert.True(t, errors.Is(err, domain.ErrFileNotFound))
	})
}
