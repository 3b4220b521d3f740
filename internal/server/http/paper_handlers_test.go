package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-parsing-service/internal/domain"
	"github.com/helixir/paper-parsing-service/internal/events"
	"github.com/helixir/paper-parsing-service/internal/grobid"
	"github.com/helixir/paper-parsing-service/internal/observability"
	"github.com/helixir/paper-parsing-service/internal/pipeline"
	"github.com/helixir/paper-parsing-service/internal/repository"
)

// Shared metrics instance: promauto registers globally, so one namespace for
// the whole test package.
var testMetrics = observability.NewMetrics("test_httpserver")

const testOwner = "alice@example.org"

type stubPaperRepo struct {
	upserted  *domain.Paper
	upsertErr error

	updatedRefs      []domain.ReferenceRecord
	updatedMethods   string
	updatedTables    []domain.TableCandidate
	updatedSummary   string
	updateRefsErr    error
	updateMethodsErr error

	getPaper *domain.Paper
	getErr   error

	listPapers []*domain.Paper
	listTotal  int64
	listErr    error
}

var _ repository.PaperRepository = (*stubPaperRepo)(nil)

func (r *stubPaperRepo) Upsert(_ context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if r.upsertErr != nil {
		return nil, r.upsertErr
	}
	stored := *paper
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.upserted = &stored
	return &stored, nil
}

func (r *stubPaperRepo) GetByID(context.Context, uuid.UUID) (*domain.Paper, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.getPaper, nil
}

func (r *stubPaperRepo) GetByOwnerAndHash(context.Context, string, string) (*domain.Paper, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.getPaper, nil
}

func (r *stubPaperRepo) UpdateReferences(_ context.Context, _ uuid.UUID, refs []domain.ReferenceRecord) error {
	if r.updateRefsErr != nil {
		return r.updateRefsErr
	}
	r.updatedRefs = refs
	return nil
}

func (r *stubPaperRepo) UpdateMethodsTables(_ context.Context, _ uuid.UUID, methodsText string, tables []domain.TableCandidate, summaryText string) error {
	if r.updateMethodsErr != nil {
		return r.updateMethodsErr
	}
	r.updatedMethods = methodsText
	r.updatedTables = tables
	r.updatedSummary = summaryText
	return nil
}

func (r *stubPaperRepo) ListByOwner(context.Context, string, int, int) ([]*domain.Paper, int64, error) {
	if r.listErr != nil {
		return nil, 0, r.listErr
	}
	return r.listPapers, r.listTotal, nil
}

type stubParser struct {
	refs    []domain.ReferenceRecord
	refsErr error

	mtResult pipeline.MethodsTablesResult
	mtErr    error

	lastPages string
}

func (p *stubParser) ExtractReferences(context.Context, string) ([]domain.ReferenceRecord, error) {
	if p.refsErr != nil {
		return nil, p.refsErr
	}
	return p.refs, nil
}

func (p *stubParser) ExtractMethodsAndTables(_ context.Context, _ string, pages string) (pipeline.MethodsTablesResult, error) {
	p.lastPages = pages
	if p.mtErr != nil {
		return pipeline.MethodsTablesResult{}, p.mtErr
	}
	return p.mtResult, nil
}

type recordingPublisher struct {
	events []events.PaperEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.PaperEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// Minimal pipeline collaborators for tests that wire a real pipeline.Service
// behind the handlers.
type failingStructureClient struct{}

func (failingStructureClient) ProcessFulltext(context.Context, string, grobid.Options) ([]byte, error) {
	return nil, domain.NewExternalAPIError("grobid", http.StatusInternalServerError, "worker pool exhausted", nil)
}

type emptyTableSource struct{}

func (emptyTableSource) ExtractAll(context.Context, string, string) ([]domain.TableCandidate, error) {
	return nil, nil
}

type passthroughGate struct{}

func (passthroughGate) Filter(_ context.Context, refs []domain.ReferenceRecord) []domain.ReferenceRecord {
	return refs
}

type fixedSummarizer struct{}

func (fixedSummarizer) Summarize(context.Context, string, string) string { return "" }

func newTestServer(repo *stubPaperRepo, parser Parser, pub *recordingPublisher) *Server {
	return NewServer(
		Config{
			Address:        "127.0.0.1:0",
			UploadMaxBytes: 10 << 20,
		},
		repo,
		parser,
		pub,
		nil,
		testMetrics,
		zerolog.Nop(),
		NewAllowListMiddleware([]string{testOwner}),
	)
}

// newUploadRequest builds a multipart POST carrying a small PDF payload.
func newUploadRequest(t *testing.T, target, email string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile(uploadFieldName, "paper.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 test document"))
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if email != "" {
		req.Header.Set(authEmailHeader, email)
	}
	return req
}

func TestParseReferences(t *testing.T) {
	t.Run("runs the pipeline and persists gated references", func(t *testing.T) {
		repo := &stubPaperRepo{}
		parser := &stubParser{refs: []domain.ReferenceRecord{
			{FirstName: "Jane", LastName: "Doe", Title: "A Study", Year: "2019", Journal: "Nature"},
		}}
		pub := &recordingPublisher{}
		server := newTestServer(repo, parser, pub)

		req := newUploadRequest(t, "/api/v1/papers/references", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp parseReferencesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.ParseTypeReferencesOnly), resp.ParseType)
		assert.Equal(t, 1, resp.Count)
		require.Len(t, resp.References, 1)
		assert.Equal(t, "Doe", resp.References[0].LastName)
		assert.NotEmpty(t, resp.PaperID)
		assert.NotEmpty(t, resp.PDFHash)

		require.NotNil(t, repo.upserted)
		assert.Equal(t, testOwner, repo.upserted.OwnerEmail)
		assert.Equal(t, domain.ParseTypeReferencesOnly, repo.upserted.ParseType)
		assert.Len(t, repo.updatedRefs, 1)

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventTypeParsed, pub.events[0].EventType)
	})

	t.Run("uses filename as title fallback", func(t *testing.T) {
		repo := &stubPaperRepo{}
		server := newTestServer(repo, &stubParser{}, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/references", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "paper", repo.upserted.Title)
	})

	t.Run("prefers explicit title field", func(t *testing.T) {
		repo := &stubPaperRepo{}
		server := newTestServer(repo, &stubParser{}, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/references", testOwner, map[string]string{"title": "Deep Learning Survey"})
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Deep Learning Survey", repo.upserted.Title)
	})

	t.Run("rejects request without identity header", func(t *testing.T) {
		server := newTestServer(&stubPaperRepo{}, &stubParser{}, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/references", "", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects identity outside the allow-list", func(t *testing.T) {
		server := newTestServer(&stubPaperRepo{}, &stubParser{}, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/references", "mallory@example.org", nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects request without pdf_file field", func(t *testing.T) {
		server := newTestServer(&stubPaperRepo{}, &stubParser{}, &recordingPublisher{})

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("title", "no file"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/papers/references", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set(authEmailHeader, testOwner)

		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("structure service failure degrades to an empty persisted bibliography", func(t *testing.T) {
		repo := &stubPaperRepo{}
		pub := &recordingPublisher{}
		parser := pipeline.NewService(failingStructureClient{}, emptyTableSource{}, passthroughGate{}, fixedSummarizer{}, zerolog.Nop())
		server := newTestServer(repo, parser, pub)

		req := newUploadRequest(t, "/api/v1/papers/references", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp parseReferencesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Count)
		assert.Empty(t, resp.References)

		require.NotNil(t, repo.updatedRefs, "empty bibliography must still be persisted")
		assert.Empty(t, repo.updatedRefs)

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventTypeParsed, pub.events[0].EventType)
	})

	t.Run("maps a missing spooled file to internal error", func(t *testing.T) {
		parser := &stubParser{refsErr: domain.ErrFileNotFound}
		pub := &recordingPublisher{}
		server := newTestServer(&stubPaperRepo{}, parser, pub)

		req := newUploadRequest(t, "/api/v1/papers/references", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventTypeParseFailed, pub.events[0].EventType)
	})
}

func TestParseMethodsTables(t *testing.T) {
	t.Run("runs the pipeline and persists results", func(t *testing.T) {
		repo := &stubPaperRepo{}
		parser := &stubParser{mtResult: pipeline.MethodsTablesResult{
			MethodsText: "We trained a model.",
			Tables:      []domain.TableCandidate{{Rows: [][]string{{"a", "b"}}}},
			Summary:     "A summary.",
		}}
		pub := &recordingPublisher{}
		server := newTestServer(repo, parser, pub)

		req := newUploadRequest(t, "/api/v1/papers/methods-tables", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp parseMethodsTablesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, string(domain.ParseTypeMethodsTablesOnly), resp.ParseType)
		assert.Equal(t, "We trained a model.", resp.MethodsText)
		assert.Equal(t, "A summary.", resp.Summary)
		require.Len(t, resp.Tables, 1)
		assert.Equal(t, [][]string{{"a", "b"}}, resp.Tables[0].Rows)

		assert.Equal(t, "We trained a model.", repo.updatedMethods)
		assert.Equal(t, "A summary.", repo.updatedSummary)
		assert.Len(t, repo.updatedTables, 1)

		require.Len(t, pub.events, 1)
		assert.Equal(t, events.EventTypeParsed, pub.events[0].EventType)
	})

	t.Run("defaults pages to all", func(t *testing.T) {
		parser := &stubParser{}
		server := newTestServer(&stubPaperRepo{}, parser, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/methods-tables", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "all", parser.lastPages)
	})

	t.Run("passes explicit pages through", func(t *testing.T) {
		parser := &stubParser{}
		server := newTestServer(&stubPaperRepo{}, parser, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/methods-tables", testOwner, map[string]string{"pages": "1-3"})
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1-3", parser.lastPages)
	})

	t.Run("maps a missing spooled file to internal error", func(t *testing.T) {
		parser := &stubParser{mtErr: domain.ErrFileNotFound}
		server := newTestServer(&stubPaperRepo{}, parser, &recordingPublisher{})

		req := newUploadRequest(t, "/api/v1/papers/methods-tables", testOwner, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestListPapers(t *testing.T) {
	repo := &stubPaperRepo{
		listPapers: []*domain.Paper{
			{ID: uuid.New(), OwnerEmail: testOwner, Title: "First", PDFHash: "h1", ParseType: domain.ParseTypeBoth},
			{ID: uuid.New(), OwnerEmail: testOwner, Title: "Second", PDFHash: "h2", ParseType: domain.ParseTypeReferencesOnly},
		},
		listTotal: 2,
	}
	server := newTestServer(repo, &stubParser{}, &recordingPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/?limit=10", nil)
	req.Header.Set(authEmailHeader, testOwner)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp listPapersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.TotalCount)
	require.Len(t, resp.Papers, 2)
	assert.Equal(t, "First", resp.Papers[0].Title)
	assert.Equal(t, string(domain.ParseTypeBoth), resp.Papers[0].ParseType)
}

func TestGetPaper(t *testing.T) {
	paperID := uuid.New()
	paper := &domain.Paper{
		ID:          paperID,
		OwnerEmail:  testOwner,
		Title:       "A Paper",
		PDFHash:     "hash",
		ParseType:   domain.ParseTypeBoth,
		References:  []domain.ReferenceRecord{{LastName: "Doe"}},
		MethodsText: "methods",
		SummaryText: "summary",
	}

	t.Run("returns full detail for the owner", func(t *testing.T) {
		repo := &stubPaperRepo{getPaper: paper}
		server := newTestServer(repo, &stubParser{}, &recordingPublisher{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paperID.String(), nil)
		req.Header.Set(authEmailHeader, testOwner)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp paperDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, paperID.String(), resp.PaperID)
		assert.Equal(t, "methods", resp.MethodsText)
		assert.Equal(t, "summary", resp.Summary)
		require.Len(t, resp.References, 1)
	})

	t.Run("hides other owners' papers behind 404", func(t *testing.T) {
		other := *paper
		other.OwnerEmail = "bob@example.org"
		repo := &stubPaperRepo{getPaper: &other}
		server := newTestServer(repo, &stubParser{}, &recordingPublisher{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paperID.String(), nil)
		req.Header.Set(authEmailHeader, testOwner)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects malformed IDs", func(t *testing.T) {
		server := newTestServer(&stubPaperRepo{}, &stubParser{}, &recordingPublisher{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/not-a-uuid", nil)
		req.Header.Set(authEmailHeader, testOwner)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps repository not-found", func(t *testing.T) {
		repo := &stubPaperRepo{getErr: domain.NewNotFoundError("paper", paperID.String())}
		server := newTestServer(repo, &stubParser{}, &recordingPublisher{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paperID.String(), nil)
		req.Header.Set(authEmailHeader, testOwner)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
