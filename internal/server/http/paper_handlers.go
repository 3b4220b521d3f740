package httpserver

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/paper-parsing-service/internal/document"
	"github.com/helixir/paper-parsing-service/internal/domain"
	"github.com/helixir/paper-parsing-service/internal/events"
	"github.com/helixir/paper-parsing-service/internal/observability"
	"github.com/helixir/paper-parsing-service/internal/tables"
)

// uploadFieldName is the multipart form field carrying the PDF.
const uploadFieldName = "pdf_file"

// parseReferences handles POST /api/v1/papers/references.
// It spools the upload, registers the paper and runs the reference pipeline
// inline, returning the gated bibliography.
func (s *Server) parseReferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := observability.OwnerFromContext(ctx)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	spooled, title, ok := s.spoolUpload(w, r)
	if !ok {
		return
	}
	defer spooled.Cleanup()

	start := time.Now()
	parseType := domain.ParseTypeReferencesOnly

	stored, ok := s.registerPaper(w, r, owner, title, parseType, spooled)
	if !ok {
		return
	}
	s.metrics.RecordParseStarted(string(parseType))

	refs, err := s.parser.ExtractReferences(ctx, spooled.Path)
	if err != nil {
		s.metrics.RecordParseFailed(string(parseType), time.Since(start).Seconds())
		s.publishEvent(r, events.EventTypeParseFailed, stored)
		s.logger.Error().Err(err).Str("paper_id", stored.ID.String()).Msg("reference parse failed")
		writeDomainError(w, err)
		return
	}

	if err := s.paperRepo.UpdateReferences(ctx, stored.ID, refs); err != nil {
		s.metrics.RecordParseFailed(string(parseType), time.Since(start).Seconds())
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordParseCompleted(string(parseType), time.Since(start).Seconds())
	s.publishEvent(r, events.EventTypeParsed, stored)

	writeJSON(w, http.StatusOK, parseReferencesResponse{
		PaperID:    stored.ID.String(),
		PDFHash:    stored.PDFHash,
		ParseType:  string(stored.ParseType),
		References: domainReferencesToResponse(refs),
		Count:      len(refs),
	})
}

// parseMethodsTables handles POST /api/v1/papers/methods-tables.
// It spools the upload, registers the paper and runs the methods+tables
// pipeline inline, returning the extracted text, tables and summary.
func (s *Server) parseMethodsTables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := observability.OwnerFromContext(ctx)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	spooled, title, ok := s.spoolUpload(w, r)
	if !ok {
		return
	}
	defer spooled.Cleanup()

	pages := strings.TrimSpace(r.FormValue("pages"))
	if pages == "" {
		pages = tables.PagesAll
	}

	start := time.Now()
	parseType := domain.ParseTypeMethodsTablesOnly

	stored, ok := s.registerPaper(w, r, owner, title, parseType, spooled)
	if !ok {
		return
	}
	s.metrics.RecordParseStarted(string(parseType))

	result, err := s.parser.ExtractMethodsAndTables(ctx, spooled.Path, pages)
	if err != nil {
		s.metrics.RecordParseFailed(string(parseType), time.Since(start).Seconds())
		s.publishEvent(r, events.EventTypeParseFailed, stored)
		s.logger.Error().Err(err).Str("paper_id", stored.ID.String()).Msg("methods and tables parse failed")
		writeDomainError(w, err)
		return
	}

	if err := s.paperRepo.UpdateMethodsTables(ctx, stored.ID, result.MethodsText, result.Tables, result.Summary); err != nil {
		s.metrics.RecordParseFailed(string(parseType), time.Since(start).Seconds())
		writeDomainError(w, err)
		return
	}

	s.metrics.RecordParseCompleted(string(parseType), time.Since(start).Seconds())
	s.publishEvent(r, events.EventTypeParsed, stored)

	writeJSON(w, http.StatusOK, parseMethodsTablesResponse{
		PaperID:     stored.ID.String(),
		PDFHash:     stored.PDFHash,
		ParseType:   string(stored.ParseType),
		MethodsText: result.MethodsText,
		Tables:      domainTablesToResponse(result.Tables),
		Summary:     result.Summary,
	})
}

// listPapers handles GET /api/v1/papers. Results are scoped to the
// authenticated uploader.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := observability.OwnerFromContext(ctx)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	limit := parseIntQuery(r, "limit", 0)
	offset := parseIntQuery(r, "offset", 0)

	papers, total, err := s.paperRepo.ListByOwner(ctx, owner, limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := listPapersResponse{
		Papers:     make([]paperSummaryResponse, 0, len(papers)),
		TotalCount: total,
	}
	for _, paper := range papers {
		resp.Papers = append(resp.Papers, domainPaperToSummary(paper))
	}

	writeJSON(w, http.StatusOK, resp)
}

// getPaper handles GET /api/v1/papers/{paperID}. Papers belong to their
// uploader; other identities get a 404 rather than an existence hint.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := observability.OwnerFromContext(ctx)
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "paperID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paper ID")
		return
	}

	paper, err := s.paperRepo.GetByID(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if !strings.EqualFold(paper.OwnerEmail, owner) {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}

	writeJSON(w, http.StatusOK, domainPaperToDetail(paper))
}

// spoolUpload reads the multipart upload and spools it to a local file. On
// failure it writes the error response and returns ok=false.
func (s *Server) spoolUpload(w http.ResponseWriter, r *http.Request) (*document.Spooled, string, bool) {
	if s.uploadMaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	}

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "pdf_file upload is required")
		return nil, "", false
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != "" && ext != ".pdf" {
		writeError(w, http.StatusBadRequest, "only PDF uploads are accepted")
		return nil, "", false
	}

	spooled, err := document.Spool(file, s.uploadDir)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to spool upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return nil, "", false
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" && header.Filename != "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	return spooled, title, true
}

// registerPaper upserts the paper record for this upload. On failure it
// writes the error response and returns ok=false.
func (s *Server) registerPaper(w http.ResponseWriter, r *http.Request, owner, title string, parseType domain.ParseType, spooled *document.Spooled) (*domain.Paper, bool) {
	paper := &domain.Paper{
		OwnerEmail: owner,
		PDFPath:    spooled.Path,
		PDFHash:    spooled.Fingerprint,
		Title:      title,
		ParseType:  parseType,
	}

	stored, err := s.paperRepo.Upsert(r.Context(), paper)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}

	// A fresh insert leaves created_at == updated_at; the conflict branch
	// bumps updated_at.
	duplicate := stored.UpdatedAt.After(stored.CreatedAt)
	s.metrics.RecordUpload(spooled.Size, duplicate)

	return stored, true
}

// publishEvent emits a parse lifecycle event. Publishing is best-effort;
// failures are logged and never fail the request.
func (s *Server) publishEvent(r *http.Request, eventType string, paper *domain.Paper) {
	if s.publisher == nil {
		return
	}

	event := events.PaperEvent{
		EventType:  eventType,
		PaperID:    paper.ID.String(),
		OwnerEmail: paper.OwnerEmail,
		PDFHash:    paper.PDFHash,
		ParseType:  string(paper.ParseType),
	}

	if err := s.publisher.Publish(r.Context(), event); err != nil {
		s.logger.Warn().Err(err).
			Str("event_type", eventType).
			Str("paper_id", event.PaperID).
			Msg("failed to publish parse event")
	}
}

// parseIntQuery reads a non-negative integer query parameter.
func parseIntQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		var apiErr *domain.ExternalAPIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, "upstream extraction service failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
