package httpserver

import (
	"time"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// Response types for JSON serialization.

type referenceResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Year      string `json:"year"`
	Journal   string `json:"journal"`
}

type tableResponse struct {
	Rows [][]string `json:"rows"`
}

type parseReferencesResponse struct {
	PaperID    string              `json:"paper_id"`
	PDFHash    string              `json:"pdf_hash"`
	ParseType  string              `json:"parse_type"`
	References []referenceResponse `json:"references"`
	Count      int                 `json:"count"`
}

type parseMethodsTablesResponse struct {
	PaperID     string          `json:"paper_id"`
	PDFHash     string          `json:"pdf_hash"`
	ParseType   string          `json:"parse_type"`
	MethodsText string          `json:"methods_text"`
	Tables      []tableResponse `json:"tables"`
	Summary     string          `json:"summary"`
}

type paperSummaryResponse struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title,omitempty"`
	PDFHash   string    `json:"pdf_hash"`
	ParseType string    `json:"parse_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type paperDetailResponse struct {
	PaperID     string              `json:"paper_id"`
	OwnerEmail  string              `json:"owner_email"`
	Title       string              `json:"title,omitempty"`
	PDFHash     string              `json:"pdf_hash"`
	ParseType   string              `json:"parse_type"`
	References  []referenceResponse `json:"references"`
	MethodsText string              `json:"methods_text"`
	Tables      []tableResponse     `json:"tables"`
	Summary     string              `json:"summary"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type listPapersResponse struct {
	Papers     []paperSummaryResponse `json:"papers"`
	TotalCount int64                  `json:"total_count"`
}

// Converter functions

func domainReferencesToResponse(refs []domain.ReferenceRecord) []referenceResponse {
	out := make([]referenceResponse, len(refs))
	for i, ref := range refs {
		out[i] = referenceResponse{
			FirstName: ref.FirstName,
			LastName:  ref.LastName,
			Title:     ref.Title,
			Year:      ref.Year,
			Journal:   ref.Journal,
		}
	}
	return out
}

func domainTablesToResponse(tables []domain.TableCandidate) []tableResponse {
	out := make([]tableResponse, len(tables))
	for i, table := range tables {
		out[i] = tableResponse{Rows: table.Rows}
	}
	return out
}

func domainPaperToSummary(p *domain.Paper) paperSummaryResponse {
	return paperSummaryResponse{
		PaperID:   p.ID.String(),
		Title:     p.Title,
		PDFHash:   p.PDFHash,
		ParseType: string(p.ParseType),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func domainPaperToDetail(p *domain.Paper) paperDetailResponse {
	return paperDetailResponse{
		PaperID:     p.ID.String(),
		OwnerEmail:  p.OwnerEmail,
		Title:       p.Title,
		PDFHash:     p.PDFHash,
		ParseType:   string(p.ParseType),
		References:  domainReferencesToResponse(p.References),
		MethodsText: p.MethodsText,
		Tables:      domainTablesToResponse(p.Tables),
		Summary:     p.SummaryText,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
