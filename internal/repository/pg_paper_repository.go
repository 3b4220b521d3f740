package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// paperColumns is the canonical select list for paper rows.
const paperColumns = `id, owner_email, pdf_path, pdf_hash, title, parse_type,
	references_json, methods_text, tables_json, summary_text,
	created_at, updated_at`

// Upsert inserts a new paper or merges into the existing record for the
// same (owner_email, pdf_hash). The parse-type merge runs inside the
// statement so concurrent uploads of the same document cannot clobber each
// other's tag.
func (r *PgPaperRepository) Upsert(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.OwnerEmail == "" {
		return nil, domain.NewValidationError("owner_email", "owner email is required")
	}
	if paper.PDFHash == "" {
		return nil, domain.NewValidationError("pdf_hash", "content hash is required")
	}
	if !paper.ParseType.Valid() {
		return nil, domain.NewValidationError("parse_type", fmt.Sprintf("unknown parse type %q", paper.ParseType))
	}

	refsJSON, tablesJSON, err := marshalParseResults(paper)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}

	query := `
		INSERT INTO papers (
			id, owner_email, pdf_path, pdf_hash, title, parse_type,
			references_json, methods_text, tables_json, summary_text,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (owner_email, pdf_hash) DO UPDATE SET
			pdf_path = EXCLUDED.pdf_path,
			title = COALESCE(NULLIF(EXCLUDED.title, ''), papers.title),
			parse_type = CASE
				WHEN papers.parse_type = 'both' OR EXCLUDED.parse_type = 'both' THEN 'both'
				WHEN papers.parse_type <> EXCLUDED.parse_type THEN 'both'
				ELSE EXCLUDED.parse_type
			END,
			updated_at = NOW()
		RETURNING id, parse_type, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.OwnerEmail,
		paper.PDFPath,
		paper.PDFHash,
		paper.Title,
		paper.ParseType,
		refsJSON,
		paper.MethodsText,
		tablesJSON,
		paper.SummaryText,
		now,
		now,
	).Scan(&paper.ID, &paper.ParseType, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert paper: %w", err)
	}

	return paper, nil
}

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM papers WHERE id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetByOwnerAndHash retrieves a paper by its natural key.
func (r *PgPaperRepository) GetByOwnerAndHash(ctx context.Context, ownerEmail, pdfHash string) (*domain.Paper, error) {
	if ownerEmail == "" {
		return nil, domain.NewValidationError("owner_email", "owner email is required")
	}
	if pdfHash == "" {
		return nil, domain.NewValidationError("pdf_hash", "content hash is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE owner_email = $1 AND pdf_hash = $2`, paperColumns)

	row := r.db.QueryRow(ctx, query, ownerEmail, pdfHash)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", pdfHash)
		}
		return nil, fmt.Errorf("failed to get paper by owner and hash: %w", err)
	}

	return paper, nil
}

// UpdateReferences overwrites the stored bibliography wholesale.
func (r *PgPaperRepository) UpdateReferences(ctx context.Context, id uuid.UUID, refs []domain.ReferenceRecord) error {
	if refs == nil {
		refs = []domain.ReferenceRecord{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to marshal references: %w", err)
	}

	query := `
		UPDATE papers
		SET references_json = $1, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, refsJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update references: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// UpdateMethodsTables overwrites the methods text, table candidates and
// summary wholesale.
func (r *PgPaperRepository) UpdateMethodsTables(ctx context.Context, id uuid.UUID, methodsText string, tables []domain.TableCandidate, summaryText string) error {
	if tables == nil {
		tables = []domain.TableCandidate{}
	}
	tablesJSON, err := json.Marshal(tables)
	if err != nil {
		return fmt.Errorf("failed to marshal tables: %w", err)
	}

	query := `
		UPDATE papers
		SET methods_text = $1, tables_json = $2, summary_text = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(ctx, query, methodsText, tablesJSON, summaryText, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update methods and tables: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// ListByOwner retrieves an owner's papers, newest first.
func (r *PgPaperRepository) ListByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]*domain.Paper, int64, error) {
	if ownerEmail == "" {
		return nil, 0, domain.NewValidationError("owner_email", "owner email is required")
	}
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM papers WHERE owner_email = $1`
	if err := r.db.QueryRow(ctx, countQuery, ownerEmail).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM papers
		WHERE owner_email = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, paperColumns)

	rows, err := r.db.Query(ctx, selectQuery, ownerEmail, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// marshalParseResults serializes the JSON-backed parse-result fields.
func marshalParseResults(paper *domain.Paper) (refsJSON, tablesJSON []byte, err error) {
	refs := paper.References
	if refs == nil {
		refs = []domain.ReferenceRecord{}
	}
	refsJSON, err = json.Marshal(refs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal references: %w", err)
	}

	tables := paper.Tables
	if tables == nil {
		tables = []domain.TableCandidate{}
	}
	tablesJSON, err = json.Marshal(tables)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tables: %w", err)
	}

	return refsJSON, tablesJSON, nil
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper      domain.Paper
	refsJSON   []byte
	tablesJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.OwnerEmail, &d.paper.PDFPath, &d.paper.PDFHash,
		&d.paper.Title, &d.paper.ParseType,
		&d.refsJSON, &d.paper.MethodsText, &d.tablesJSON, &d.paper.SummaryText,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.refsJSON) > 0 {
		if err := json.Unmarshal(d.refsJSON, &d.paper.References); err != nil {
			return nil, fmt.Errorf("failed to unmarshal references: %w", err)
		}
	}

	if len(d.tablesJSON) > 0 {
		if err := json.Unmarshal(d.tablesJSON, &d.paper.Tables); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tables: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
