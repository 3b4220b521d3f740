package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// PaperRepository manages persisted parse records. A record is keyed by
// (owner email, PDF content hash): re-uploading the same bytes merges into
// the existing record instead of creating a duplicate.
type PaperRepository interface {
	// Upsert inserts a new paper or merges into the existing record for the
	// same (owner_email, pdf_hash). On conflict the parse-type tag is merged
	// per domain.MergeParseTypes and the storage path is refreshed; parse
	// results are left untouched until their pipeline writes them.
	// The returned paper reflects the final database state.
	// Returns domain.ErrInvalidInput for a missing owner, hash or parse type.
	Upsert(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// GetByID retrieves a paper by its internal UUID.
	// Returns domain.ErrNotFound if no matching record exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetByOwnerAndHash retrieves a paper by its natural key.
	// Returns domain.ErrNotFound if no matching record exists.
	GetByOwnerAndHash(ctx context.Context, ownerEmail, pdfHash string) (*domain.Paper, error)

	// UpdateReferences overwrites the stored bibliography wholesale.
	// Returns domain.ErrNotFound if the paper does not exist.
	UpdateReferences(ctx context.Context, id uuid.UUID, refs []domain.ReferenceRecord) error

	// UpdateMethodsTables overwrites the methods text, table candidates and
	// summary wholesale. Returns domain.ErrNotFound if the paper does not exist.
	UpdateMethodsTables(ctx context.Context, id uuid.UUID, methodsText string, tables []domain.TableCandidate, summaryText string) error

	// ListByOwner retrieves an owner's papers, newest first, with the total
	// count for pagination.
	ListByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]*domain.Paper, int64, error)
}
