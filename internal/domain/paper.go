// Package domain provides domain models and business logic for the Paper Parsing Service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ParseType records which extractions have been requested for a paper.
// These values must match the database enum parse_type.
type ParseType string

const (
	// ParseTypeReferencesOnly means only the bibliography has been parsed.
	ParseTypeReferencesOnly ParseType = "references_only"
	// ParseTypeMethodsTablesOnly means only methods text and tables have been parsed.
	ParseTypeMethodsTablesOnly ParseType = "methods_tables_only"
	// ParseTypeBoth means both extraction families have been parsed.
	ParseTypeBoth ParseType = "both"
)

// Valid reports whether the parse type is one of the known values.
func (p ParseType) Valid() bool {
	switch p {
	case ParseTypeReferencesOnly, ParseTypeMethodsTablesOnly, ParseTypeBoth:
		return true
	default:
		return false
	}
}

// MergeParseTypes combines an existing parse type with an incoming request.
// Re-requesting the same type is a no-op; requesting the complementary type
// widens the record to "both"; "both" absorbs everything. Any other incoming
// value wins, which lets a repaired record overwrite a corrupt stored tag.
func MergeParseTypes(existing, incoming ParseType) ParseType {
	if existing == incoming {
		return existing
	}
	if existing == ParseTypeBoth || incoming == ParseTypeBoth {
		return ParseTypeBoth
	}
	if (existing == ParseTypeReferencesOnly && incoming == ParseTypeMethodsTablesOnly) ||
		(existing == ParseTypeMethodsTablesOnly && incoming == ParseTypeReferencesOnly) {
		return ParseTypeBoth
	}
	return incoming
}

// Paper is the persisted record for one uploaded document, keyed by the
// owner and the SHA-256 fingerprint of the PDF bytes. Parse-result fields
// are overwritten wholesale by each successful parse; they are never
// partially updated.
type Paper struct {
	// ID is the surrogate primary key.
	ID uuid.UUID

	// OwnerEmail identifies the uploader (allow-list checked at the edge).
	OwnerEmail string

	// PDFPath is the storage reference for the original upload.
	PDFPath string

	// PDFHash is the SHA-256 hex fingerprint of the document bytes.
	PDFHash string

	// Title is an optional display title.
	Title string

	// ParseType tracks which extractions have run for this record.
	ParseType ParseType

	// References holds the validated bibliography, empty until a
	// references parse has run.
	References []ReferenceRecord

	// MethodsText is the concatenated methods-section text, possibly empty.
	MethodsText string

	// Tables holds all table candidates from the aggregator, duplicates
	// included.
	Tables []TableCandidate

	// SummaryText is the LLM report over methods and tables. Regeneration
	// is not deterministic; callers must not assume stability across parses.
	SummaryText string

	CreatedAt time.Time
	UpdatedAt time.Time
}
