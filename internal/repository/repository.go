// Package repository provides data access interfaces and implementations
// for the Paper Parsing Service.
//
// Repositories follow the repository pattern to abstract persistence from
// the parsing pipeline. All implementations are safe for concurrent use;
// the underlying pgxpool handles connection pooling and synchronization.
//
// All methods return domain-specific errors from the domain package,
// wrapped with context using fmt.Errorf and the %w verb:
//
//   - domain.ErrNotFound: record does not exist
//   - domain.ErrInvalidInput: invalid parameters provided
//
// Use the DBTX interface to support both pool and transaction contexts:
// pass a pgx.Tx from database.DB.WithTransaction for atomic operations.
package repository

import (
	"github.com/helixir/paper-parsing-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Repository constructors accept DBTX so the same implementation
// works against the pool, a transaction, or a mock in tests.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for list queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
