package domain

// TableCandidate is one table hypothesis emitted by a single extraction
// strategy pass: a 2-D grid of string cells with no fixed schema. Several
// candidates may describe the same physical table, one per overlapping
// strategy; the aggregator deliberately performs no deduplication, so
// consumers must tolerate duplicates.
type TableCandidate struct {
	// Rows holds the cell grid. Rows may be ragged; cells are raw text.
	Rows [][]string `json:"rows"`
}

// RowCount returns the number of rows in the candidate.
func (t TableCandidate) RowCount() int {
	return len(t.Rows)
}

// Empty reports whether the candidate holds no cells at all.
func (t TableCandidate) Empty() bool {
	for _, row := range t.Rows {
		if len(row) > 0 {
			return false
		}
	}
	return true
}
