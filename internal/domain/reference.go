package domain

// ReferenceRecord is one normalized bibliography entry. Every field is a
// plain string and is never absent: an extractor that cannot find a value
// emits the empty string, so consumers only ever check for emptiness. Only
// the first author is kept; downstream display is single-author.
type ReferenceRecord struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
	Year      string `json:"year"`
	Journal   string `json:"journal"`
}

// IsZero reports whether every field is empty.
func (r ReferenceRecord) IsZero() bool {
	return r.FirstName == "" && r.LastName == "" && r.Title == "" &&
		r.Year == "" && r.Journal == ""
}
