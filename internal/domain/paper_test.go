package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseType_Valid(t *testing.T) {
	assert.True(t, ParseTypeReferencesOnly.Valid())
	assert.True(t, ParseTypeMethodsTablesOnly.Valid())
	assert.True(t, ParseTypeBoth.Valid())
	assert.False(t, ParseType("").Valid())
	assert.False(t, ParseType("everything").Valid())
}

func TestMergeParseTypes(t *testing.T) {
	t.Run("merge is idempotent", func(t *testing.T) {
		for _, p := range []ParseType{ParseTypeReferencesOnly, ParseTypeMethodsTablesOnly, ParseTypeBoth} {
			assert.Equal(t, p, MergeParseTypes(p, p))
		}
	})

	t.Run("complementary pair widens to both in either order", func(t *testing.T) {
		assert.Equal(t, ParseTypeBoth, MergeParseTypes(ParseTypeReferencesOnly, ParseTypeMethodsTablesOnly))
		assert.Equal(t, ParseTypeBoth, MergeParseTypes(ParseTypeMethodsTablesOnly, ParseTypeReferencesOnly))
	})

	t.Run("both absorbs anything", func(t *testing.T) {
		for _, p := range []ParseType{ParseTypeReferencesOnly, ParseTypeMethodsTablesOnly, ParseTypeBoth} {
			assert.Equal(t, ParseTypeBoth, MergeParseTypes(ParseTypeBoth, p))
			assert.Equal(t, ParseTypeBoth, MergeParseTypes(p, ParseTypeBoth))
		}
	})

	t.Run("otherwise the incoming tag wins", func(t *testing.T) {
		assert.Equal(t, ParseTypeReferencesOnly, MergeParseTypes("", ParseTypeReferencesOnly))
		assert.Equal(t, ParseTypeMethodsTablesOnly, MergeParseTypes("corrupt", ParseTypeMethodsTablesOnly))
	})
}

func TestReferenceRecord_IsZero(t *testing.T) {
	assert.True(t, ReferenceRecord{}.IsZero())
	assert.False(t, ReferenceRecord{Journal: "Nature"}.IsZero())
}

func TestTableCandidate_Empty(t *testing.T) {
	assert.True(t, TableCandidate{}.Empty())
	assert.True(t, TableCandidate{Rows: [][]string{{}, {}}}.Empty())
	assert.False(t, TableCandidate{Rows: [][]string{{"a"}}}.Empty())
	assert.Equal(t, 2, TableCandidate{Rows: [][]string{{"a"}, {"b"}}}.RowCount())
}
