package searchquery

import (
	"testing"
	"time"

	"github.com/arimura/mangawatch/internal/parseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBareWord(t *testing.T) {
	fields := Parse("owo")
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Value: "owo"}, fields[0])
}

func TestParseExcludedBareWord(t *testing.T) {
	fields := Parse("-owo")
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Value: "owo", Exclude: true}, fields[0])
}

func TestParseQualified(t *testing.T) {
	fields := Parse("genres:action")
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Name: "genres", HasName: true, Value: "action"}, fields[0])
}

func TestParseExcludedQualified(t *testing.T) {
	fields := Parse("-genres:action")
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Name: "genres", HasName: true, Value: "action", Exclude: true}, fields[0])
}

func TestParseExactPhrase(t *testing.T) {
	fields := Parse(`"owo uwu"`)
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Value: "owo uwu", Exact: true}, fields[0])
}

func TestParseQualifiedExactPhrase(t *testing.T) {
	fields := Parse(`genres:"slice of life"`)
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Name: "genres", HasName: true, Value: "slice of life", Exact: true}, fields[0])
}

func TestParseExcludedQualifiedExactPhrase(t *testing.T) {
	fields := Parse(`-genres:"slice of life"`)
	require.Len(t, fields, 1)
	assert.Equal(t, Field{Name: "genres", HasName: true, Value: "slice of life", Exclude: true, Exact: true}, fields[0])
}

func TestParseMultipleTerms(t *testing.T) {
	fields := Parse(`solo genres:action -ongoing:false`)
	require.Len(t, fields, 3)
	assert.Equal(t, "solo", fields[0].Value)
	assert.Equal(t, "genres", fields[1].Name)
	assert.True(t, fields[2].Exclude)
}

func TestCompileUnqualifiedBuildsWildcardAcrossColumns(t *testing.T) {
	clauses, err := Compile(Parse("solo"))
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	where, args := Where(clauses)
	assert.Contains(t, where, "title LIKE ?")
	assert.Contains(t, where, "genres LIKE ?")
	assert.Len(t, args, 5)
	assert.Equal(t, "%solo%", args[0])
}

func TestCompileUnknownFieldIsInvalidArgument(t *testing.T) {
	_, err := Compile(Parse("bogus:value"))
	require.Error(t, err)
	assert.ErrorIs(t, err, parseerr.ErrInvalidArgument)
}

func TestCompileTextFieldWildcards(t *testing.T) {
	clauses, err := Compile(Parse("title:solo"))
	require.NoError(t, err)
	where, args := Where(clauses)
	assert.Equal(t, "title LIKE ?", where)
	assert.Equal(t, []any{"%solo%"}, args)
}

func TestCompileExcludedEqualsField(t *testing.T) {
	clauses, err := Compile(Parse("-ongoing:false"))
	require.NoError(t, err)
	where, args := Where(clauses)
	assert.Equal(t, "NOT ongoing = ?", where)
	assert.Equal(t, []any{"false"}, args)
}

func TestCompileDateFieldDefaultsToGreaterEqual(t *testing.T) {
	before := time.Now().UTC().Add(-24 * time.Hour)
	clauses, err := Compile(Parse("updated_at:1d"))
	require.NoError(t, err)
	require.Len(t, clauses, 1)
	where, args := Where(clauses)
	assert.Equal(t, "updated_at >= ?", where)
	require.Len(t, args, 1)
	at := args[0].(time.Time)
	assert.WithinDuration(t, before, at, 2*time.Minute)
}

func TestCompileDateFieldHonorsComparator(t *testing.T) {
	clauses, err := Compile(Parse("updated_at:<2d"))
	require.NoError(t, err)
	where, _ := Where(clauses)
	assert.Equal(t, "updated_at <= ?", where)
}

func TestCompileDateFieldRejectsBadOffset(t *testing.T) {
	_, err := Compile(Parse("updated_at:nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, parseerr.ErrInvalidArgument)
}

func TestCompileNumberFieldDefaultsToEquals(t *testing.T) {
	Fields["rating"] = SearchField{Kind: Number, Column: "rating"}
	defer delete(Fields, "rating")

	clauses, err := Compile(Parse("rating:5"))
	require.NoError(t, err)
	where, args := Where(clauses)
	assert.Equal(t, "rating = ?", where)
	assert.Equal(t, []any{uint64(5)}, args)
}

func TestCompileNumberFieldRejectsNonNumeric(t *testing.T) {
	Fields["rating"] = SearchField{Kind: Number, Column: "rating"}
	defer delete(Fields, "rating")

	_, err := Compile(Parse("rating:abc"))
	require.Error(t, err)
	assert.ErrorIs(t, err, parseerr.ErrInvalidArgument)
}

func TestWhereEmptyFieldsYieldsAlwaysTrue(t *testing.T) {
	where, args := Where(nil)
	assert.Equal(t, "1=1", where)
	assert.Nil(t, args)
}
