package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizer_Keyed(t *testing.T) {
	now := time.Now()
	raw := Raw{Keyed: []map[string]any{
		{"NUMBER_COL": 100, "Date_Col": now, "string_col": "Evidence", "NULL_COL": nil},
		{"NUMBER_COL": 200, "Date_Col": now, "string_col": "", "NULL_COL": nil},
	}}

	got := Normalizer(Keyed)(raw, []string{"number_col", "date_col", "string_col", "null_col"})

	require.Len(t, got, 2)
	assert.Equal(t, Row{"number_col": 100, "date_col": now, "string_col": "Evidence", "null_col": nil}, got[0])
	assert.Equal(t, 200, got[1]["number_col"])
}

func TestNormalizer_Positional(t *testing.T) {
	raw := Raw{Positional: [][]any{
		{int64(1), "a", true},
		{int64(2), nil, false},
	}}

	got := Normalizer(Positional)(raw, []string{"id", "name", "flag"})

	assert.Equal(t, Batch{
		{"id": int64(1), "name": "a", "flag": true},
		{"id": int64(2), "name": nil, "flag": false},
	}, got)
}

func TestNormalizer_SameOutputForBothShapes(t *testing.T) {
	names := []string{"a", "b"}
	keyed := Normalizer(Keyed)(Raw{Keyed: []map[string]any{{"A": 1, "B": "x"}}}, names)
	positional := Normalizer(Positional)(Raw{Positional: [][]any{{1, "x"}}}, names)
	assert.Equal(t, keyed, positional)
}

func TestNormalizer_PositionalWidthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		Normalizer(Positional)(Raw{Positional: [][]any{{1}}}, []string{"a", "b"})
	})
}

func TestNormalizer_Empty(t *testing.T) {
	assert.Empty(t, Normalizer(Positional)(Raw{}, []string{"a"}))
	assert.Empty(t, Normalizer(Keyed)(Raw{}, []string{"a"}))
}

func TestRaw_Len(t *testing.T) {
	assert.Equal(t, 0, Raw{}.Len())
	assert.Equal(t, 2, Raw{Positional: [][]any{{1}, {2}}}.Len())
	assert.Equal(t, 1, Raw{Keyed: []map[string]any{{"a": 1}}}.Len())
}

func TestRow_Values(t *testing.T) {
	row := Row{"b": 2, "a": 1}
	assert.Equal(t, []any{1, 2, nil}, row.Values([]string{"a", "b", "c"}))
}

func TestShape_String(t *testing.T) {
	assert.Equal(t, "positional", Positional.String())
	assert.Equal(t, "keyed", Keyed.String())
	assert.Equal(t, "Shape(7)", Shape(7).String())
}
