// Package batch converts fetched cursor output into the canonical keyed row
// shape, independent of the shape the backend produces natively.
package batch

import (
	"fmt"
	"strings"
)

// Row maps a lowercase column name to its value. Column order is carried by
// the result's column types, not by the map.
type Row map[string]any

// Batch is an ordered chunk of rows delivered together.
type Batch []Row

// Shape is the native row layout a cursor produces.
type Shape uint8

const (
	// Positional rows are value slices ordered like the result columns.
	Positional Shape = iota
	// Keyed rows already map native column names (any case) to values.
	Keyed
)

func (s Shape) String() string {
	switch s {
	case Positional:
		return "positional"
	case Keyed:
		return "keyed"
	default:
		return fmt.Sprintf("Shape(%d)", uint8(s))
	}
}

// Raw is one fetch worth of rows in the cursor's native shape. Only the
// field matching the cursor's Shape is populated.
type Raw struct {
	Keyed      []map[string]any
	Positional [][]any
}

// Len returns the number of rows in r.
func (r Raw) Len() int {
	return len(r.Keyed) + len(r.Positional)
}

// NormalizeFunc converts a Raw batch into canonical rows, given the lowercase
// column names in result order.
type NormalizeFunc func(raw Raw, names []string) Batch

// Normalizer selects the conversion for a shape. It is resolved once per
// query so the per-row loop never branches on the shape.
func Normalizer(shape Shape) NormalizeFunc {
	if shape == Keyed {
		return normalizeKeyed
	}
	return normalizePositional
}

func normalizeKeyed(raw Raw, _ []string) Batch {
	out := make(Batch, len(raw.Keyed))
	for i, row := range raw.Keyed {
		lowered := make(Row, len(row))
		for k, v := range row {
			lowered[strings.ToLower(k)] = v
		}
		out[i] = lowered
	}
	return out
}

// normalizePositional panics when a row is not as wide as the column list:
// that is a broken cursor, not a recoverable condition.
func normalizePositional(raw Raw, names []string) Batch {
	out := make(Batch, len(raw.Positional))
	for i, values := range raw.Positional {
		if len(values) != len(names) {
			panic(fmt.Sprintf("batch: row %d has %d values for %d columns", i, len(values), len(names)))
		}
		row := make(Row, len(names))
		for j, name := range names {
			row[name] = values[j]
		}
		out[i] = row
	}
	return out
}

// Values returns the row's values ordered by names.
func (r Row) Values(names []string) []any {
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = r[name]
	}
	return values
}
