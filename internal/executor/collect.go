package executor

import (
	"iter"

	"querysource/internal/batch"
)

// Exhaust drains rows and returns the number of rows read and the first error.
func Exhaust(rows iter.Seq2[batch.Batch, error]) (int64, error) {
	var n int64
	for b, err := range rows {
		if err != nil {
			return n, err
		}
		n += int64(len(b))
	}
	return n, nil
}

// Collect concatenates every batch into one slice. Rows read before an error
// are returned alongside it.
func Collect(rows iter.Seq2[batch.Batch, error]) ([]batch.Row, error) {
	var out []batch.Row
	for b, err := range rows {
		if err != nil {
			return out, err
		}
		out = append(out, b...)
	}
	return out, nil
}
