package exporter

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"querysource/internal/schema"
)

var ErrUnknownFormat = errors.New("unknown export format")

// RowEncoder writes a result in one output format.
type RowEncoder interface {
	// WriteHeader is called exactly once, before any row.
	WriteHeader(columns []schema.ColumnType) error

	// WriteRow writes one row; values are in header order.
	WriteRow(values []any) error

	// Flush completes the document and writes any buffered output.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	// Close releases encoder resources. It does not write output.
	io.Closer
}

// Extension returns the file extension for format. Recognized formats are
// csv, json, excel (or xlsx) and pdf; the empty format means csv.
func Extension(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return "csv", nil
	case "json", "jsonl":
		return "jsonl", nil
	case "excel", "xlsx":
		return "xlsx", nil
	case "pdf":
		return "pdf", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// NewEncoder returns the encoder for format writing to w.
func NewEncoder(format string, w io.Writer) (RowEncoder, error) {
	ext, err := Extension(format)
	if err != nil {
		return nil, err
	}
	switch ext {
	case "jsonl":
		return NewJSONEncoder(w), nil
	case "xlsx":
		return NewExcelEncoder(w), nil
	case "pdf":
		return NewPDFEncoder(w), nil
	default:
		return NewCSVEncoder(w), nil
	}
}

// escapeFormula neutralizes cells a spreadsheet would evaluate as a formula.
func escapeFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}
