package exporter

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"querysource/internal/schema"
)

// CSVEncoder writes RFC 4180 CSV through a 64KB buffer.
type CSVEncoder struct {
	w      *csv.Writer
	buf    *bufio.Writer
	record []string
	text   []bool
}

func NewCSVEncoder(w io.Writer) *CSVEncoder {
	buf := bufio.NewWriterSize(w, 64*1024)
	return &CSVEncoder{
		w:   csv.NewWriter(buf),
		buf: buf,
	}
}

func (e *CSVEncoder) WriteHeader(columns []schema.ColumnType) error {
	e.record = make([]string, len(columns))
	e.text = make([]bool, len(columns))
	for i, c := range columns {
		e.record[i] = c.Name
		e.text[i] = c.Type == schema.String
	}
	return e.w.Write(e.record)
}

// WriteRow escapes leading formula characters in string columns only, so
// negative numbers stay numeric.
func (e *CSVEncoder) WriteRow(values []any) error {
	for i, v := range values {
		s := formatValue(v)
		if e.text[i] {
			s = escapeFormula(s)
		}
		e.record[i] = s
	}
	return e.w.Write(e.record)
}

func (e *CSVEncoder) Flush() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return err
	}
	return e.buf.Flush()
}

func (e *CSVEncoder) Error() error {
	return e.w.Error()
}

func (e *CSVEncoder) Close() error {
	return nil
}

// formatValue renders a cell without fmt for the common driver types.
// NULL renders as an empty string.
func formatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
