package exporter

import (
	"bufio"
	"encoding/json"
	"io"

	"querysource/internal/schema"
)

// JSONEncoder writes JSON Lines: one object per row with keys in column order.
type JSONEncoder struct {
	w    *bufio.Writer
	keys [][]byte
	err  error
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: bufio.NewWriterSize(w, 64*1024)}
}

// WriteHeader pre-encodes the object keys. No header line is written.
func (e *JSONEncoder) WriteHeader(columns []schema.ColumnType) error {
	e.keys = make([][]byte, len(columns))
	for i, c := range columns {
		k, err := json.Marshal(c.Name)
		if err != nil {
			e.err = err
			return err
		}
		e.keys[i] = k
	}
	return nil
}

func (e *JSONEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}

	e.w.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			e.w.WriteByte(',')
		}
		e.w.Write(e.keys[i])
		e.w.WriteByte(':')

		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		data, err := json.Marshal(v)
		if err != nil {
			e.err = err
			return err
		}
		e.w.Write(data)
	}
	if _, err := e.w.WriteString("}\n"); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *JSONEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.w.Flush(); err != nil {
		e.err = err
	}
	return e.err
}

func (e *JSONEncoder) Error() error {
	return e.err
}

func (e *JSONEncoder) Close() error {
	return nil
}
