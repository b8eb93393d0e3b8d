package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"querysource/internal/schema"
)

// maxExcelRows is the xlsx sheet limit, header included.
const maxExcelRows = 1048576

// ExcelEncoder writes an .xlsx workbook through excelize's StreamWriter.
// Dates get a date-time number format and the header row is bold.
type ExcelEncoder struct {
	f      *excelize.File
	sw     *excelize.StreamWriter
	w      io.Writer
	rowIdx int
	err    error

	columns   []schema.ColumnType
	dateStyle int
}

func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	f := excelize.NewFile()
	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		return &ExcelEncoder{f: f, err: err}
	}
	return &ExcelEncoder{
		f:      f,
		sw:     sw,
		w:      w,
		rowIdx: 1,
	}
}

func (e *ExcelEncoder) WriteHeader(columns []schema.ColumnType) error {
	if e.err != nil {
		return e.err
	}
	e.columns = columns

	bold, err := e.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return e.fail(err)
	}
	dateFmt := "yyyy-mm-dd hh:mm:ss"
	if e.dateStyle, err = e.f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt}); err != nil {
		return e.fail(err)
	}

	row := make([]any, len(columns))
	for i, c := range columns {
		row[i] = excelize.Cell{StyleID: bold, Value: c.Name}
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	if e.rowIdx > maxExcelRows {
		return e.fail(fmt.Errorf("excel row limit exceeded (%d rows)", maxExcelRows))
	}

	row := make([]any, len(values))
	for i, v := range values {
		switch e.columns[i].Type {
		case schema.Date:
			row[i] = excelize.Cell{StyleID: e.dateStyle, Value: v}
		case schema.String:
			row[i] = escapeFormula(formatValue(v))
		default:
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[i] = v
		}
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) setRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, e.rowIdx)
	if err != nil {
		return e.fail(err)
	}
	if err := e.sw.SetRow(cell, row); err != nil {
		return e.fail(err)
	}
	e.rowIdx++
	return nil
}

func (e *ExcelEncoder) fail(err error) error {
	e.err = err
	return err
}

// Flush finishes the sheet and writes the whole workbook to w.
func (e *ExcelEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.sw.Flush(); err != nil {
		return e.fail(err)
	}
	if err := e.f.Write(e.w); err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

// Close removes the temporary files excelize spills large sheets into.
func (e *ExcelEncoder) Close() error {
	return e.f.Close()
}
