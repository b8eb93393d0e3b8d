package exporter

import (
	"io"

	"github.com/go-pdf/fpdf"

	"querysource/internal/schema"
)

const pdfRowHeight = 7.0

// PDFEncoder renders the result as a bordered grid on landscape A4 pages,
// repeating the header on every page. It keeps the whole document in memory.
type PDFEncoder struct {
	pdf      *fpdf.Fpdf
	w        io.Writer
	tr       func(string) string
	colWidth float64
	columns  []schema.ColumnType
	err      error
}

func NewPDFEncoder(w io.Writer) *PDFEncoder {
	pdf := fpdf.New("L", "mm", "A4", "")
	return &PDFEncoder{
		pdf: pdf,
		w:   w,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

func (e *PDFEncoder) WriteHeader(columns []schema.ColumnType) error {
	e.columns = columns
	pageWidth, _ := e.pdf.GetPageSize()
	left, _, right, _ := e.pdf.GetMargins()
	if len(columns) > 0 {
		e.colWidth = (pageWidth - left - right) / float64(len(columns))
	}

	e.pdf.SetHeaderFunc(func() {
		e.pdf.SetFont("Arial", "B", 10)
		for _, c := range e.columns {
			e.pdf.CellFormat(e.colWidth, pdfRowHeight, e.fit(c.Name), "1", 0, "C", false, 0, "")
		}
		e.pdf.Ln(-1)
		e.pdf.SetFont("Arial", "", 10)
	})
	e.pdf.AddPage()
	return e.check()
}

func (e *PDFEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	for i, v := range values {
		align := "L"
		if e.columns[i].Type == schema.Number {
			align = "R"
		}
		e.pdf.CellFormat(e.colWidth, pdfRowHeight, e.fit(formatValue(v)), "1", 0, align, false, 0, "")
	}
	e.pdf.Ln(-1)
	return e.check()
}

// fit translates s to the core font encoding and truncates it to the column width.
func (e *PDFEncoder) fit(s string) string {
	s = e.tr(s)
	limit := e.colWidth - 2*e.pdf.GetCellMargin()
	if e.pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && e.pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}

func (e *PDFEncoder) check() error {
	if e.err == nil && e.pdf.Err() {
		e.err = e.pdf.Error()
	}
	return e.err
}

// Flush writes the finished document to w.
func (e *PDFEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.pdf.Output(e.w); err != nil {
		e.err = err
	}
	return e.err
}

func (e *PDFEncoder) Error() error {
	return e.err
}

func (e *PDFEncoder) Close() error {
	return nil
}
