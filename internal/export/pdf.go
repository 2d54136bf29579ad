package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"snapscan/internal"
)

const pdfMargin = 15.0

// column widths as shares of the content width
var pdfColumns = []float64{0.17, 0.38, 0.13, 0.14, 0.18}

// PDF renders the report: title, date, summary and a paged item table.
func (f *Formatter) PDF(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+5)
	pdf.SetCreationDate(doc.ExportedAt)
	pdf.SetTitle(doc.Title(), true)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*pdfMargin
	widths := make([]float64, len(pdfColumns))
	for i, share := range pdfColumns {
		widths[i] = contentW * share
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(contentW/2, 5, tr("Eksportert fra SnapScan"), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentW/2, 5, fmt.Sprintf("Side %d av {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(240, 240, 240)
		pdf.SetTextColor(0, 0, 0)
		for i, h := range []string{"Varenummer", "Beskrivelse", "Antall", fmt.Sprintf("Vekt (%s)", doc.WeightUnit), doc.statusHeader()} {
			pdf.CellFormat(widths[i], 8, tr(h), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentW, 8, tr(doc.Title()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(contentW, 6, tr("Dato: "+f.date(&doc.ExportedAt)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentW, 6, "Sammendrag:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range f.summaryLines(doc) {
		pdf.CellFormat(contentW, 6, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetDrawColor(200, 200, 200)
	y := pdf.GetY()
	pdf.Line(pdfMargin, y, pageW-pdfMargin, y)
	pdf.Ln(3)

	header()
	_, pageH := pdf.GetPageSize()
	for _, r := range doc.Rows {
		if pdf.GetY()+7 > pageH-pdfMargin-5 {
			pdf.AddPage()
			header()
		}
		qty := fmt.Sprintf("%d / %d", r.Scanned, r.Quantity)
		if doc.Context == internal.ContextReturn {
			qty = fmt.Sprintf("%d", r.Quantity)
		}
		cells := []string{r.ID, truncate(r.Description, 48), qty, f.number(r.LineWeight)}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, tr(c), "1", 0, "L", false, 0, "")
		}
		setStatusColor(pdf, r.Status)
		pdf.CellFormat(widths[4], 7, tr(r.Status), "1", 0, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func setStatusColor(pdf *fpdf.Fpdf, status string) {
	switch {
	case status == "Ja":
		pdf.SetTextColor(46, 125, 50)
	case strings.HasPrefix(status, "Delvis"):
		pdf.SetTextColor(239, 108, 0)
	default:
		pdf.SetTextColor(198, 40, 40)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
