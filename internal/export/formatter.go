package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"snapscan/internal"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

var Formats = []Format{FormatJSON, FormatCSV, FormatTXT, FormatHTML, FormatPDF, FormatXLSX}

func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format: %s", value)
}

const dateLayout = "02.01.2006 15:04"

// Formatter renders documents. Numbers in human-facing formats follow the
// configured locale.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(locale string) (*Formatter, error) {
	if strings.TrimSpace(locale) == "" {
		locale = "nb-NO"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("export locale %q: %w", locale, err)
	}
	return &Formatter{printer: message.NewPrinter(tag)}, nil
}

func (f *Formatter) Render(doc Document, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return f.JSON(doc)
	case FormatCSV:
		return f.CSV(doc)
	case FormatTXT:
		return f.TXT(doc), nil
	case FormatHTML:
		return f.HTML(doc)
	case FormatPDF:
		return f.PDF(doc)
	case FormatXLSX:
		return f.XLSX(doc)
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

func (f *Formatter) number(v float64) string {
	return f.printer.Sprintf("%.2f", v)
}

func (f *Formatter) date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(dateLayout)
}

type jsonSummary struct {
	TotalItems     int     `json:"totalItems"`
	CompletedItems int     `json:"completedItems"`
	TotalWeight    float64 `json:"totalWeight"`
}

type jsonEnvelope struct {
	ExportDate string                `json:"exportDate"`
	ExportType string                `json:"exportType"`
	Items      []internal.ItemRecord `json:"items"`
	Summary    jsonSummary           `json:"summary"`
}

// JSON writes the envelope that list import reads back. totalWeight counts
// registered units only.
func (f *Formatter) JSON(doc Document) ([]byte, error) {
	env := jsonEnvelope{
		ExportDate: doc.ExportedAt.UTC().Format(time.RFC3339),
		ExportType: doc.ExportType(),
		Items:      internal.ToRecords(doc.Context, doc.Items),
		Summary: jsonSummary{
			TotalItems:     doc.Summary.TotalItems,
			CompletedItems: doc.Summary.ProcessedItems,
			TotalWeight:    doc.Summary.ProcessedWeight,
		},
	}
	return json.MarshalIndent(env, "", "  ")
}

func (d Document) headers() []string {
	h := []string{"Varenummer", "Beskrivelse", "Antall", "Registrert", "Vekt (" + d.WeightUnit + ")", "Linjevekt (" + d.WeightUnit + ")", d.statusHeader()}
	switch d.Context {
	case internal.ContextReceive:
		h = append(h, "Pall")
	case internal.ContextReturn:
		h = append(h, "Tilstand")
	}
	return append(h, "Tidspunkt")
}

func (f *Formatter) cells(doc Document, r Row) []string {
	c := []string{
		r.ID,
		r.Description,
		strconv.Itoa(r.Quantity),
		strconv.Itoa(r.Scanned),
		f.number(r.Weight),
		f.number(r.LineWeight),
		r.Status,
	}
	switch doc.Context {
	case internal.ContextReceive:
		c = append(c, r.PalletID)
	case internal.ContextReturn:
		c = append(c, string(r.Condition))
	}
	return append(c, f.date(r.At))
}

func (f *Formatter) CSV(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(doc.headers()); err != nil {
		return nil, err
	}
	for _, r := range doc.Rows {
		if err := w.Write(f.cells(doc, r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (f *Formatter) summaryLines(doc Document) []string {
	s := doc.Summary
	return []string{
		fmt.Sprintf("Antall varer: %d", s.TotalItems),
		fmt.Sprintf("%s: %d av %d", doc.StatusLabel(), s.ProcessedItems, s.TotalItems),
		fmt.Sprintf("Enheter: %d av %d (%d %%)", s.ProcessedQuantity, s.TotalQuantity, s.Percentage),
		fmt.Sprintf("Registrert vekt: %s %s", f.number(s.ProcessedWeight), doc.WeightUnit),
		fmt.Sprintf("Total vekt: %s %s", f.number(s.TotalWeight), doc.WeightUnit),
	}
}

func (f *Formatter) TXT(doc Document) []byte {
	var b strings.Builder
	title := doc.Title()
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len([]rune(title))) + "\n")
	b.WriteString("Dato: " + f.date(&doc.ExportedAt) + "\n\n")
	for _, line := range f.summaryLines(doc) {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")

	for _, r := range doc.Rows {
		fmt.Fprintf(&b, "%s  %s\n", r.ID, r.Description)
		fmt.Fprintf(&b, "    Antall: %d / %d   Vekt: %s %s   %s: %s\n", r.Scanned, r.Quantity, f.number(r.LineWeight), doc.WeightUnit, doc.statusHeader(), r.Status)
		if r.PalletID != "" {
			fmt.Fprintf(&b, "    Pall: %s\n", r.PalletID)
		}
		if r.Condition != "" {
			fmt.Fprintf(&b, "    Tilstand: %s\n", r.Condition)
		}
	}
	return []byte(b.String())
}

var htmlTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="no">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2em; color: #222; }
h1 { margin-bottom: 0; }
.date { color: #666; }
table { border-collapse: collapse; width: 100%; margin-top: 1em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f0f0f0; }
tr.ja td.status { color: #2e7d32; font-weight: bold; }
tr.delvis td.status { color: #ef6c00; }
tr.nei td.status { color: #c62828; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="date">Dato: {{.Date}}</p>
<ul class="summary">{{range .Summary}}
<li>{{.}}</li>{{end}}
</ul>
<table>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>{{range .Rows}}
<tr class="{{.Class}}">{{range $i, $c := .Cells}}<td{{if eq $i $.StatusCol}} class="status"{{end}}>{{$c}}</td>{{end}}</tr>{{end}}
</tbody>
</table>
<p class="footer">Eksportert fra SnapScan</p>
</body>
</html>
`))

type htmlRow struct {
	Class string
	Cells []string
}

func statusClass(status string) string {
	switch {
	case status == "Ja":
		return "ja"
	case strings.HasPrefix(status, "Delvis"):
		return "delvis"
	}
	return "nei"
}

func (f *Formatter) HTML(doc Document) ([]byte, error) {
	data := struct {
		Title     string
		Date      string
		Summary   []string
		Headers   []string
		Rows      []htmlRow
		StatusCol int
	}{
		Title:     doc.Title(),
		Date:      f.date(&doc.ExportedAt),
		Summary:   f.summaryLines(doc),
		Headers:   doc.headers(),
		StatusCol: 6,
	}
	for _, r := range doc.Rows {
		data.Rows = append(data.Rows, htmlRow{Class: statusClass(r.Status), Cells: f.cells(doc, r)})
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
