package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"snapscan/internal"
	"snapscan/internal/logging"
	"snapscan/internal/util"
)

var reHasDigit = regexp.MustCompile(`\d`)

var (
	idHeaderProbes     = []string{"varenr", "varenummer", "artikkel", "art.nr", "sku", "item", "id"}
	descHeaderProbes   = []string{"beskrivelse", "description", "navn", "name", "produkt"}
	qtyHeaderProbes    = []string{"antall", "bestilt", "quantity", "qty", "ant"}
	weightHeaderProbes = []string{"vekt", "weight"}
)

// ExtractPDFLines flattens the text layer of every page into trimmed lines.
// Pages that fail to decode are logged and skipped.
func ExtractPDFLines(ctx context.Context, content []byte, log *logging.Logger) ([]string, error) {
	log = logging.OrDiscard(log)
	r, err := openPDF(content)
	if err != nil {
		return nil, internal.WrapError(internal.ErrInvalidImportFormat, err, "unreadable PDF")
	}

	var lines []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(r, i)
		if err != nil {
			log.Warn("skipping PDF page", "page", i, "error", err)
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return lines, nil
}

func openPDF(content []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed PDF: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(content), int64(len(content)))
}

func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()
	p := r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// ParsePDF extracts lines and runs them through the strategy chain.
func ParsePDF(ctx context.Context, content []byte, strategies []Strategy, log *logging.Logger) (Parsed, error) {
	lines, err := ExtractPDFLines(ctx, content, log)
	if err != nil {
		return Parsed{Format: FormatPDF}, err
	}
	items, name := ParseLines(lines, strategies)
	return Parsed{Format: FormatPDF, Strategy: name, Items: items}, nil
}

// ParseXLSX reads the first sheet that has an id column. Sheets without a
// recognizable header are read as [id, description, quantity].
func ParseXLSX(content []byte) (Parsed, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Parsed{Format: FormatXLSX}, internal.WrapError(internal.ErrInvalidImportFormat, err, "unreadable workbook")
	}
	defer f.Close()

	out := Parsed{Format: FormatXLSX}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("sheet %s: %v", sheet, err))
			continue
		}
		items := itemsFromRows(rows)
		if len(items) > 0 {
			out.Strategy = "sheet:" + sheet
			out.Items = items
			return out, nil
		}
	}
	return out, nil
}

type columns struct {
	id, desc, qty, weight int
}

func inferColumns(headers []string) columns {
	norm := make([]string, 0, len(headers))
	for _, h := range headers {
		norm = append(norm, strings.ToLower(util.NormalizeSpaces(h)))
	}
	return columns{
		id:     findHeaderIndex(norm, idHeaderProbes),
		desc:   findHeaderIndex(norm, descHeaderProbes),
		qty:    findHeaderIndex(norm, qtyHeaderProbes),
		weight: findHeaderIndex(norm, weightHeaderProbes),
	}
}

func itemsFromRows(rows [][]string) []internal.LineItem {
	cols := columns{id: -1}
	var out []internal.LineItem
	for i, row := range rows {
		cells := normalizeCells(row)
		if len(cells) == 0 {
			continue
		}
		if i < 3 && cols.id < 0 && !hasBareNumber(cells) {
			if c := inferColumns(cells); c.id >= 0 {
				cols = c
				continue
			}
		}
		if cols.id < 0 {
			cols = columns{id: 0, desc: 1, qty: 2, weight: 3}
		}
		if item, ok := cellsToItem(cells, cols); ok {
			out = append(out, item)
		}
	}
	return out
}

func cellsToItem(cells []string, cols columns) (internal.LineItem, bool) {
	id := pickCell(cells, cols.id, -1)
	if id == "" {
		return internal.LineItem{}, false
	}
	item := internal.LineItem{ID: id, Description: pickCell(cells, cols.desc, -1), Quantity: 1}
	if q := pickCell(cells, cols.qty, -1); q != "" {
		if n, ok := util.ParseCount(q); ok && n > 0 {
			item.Quantity = n
		} else if !reHasDigit.MatchString(q) {
			// a text quantity cell means this is not an item row
			return internal.LineItem{}, false
		}
	}
	if w := pickCell(cells, cols.weight, -1); w != "" {
		if v, ok := util.ParseDecimal(w); ok && v > 0 {
			item.Weight = v
		}
	}
	return item, true
}

// ParseHTMLTables reads every <table> whose header row names an id column.
func ParseHTMLTables(html string) Parsed {
	out := Parsed{Format: FormatHTML, Strategy: "table"}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		out.Warnings = append(out.Warnings, err.Error())
		return out
	}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}
		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, cell.Text())
		})
		cols := inferColumns(headers)
		if cols.id < 0 {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if item, ok := cellsToItem(cells, cols); ok {
				out.Items = append(out.Items, item)
			}
		})
	})
	return out
}

// SlipContent is what a delivery-slip e-mail yields.
type SlipContent struct {
	Subject         string
	Text            string
	HTML            string
	AttachmentNames []string
	Items           []internal.LineItem
	Strategy        string
	Warnings        []string
}

// ExtractSlip parses a raw e-mail. Attachments (PDF, CSV, XLSX) are read
// first; HTML body tables are used when no attachment produced items.
func ExtractSlip(ctx context.Context, raw []byte, log *logging.Logger) (SlipContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return SlipContent{}, err
	}
	out := SlipContent{Subject: env.GetHeader("Subject"), Text: env.Text, HTML: env.HTML}

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		out.AttachmentNames = append(out.AttachmentNames, name)
		if len(out.Items) > 0 || !isSlipAttachment(name) {
			continue
		}

		var parsed Parsed
		var perr error
		switch DetectFormat(name, att.Content) {
		case FormatPDF:
			parsed, perr = ParsePDF(ctx, att.Content, DefaultStrategies(), log)
		case FormatXLSX:
			parsed, perr = ParseXLSX(att.Content)
		case FormatCSV:
			parsed, perr = ParseCSV(string(att.Content))
		default:
			continue
		}
		if perr != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", name, perr))
			continue
		}
		if len(parsed.Items) > 0 {
			out.Items = parsed.Items
			out.Strategy = parsed.Strategy + "@" + name
		}
	}

	if len(out.Items) == 0 && env.HTML != "" {
		parsed := ParseHTMLTables(env.HTML)
		out.Items = parsed.Items
		if len(parsed.Items) > 0 {
			out.Strategy = "html-body"
		}
	}
	if len(out.Items) == 0 && env.Text != "" {
		items, name := ParseLines(splitLines(env.Text), DefaultStrategies())
		out.Items = items
		out.Strategy = name
	}
	return out, nil
}

// findHeaderIndex tries probes in priority order. Probes of three letters
// or fewer must start the header, longer ones may appear anywhere in it.
func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if len(probe) <= 3 && strings.HasPrefix(h, probe) {
				return i
			}
			if len(probe) > 3 && strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func hasBareNumber(cells []string) bool {
	for _, c := range cells {
		if reBareInt.MatchString(c) {
			return true
		}
	}
	return false
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}
