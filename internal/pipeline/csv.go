package pipeline

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"

	"snapscan/internal"
	"snapscan/internal/util"
)

var (
	reOrderSlipLine = regexp.MustCompile(`^(\d{3}-[A-Z0-9]+)\s+(\d+)\s+`)
	reOrderSlipDesc = regexp.MustCompile(`\d+\s+_+\s+_+\s+(.*?)\s+\(\d+\)`)

	headerProbes = []string{"vare", "id", "nummer", "beskrivelse"}
)

// isOrderSlipText recognizes order slips exported to text from the ERP.
func isOrderSlipText(content string) bool {
	return strings.Contains(content, "Varenr.") &&
		strings.Contains(content, "Beskrivelse") &&
		strings.Contains(content, "Bestilt")
}

// ParseCSV reads CSV/TXT lists. The delimiter is ';' when the content has
// one, otherwise ','.
func ParseCSV(content string) (Parsed, error) {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	if isOrderSlipText(content) {
		return Parsed{Format: FormatCSV, Strategy: "order-slip", Items: parseOrderSlipText(content)}, nil
	}

	delim := ','
	if strings.Contains(content, ";") {
		delim = ';'
	}

	lines := strings.Split(content, "\n")
	start := 0
	if len(lines) > 0 && hasHeaderRow(lines[0]) {
		start = 1
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	out := Parsed{Format: FormatCSV, Strategy: "delimited"}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Warnings = append(out.Warnings, err.Error())
			continue
		}
		item, ok := rowToItem(rec)
		if !ok {
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func hasHeaderRow(line string) bool {
	lower := strings.ToLower(line)
	for _, probe := range headerProbes {
		if strings.Contains(lower, probe) {
			return true
		}
	}
	return false
}

// rowToItem maps [id, description, quantity?, weight?].
func rowToItem(cells []string) (internal.LineItem, bool) {
	if len(cells) < 2 {
		return internal.LineItem{}, false
	}
	id := strings.TrimSpace(cells[0])
	if id == "" {
		return internal.LineItem{}, false
	}
	item := internal.LineItem{
		ID:          id,
		Description: util.NormalizeSpaces(cells[1]),
		Quantity:    1,
	}
	if len(cells) > 2 {
		if n, ok := util.ParseCount(cells[2]); ok && n > 0 {
			item.Quantity = n
		}
	}
	if len(cells) > 3 {
		if w, ok := util.ParseDecimal(cells[3]); ok && w > 0 {
			item.Weight = w
		}
	}
	return item, true
}

func parseOrderSlipText(content string) []internal.LineItem {
	var out []internal.LineItem
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		m := reOrderSlipLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		desc := internal.UnknownDescription
		if d := reOrderSlipDesc.FindStringSubmatch(line); d != nil && strings.TrimSpace(d[1]) != "" {
			desc = strings.TrimSpace(d[1])
		}
		qty, ok := util.ParseCount(m[2])
		if !ok || qty < 1 {
			qty = 1
		}
		out = append(out, internal.LineItem{ID: m[1], Description: desc, Quantity: qty})
	}
	return out
}
