package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"snapscan/internal"
)

// Strategy is one heuristic for turning PDF text lines into list items.
type Strategy interface {
	Name() string
	TryParse(lines []string) ([]internal.LineItem, bool)
}

// DefaultStrategies is the fixed fallback order for PDF lists.
func DefaultStrategies() []Strategy {
	return []Strategy{ReceiptStrategy{}, SimpleStrategy{}, ComplexStrategy{}}
}

// ParseLines runs the strategies in order and keeps the first that finds
// at least one item.
func ParseLines(lines []string, strategies []Strategy) ([]internal.LineItem, string) {
	for _, s := range strategies {
		if items, ok := s.TryParse(lines); ok && len(items) > 0 {
			return items, s.Name()
		}
	}
	return nil, ""
}

const descriptionWindow = 10

var (
	reSimpleID    = regexp.MustCompile(`^([A-Z0-9]{2,4}-[A-Z0-9]+-?[A-Z0-9]*|[A-Z]{2}\d{5}|[A-Z][A-Z0-9]{4,})`)
	reBareInt     = regexp.MustCompile(`^(\d+)$`)
	reParenNumber = regexp.MustCompile(`^\(\d+\)$`)
	reTrailParen  = regexp.MustCompile(`\(\d+\)$`)
	reUnderscores = regexp.MustCompile(`^_+$`)
	reInlineQty   = regexp.MustCompile(`^(\d+)`)

	complexIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d{3}-[A-Z][A-Z0-9]*-\d+)`),
		regexp.MustCompile(`^(\d{3}-[A-Z][A-Z0-9]*)`),
		regexp.MustCompile(`^([A-Z]{2}\d{5})`),
		regexp.MustCompile(`^(BP\d{5})`),
		regexp.MustCompile(`^([A-Z][A-Z0-9]{4,})`),
	}
)

func isFillerLine(line string) bool {
	return line == "" || reUnderscores.MatchString(line) || line == "Leveret" || line == "Delivered"
}

// collectDescription joins the lines after start until the next item id or
// a "(n)" line, skipping underscore rules and delivery stamps.
func collectDescription(lines []string, start int, isID func(string) bool) string {
	var parts []string
	for j := start; j < len(lines) && j < start+descriptionWindow; j++ {
		line := strings.TrimSpace(lines[j])
		if isID(line) || reParenNumber.MatchString(line) {
			break
		}
		if isFillerLine(line) {
			continue
		}
		parts = append(parts, line)
	}
	desc := strings.Join(parts, " ")
	return strings.TrimSpace(reTrailParen.ReplaceAllString(desc, ""))
}

// SimpleStrategy expects an id line, a bare quantity line, then the
// description.
type SimpleStrategy struct{}

func (SimpleStrategy) Name() string { return "pdf-simple" }

func (SimpleStrategy) TryParse(lines []string) ([]internal.LineItem, bool) {
	isID := func(s string) bool { return reSimpleID.MatchString(s) }

	var out []internal.LineItem
	for i := 0; i+1 < len(lines); i++ {
		m := reSimpleID.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		q := reBareInt.FindStringSubmatch(strings.TrimSpace(lines[i+1]))
		if q == nil {
			continue
		}
		qty, _ := strconv.Atoi(q[1])
		desc := collectDescription(lines, i+2, isID)
		if desc == "" {
			continue
		}
		out = append(out, internal.LineItem{ID: m[1], Description: desc, Quantity: qty})
	}
	return out, len(out) > 0
}

// ComplexStrategy tries several id shapes and accepts the quantity inline
// after the id as well as on the next line.
type ComplexStrategy struct{}

func (ComplexStrategy) Name() string { return "pdf-complex" }

func matchComplexID(line string) string {
	for _, re := range complexIDPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

func (ComplexStrategy) TryParse(lines []string) ([]internal.LineItem, bool) {
	isID := func(s string) bool { return matchComplexID(s) != "" }

	var out []internal.LineItem
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		id := matchComplexID(line)
		if id == "" {
			continue
		}

		var (
			qty   int
			found bool
			desc  string
		)
		rest := strings.TrimSpace(line[len(id):])
		if m := reInlineQty.FindStringSubmatch(rest); m != nil {
			qty, _ = strconv.Atoi(m[1])
			found = true
			desc = strings.TrimSpace(rest[len(m[0]):])
		} else if i+1 < len(lines) {
			if m := reBareInt.FindStringSubmatch(strings.TrimSpace(lines[i+1])); m != nil {
				qty, _ = strconv.Atoi(m[1])
				found = true
				i++
				desc = collectDescription(lines, i+1, isID)
			}
		}
		if !found {
			continue
		}

		desc = strings.TrimSpace(reTrailParen.ReplaceAllString(desc, ""))
		if desc == "" {
			desc = internal.UnknownDescription
		}
		if qty < 1 {
			qty = 1
		}
		out = append(out, internal.LineItem{ID: id, Description: desc, Quantity: qty})
	}
	return out, len(out) > 0
}
