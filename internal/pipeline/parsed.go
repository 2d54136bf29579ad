package pipeline

import (
	"path/filepath"
	"strings"

	"snapscan/internal"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
	FormatHTML = "html"
	FormatEML  = "eml"
)

// Parsed is the outcome of reading one document. A JSON object payload
// yields a Mapping instead of Items.
type Parsed struct {
	Format   string
	Strategy string
	Items    []internal.LineItem
	Mapping  internal.BarcodeMapping
	Warnings []string
}

// DetectFormat picks a parser from the file name, falling back to content
// sniffing.
func DetectFormat(name string, content []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".pdf":
		return FormatPDF
	case ".xlsx", ".xls":
		return FormatXLSX
	case ".html", ".htm":
		return FormatHTML
	case ".eml":
		return FormatEML
	}

	head := strings.TrimSpace(strings.TrimPrefix(string(content[:min(len(content), 512)]), "\ufeff"))
	switch {
	case strings.HasPrefix(head, "%PDF"):
		return FormatPDF
	case strings.HasPrefix(head, "PK"):
		return FormatXLSX
	case strings.HasPrefix(head, "{"), strings.HasPrefix(head, "["):
		return FormatJSON
	case strings.Contains(strings.ToLower(head), "<table"), strings.Contains(strings.ToLower(head), "<html"):
		return FormatHTML
	}
	return FormatCSV
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeDuplicates folds repeated ids into one line. Return lines are keyed
// by id and condition.
func mergeDuplicates(ctx internal.ListContext, items []internal.LineItem) []internal.LineItem {
	type key struct {
		id   string
		cond internal.Condition
	}
	index := map[key]int{}
	out := make([]internal.LineItem, 0, len(items))
	for _, it := range items {
		k := key{id: it.ID}
		if ctx == internal.ContextReturn {
			k.cond = it.Condition
		}
		if i, ok := index[k]; ok {
			out[i].Quantity += it.Quantity
			out[i].ScannedCount += it.ScannedCount
			if out[i].Description == "" || out[i].Description == internal.UnknownDescription {
				out[i].Description = it.Description
			}
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}
