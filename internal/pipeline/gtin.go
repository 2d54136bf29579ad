package pipeline

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"snapscan/internal"
	"snapscan/internal/util"
)

// ParseGTINCatalog converts a supplier catalog sheet (CSV or XLSX) with
// Varenr., Beskrivelse and GTIN columns into barcode entries keyed by GTIN.
// Rows with an empty or zero GTIN are skipped.
func ParseGTINCatalog(name string, content []byte) (internal.BarcodeMapping, error) {
	var rows [][]string
	var err error
	if DetectFormat(name, content) == FormatXLSX {
		rows, err = xlsxRows(content)
	} else {
		rows, err = csvRows(string(content))
	}
	if err != nil {
		return nil, internal.WrapError(internal.ErrMalformedBarcodePayload, err, "unreadable catalog")
	}

	idCol, descCol, gtinCol := -1, -1, -1
	mapping := internal.BarcodeMapping{}
	for _, row := range rows {
		cells := normalizeCells(row)
		if gtinCol < 0 {
			lower := make([]string, len(cells))
			for i, c := range cells {
				lower[i] = strings.ToLower(c)
			}
			gtinCol = findHeaderIndex(lower, []string{"gtin", "ean", "strekkode"})
			idCol = findHeaderIndex(lower, []string{"varenr", "varenummer"})
			descCol = findHeaderIndex(lower, []string{"beskrivelse", "description"})
			if gtinCol < 0 || idCol < 0 {
				gtinCol, idCol = -1, -1
			}
			continue
		}

		gtin := util.NormalizeToken(pickCell(cells, gtinCol, -1))
		id := pickCell(cells, idCol, -1)
		if gtin == "" || strings.Trim(gtin, "0") == "" || id == "" {
			continue
		}
		if desc := pickCell(cells, descCol, -1); desc != "" {
			mapping[gtin] = internal.DetailedEntry(id, desc)
		} else {
			mapping[gtin] = internal.PlainEntry(id)
		}
	}

	if gtinCol < 0 {
		return nil, internal.NewError(internal.ErrMalformedBarcodePayload, "catalog needs Varenr. and GTIN columns")
	}
	return mapping, nil
}

func csvRows(content string) ([][]string, error) {
	content = strings.TrimPrefix(strings.ReplaceAll(content, "\r\n", "\n"), "\ufeff")
	r := csv.NewReader(strings.NewReader(content))
	r.Comma = ','
	if strings.Contains(content, ";") {
		r.Comma = ';'
	}
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

func xlsxRows(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}
