package export

import (
	"github.com/xuri/excelize/v2"

	"snapscan/internal"
)

// XLSX writes one sheet named after the list, a header row, then one row per
// line with numeric cells kept numeric.
func (f *Formatter) XLSX(doc Document) ([]byte, error) {
	book := excelize.NewFile()
	defer book.Close()

	sheet := doc.Title()
	if err := book.SetSheetName(book.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	headers := doc.headers()
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = book.SetCellValue(sheet, cell, h)
	}

	for i, row := range doc.Rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = book.SetCellValue(sheet, cell, value)
		}

		set(1, row.ID)
		set(2, row.Description)
		set(3, row.Quantity)
		set(4, row.Scanned)
		set(5, row.Weight)
		set(6, row.LineWeight)
		set(7, row.Status)
		col := 8
		switch doc.Context {
		case internal.ContextReceive:
			set(col, row.PalletID)
			col++
		case internal.ContextReturn:
			set(col, string(row.Condition))
			col++
		}
		if row.At != nil {
			set(col, row.At.Local())
		}
	}

	if err := book.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
