package export

import (
	"fmt"
	"time"

	"snapscan/internal"
	"snapscan/internal/scan"
)

// Row is one exported line.
type Row struct {
	ID          string
	Description string
	Quantity    int
	Scanned     int
	Weight      float64
	LineWeight  float64
	Status      string
	PalletID    string
	Condition   internal.Condition
	At          *time.Time
}

// Document holds everything a format needs to render a list.
type Document struct {
	Context    internal.ListContext
	ExportedAt time.Time
	WeightUnit string
	Items      []internal.LineItem
	Rows       []Row
	Summary    internal.Summary
}

func NewDocument(ctx internal.ListContext, items []internal.LineItem, weightUnit string, now time.Time) Document {
	if weightUnit == "" {
		weightUnit = internal.DefaultWeightUnit
	}
	doc := Document{
		Context:    ctx,
		ExportedAt: now,
		WeightUnit: weightUnit,
		Items:      items,
		Summary:    scan.Compute(items, ctx),
	}
	for _, it := range items {
		row := Row{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Scanned:     it.ScannedCount,
			Weight:      it.Weight,
			LineWeight:  it.Weight * float64(it.Quantity),
			Status:      Status(ctx, it),
			PalletID:    it.PalletID,
			Condition:   it.Condition,
			At:          it.CompletedAt,
		}
		if ctx == internal.ContextReturn {
			row.Scanned = it.Quantity
			row.At = it.ReturnedAt
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

// Title is the list heading, e.g. "Plukkliste".
func (d Document) Title() string {
	return d.Context.Title() + "liste"
}

// ExportType is the lower-case list name stored in JSON exports.
func (d Document) ExportType() string {
	switch d.Context {
	case internal.ContextPick:
		return "plukk"
	case internal.ContextReceive:
		return "mottak"
	case internal.ContextReturn:
		return "retur"
	}
	return string(d.Context)
}

// StatusLabel names the completed-items line of the summary.
func (d Document) StatusLabel() string {
	switch d.Context {
	case internal.ContextPick:
		return "Plukkede varer"
	case internal.ContextReceive:
		return "Mottatte varer"
	case internal.ContextReturn:
		return "Returnerte varer"
	}
	return "Status"
}

func (d Document) statusHeader() string {
	switch d.Context {
	case internal.ContextPick:
		return "Plukket"
	case internal.ContextReceive:
		return "Mottatt"
	}
	return "Returnert"
}

// Status is "Ja" for complete lines, "Delvis (c/q)" for partial ones and
// "Nei" otherwise. Return lines are always complete.
func Status(ctx internal.ListContext, it internal.LineItem) string {
	if ctx == internal.ContextReturn || it.Complete {
		return "Ja"
	}
	if it.ScannedCount > 0 {
		return fmt.Sprintf("Delvis (%d/%d)", it.ScannedCount, it.Quantity)
	}
	return "Nei"
}
