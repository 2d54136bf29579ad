package pipeline

import (
	"context"
	"testing"
)

func TestSimpleStrategy(t *testing.T) {
	lines := []string{
		"Plukkliste",
		"AB12345",
		"3",
		"Hylle hvit",
		"____",
		"(3)",
		"CD-100-X",
		"2",
		"Lampe",
		"Leveret",
	}
	items, ok := SimpleStrategy{}.TryParse(lines)
	if !ok || len(items) != 2 {
		t.Fatalf("ok=%v len=%d", ok, len(items))
	}
	if items[0].ID != "AB12345" || items[0].Quantity != 3 || items[0].Description != "Hylle hvit" {
		t.Fatalf("first=%+v", items[0])
	}
	if items[1].ID != "CD-100-X" || items[1].Quantity != 2 || items[1].Description != "Lampe" {
		t.Fatalf("second=%+v", items[1])
	}
}

func TestComplexStrategyInlineAndNextLine(t *testing.T) {
	lines := []string{
		"100-KA1-2 5 Stol svart (5)",
		"BP12345",
		"2",
		"Bordplate",
		"Leveret",
		"200-KB2",
		"0",
	}
	items, ok := ComplexStrategy{}.TryParse(lines)
	if !ok || len(items) != 3 {
		t.Fatalf("ok=%v len=%d", ok, len(items))
	}
	if items[0].ID != "100-KA1-2" || items[0].Quantity != 5 || items[0].Description != "Stol svart" {
		t.Fatalf("first=%+v", items[0])
	}
	if items[1].ID != "BP12345" || items[1].Quantity != 2 || items[1].Description != "Bordplate" {
		t.Fatalf("second=%+v", items[1])
	}
	if items[2].Quantity != 1 || items[2].Description != "unknown description" {
		t.Fatalf("third=%+v", items[2])
	}
}

func TestParseLinesFallsBack(t *testing.T) {
	lines := []string{"100-KA1-2 5 Stol svart (5)", "200-KB2 1 Krakk"}
	items, name := ParseLines(lines, DefaultStrategies())
	if name != "pdf-complex" {
		t.Fatalf("strategy=%s", name)
	}
	if len(items) != 2 || items[1].ID != "200-KB2" || items[1].Description != "Krakk" {
		t.Fatalf("items=%+v", items)
	}

	items, name = ParseLines([]string{"ingen varer her"}, DefaultStrategies())
	if len(items) != 0 || name != "" {
		t.Fatalf("items=%+v name=%s", items, name)
	}
}

func TestReceiptStrategy(t *testing.T) {
	lines := []string{
		"Kvik Trondheim",
		"Følgeseddel",
		"Ordrenummer 12345678",
		"123456789",
		"100-AB1 Benkeplate eik 2 2 0",
		"200-CC3 Skuff",
		"hvit 4 3 1",
		"987654321",
		"KV-1234 Håndtak 1 0 1",
		"Telefon",
		"73000000",
	}
	items, name := ParseLines(lines, DefaultStrategies())
	if name != "kvik-receipt" {
		t.Fatalf("strategy=%s", name)
	}
	if len(items) != 3 {
		t.Fatalf("len=%d items=%+v", len(items), items)
	}

	if items[0].ID != "100-AB1" || items[0].Description != "Benkeplate eik" || items[0].Quantity != 2 || items[0].ScannedCount != 2 {
		t.Fatalf("first=%+v", items[0])
	}
	if items[0].PalletID != "123456789" {
		t.Fatalf("pallet=%s", items[0].PalletID)
	}
	if items[1].Description != "Skuff hvit" || items[1].Quantity != 4 || items[1].ScannedCount != 3 {
		t.Fatalf("second=%+v", items[1])
	}
	if items[2].ID != "KV-1234" || items[2].PalletID != "987654321" || items[2].ScannedCount != 0 {
		t.Fatalf("third=%+v", items[2])
	}
}

func TestIsReceiptNeedsMarkers(t *testing.T) {
	if IsReceipt([]string{"Følgeseddel", "100-AB1 Benk 1 1 0"}) {
		t.Fatal("no kvik marker")
	}
	if !IsReceipt([]string{"KVIK", "ORDRENUMMER 1"}) {
		t.Fatal("expected receipt")
	}
}

func TestParsePDFRejectsGarbage(t *testing.T) {
	if _, err := ParsePDF(context.Background(), []byte("%PDF-1.4 broken"), DefaultStrategies(), nil); err == nil {
		t.Fatal("expected error")
	}
}
