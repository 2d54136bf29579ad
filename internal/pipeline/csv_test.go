package pipeline

import "testing"

func TestParseCSVWithHeader(t *testing.T) {
	parsed, err := ParseCSV("id;desc;qty\n100-AA;Widget;5\n100-BB;Gadget;2")
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("len=%d", len(parsed.Items))
	}
	if parsed.Items[0].ID != "100-AA" || parsed.Items[0].Quantity != 5 {
		t.Fatalf("first=%+v", parsed.Items[0])
	}
	if parsed.Items[1].ID != "100-BB" || parsed.Items[1].Quantity != 2 {
		t.Fatalf("second=%+v", parsed.Items[1])
	}
	for _, it := range parsed.Items {
		if it.ScannedCount != 0 {
			t.Fatalf("scanned=%d", it.ScannedCount)
		}
	}
}

func TestParseCSVCommaAndWeight(t *testing.T) {
	parsed, err := ParseCSV("\ufeff100-AA,\"Lampe, stor\",2,\"1,25\"\r\n100-BB,Gadget\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("len=%d", len(parsed.Items))
	}
	if parsed.Items[0].Description != "Lampe, stor" || parsed.Items[0].Weight != 1.25 {
		t.Fatalf("first=%+v", parsed.Items[0])
	}
	if parsed.Items[1].Quantity != 1 {
		t.Fatalf("default qty=%d", parsed.Items[1].Quantity)
	}
}

func TestParseCSVSkipsShortRows(t *testing.T) {
	parsed, err := ParseCSV("100-AA\n100-BB;Gadget;3\n;empty id;1")
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Items) != 1 || parsed.Items[0].ID != "100-BB" {
		t.Fatalf("items=%+v", parsed.Items)
	}
}

func TestParseOrderSlipText(t *testing.T) {
	text := "Ordrebekreftelse\nVarenr. Beskrivelse Bestilt\n" +
		"200-KX12 4 4 ____ ____ Sofabord eik (4)\n" +
		"200-KY7 1 1\n" +
		"Sum 5\n"
	parsed, err := ParseCSV(text)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Strategy != "order-slip" {
		t.Fatalf("strategy=%s", parsed.Strategy)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("len=%d", len(parsed.Items))
	}
	if parsed.Items[0].ID != "200-KX12" || parsed.Items[0].Quantity != 4 || parsed.Items[0].Description != "Sofabord eik" {
		t.Fatalf("first=%+v", parsed.Items[0])
	}
	if parsed.Items[1].Description != "unknown description" {
		t.Fatalf("second desc=%q", parsed.Items[1].Description)
	}
}
