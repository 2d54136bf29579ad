package pipeline

import (
	"context"
	"testing"
)

const slipTable = `<table><tr><th>Varenr</th><th>Beskrivelse</th><th>Antall</th></tr>` +
	`<tr><td>100-AA</td><td>Widget</td><td>3</td></tr>` +
	`<tr><td>100-BB</td><td>Gadget</td><td>1 stk</td></tr>` +
	`<tr><td>Sum</td><td></td><td>totalt</td></tr></table>`

func slipEmail(subject, html string) []byte {
	return []byte("From: lager@kvik.example\r\n" +
		"To: mottak@example.com\r\n" +
		"Subject: " + subject + "\r\n" +
		"Message-ID: <slip-1@kvik.example>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Hei</p>" + html + "</body></html>\r\n")
}

func TestParseHTMLTables(t *testing.T) {
	parsed := ParseHTMLTables(slipTable)
	if len(parsed.Items) != 2 {
		t.Fatalf("len=%d", len(parsed.Items))
	}
	if parsed.Items[0].ID != "100-AA" || parsed.Items[0].Quantity != 3 {
		t.Fatalf("first=%+v", parsed.Items[0])
	}
	if parsed.Items[1].Quantity != 1 {
		t.Fatalf("second qty=%d", parsed.Items[1].Quantity)
	}
}

func TestParseHTMLTablesIgnoresLayoutTables(t *testing.T) {
	parsed := ParseHTMLTables(`<table><tr><td>Logo</td></tr><tr><td>Hei</td></tr></table>`)
	if len(parsed.Items) != 0 {
		t.Fatalf("len=%d", len(parsed.Items))
	}
}

func TestExtractSlipFromHTMLBody(t *testing.T) {
	content, err := ExtractSlip(context.Background(), slipEmail("Pakkseddel 4711", slipTable), nil)
	if err != nil {
		t.Fatal(err)
	}
	if content.Subject != "Pakkseddel 4711" {
		t.Fatalf("subject=%q", content.Subject)
	}
	if content.Strategy != "html-body" || len(content.Items) != 2 {
		t.Fatalf("strategy=%s len=%d", content.Strategy, len(content.Items))
	}
}

func TestDetectSlip(t *testing.T) {
	res := DetectSlip("Følgeseddel 4711", "varenr og antall", "", []string{"slip.pdf"})
	if !res.IsSlip || res.Reason != "rules_positive" {
		t.Fatalf("res=%+v", res)
	}

	res = DetectSlip("Nyhetsbrev", "Tilbud denne uken", "", []string{"logo.png"})
	if res.IsSlip || res.Score != 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"liste.CSV", "", FormatCSV},
		{"liste.txt", "", FormatCSV},
		{"liste.json", "", FormatJSON},
		{"slip.pdf", "", FormatPDF},
		{"ark.xlsx", "", FormatXLSX},
		{"mail.eml", "", FormatEML},
		{"upload", "%PDF-1.7", FormatPDF},
		{"upload", "PK\x03\x04", FormatXLSX},
		{"upload", "\ufeff  [{}]", FormatJSON},
		{"upload", "<TABLE><tr></tr></TABLE>", FormatHTML},
		{"upload", "100-AA;Widget;1", FormatCSV},
		{"upload", "", FormatCSV},
	}
	for _, tc := range cases {
		if got := DetectFormat(tc.name, []byte(tc.content)); got != tc.want {
			t.Fatalf("%s %q: got %s want %s", tc.name, tc.content, got, tc.want)
		}
	}
}

func TestParseGTINCatalogCSV(t *testing.T) {
	mapping, err := ParseGTINCatalog("katalog.csv", []byte("Varenr.;Beskrivelse;GTIN\n100-AA;Widget;7311234567890\n100-BB;Gadget;0000000000000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(mapping) != 1 || mapping["7311234567890"].ID != "100-AA" {
		t.Fatalf("mapping=%+v", mapping)
	}

	if _, err := ParseGTINCatalog("katalog.csv", []byte("a;b\n1;2\n")); err == nil {
		t.Fatal("expected error for missing columns")
	}
}
