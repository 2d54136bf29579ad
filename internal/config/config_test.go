package config

import (
	"testing"

	"snapscan/internal"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NORMALIZE_TOKENS", "return")
	t.Setenv("DEFAULT_ITEM_WEIGHT", "1,5")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultItemWeight != 1.5 {
		t.Fatalf("weight=%v", cfg.DefaultItemWeight)
	}
	if !cfg.NormalizesTokens(internal.ContextReturn) || cfg.NormalizesTokens(internal.ContextPick) {
		t.Fatalf("normalize=%v", cfg.NormalizeTokens)
	}
}

func TestNormalizeTokensList(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  []internal.ListContext
	}{
		{name: "none", value: "none", want: nil},
		{name: "two", value: "pick, retur", want: []internal.ListContext{internal.ContextPick, internal.ContextReturn}},
		{name: "junk ignored", value: "receive,bogus", want: []internal.ListContext{internal.ContextReceive}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("NORMALIZE_TOKENS", tc.value)
			got := getEnvContexts("NORMALIZE_TOKENS", nil)
			if len(got) != len(tc.want) {
				t.Fatalf("len=%d", len(got))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v want %v", got, tc.want)
				}
			}
		})
	}
}

func TestRequire(t *testing.T) {
	var cfg Config
	if err := cfg.Require("IMAP_HOST", "  "); err == nil {
		t.Fatal("expected error")
	}
	if err := cfg.Require("IMAP_HOST", "mail.example.test"); err != nil {
		t.Fatal(err)
	}
}
