package util

import "testing"

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "decimal comma", input: "1,5", want: 1.5},
		{name: "decimal dot", input: "1.5", want: 1.5},
		{name: "thousand dot", input: "1.000", want: 1000},
		{name: "thousand space", input: "1 250", want: 1250},
		{name: "nbsp", input: "2\u00a0000,25", want: 2000.25},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseDecimal(tc.input)
			if !ok {
				t.Fatalf("not parsed")
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}

	if _, ok := ParseDecimal("abc"); ok {
		t.Fatalf("abc parsed")
	}
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		input string
		want  int
		ok    bool
	}{
		{"5", 5, true},
		{" 12 stk", 12, true},
		{"x3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseCount(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%q: got %d,%v want %d,%v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}
