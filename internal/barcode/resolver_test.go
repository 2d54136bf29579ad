package barcode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapscan/internal"
)

func testMapping(t *testing.T) internal.BarcodeMapping {
	t.Helper()
	var m internal.BarcodeMapping
	require.NoError(t, json.Unmarshal([]byte(`{
		"7311234567890": "200-XY9",
		"7311234567891": {"id": "200-XY9", "description": "Hylleknekt 200", "weight": 0.4},
		"100-AB2": "100-AB2",
		"5701234000017": {"id": "LA12345", "description": "List 2,4m"}
	}`), &m))
	return m
}

func TestResolve(t *testing.T) {
	r := NewResolver(testMapping(t))

	assert.Equal(t, "200-XY9", r.Resolve("7311234567890"))
	assert.Equal(t, "200-XY9", r.Resolve("7311234567891"))
	assert.Equal(t, "999999", r.Resolve("999999"), "unmapped tokens pass through")
}

func TestDescribeAndWeight(t *testing.T) {
	r := NewResolver(testMapping(t))

	desc, ok := r.Describe("200-XY9")
	require.True(t, ok)
	assert.Equal(t, "Hylleknekt 200", desc)

	w, ok := r.WeightFor("200-XY9")
	require.True(t, ok)
	assert.InDelta(t, 0.4, w, 1e-9)

	_, ok = r.Describe("100-AB2")
	assert.False(t, ok, "plain entries carry no description")
}

func TestFindSimilar(t *testing.T) {
	m := internal.BarcodeMapping{
		"100-AB2": internal.PlainEntry("100-AB2"),
		"999-ZZ9": internal.PlainEntry("999-ZZ9"),
		"100-AB3": internal.DetailedEntry("100-AB3", "Skrue"),
	}
	r := NewResolver(m)

	got := r.FindSimilar("100-AB1", DefaultSimilarThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, "100-AB2", got[0].Barcode)
	assert.Equal(t, "100-AB3", got[1].Barcode)
	assert.InDelta(t, 6.0/7.0, got[0].Similarity, 1e-9)
	for _, s := range got {
		assert.NotEqual(t, "999-ZZ9", s.Barcode)
	}

	assert.Empty(t, r.FindSimilar("10", 0), "short tokens give no suggestions")
}

func TestMatchProductID(t *testing.T) {
	m := internal.BarcodeMapping{
		"1": internal.PlainEntry("100-AB1"),
		"2": internal.PlainEntry("LA12345"),
		"3": internal.PlainEntry("200-XY9123"),
	}
	r := NewResolver(m)

	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "exact", raw: "100-AB1", want: "100-AB1", ok: true},
		{name: "normalized", raw: " 100 - ab1 ", want: "100-AB1", ok: true},
		{name: "no dashes", raw: "100AB1", want: "100-AB1", ok: true},
		{name: "prefix", raw: "200-XY9", want: "200-XY9123", ok: true},
		{name: "la numeric", raw: "LA1234", want: "LA12345", ok: true},
		{name: "none", raw: "ZZ00000", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := r.MatchProductID(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMergeBundled(t *testing.T) {
	user := internal.BarcodeMapping{
		"111": internal.PlainEntry("USER-1"),
	}
	bundled := internal.BarcodeMapping{
		"111": internal.PlainEntry("BUNDLED-1"),
		"222": internal.PlainEntry("BUNDLED-2"),
	}

	merged, added := MergeBundled(user, bundled)
	assert.Equal(t, 1, added)
	assert.Equal(t, "USER-1", merged["111"].ID, "user entries win")
	assert.Equal(t, "BUNDLED-2", merged["222"].ID, "missing bundled keys are re-added")
	assert.Len(t, user, 1, "input is not mutated")
}

func TestDecodeMappingRejectsScalars(t *testing.T) {
	for _, payload := range []string{`"abc"`, `42`, `[1,2]`, ``} {
		_, err := DecodeMapping([]byte(payload))
		require.Error(t, err, payload)
		assert.True(t, internal.IsKind(err, internal.ErrMalformedBarcodePayload), payload)
	}
}

func TestEntryRoundTripKeepsShape(t *testing.T) {
	m := testMapping(t)
	blob, err := EncodeMapping(m)
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"7311234567890": "200-XY9"`)
	assert.Contains(t, string(blob), `"description": "Hylleknekt 200"`)
}

func TestLoadBundledFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcodes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"123": "A-1"}`), 0o644))

	m, err := LoadBundled(context.Background(), NewClient(time.Second), path)
	require.NoError(t, err)
	assert.Equal(t, "A-1", m["123"].ID)

	m, err = LoadBundled(context.Background(), NewClient(time.Second), filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, m)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestLoadBundledOverHTTPWithRetry(t *testing.T) {
	attempt := 0
	client := NewClient(time.Second)
	client.sleep = func(time.Duration) {}
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/static/barcodes.json" {
				t.Fatalf("unexpected path %s", r.URL.Path)
			}
			attempt++
			if attempt == 1 {
				return &http.Response{
					StatusCode: http.StatusServiceUnavailable,
					Body:       io.NopCloser(strings.NewReader(`busy`)),
					Header:     make(http.Header),
				}, nil
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"7311234567890": {"id": "200-XY9", "description": "Hylleknekt"}}`)),
				Header:     make(http.Header),
			}, nil
		}),
	}

	m, err := LoadBundled(context.Background(), client, "https://example.test/static/barcodes.json")
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
	assert.Equal(t, "200-XY9", m["7311234567890"].ID)
}

func TestFetchGivesUpOnClientError(t *testing.T) {
	client := NewClient(time.Second)
	client.sleep = func(time.Duration) {}
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("")), Header: make(http.Header)}, nil
		}),
	}
	_, err := client.Fetch(context.Background(), "https://example.test/barcodes.json")
	require.Error(t, err)
}
