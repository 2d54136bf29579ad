package barcode

import (
	"sort"
	"strings"

	"snapscan/internal"
	"snapscan/internal/util"
)

// Resolver answers lookups against one snapshot of the barcode mapping.
// Build a new one when the mapping changes.
type Resolver struct {
	mapping internal.BarcodeMapping

	// byID holds the first detailed entry seen per item id, by sorted
	// barcode, so descriptions are stable across runs.
	byID         map[string]internal.BarcodeEntry
	byNormalized map[string]string
	ids          []string
}

func NewResolver(mapping internal.BarcodeMapping) *Resolver {
	r := &Resolver{
		mapping:      mapping,
		byID:         map[string]internal.BarcodeEntry{},
		byNormalized: map[string]string{},
	}

	barcodes := make([]string, 0, len(mapping))
	for code := range mapping {
		barcodes = append(barcodes, code)
	}
	sort.Strings(barcodes)

	seen := map[string]struct{}{}
	for _, code := range barcodes {
		entry := mapping[code]
		if entry.ID == "" {
			continue
		}
		if _, ok := seen[entry.ID]; !ok {
			seen[entry.ID] = struct{}{}
			r.ids = append(r.ids, entry.ID)
		}
		if existing, ok := r.byID[entry.ID]; !ok || (!existing.Detailed && entry.Detailed) {
			r.byID[entry.ID] = entry
		}

		norm := util.NormalizeProductID(entry.ID)
		if _, ok := r.byNormalized[norm]; !ok {
			r.byNormalized[norm] = entry.ID
		}
		noDashes := strings.ReplaceAll(entry.ID, "-", "")
		if _, ok := r.byNormalized[noDashes]; !ok {
			r.byNormalized[noDashes] = entry.ID
		}
	}
	sort.Strings(r.ids)

	return r
}

// Resolve maps a scanned token to an item id. Unmapped tokens are assumed
// to already be item ids.
func (r *Resolver) Resolve(token string) string {
	if entry, ok := r.mapping[token]; ok && entry.ID != "" {
		return entry.ID
	}
	return token
}

func (r *Resolver) Lookup(token string) (internal.BarcodeEntry, bool) {
	entry, ok := r.mapping[token]
	return entry, ok
}

// Describe finds a description for an item id among detailed entries.
func (r *Resolver) Describe(id string) (string, bool) {
	entry, ok := r.byID[id]
	if !ok || !entry.Detailed || strings.TrimSpace(entry.Description) == "" {
		return "", false
	}
	return entry.Description, true
}

func (r *Resolver) WeightFor(id string) (float64, bool) {
	entry, ok := r.byID[id]
	if !ok || entry.Weight == nil || *entry.Weight <= 0 {
		return 0, false
	}
	return *entry.Weight, true
}

// Known reports whether any mapping entry points at id.
func (r *Resolver) Known(id string) bool {
	_, ok := r.byID[id]
	return ok
}

func (r *Resolver) Len() int {
	return len(r.mapping)
}
