package barcode

import (
	"strings"

	"snapscan/internal/util"
)

// MatchProductID maps a raw id from an imported document onto an item id
// known to the mapping. Steps, first hit wins: exact id, normalized id,
// id without dashes, prefix in either direction, and for LA/BP ids a match
// on the numeric part.
func (r *Resolver) MatchProductID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if _, ok := r.byID[raw]; ok {
		return raw, true
	}
	if id, ok := r.byNormalized[util.NormalizeProductID(raw)]; ok {
		return id, true
	}
	if id, ok := r.byNormalized[strings.ReplaceAll(raw, "-", "")]; ok {
		return id, true
	}

	for _, known := range r.ids {
		if strings.HasPrefix(known, raw) || strings.HasPrefix(raw, known) {
			return known, true
		}
	}

	if strings.HasPrefix(raw, "LA") || strings.HasPrefix(raw, "BP") {
		prefix := raw[:2]
		num := raw[2:]
		for _, known := range r.ids {
			if !strings.HasPrefix(known, prefix) {
				continue
			}
			knownNum := known[2:]
			if knownNum == num || strings.HasPrefix(knownNum, num) || strings.HasPrefix(num, knownNum) {
				return known, true
			}
		}
	}

	return "", false
}
