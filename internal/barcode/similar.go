package barcode

import (
	"sort"

	"snapscan/internal"
	"snapscan/internal/util"
)

const (
	DefaultSimilarThreshold = 0.7
	minSimilarTokenLength   = 3
)

// FindSimilar ranks mapped barcodes by LCS similarity to token, highest first.
// Tokens shorter than three characters never produce suggestions.
func (r *Resolver) FindSimilar(token string, threshold float64) []internal.Suggestion {
	if len([]rune(token)) < minSimilarTokenLength {
		return nil
	}

	out := []internal.Suggestion{}
	for code, entry := range r.mapping {
		score := util.Similarity(token, code)
		if score < threshold {
			continue
		}
		out = append(out, internal.Suggestion{Barcode: code, ItemID: entry.ID, Similarity: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Barcode < out[j].Barcode
	})
	return out
}
