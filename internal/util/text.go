package util

import (
	"regexp"
	"strings"
)

var (
	reNonAlnum    = regexp.MustCompile(`[^a-zA-Z0-9]`)
	reDashSpacing = regexp.MustCompile(`\s*-\s*`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// NormalizeToken strips everything but ASCII letters and digits.
func NormalizeToken(input string) string {
	return reNonAlnum.ReplaceAllString(input, "")
}

// NormalizeProductID trims, closes up spacing around dashes and lower-cases.
func NormalizeProductID(id string) string {
	s := strings.TrimSpace(id)
	s = reDashSpacing.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// LCSLength is the length of the longest common subsequence of a and b,
// counted in runes.
func LCSLength(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 || len(br) == 0 {
		return 0
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for i := 1; i <= len(ar); i++ {
		for j := 1; j <= len(br); j++ {
			switch {
			case ar[i-1] == br[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

// Similarity is LCS(a,b) / max(len(a), len(b)).
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	return float64(LCSLength(a, b)) / float64(longest)
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
