package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reThousandsDot = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reLeadingInt   = regexp.MustCompile(`^\s*(\d+)`)
)

// ParseCount reads a whole, non-negative count. Leading digits are enough,
// so "5 stk" is 5.
func ParseCount(input string) (int, bool) {
	m := reLeadingInt.FindStringSubmatch(strings.ReplaceAll(input, "\u00A0", " "))
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDecimal accepts decimal comma or point. Dots in groups of three are
// thousands separators, as in nb-NO.
func ParseDecimal(input string) (float64, bool) {
	token := strings.TrimSpace(strings.ReplaceAll(input, "\u00A0", " "))
	if token == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(token), 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reThousandsDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
