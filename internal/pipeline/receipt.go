package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"snapscan/internal"
)

const receiptLookahead = 4

var (
	rePallet      = regexp.MustCompile(`^\d{9}$`)
	reReceiptID   = regexp.MustCompile(`^(\d{3}-[A-Z0-9]+(?:-[A-Z0-9]+)?|[A-Z]{1,4}-?\d{3,}[A-Z0-9]*|\d{5,8})$`)
	reNumericID   = regexp.MustCompile(`^\d{5,8}$`)
	reTriple      = regexp.MustCompile(`^(\d+)\s+(\d+)\s+(\d+)$`)
	reTrailTriple = regexp.MustCompile(`^(.*?)\s+(\d+)\s+(\d+)\s+(\d+)$`)
)

// ReceiptStrategy reads Kvik delivery slips ("følgeseddel"). Item lines end
// with ordered, picked and remaining counts; nine-digit lines are pallet
// ids that apply to the items after them.
type ReceiptStrategy struct{}

func (ReceiptStrategy) Name() string { return "kvik-receipt" }

// IsReceipt looks for the slip's fixed markers.
func IsReceipt(lines []string) bool {
	text := strings.ToLower(norm.NFC.String(strings.Join(lines, "\n")))
	if !strings.Contains(text, "kvik") {
		return false
	}
	return strings.Contains(text, "følgeseddel") || strings.Contains(text, "ordrenummer")
}

type receiptCounts struct {
	ordered, picked, remaining int
}

func (ReceiptStrategy) TryParse(lines []string) ([]internal.LineItem, bool) {
	if !IsReceipt(lines) {
		return nil, false
	}

	var (
		out    []internal.LineItem
		pallet string
	)
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if rePallet.MatchString(line) {
			pallet = line
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || !reReceiptID.MatchString(fields[0]) {
			continue
		}
		id := fields[0]

		desc, counts, found := splitTrailingCounts(fields[1:])
		consumed := 0
		if !found {
			var extra []string
			for j := i + 1; j < len(lines) && j <= i+receiptLookahead; j++ {
				next := strings.TrimSpace(lines[j])
				if rePallet.MatchString(next) || startsWithReceiptID(next) {
					break
				}
				consumed = j - i
				if m := reTriple.FindStringSubmatch(next); m != nil {
					counts = countsFrom(m[1], m[2], m[3])
					found = true
					break
				}
				if m := reTrailTriple.FindStringSubmatch(next); m != nil {
					extra = append(extra, m[1])
					counts = countsFrom(m[2], m[3], m[4])
					found = true
					break
				}
				extra = append(extra, next)
			}
			if !found {
				if reNumericID.MatchString(id) {
					// bare numbers without counts are order numbers, phones and the like
					continue
				}
				consumed = 0
			} else {
				desc = strings.TrimSpace(strings.Join(append([]string{desc}, extra...), " "))
			}
		}

		item := internal.LineItem{
			ID:          id,
			Description: desc,
			Quantity:    1,
			PalletID:    pallet,
		}
		if found {
			item.Quantity = counts.ordered
			item.ScannedCount = counts.picked
			if item.Quantity < 1 {
				item.Quantity = 1
			}
		}
		if item.Description == "" {
			item.Description = internal.UnknownDescription
		}
		out = append(out, item)
		i += consumed
	}
	return out, len(out) > 0
}

func startsWithReceiptID(line string) bool {
	fields := strings.Fields(line)
	return len(fields) > 0 && reReceiptID.MatchString(fields[0])
}

// splitTrailingCounts takes three integers off the end of fields.
func splitTrailingCounts(fields []string) (string, receiptCounts, bool) {
	if len(fields) < 3 {
		return strings.Join(fields, " "), receiptCounts{}, false
	}
	tail := fields[len(fields)-3:]
	for _, f := range tail {
		if !reBareInt.MatchString(f) {
			return strings.Join(fields, " "), receiptCounts{}, false
		}
	}
	return strings.Join(fields[:len(fields)-3], " "), countsFrom(tail[0], tail[1], tail[2]), true
}

func countsFrom(a, b, c string) receiptCounts {
	ordered, _ := strconv.Atoi(a)
	picked, _ := strconv.Atoi(b)
	remaining, _ := strconv.Atoi(c)
	return receiptCounts{ordered: ordered, picked: picked, remaining: remaining}
}
