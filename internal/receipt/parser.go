package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// totalLabel is the word receipts use for their grand total line.
const totalLabel = "合計"

var (
	datePattern = regexp.MustCompile(`\d{4}/\d{1,2}/\d{1,2}`)

	// itemPattern matches a run of non-digit, non-currency characters
	// followed by a currency glyph and a price. The name run stops at a
	// line break so an item cannot swallow the line above it.
	itemPattern = regexp.MustCompile(`([^\d¥￥\n]+)[¥￥]\s*(\d[\d,]*)`)

	totalPattern = regexp.MustCompile(`合計\s*[¥￥]?\s*(\d+)`)
)

// Parse turns raw extracted receipt text into a structured receipt. It
// never fails: every absent or malformed sub-pattern degrades to a
// default (empty store name, the supplied clock time as the date, an
// empty item list, a zero total). now is injected so the date fallback
// stays testable.
//
// Known limitation: an item whose name merely contains the total label
// is not special-cased and may come through as a spurious item.
func Parse(text string, now time.Time) ParsedReceipt {
	parsed := ParsedReceipt{
		StoreName:       parseStoreName(text),
		TransactionDate: parseTransactionDate(text, now),
		Items:           parseItems(text),
		TotalAmount:     parseTotalAmount(text),
	}
	return parsed
}

// parseStoreName returns the first line of the text, surface-trimmed.
func parseStoreName(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

// parseTransactionDate returns the first YYYY/M/D-shaped substring, or
// the current time formatted the same way when none is present.
func parseTransactionDate(text string, now time.Time) string {
	if match := datePattern.FindString(text); match != "" {
		return match
	}
	return now.Format("2006/1/2")
}

// parseItems scans for name-price pairs. Matches whose price does not
// parse as a positive integer are discarded; the grand-total line is
// recognized by its exact label and skipped. IDs are positional over the
// surviving items.
func parseItems(text string) []LineItem {
	items := make([]LineItem, 0)
	for _, match := range itemPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(match[1])
		if name == "" || name == totalLabel {
			continue
		}

		price, err := strconv.Atoi(strings.ReplaceAll(match[2], ",", ""))
		if err != nil || price <= 0 {
			continue
		}

		items = append(items, LineItem{
			ID:       fmt.Sprintf("item-%d", len(items)),
			Name:     name,
			Price:    price,
			Category: CategoryUnclassified,
		})
	}
	return items
}

// parseTotalAmount returns the integer following the total label, or zero
// when the label is absent.
func parseTotalAmount(text string) int {
	match := totalPattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	total, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return total
}
