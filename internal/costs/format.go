package costs

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The store hands aggregates back as driver-typed text: numeric sums are
// scanned as strings to avoid float drift, and an empty group simply has
// no value. These helpers make that contract explicit — parse with a
// zero default, never fail the request over a missing aggregate.

// ParseAmount parses a sum returned by the store. Absent or unparseable
// input yields zero.
func ParseAmount(raw *string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCount parses a record count returned by the store. Absent or
// unparseable input yields zero.
func ParseCount(raw *string) int64 {
	if raw == nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
