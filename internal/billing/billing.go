// Package billing derives sequential daily invoice numbers.
package billing

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kiwari-pos/terminal/internal/model"
)

// NextBillValue scans today's orders and returns max(dailyBillNo)+1, 1 when
// no order qualifies. Orders created on another calendar day, with an empty
// number, or with a number that does not parse are skipped.
//
// This is a read-then-write scan with no lock or atomic counter: two
// terminals allocating concurrently can compute the same MAX and mint
// duplicate numbers. The store has no unique constraint to catch it.
func NextBillValue(orders []model.Order, now time.Time) int {
	y, m, d := now.Date()
	max := 0
	for _, o := range orders {
		oy, om, od := o.CreatedAt.In(now.Location()).Date()
		if oy != y || om != m || od != d {
			continue
		}
		n, err := strconv.Atoi(o.DailyBillNo)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// FormatBillNumber renders a bill number in its 5-digit zero-padded form.
func FormatBillNumber(n int) string {
	return fmt.Sprintf("%05d", n)
}

// NextBillNumber is NextBillValue rendered through FormatBillNumber.
func NextBillNumber(orders []model.Order, now time.Time) string {
	return FormatBillNumber(NextBillValue(orders, now))
}
