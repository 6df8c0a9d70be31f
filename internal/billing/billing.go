// Package billing holds the pure arithmetic behind a table's bill: line totals,
// remaining balance, settlement, and the guest and even-split calculations.
// Nothing here touches storage; the order ledger and payment service both call
// into it so the invariants are computed in exactly one place.
package billing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places of the currency's minor unit.
const MinorUnitPlaces = 2

// SharedLabel is the bucket for items not assigned to a specific guest.
const SharedLabel = "Shared"

// Epsilon is the tolerance for balance comparisons: half a minor unit.
var Epsilon = decimal.New(5, -3)

// MaxSplitWays caps the number of payers an even split is computed for.
const MaxSplitWays = 100

// ErrInvalidSplit is returned by EvenSplit when the share count is out of
// range or the balance is negative.
var ErrInvalidSplit = errors.New("split count must be between 1 and 100, no more than the minor units owed, and balance must not be negative")

// Line is one priced order line.
type Line struct {
	UnitPrice  decimal.Decimal
	Quantity   int32
	GuestLabel string
}

// Subtotal returns unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Tender is one recorded payment.
type Tender struct {
	Amount     decimal.Decimal
	Tip        decimal.Decimal
	GuestLabel string
}

// GuestLabel normalizes a free-text guest label. Blank labels are shared.
func GuestLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return SharedLabel
	}
	return s
}

// Total sums every line subtotal.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Paid sums tender amounts. Tips are excluded.
func Paid(tenders []Tender) decimal.Decimal {
	paid := decimal.Zero
	for _, t := range tenders {
		paid = paid.Add(t.Amount)
	}
	return paid
}

// Tips sums tender tips.
func Tips(tenders []Tender) decimal.Decimal {
	tips := decimal.Zero
	for _, t := range tenders {
		tips = tips.Add(t.Tip)
	}
	return tips
}

// Remaining returns total - paid, with anything at or below Epsilon reported as zero.
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	r := total.Sub(paid)
	if r.LessThanOrEqual(Epsilon) {
		return decimal.Zero
	}
	return r
}

// IsSettled reports whether a bill with at least one payment has nothing left to pay.
// An order nobody has paid against yet is never settled, even when empty.
func IsSettled(total, paid decimal.Decimal, payments int) bool {
	if payments == 0 {
		return false
	}
	return total.Sub(paid).LessThanOrEqual(Epsilon)
}

// SubtotalsByGuest groups line subtotals by normalized guest label.
// The values always sum to Total(lines).
func SubtotalsByGuest(lines []Line) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, l := range lines {
		label := GuestLabel(l.GuestLabel)
		out[label] = out[label].Add(l.Subtotal())
	}
	return out
}

// GuestBalances returns what each guest still owes: their subtotal minus the
// payments attributed to them, floored at zero. Unattributed payments do not
// reduce any guest's balance.
func GuestBalances(lines []Line, tenders []Tender) map[string]decimal.Decimal {
	out := SubtotalsByGuest(lines)
	for _, t := range tenders {
		label := strings.TrimSpace(t.GuestLabel)
		if label == "" {
			continue
		}
		owed, ok := out[label]
		if !ok {
			continue
		}
		out[label] = owed.Sub(t.Amount)
	}
	for label, owed := range out {
		if owed.LessThanOrEqual(Epsilon) {
			out[label] = decimal.Zero
		}
	}
	return out
}

// EvenSplit divides the remaining balance into n shares of the minor unit.
// Each share is the floored quotient; the leftover minor units all go to the
// first share, so the shares always add back up to the balance exactly.
//
// n may not exceed MaxSplitWays, nor the number of minor units owed, since
// a zero share is not a payable amount. A zero balance yields zero shares.
func EvenSplit(remaining decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 || n > MaxSplitWays || remaining.IsNegative() {
		return nil, ErrInvalidSplit
	}

	units := remaining.Round(MinorUnitPlaces).Shift(MinorUnitPlaces).IntPart()
	if units > 0 && int64(n) > units {
		return nil, ErrInvalidSplit
	}
	base := units / int64(n)
	leftover := units - base*int64(n)

	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = decimal.New(base, -MinorUnitPlaces)
	}
	shares[0] = decimal.New(base+leftover, -MinorUnitPlaces)
	return shares, nil
}
