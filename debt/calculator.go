/*
Package debt derives balances and overdue status from ledger records.

PURPOSE:
  Pure functions only: everything here is computed fresh from receipts and
  payments on each call. No mutation, no storage access, no cached state.

BALANCE MODEL:
  outstanding = Σ receipt.amount − Σ payment.amount

  Payments credit the client's AGGREGATE balance; they are not allocated to
  specific receipts in storage. AllocatePayment exists for display only: it
  labels which receipts a running payment total fully covers, oldest first,
  with no partial settlement.

OVERDUE MODEL:
  A receipt is overdue when now is past created_at + debt_days. A client
  appears in the overdue report only while their aggregate outstanding is
  positive: later payments settle the oldest debts first in aggregate, so a
  settled client is excluded even if individual receipts are past due.

SEE ALSO:
  - report.go: text rendering and message chunking
*/
package debt

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/creditbook/ledger"
)

// =============================================================================
// BALANCES
// =============================================================================

// Outstanding returns total billed minus total paid. The result may be
// negative (overpayment); display code floors it at zero.
func Outstanding(billed, paid decimal.Decimal) decimal.Decimal {
	return billed.Sub(paid)
}

// DisplayOutstanding floors the outstanding balance at zero for rendering.
func DisplayOutstanding(outstanding decimal.Decimal) decimal.Decimal {
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// IsOverdue reports whether the receipt's due date has passed.
func IsOverdue(r ledger.Receipt, now time.Time) bool {
	return now.After(r.DueAt())
}

// =============================================================================
// PAYMENT ALLOCATION (display only)
// =============================================================================

// AllocatePayment marks receipts as fully covered by the given amount,
// oldest first. A receipt is covered only if it fits whole within the
// remaining amount; allocation stops at the first receipt that would exceed
// it. Returns the covered receipts in coverage order.
//
// Receipts may be passed in any order; ties in creation time are broken by
// id, so coverage order is deterministic.
func AllocatePayment(receipts []ledger.Receipt, amount decimal.Decimal) []ledger.Receipt {
	ordered := make([]ledger.Receipt, len(receipts))
	copy(ordered, receipts)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	var covered []ledger.Receipt
	remaining := amount
	for _, r := range ordered {
		if r.Amount.GreaterThan(remaining) {
			break
		}
		covered = append(covered, r)
		remaining = remaining.Sub(r.Amount)
	}
	return covered
}

// =============================================================================
// OVERDUE REPORT
// =============================================================================

// ClientTotals carries a client's billed and paid sums for report building.
type ClientTotals struct {
	Billed decimal.Decimal
	Paid   decimal.Decimal
}

// OverdueLine is one past-due receipt inside a client's report entry.
type OverdueLine struct {
	Amount      decimal.Decimal
	DueAt       time.Time
	DaysOverdue int
}

// ClientOverdue is one client's entry in the overdue report.
type ClientOverdue struct {
	Client      ledger.Client
	TotalBilled decimal.Decimal
	TotalPaid   decimal.Decimal
	Outstanding decimal.Decimal
	Receipts    []OverdueLine
}

// BuildOverdueReport groups past-due receipts by client and drops every
// client whose aggregate outstanding is not positive. Entries are ordered by
// client name; lines within an entry keep the oldest-first order of rows.
func BuildOverdueReport(rows []ledger.OverdueReceipt, totals map[int64]ClientTotals, now time.Time) []ClientOverdue {
	byClient := make(map[int64]*ClientOverdue)
	var order []int64

	for _, row := range rows {
		entry, ok := byClient[row.Client.ID]
		if !ok {
			t := totals[row.Client.ID]
			entry = &ClientOverdue{
				Client:      row.Client,
				TotalBilled: t.Billed,
				TotalPaid:   t.Paid,
				Outstanding: Outstanding(t.Billed, t.Paid),
			}
			byClient[row.Client.ID] = entry
			order = append(order, row.Client.ID)
		}

		dueAt := row.Receipt.DueAt()
		entry.Receipts = append(entry.Receipts, OverdueLine{
			Amount:      row.Receipt.Amount,
			DueAt:       dueAt,
			DaysOverdue: daysBetween(dueAt, now),
		})
	}

	var report []ClientOverdue
	for _, id := range order {
		entry := byClient[id]
		if !entry.Outstanding.IsPositive() {
			continue
		}
		report = append(report, *entry)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Client.Name < report[j].Client.Name })
	return report
}

func daysBetween(from, to time.Time) int {
	d := int(to.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
