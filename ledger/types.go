/*
Package ledger defines the domain records for the debt book and the
persistence contract over them.

PURPOSE:
  Three record kinds — Client, Receipt, Payment — plus the Store interface
  that every backend implements. All totals (billed, paid, outstanding) are
  derived, never stored; see the debt package for the calculations.

KEY CONCEPTS IN THIS FILE (types.go):
  - Client:  a tracked debtor (name + normalized phone, phone is unique)
  - Receipt: one billed amount with a photo reference and a repayment
             deadline expressed as days from creation
  - Payment: a credit against the client's aggregate balance (payments are
             NOT tied to individual receipts)

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal, never float64
  2. Immutability: receipts and payments are never updated after creation;
     a receipt can only be deleted whole
  3. Ownership: every receipt and payment belongs to exactly one client

SEE ALSO:
  - errors.go: error taxonomy (validation, duplicate, not-found)
  - store.go:  persistence contract
  - debt:      derived balances and overdue logic
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLIENT - Root entity
// =============================================================================

// Client is a tracked debtor. Phone is stored normalized (digits with an
// optional leading +) and is unique across all clients.
type Client struct {
	ID    int64
	Name  string
	Phone string
}

// =============================================================================
// RECEIPT - One billed amount with a deadline
// =============================================================================

// Receipt is a single billed amount. PhotoRef is an opaque token for the
// attached photo; the system never inspects its contents.
type Receipt struct {
	ID        int64
	ClientID  int64
	PhotoRef  string
	Amount    decimal.Decimal
	DebtDays  int
	CreatedAt time.Time
}

// DueAt returns the repayment deadline: creation time plus DebtDays days.
func (r Receipt) DueAt() time.Time {
	return r.CreatedAt.AddDate(0, 0, r.DebtDays)
}

// =============================================================================
// PAYMENT - Credit against the client's aggregate balance
// =============================================================================

type Payment struct {
	ID       int64
	ClientID int64
	Amount   decimal.Decimal
	PaidAt   time.Time
}

// =============================================================================
// READ-SIDE AGGREGATES
// =============================================================================

// ClientSummary is a client together with precomputed totals, used to build
// selection keyboards ("Ivan (+7123...) — 3 чеков, долг: 500.00 руб.").
type ClientSummary struct {
	Client
	ReceiptCount int
	TotalBilled  decimal.Decimal
	TotalPaid    decimal.Decimal
}

// OverdueReceipt pairs a past-due receipt with its owning client.
type OverdueReceipt struct {
	Client  Client
	Receipt Receipt
}
