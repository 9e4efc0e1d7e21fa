/*
store.go - Persistence interface for clients, receipts, and payments

PURPOSE:
  Defines the contract between the conversation engine and the database.
  Different implementations can use SQLite or in-memory storage.

MUTATION CONTRACT:
  Every flow performs at most ONE mutating call at its terminal step, so no
  cross-call transaction is needed. Each mutation is durable before the call
  returns (the in-memory implementation is for tests and dev only).

UNIQUENESS:
  CreateClient enforces phone uniqueness at the store level. Two concurrent
  creates with the same phone must not both succeed, regardless of what the
  engine checked beforehand.

ERRORS:
  CreateClient            -> *DuplicateClientError on a taken phone
  GetClient/FindClient... -> ErrClientNotFound
  CreateReceipt/Payment   -> ErrClientNotFound for a dangling client id
  DeleteReceipt           -> ErrReceiptNotFound when already gone
  anything else           -> wrapped backend error, treated as storage failure

IMPLEMENTATIONS:
  - store/sqlite:  production SQLite store
  - ledger/store:  in-memory store for tests

SEE ALSO:
  - errors.go: error taxonomy
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store handles persistence of clients, receipts, and payments.
type Store interface {
	// CreateClient persists a new client. The phone must already be
	// normalized (see NormalizePhone). Returns *DuplicateClientError if the
	// phone is taken.
	CreateClient(ctx context.Context, name, phone string) (Client, error)

	// GetClient returns a client by id, or ErrClientNotFound.
	GetClient(ctx context.Context, id int64) (Client, error)

	// FindClientByPhone returns the client owning the normalized phone,
	// or ErrClientNotFound.
	FindClientByPhone(ctx context.Context, phone string) (Client, error)

	// ListClients returns all clients ordered by name.
	ListClients(ctx context.Context) ([]Client, error)

	// ListClientSummaries returns all clients with receipt counts and
	// billed/paid totals, ordered by name.
	ListClientSummaries(ctx context.Context) ([]ClientSummary, error)

	// CreateReceipt persists a new receipt with CreatedAt set at insertion.
	CreateReceipt(ctx context.Context, clientID int64, photoRef string, amount decimal.Decimal, debtDays int) (Receipt, error)

	// ListReceipts returns a client's receipts, newest first.
	ListReceipts(ctx context.Context, clientID int64) ([]Receipt, error)

	// DeleteReceipt removes a single receipt, or returns ErrReceiptNotFound.
	DeleteReceipt(ctx context.Context, receiptID int64) error

	// CreatePayment persists a payment against the client's aggregate balance.
	CreatePayment(ctx context.Context, clientID int64, amount decimal.Decimal) (Payment, error)

	// SumReceipts returns the total billed to the client.
	SumReceipts(ctx context.Context, clientID int64) (decimal.Decimal, error)

	// SumPayments returns the total paid by the client.
	SumPayments(ctx context.Context, clientID int64) (decimal.Decimal, error)

	// ListOverdueReceipts returns every receipt whose due date lies before
	// asOf, paired with its client, ordered by client name then creation time.
	// Settled clients are NOT filtered here; that is the calculator's job.
	ListOverdueReceipts(ctx context.Context, asOf time.Time) ([]OverdueReceipt, error)

	// Close releases any resources held by the store.
	Close() error
}
