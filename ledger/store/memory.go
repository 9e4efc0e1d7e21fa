// Package store provides an in-memory ledger.Store implementation
// (for testing/dev). All data is lost on restart; production runs on
// the SQLite store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/creditbook/ledger"
)

// Ensure Memory implements ledger.Store
var _ ledger.Store = (*Memory)(nil)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	clients  map[int64]ledger.Client
	receipts map[int64]ledger.Receipt
	payments map[int64]ledger.Payment
	nextID   int64

	// Now is the clock used for CreatedAt/PaidAt; overridable in tests.
	Now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		clients:  make(map[int64]ledger.Client),
		receipts: make(map[int64]ledger.Receipt),
		payments: make(map[int64]ledger.Payment),
		Now:      time.Now,
	}
}

func (m *Memory) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) CreateClient(_ context.Context, name, phone string) (ledger.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Uniqueness check and insert under one lock, so concurrent creates with
	// the same phone cannot both succeed.
	for _, c := range m.clients {
		if c.Phone == phone {
			return ledger.Client{}, &ledger.DuplicateClientError{Existing: c}
		}
	}

	client := ledger.Client{ID: m.nextIDLocked(), Name: name, Phone: phone}
	m.clients[client.ID] = client
	return client, nil
}

func (m *Memory) GetClient(_ context.Context, id int64) (ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[id]
	if !ok {
		return ledger.Client{}, ledger.ErrClientNotFound
	}
	return client, nil
}

func (m *Memory) FindClientByPhone(_ context.Context, phone string) (ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		if c.Phone == phone {
			return c, nil
		}
	}
	return ledger.Client{}, ledger.ErrClientNotFound
}

func (m *Memory) ListClients(_ context.Context) ([]ledger.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients := make([]ledger.Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

func (m *Memory) ListClientSummaries(_ context.Context) ([]ledger.ClientSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]ledger.ClientSummary, 0, len(m.clients))
	for _, c := range m.clients {
		s := ledger.ClientSummary{
			Client:      c,
			TotalBilled: decimal.Zero,
			TotalPaid:   decimal.Zero,
		}
		for _, r := range m.receipts {
			if r.ClientID == c.ID {
				s.ReceiptCount++
				s.TotalBilled = s.TotalBilled.Add(r.Amount)
			}
		}
		for _, p := range m.payments {
			if p.ClientID == c.ID {
				s.TotalPaid = s.TotalPaid.Add(p.Amount)
			}
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (m *Memory) CreateReceipt(_ context.Context, clientID int64, photoRef string, amount decimal.Decimal, debtDays int) (ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[clientID]; !ok {
		return ledger.Receipt{}, ledger.ErrClientNotFound
	}

	receipt := ledger.Receipt{
		ID:        m.nextIDLocked(),
		ClientID:  clientID,
		PhotoRef:  photoRef,
		Amount:    amount,
		DebtDays:  debtDays,
		CreatedAt: m.Now(),
	}
	m.receipts[receipt.ID] = receipt
	return receipt, nil
}

func (m *Memory) ListReceipts(_ context.Context, clientID int64) ([]ledger.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var receipts []ledger.Receipt
	for _, r := range m.receipts {
		if r.ClientID == clientID {
			receipts = append(receipts, r)
		}
	}
	// Newest first; ties broken by id so ordering is stable.
	sort.Slice(receipts, func(i, j int) bool {
		if !receipts[i].CreatedAt.Equal(receipts[j].CreatedAt) {
			return receipts[i].CreatedAt.After(receipts[j].CreatedAt)
		}
		return receipts[i].ID > receipts[j].ID
	})
	return receipts, nil
}

func (m *Memory) DeleteReceipt(_ context.Context, receiptID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.receipts[receiptID]; !ok {
		return ledger.ErrReceiptNotFound
	}
	delete(m.receipts, receiptID)
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (m *Memory) CreatePayment(_ context.Context, clientID int64, amount decimal.Decimal) (ledger.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[clientID]; !ok {
		return ledger.Payment{}, ledger.ErrClientNotFound
	}

	payment := ledger.Payment{
		ID:       m.nextIDLocked(),
		ClientID: clientID,
		Amount:   amount,
		PaidAt:   m.Now(),
	}
	m.payments[payment.ID] = payment
	return payment, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (m *Memory) SumReceipts(_ context.Context, clientID int64) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, r := range m.receipts {
		if r.ClientID == clientID {
			total = total.Add(r.Amount)
		}
	}
	return total, nil
}

func (m *Memory) SumPayments(_ context.Context, clientID int64) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, p := range m.payments {
		if p.ClientID == clientID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (m *Memory) ListOverdueReceipts(_ context.Context, asOf time.Time) ([]ledger.OverdueReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []ledger.OverdueReceipt
	for _, r := range m.receipts {
		if asOf.After(r.DueAt()) {
			rows = append(rows, ledger.OverdueReceipt{Client: m.clients[r.ClientID], Receipt: r})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Client.Name != rows[j].Client.Name {
			return rows[i].Client.Name < rows[j].Client.Name
		}
		return rows[i].Receipt.CreatedAt.Before(rows[j].Receipt.CreatedAt)
	})
	return rows, nil
}

func (m *Memory) Close() error { return nil }
