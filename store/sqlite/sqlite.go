/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Durable persistence for clients, receipts, and payments. Every mutation is
  committed before the call returns; the in-memory store in ledger/store is
  the test-only alternative.

KEY TABLES:
  clients:  one row per customer; UNIQUE index on phone enforces the
            duplicate rule at the store level, so two concurrent creates
            cannot both succeed
  receipts: photographed bills, FK to clients with ON DELETE CASCADE
  payments: aggregate repayments, FK to clients with ON DELETE CASCADE

AMOUNTS:
  Stored as TEXT decimal strings and summed in Go with decimal.Decimal.
  SQLite's SUM would coerce to float and lose cents.

TIMES:
  Stored as RFC 3339 UTC text. Overdue filtering happens in Go against the
  receipt's computed due date so there is exactly one overdue definition.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) and foreign keys on. A
  single-writer bot with occasional concurrent reads needs nothing more.

USAGE:
  st, err := sqlite.New("./data/creditbook.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production at scale, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: interface and error contract
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/creditbook/ledger"
)

// Ensure Store implements ledger.Store
var _ ledger.Store = (*Store)(nil)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_clients_phone ON clients(phone);

	CREATE TABLE IF NOT EXISTS receipts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		photo_ref TEXT NOT NULL,
		amount TEXT NOT NULL,
		debt_days INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		paid_at TEXT NOT NULL,
		FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_receipts_client ON receipts(client_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) CreateClient(ctx context.Context, name, phone string) (ledger.Client, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO clients (name, phone, created_at) VALUES (?, ?, ?)",
		name, phone, encodeTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			existing, findErr := s.FindClientByPhone(ctx, phone)
			if findErr != nil {
				return ledger.Client{}, fmt.Errorf("phone taken but owner not found: %w", findErr)
			}
			return ledger.Client{}, &ledger.DuplicateClientError{Existing: existing}
		}
		return ledger.Client{}, fmt.Errorf("failed to insert client: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Client{}, fmt.Errorf("failed to read client id: %w", err)
	}
	return ledger.Client{ID: id, Name: name, Phone: phone}, nil
}

func (s *Store) GetClient(ctx context.Context, id int64) (ledger.Client, error) {
	var c ledger.Client
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Client{}, ledger.ErrClientNotFound
	}
	if err != nil {
		return ledger.Client{}, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

func (s *Store) FindClientByPhone(ctx context.Context, phone string) (ledger.Client, error) {
	var c ledger.Client
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone FROM clients WHERE phone = ?", phone,
	).Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Client{}, ledger.ErrClientNotFound
	}
	if err != nil {
		return ledger.Client{}, fmt.Errorf("failed to find client by phone: %w", err)
	}
	return c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]ledger.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, phone FROM clients ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []ledger.Client
	for rows.Next() {
		var c ledger.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

func (s *Store) ListClientSummaries(ctx context.Context) ([]ledger.ClientSummary, error) {
	clients, err := s.ListClients(ctx)
	if err != nil {
		return nil, err
	}

	// Amounts are TEXT decimals, so totals are computed in Go rather than
	// with SQL SUM.
	billed := make(map[int64]decimal.Decimal)
	counts := make(map[int64]int)
	if err := s.forEachAmount(ctx, "SELECT client_id, amount FROM receipts", func(clientID int64, amount decimal.Decimal) {
		billed[clientID] = billed[clientID].Add(amount)
		counts[clientID]++
	}); err != nil {
		return nil, err
	}

	paid := make(map[int64]decimal.Decimal)
	if err := s.forEachAmount(ctx, "SELECT client_id, amount FROM payments", func(clientID int64, amount decimal.Decimal) {
		paid[clientID] = paid[clientID].Add(amount)
	}); err != nil {
		return nil, err
	}

	summaries := make([]ledger.ClientSummary, 0, len(clients))
	for _, c := range clients {
		summaries = append(summaries, ledger.ClientSummary{
			Client:       c,
			ReceiptCount: counts[c.ID],
			TotalBilled:  billed[c.ID],
			TotalPaid:    paid[c.ID],
		})
	}
	return summaries, nil
}

// =============================================================================
// RECEIPTS
// =============================================================================

func (s *Store) CreateReceipt(ctx context.Context, clientID int64, photoRef string, amount decimal.Decimal, debtDays int) (ledger.Receipt, error) {
	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO receipts (client_id, photo_ref, amount, debt_days, created_at) VALUES (?, ?, ?, ?, ?)",
		clientID, photoRef, amount.String(), debtDays, encodeTime(createdAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ledger.Receipt{}, ledger.ErrClientNotFound
		}
		return ledger.Receipt{}, fmt.Errorf("failed to insert receipt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("failed to read receipt id: %w", err)
	}
	return ledger.Receipt{
		ID:        id,
		ClientID:  clientID,
		PhotoRef:  photoRef,
		Amount:    amount,
		DebtDays:  debtDays,
		CreatedAt: createdAt,
	}, nil
}

func (s *Store) ListReceipts(ctx context.Context, clientID int64) ([]ledger.Receipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, photo_ref, amount, debt_days, created_at
		 FROM receipts WHERE client_id = ?
		 ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM receipts WHERE id = ?", receiptID)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ledger.ErrReceiptNotFound
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, clientID int64, amount decimal.Decimal) (ledger.Payment, error) {
	paidAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO payments (client_id, amount, paid_at) VALUES (?, ?, ?)",
		clientID, amount.String(), encodeTime(paidAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ledger.Payment{}, ledger.ErrClientNotFound
		}
		return ledger.Payment{}, fmt.Errorf("failed to insert payment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Payment{}, fmt.Errorf("failed to read payment id: %w", err)
	}
	return ledger.Payment{ID: id, ClientID: clientID, Amount: amount, PaidAt: paidAt}, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (s *Store) SumReceipts(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	return s.sumAmounts(ctx, "SELECT amount FROM receipts WHERE client_id = ?", clientID)
}

func (s *Store) SumPayments(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	return s.sumAmounts(ctx, "SELECT amount FROM payments WHERE client_id = ?", clientID)
}

func (s *Store) ListOverdueReceipts(ctx context.Context, asOf time.Time) ([]ledger.OverdueReceipt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.client_id, r.photo_ref, r.amount, r.debt_days, r.created_at,
		        c.id, c.name, c.phone
		 FROM receipts r
		 JOIN clients c ON c.id = r.client_id
		 ORDER BY c.name, r.created_at, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var overdue []ledger.OverdueReceipt
	for rows.Next() {
		var r ledger.Receipt
		var c ledger.Client
		var amountStr, createdStr string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.PhotoRef, &amountStr, &r.DebtDays, &createdStr,
			&c.ID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		if r.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("corrupt amount for receipt %d: %w", r.ID, err)
		}
		if r.CreatedAt, err = decodeTime(createdStr); err != nil {
			return nil, fmt.Errorf("corrupt created_at for receipt %d: %w", r.ID, err)
		}
		if asOf.After(r.DueAt()) {
			overdue = append(overdue, ledger.OverdueReceipt{Client: c, Receipt: r})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return overdue, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) sumAmounts(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q: %w", amountStr, err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to iterate amounts: %w", err)
	}
	return total, nil
}

func (s *Store) forEachAmount(ctx context.Context, query string, fn func(clientID int64, amount decimal.Decimal)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query amounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var clientID int64
		var amountStr string
		if err := rows.Scan(&clientID, &amountStr); err != nil {
			return fmt.Errorf("failed to scan amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("corrupt amount %q: %w", amountStr, err)
		}
		fn(clientID, amount)
	}
	return rows.Err()
}

func scanReceipts(rows *sql.Rows) ([]ledger.Receipt, error) {
	var receipts []ledger.Receipt
	for rows.Next() {
		var r ledger.Receipt
		var amountStr, createdStr string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.PhotoRef, &amountStr, &r.DebtDays, &createdStr); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for receipt %d: %w", r.ID, err)
		}
		createdAt, err := decodeTime(createdStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt created_at for receipt %d: %w", r.ID, err)
		}
		r.Amount = amount
		r.CreatedAt = createdAt
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return receipts, nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
