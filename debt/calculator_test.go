package debt

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/creditbook/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func receiptAt(id int64, amount string, createdAt time.Time, debtDays int) ledger.Receipt {
	return ledger.Receipt{
		ID:        id,
		ClientID:  1,
		Amount:    dec(amount),
		DebtDays:  debtDays,
		CreatedAt: createdAt,
	}
}

var base = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

// =============================================================================
// OUTSTANDING / OVERDUE
// =============================================================================

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name   string
		billed string
		paid   string
		want   string
	}{
		{"unpaid", "300", "0", "300"},
		{"partial", "300", "120.50", "179.5"},
		{"settled", "300", "300", "0"},
		{"overpaid", "300", "350", "-50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Outstanding(dec(tt.billed), dec(tt.paid))
			if !got.Equal(dec(tt.want)) {
				t.Errorf("Outstanding(%s, %s) = %s, want %s", tt.billed, tt.paid, got, tt.want)
			}
		})
	}
}

func TestDisplayOutstanding_FloorsAtZero(t *testing.T) {
	if got := DisplayOutstanding(dec("-50")); !got.IsZero() {
		t.Errorf("DisplayOutstanding(-50) = %s, want 0", got)
	}
	if got := DisplayOutstanding(dec("17.25")); !got.Equal(dec("17.25")) {
		t.Errorf("DisplayOutstanding(17.25) = %s, want 17.25", got)
	}
}

func TestIsOverdue(t *testing.T) {
	r := receiptAt(1, "100", base, 5)
	due := r.DueAt()

	if want := base.AddDate(0, 0, 5); !due.Equal(want) {
		t.Fatalf("DueAt = %v, want %v", due, want)
	}
	if IsOverdue(r, due) {
		t.Error("receipt must not be overdue exactly at the due instant")
	}
	if !IsOverdue(r, due.Add(time.Second)) {
		t.Error("receipt must be overdue one second past due")
	}
}

// =============================================================================
// PAYMENT ALLOCATION
// =============================================================================

func TestAllocatePayment(t *testing.T) {
	tests := []struct {
		name     string
		receipts []ledger.Receipt
		amount   string
		wantIDs  []int64
	}{
		{
			name: "covers only the first receipt when second would exceed",
			receipts: []ledger.Receipt{
				receiptAt(1, "100", base, 5),
				receiptAt(2, "50", base.AddDate(0, 0, 1), 5),
			},
			amount:  "120",
			wantIDs: []int64{1},
		},
		{
			name: "stops at first over-budget receipt even if later ones fit",
			receipts: []ledger.Receipt{
				receiptAt(1, "100", base, 5),
				receiptAt(2, "200", base.AddDate(0, 0, 1), 5),
				receiptAt(3, "50", base.AddDate(0, 0, 2), 5),
			},
			amount:  "250",
			wantIDs: []int64{1},
		},
		{
			name: "exact fit covers everything",
			receipts: []ledger.Receipt{
				receiptAt(1, "100", base, 5),
				receiptAt(2, "200", base.AddDate(0, 0, 1), 5),
			},
			amount:  "300",
			wantIDs: []int64{1, 2},
		},
		{
			name: "input order does not matter, creation order does",
			receipts: []ledger.Receipt{
				receiptAt(2, "200", base.AddDate(0, 0, 1), 5),
				receiptAt(1, "100", base, 5),
			},
			amount:  "150",
			wantIDs: []int64{1},
		},
		{
			name:     "no receipts",
			receipts: nil,
			amount:   "100",
			wantIDs:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			covered := AllocatePayment(tt.receipts, dec(tt.amount))
			var gotIDs []int64
			for _, r := range covered {
				gotIDs = append(gotIDs, r.ID)
			}
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("covered ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Fatalf("covered ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
		})
	}
}

// =============================================================================
// OVERDUE REPORT
// =============================================================================

func TestBuildOverdueReport_ExcludesSettledClients(t *testing.T) {
	now := base.AddDate(0, 0, 30)
	ivan := ledger.Client{ID: 1, Name: "Иван", Phone: "+7111"}
	olga := ledger.Client{ID: 2, Name: "Ольга", Phone: "+7222"}

	rows := []ledger.OverdueReceipt{
		{Client: ivan, Receipt: receiptAt(10, "100", base, 5)},
		{Client: olga, Receipt: receiptAt(20, "200", base, 5)},
	}
	totals := map[int64]ClientTotals{
		1: {Billed: dec("100"), Paid: dec("40")},
		2: {Billed: dec("200"), Paid: dec("200")}, // settled in aggregate
	}

	report := BuildOverdueReport(rows, totals, now)

	if len(report) != 1 {
		t.Fatalf("report has %d entries, want 1", len(report))
	}
	entry := report[0]
	if entry.Client.ID != ivan.ID {
		t.Fatalf("report entry for client %d, want %d", entry.Client.ID, ivan.ID)
	}
	if !entry.Outstanding.Equal(dec("60")) {
		t.Errorf("outstanding = %s, want 60", entry.Outstanding)
	}
	if len(entry.Receipts) != 1 {
		t.Fatalf("entry has %d receipt lines, want 1", len(entry.Receipts))
	}
	// due 2025-03-06, now 2025-03-31 -> 25 days overdue
	if got := entry.Receipts[0].DaysOverdue; got != 25 {
		t.Errorf("days overdue = %d, want 25", got)
	}
}

func TestBuildOverdueReport_GroupsByClientAndSortsByName(t *testing.T) {
	now := base.AddDate(0, 0, 30)
	boris := ledger.Client{ID: 3, Name: "Борис", Phone: "+7333"}
	anna := ledger.Client{ID: 4, Name: "Анна", Phone: "+7444"}

	rows := []ledger.OverdueReceipt{
		{Client: boris, Receipt: receiptAt(1, "100", base, 1)},
		{Client: boris, Receipt: receiptAt(2, "50", base.AddDate(0, 0, 1), 1)},
		{Client: anna, Receipt: receiptAt(3, "75", base, 1)},
	}
	totals := map[int64]ClientTotals{
		3: {Billed: dec("150"), Paid: dec("0")},
		4: {Billed: dec("75"), Paid: dec("0")},
	}

	report := BuildOverdueReport(rows, totals, now)

	if len(report) != 2 {
		t.Fatalf("report has %d entries, want 2", len(report))
	}
	if report[0].Client.Name != "Анна" || report[1].Client.Name != "Борис" {
		t.Errorf("entries not sorted by name: %s, %s", report[0].Client.Name, report[1].Client.Name)
	}
	if len(report[1].Receipts) != 2 {
		t.Errorf("Борис has %d lines, want 2", len(report[1].Receipts))
	}
}
