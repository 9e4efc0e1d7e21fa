package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/creditbook/debt"
	"github.com/warp/creditbook/ledger"
)

// OverdueReportText gathers overdue receipts as of now, groups them per
// client, drops settled clients, and renders the report. Returns "" when
// there is nothing overdue. Shared by the menu action and the daily digest.
func OverdueReportText(ctx context.Context, st ledger.Store, now time.Time) (string, error) {
	rows, err := st.ListOverdueReceipts(ctx, now)
	if err != nil {
		return "", fmt.Errorf("list overdue receipts: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}

	totals := make(map[int64]debt.ClientTotals)
	for _, row := range rows {
		if _, ok := totals[row.Client.ID]; ok {
			continue
		}
		billed, err := st.SumReceipts(ctx, row.Client.ID)
		if err != nil {
			return "", fmt.Errorf("sum receipts for client %d: %w", row.Client.ID, err)
		}
		paid, err := st.SumPayments(ctx, row.Client.ID)
		if err != nil {
			return "", fmt.Errorf("sum payments for client %d: %w", row.Client.ID, err)
		}
		totals[row.Client.ID] = debt.ClientTotals{Billed: billed, Paid: paid}
	}

	return debt.RenderOverdueReport(debt.BuildOverdueReport(rows, totals, now)), nil
}
