package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/creditbook/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateAndGetClient(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateClient(ctx, "Иван Петров", "+79001234567")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := st.GetClient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	byPhone, err := st.FindClientByPhone(ctx, "+79001234567")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byPhone.ID)
}

func TestGetClient_NotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetClient(context.Background(), 999)
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)

	_, err = st.FindClientByPhone(context.Background(), "+70000000000")
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)
}

func TestCreateClient_DuplicatePhone(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)

	_, err = st.CreateClient(ctx, "Другой Иван", "+79001234567")
	require.Error(t, err)
	assert.True(t, ledger.IsDuplicate(err))

	var dup *ledger.DuplicateClientError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.ID, dup.Existing.ID)
	assert.Equal(t, "Иван", dup.Existing.Name)

	clients, err := st.ListClients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestListClients_SortedByName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateClient(ctx, "Ольга", "+1")
	require.NoError(t, err)
	_, err = st.CreateClient(ctx, "Анна", "+2")
	require.NoError(t, err)

	clients, err := st.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Анна", clients[0].Name)
	assert.Equal(t, "Ольга", clients[1].Name)
}

func TestReceiptLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client, err := st.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)

	r1, err := st.CreateReceipt(ctx, client.ID, "photo-1", decimal.RequireFromString("1000.50"), 5)
	require.NoError(t, err)
	r2, err := st.CreateReceipt(ctx, client.ID, "photo-2", decimal.RequireFromString("200"), 10)
	require.NoError(t, err)

	receipts, err := st.ListReceipts(ctx, client.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	// Newest first; same-timestamp inserts fall back to id order.
	assert.Equal(t, r2.ID, receipts[0].ID)
	assert.True(t, receipts[1].Amount.Equal(decimal.RequireFromString("1000.50")))
	assert.Equal(t, 5, receipts[1].DebtDays)

	require.NoError(t, st.DeleteReceipt(ctx, r1.ID))

	receipts, err = st.ListReceipts(ctx, client.ID)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)

	err = st.DeleteReceipt(ctx, r1.ID)
	assert.ErrorIs(t, err, ledger.ErrReceiptNotFound)
}

func TestCreateReceipt_UnknownClient(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateReceipt(context.Background(), 42, "photo", decimal.NewFromInt(100), 7)
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)
}

func TestCreatePayment_UnknownClient(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreatePayment(context.Background(), 42, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ledger.ErrClientNotFound)
}

func TestSums_DecimalPrecision(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client, err := st.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)

	// 0.1 + 0.2 must stay exactly 0.3.
	for i := 0; i < 2; i++ {
		amount := decimal.RequireFromString("0.1")
		if i == 1 {
			amount = decimal.RequireFromString("0.2")
		}
		_, err = st.CreateReceipt(ctx, client.ID, "photo", amount, 5)
		require.NoError(t, err)
	}

	billed, err := st.SumReceipts(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, billed.Equal(decimal.RequireFromString("0.3")), "got %s", billed)

	_, err = st.CreatePayment(ctx, client.ID, decimal.RequireFromString("0.15"))
	require.NoError(t, err)

	paid, err := st.SumPayments(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, paid.Equal(decimal.RequireFromString("0.15")))
}

func TestSums_EmptyClient(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client, err := st.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)

	billed, err := st.SumReceipts(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, billed.IsZero())

	paid, err := st.SumPayments(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
}

func TestListClientSummaries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ivan, err := st.CreateClient(ctx, "Иван", "+1")
	require.NoError(t, err)
	olga, err := st.CreateClient(ctx, "Ольга", "+2")
	require.NoError(t, err)

	_, err = st.CreateReceipt(ctx, ivan.ID, "p1", decimal.NewFromInt(300), 5)
	require.NoError(t, err)
	_, err = st.CreateReceipt(ctx, ivan.ID, "p2", decimal.NewFromInt(200), 5)
	require.NoError(t, err)
	_, err = st.CreatePayment(ctx, ivan.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	summaries, err := st.ListClientSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, ivan.ID, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].ReceiptCount)
	assert.True(t, summaries[0].TotalBilled.Equal(decimal.NewFromInt(500)))
	assert.True(t, summaries[0].TotalPaid.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, olga.ID, summaries[1].ID)
	assert.Equal(t, 0, summaries[1].ReceiptCount)
	assert.True(t, summaries[1].TotalBilled.IsZero())
}

func TestListOverdueReceipts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client, err := st.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)

	short, err := st.CreateReceipt(ctx, client.ID, "p1", decimal.NewFromInt(100), 3)
	require.NoError(t, err)
	_, err = st.CreateReceipt(ctx, client.ID, "p2", decimal.NewFromInt(200), 30)
	require.NoError(t, err)

	// Nothing overdue right after creation.
	overdue, err := st.ListOverdueReceipts(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, overdue)

	// Ten days out, only the 3-day receipt has passed its due date.
	overdue, err = st.ListOverdueReceipts(ctx, time.Now().AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, short.ID, overdue[0].Receipt.ID)
	assert.Equal(t, "Иван", overdue[0].Client.Name)
}

func TestDeleteClientCascadesReceipts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	client, err := st.CreateClient(ctx, "Иван", "+79001234567")
	require.NoError(t, err)
	_, err = st.CreateReceipt(ctx, client.ID, "p1", decimal.NewFromInt(100), 5)
	require.NoError(t, err)

	_, err = st.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", client.ID)
	require.NoError(t, err)

	receipts, err := st.ListReceipts(ctx, client.ID)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}
