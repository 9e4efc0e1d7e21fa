/*
flows.go - Handlers for every flow step

PURPOSE:
  One method per state. Entry methods (start*) run in idle and either open a
  session or answer immediately; step methods validate the one input shape
  their state accepts, re-prompting on bad input and advancing on good input.
  The terminal step of each flow issues the flow's single mutating store
  call.
*/
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/warp/creditbook/debt"
	"github.com/warp/creditbook/ledger"
)

// =============================================================================
// ADD CLIENT: name -> phone -> create
// =============================================================================

func (e *Engine) startAddClient(chatID int64) []Reply {
	e.begin(chatID, StateAddingClientName)
	return []Reply{promptReply(msgEnterClientName)}
}

func (e *Engine) handleClientName(ev Event, sess *session) []Reply {
	if ev.isCallback() || ev.isPhoto() {
		return []Reply{textReply(msgEnterClientName)}
	}
	name, err := ledger.ParseName(ev.Text)
	if err != nil {
		return []Reply{textReply(msgNameTooShort)}
	}
	sess.Draft.ClientName = name
	sess.State = StateAddingClientPhone
	return []Reply{textReply(msgEnterClientPhone)}
}

func (e *Engine) handleClientPhone(ctx context.Context, ev Event, sess *session) []Reply {
	if ev.isCallback() || ev.isPhoto() {
		return []Reply{textReply(msgEnterClientPhone)}
	}
	phone, err := ledger.NormalizePhone(ev.Text)
	if err != nil {
		return []Reply{textReply(msgBadPhone)}
	}

	client, err := e.store.CreateClient(ctx, sess.Draft.ClientName, phone)
	if err != nil {
		var dup *ledger.DuplicateClientError
		if errors.As(err, &dup) {
			e.end(ev.ChatID)
			return []Reply{menuReply(duplicatePhoneMsg(dup.Existing.Name))}
		}
		return e.fail(ev.ChatID, sess, "create client", err)
	}

	slog.Info("client added", "chat_id", ev.ChatID, "session", sess.ID, "client_id", client.ID)
	e.end(ev.ChatID)
	return []Reply{menuReply(clientAddedMsg(client.Name))}
}

// =============================================================================
// ADD RECEIPT: select client -> photo -> amount -> days -> create
// =============================================================================

func (e *Engine) startAddReceipt(ctx context.Context, chatID int64) []Reply {
	summaries, err := e.store.ListClientSummaries(ctx)
	if err != nil {
		return e.fail(chatID, nil, "list clients", err)
	}
	if len(summaries) == 0 {
		return []Reply{menuReply(msgNoClients)}
	}
	e.begin(chatID, StateSelectingClientForReceipt)
	return []Reply{keyboardReply(msgChooseClient, clientKeyboard(summaries, IntentSelectClientForReceipt, false))}
}

func (e *Engine) handleSelectClientForReceipt(ctx context.Context, ev Event, sess *session) []Reply {
	if !ev.isCallback() {
		return []Reply{textReply(msgChooseClientBtn)}
	}
	intent, err := ParseIntent(ev.Callback)
	if err != nil || intent.Kind != IntentSelectClientForReceipt {
		return e.fail(ev.ChatID, sess, "parse client selection", errOrBad(err))
	}

	if _, err := e.store.GetClient(ctx, intent.ID); err != nil {
		return e.fail(ev.ChatID, sess, "load selected client", err)
	}
	sess.Draft.ClientID = intent.ID
	sess.State = StateUploadingReceipt
	return []Reply{textReply(msgSendReceiptPhoto)}
}

func (e *Engine) handleReceiptPhoto(ev Event, sess *session) []Reply {
	if !ev.isPhoto() {
		return []Reply{textReply(msgSendReceiptPhoto)}
	}
	sess.Draft.PhotoRef = ev.PhotoRef
	sess.State = StateAddingReceiptAmount
	return []Reply{textReply(msgEnterAmount)}
}

func (e *Engine) handleReceiptAmount(ev Event, sess *session) []Reply {
	if ev.isCallback() || ev.isPhoto() {
		return []Reply{textReply(msgEnterAmount)}
	}
	amount, err := ledger.ParseAmount(ev.Text)
	if err != nil {
		var ve *ledger.ValidationError
		if errors.As(err, &ve) && ve.Reason == "must be positive" {
			return []Reply{textReply(msgAmountNotPos)}
		}
		return []Reply{textReply(msgBadAmount)}
	}
	sess.Draft.Amount = amount
	sess.State = StateAddingDebtDays
	return []Reply{textReply(msgEnterDebtDays)}
}

func (e *Engine) handleDebtDays(ctx context.Context, ev Event, sess *session) []Reply {
	if ev.isCallback() || ev.isPhoto() {
		return []Reply{textReply(msgEnterDebtDays)}
	}
	days, err := ledger.ParseDays(ev.Text)
	if err != nil {
		var ve *ledger.ValidationError
		if errors.As(err, &ve) && ve.Reason == "must be positive" {
			return []Reply{textReply(msgDaysNotPos)}
		}
		return []Reply{textReply(msgBadDays)}
	}

	receipt, err := e.store.CreateReceipt(ctx, sess.Draft.ClientID, sess.Draft.PhotoRef, sess.Draft.Amount, days)
	if err != nil {
		return e.fail(ev.ChatID, sess, "create receipt", err)
	}
	client, err := e.store.GetClient(ctx, sess.Draft.ClientID)
	if err != nil {
		// The receipt is saved; a vanished client only degrades the message.
		client = ledger.Client{ID: sess.Draft.ClientID}
	}

	slog.Info("receipt added",
		"chat_id", ev.ChatID, "session", sess.ID,
		"client_id", receipt.ClientID, "receipt_id", receipt.ID, "amount", receipt.Amount.String())
	e.end(ev.ChatID)
	return []Reply{menuReply(receiptAddedMsg(client.Name, receipt))}
}

// =============================================================================
// VIEW RECEIPTS: select client -> emit summary + one photo per receipt
// =============================================================================

func (e *Engine) startViewReceipts(ctx context.Context, chatID int64) []Reply {
	summaries, err := e.clientsWithReceipts(ctx)
	if err != nil {
		return e.fail(chatID, nil, "list clients", err)
	}
	if len(summaries) == 0 {
		return []Reply{menuReply(msgNoReceiptsToView)}
	}
	e.begin(chatID, StateSelectingClientForView)
	return []Reply{keyboardReply(msgChooseClientView, clientKeyboard(summaries, IntentSelectClientForView, true))}
}

func (e *Engine) handleSelectClientForView(ctx context.Context, ev Event, sess *session) []Reply {
	if !ev.isCallback() {
		return []Reply{textReply(msgChooseClientBtn)}
	}
	intent, err := ParseIntent(ev.Callback)
	if err != nil || intent.Kind != IntentSelectClientForView {
		return e.fail(ev.ChatID, sess, "parse client selection", errOrBad(err))
	}

	client, err := e.store.GetClient(ctx, intent.ID)
	if err != nil {
		return e.fail(ev.ChatID, sess, "load selected client", err)
	}
	totals, err := e.clientTotals(ctx, client.ID)
	if err != nil {
		return e.fail(ev.ChatID, sess, "load totals", err)
	}
	receipts, err := e.store.ListReceipts(ctx, client.ID)
	if err != nil {
		return e.fail(ev.ChatID, sess, "list receipts", err)
	}

	now := e.now()
	replies := []Reply{textReply(clientSummaryMsg(client, totals))}
	for _, r := range receipts {
		replies = append(replies, Reply{
			PhotoRef: r.PhotoRef,
			Text:     receiptCaption(r, debt.IsOverdue(r, now)),
		})
	}
	replies = append(replies, menuReply(msgBackToMenu))

	e.end(ev.ChatID)
	return replies
}

// =============================================================================
// OVERDUE DEBTS: immediate report, no sub-state
// =============================================================================

func (e *Engine) showOverdueDebts(ctx context.Context, chatID int64) []Reply {
	text, err := OverdueReportText(ctx, e.store, e.now())
	if err != nil {
		return e.fail(chatID, nil, "build overdue report", err)
	}
	if text == "" {
		return []Reply{menuReply(msgNoOverdue)}
	}

	var replies []Reply
	for _, chunk := range debt.ChunkMessage(text, debt.MaxMessageLen) {
		replies = append(replies, textReply(chunk))
	}
	return append(replies, menuReply(msgBackToMenu))
}

// =============================================================================
// DELETE RECEIPT: select client -> select receipt -> delete
// =============================================================================

func (e *Engine) startDeleteReceipt(ctx context.Context, chatID int64) []Reply {
	summaries, err := e.clientsWithReceipts(ctx)
	if err != nil {
		return e.fail(chatID, nil, "list clients", err)
	}
	if len(summaries) == 0 {
		return []Reply{menuReply(msgNoReceiptsToDelete)}
	}
	e.begin(chatID, StateSelectingClientForDelete)
	return []Reply{keyboardReply(msgChooseClientDelete, clientKeyboard(summaries, IntentSelectClientForDelete, true))}
}

func (e *Engine) handleSelectClientForDelete(ctx context.Context, ev Event, sess *session) []Reply {
	if !ev.isCallback() {
		return []Reply{textReply(msgChooseClientBtn)}
	}
	intent, err := ParseIntent(ev.Callback)
	if err != nil || intent.Kind != IntentSelectClientForDelete {
		return e.fail(ev.ChatID, sess, "parse client selection", errOrBad(err))
	}

	client, err := e.store.GetClient(ctx, intent.ID)
	if err != nil {
		return e.fail(ev.ChatID, sess, "load selected client", err)
	}
	receipts, err := e.store.ListReceipts(ctx, client.ID)
	if err != nil {
		return e.fail(ev.ChatID, sess, "list receipts", err)
	}
	if len(receipts) == 0 {
		e.end(ev.ChatID)
		return []Reply{menuReply(msgNoReceiptsToDelete)}
	}

	sess.Draft.ClientID = client.ID
	sess.State = StateSelectingReceiptForDelete

	replies := []Reply{textReply(msgClientReceipts)}
	for _, r := range receipts {
		replies = append(replies, Reply{
			PhotoRef: r.PhotoRef,
			Text: fmt.Sprintf("👤 Клиент: %s\n💰 Сумма: %s\n📅 Дата: %s",
				client.Name, debt.FormatAmount(r.Amount), debt.FormatDate(r.CreatedAt)),
			Keyboard: &Keyboard{
				Inline: true,
				Rows: [][]Button{{{
					Label: msgDeleteReceiptBtn,
					Data:  Intent{Kind: IntentDeleteReceipt, ID: r.ID}.Tag(),
				}}},
			},
		})
	}
	return replies
}

func (e *Engine) handleSelectReceiptForDelete(ctx context.Context, ev Event, sess *session) []Reply {
	if !ev.isCallback() {
		return []Reply{textReply(msgChooseReceiptBtn)}
	}
	intent, err := ParseIntent(ev.Callback)
	if err != nil || intent.Kind != IntentDeleteReceipt {
		return e.fail(ev.ChatID, sess, "parse receipt selection", errOrBad(err))
	}

	if err := e.store.DeleteReceipt(ctx, intent.ID); err != nil {
		// Includes the receipt vanishing between listing and confirmation.
		return e.fail(ev.ChatID, sess, "delete receipt", err)
	}

	slog.Info("receipt deleted", "chat_id", ev.ChatID, "session", sess.ID, "receipt_id", intent.ID)
	e.end(ev.ChatID)
	return []Reply{menuReply(msgReceiptDeleted)}
}

// =============================================================================
// PAY DEBT: select client -> amount -> create payment -> report balance
// =============================================================================

func (e *Engine) startPayDebt(ctx context.Context, chatID int64) []Reply {
	summaries, err := e.store.ListClientSummaries(ctx)
	if err != nil {
		return e.fail(chatID, nil, "list clients", err)
	}
	var debtors []ledger.ClientSummary
	for _, s := range summaries {
		if debt.Outstanding(s.TotalBilled, s.TotalPaid).IsPositive() {
			debtors = append(debtors, s)
		}
	}
	if len(debtors) == 0 {
		return []Reply{menuReply(msgNoDebtsToPay)}
	}
	e.begin(chatID, StateSelectingClientForPayment)
	return []Reply{keyboardReply(msgChooseClientPay, clientKeyboard(debtors, IntentSelectClientForPayment, true))}
}

func (e *Engine) handleSelectClientForPayment(ctx context.Context, ev Event, sess *session) []Reply {
	if !ev.isCallback() {
		return []Reply{textReply(msgChooseClientBtn)}
	}
	intent, err := ParseIntent(ev.Callback)
	if err != nil || intent.Kind != IntentSelectClientForPayment {
		return e.fail(ev.ChatID, sess, "parse client selection", errOrBad(err))
	}

	if _, err := e.store.GetClient(ctx, intent.ID); err != nil {
		return e.fail(ev.ChatID, sess, "load selected client", err)
	}
	sess.Draft.ClientID = intent.ID
	sess.State = StateAddingPaymentAmount
	return []Reply{textReply(msgEnterPayment)}
}

func (e *Engine) handlePaymentAmount(ctx context.Context, ev Event, sess *session) []Reply {
	if ev.isCallback() || ev.isPhoto() {
		return []Reply{textReply(msgEnterPayment)}
	}
	amount, err := ledger.ParseAmount(ev.Text)
	if err != nil {
		var ve *ledger.ValidationError
		if errors.As(err, &ve) && ve.Reason == "must be positive" {
			return []Reply{textReply(msgAmountNotPos)}
		}
		return []Reply{textReply(msgBadAmount)}
	}

	payment, err := e.store.CreatePayment(ctx, sess.Draft.ClientID, amount)
	if err != nil {
		return e.fail(ev.ChatID, sess, "create payment", err)
	}

	totals, err := e.clientTotals(ctx, payment.ClientID)
	if err == nil {
		var receipts []ledger.Receipt
		if receipts, err = e.store.ListReceipts(ctx, payment.ClientID); err == nil {
			return e.confirmPayment(ev, sess, payment, totals, receipts)
		}
	}

	// The payment is committed; a failed balance read must not look like a
	// failed payment, or the user will pay again. Confirm without detail.
	slog.Error("failed to load balance after payment",
		"chat_id", ev.ChatID, "session", sess.ID,
		"client_id", payment.ClientID, "payment_id", payment.ID, "error", err)
	e.end(ev.ChatID)
	return []Reply{menuReply(paymentRecordedMsg(payment))}
}

func (e *Engine) confirmPayment(ev Event, sess *session, payment ledger.Payment, totals debt.ClientTotals, receipts []ledger.Receipt) []Reply {
	// Display-only FIFO allocation: total paid to date against all receipts,
	// oldest first. Nothing is persisted per receipt.
	covered := debt.AllocatePayment(receipts, totals.Paid)

	outstanding := debt.Outstanding(totals.Billed, totals.Paid)
	var remaining string
	if outstanding.IsPositive() {
		remaining = debt.FormatAmount(outstanding)
	}

	slog.Info("payment recorded",
		"chat_id", ev.ChatID, "session", sess.ID,
		"client_id", payment.ClientID, "payment_id", payment.ID, "amount", payment.Amount.String())
	e.end(ev.ChatID)
	return []Reply{menuReply(paymentAcceptedMsg(payment, len(covered), len(receipts), remaining))}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func (e *Engine) clientsWithReceipts(ctx context.Context) ([]ledger.ClientSummary, error) {
	summaries, err := e.store.ListClientSummaries(ctx)
	if err != nil {
		return nil, err
	}
	var withReceipts []ledger.ClientSummary
	for _, s := range summaries {
		if s.ReceiptCount > 0 {
			withReceipts = append(withReceipts, s)
		}
	}
	return withReceipts, nil
}

func (e *Engine) clientTotals(ctx context.Context, clientID int64) (debt.ClientTotals, error) {
	billed, err := e.store.SumReceipts(ctx, clientID)
	if err != nil {
		return debt.ClientTotals{}, err
	}
	paid, err := e.store.SumPayments(ctx, clientID)
	if err != nil {
		return debt.ClientTotals{}, err
	}
	return debt.ClientTotals{Billed: billed, Paid: paid}, nil
}

func errOrBad(err error) error {
	if err != nil {
		return err
	}
	return ErrBadCallback
}
