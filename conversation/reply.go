/*
reply.go - Engine input/output types, keyboards, and user-facing copy

PURPOSE:
  Event is what the transport feeds into the engine; Reply is what the engine
  hands back. Keyboards are described abstractly (rows of buttons, inline or
  reply-style) so the transport decides how to render them on the wire.
  Every user-visible string lives in this file.
*/
package conversation

import (
	"fmt"

	"github.com/warp/creditbook/debt"
	"github.com/warp/creditbook/ledger"
)

// =============================================================================
// EVENT - Inbound chat input
// =============================================================================

// Event is one inbound chat event. Exactly one input shape is set:
// Callback for a button press, PhotoRef for a photo message, otherwise Text.
type Event struct {
	ChatID   int64
	FromName string // sender's display name, used in the /start greeting
	Text     string
	PhotoRef string
	Callback string
}

func (e Event) isCallback() bool { return e.Callback != "" }
func (e Event) isPhoto() bool    { return e.PhotoRef != "" }

// =============================================================================
// REPLY - Outbound message
// =============================================================================

// Reply is one outbound message. When PhotoRef is set the transport sends a
// photo with Text as the caption; otherwise a plain text message.
type Reply struct {
	Text     string
	PhotoRef string
	Keyboard *Keyboard
}

// Keyboard describes the buttons attached to a reply.
type Keyboard struct {
	Inline bool       // inline (callback) buttons vs a reply keyboard
	Remove bool       // remove the current reply keyboard instead
	Rows   [][]Button
}

// Button is one keyboard button. Data is set only for inline buttons.
type Button struct {
	Label string
	Data  string
}

// =============================================================================
// MENU
// =============================================================================

const (
	MenuAddClient      = "👤 Добавить клиента"
	MenuAddReceipt     = "📄 Добавить чек"
	MenuViewReceipts   = "👁 Просмотр чеков"
	MenuOverdueDebts   = "⏰ Просроченные долги"
	MenuDeleteReceipts = "🗑 Удаление чеков"
	MenuPayDebts       = "💰 Оплата долгов"
)

// MainMenu returns the six-action reply keyboard shown in idle state.
func MainMenu() *Keyboard {
	return &Keyboard{
		Rows: [][]Button{
			{{Label: MenuAddClient}, {Label: MenuAddReceipt}},
			{{Label: MenuViewReceipts}, {Label: MenuOverdueDebts}},
			{{Label: MenuDeleteReceipts}, {Label: MenuPayDebts}},
		},
	}
}

func removeKeyboard() *Keyboard { return &Keyboard{Remove: true} }

// =============================================================================
// USER-FACING COPY
// =============================================================================

const (
	msgMenuHint     = "Выберите действие из меню ниже:"
	msgCanceled     = "Операция отменена."
	msgGenericError = "Произошла ошибка. Попробуйте позже."
	msgBackToMenu   = "Вернуться в главное меню:"

	msgEnterClientName  = "Введите имя клиента:"
	msgNameTooShort     = "Имя должно содержать от 2 до 100 символов. Попробуйте еще раз:"
	msgEnterClientPhone = "Введите номер телефона клиента:"
	msgBadPhone         = "Некорректный номер телефона. Попробуйте еще раз:"

	msgNoClients        = "❌ Сначала добавьте хотя бы одного клиента!"
	msgChooseClient     = "Выберите клиента:"
	msgChooseClientBtn  = "Выберите клиента кнопкой ниже:"
	msgSendReceiptPhoto = "📸 Отправьте фото чека:"
	msgEnterAmount      = "💰 Введите сумму чека (например: 1000.50):"
	msgBadAmount        = "❌ Некорректная сумма. Введите число (например: 1000.50):"
	msgAmountNotPos     = "❌ Сумма должна быть больше нуля. Попробуйте еще раз:"
	msgEnterDebtDays    = "📅 Введите количество дней для оплаты долга:"
	msgBadDays          = "❌ Некорректное количество дней. Введите целое число:"
	msgDaysNotPos       = "❌ Количество дней должно быть больше нуля. Попробуйте еще раз:"

	msgNoReceiptsToView   = "📭 Нет чеков для просмотра."
	msgChooseClientView   = "👁 Выберите клиента для просмотра чеков:"
	msgNoReceiptsToDelete = "📭 Нет чеков для удаления."
	msgChooseClientDelete = "🗑 Выберите клиента для удаления чека:"
	msgChooseReceiptBtn   = "Выберите чек кнопкой под фото:"
	msgReceiptDeleted     = "✅ Чек успешно удален!"
	msgDeleteReceiptBtn   = "❌ Удалить чек"
	msgClientReceipts     = "📄 Чеки клиента:"

	msgNoDebtsToPay     = "✅ Нет долгов для оплаты."
	msgChooseClientPay  = "💰 Выберите клиента для оплаты:"
	msgEnterPayment     = "💵 Введите сумму оплаты (например: 1000.50):"
	msgNoOverdue        = "✅ Нет просроченных долгов."
	msgDebtFullySettled = "✅ Долг полностью погашен!"
)

func greeting(firstName string) string {
	if firstName == "" {
		firstName = "друг"
	}
	return fmt.Sprintf("👋 Здравствуйте, %s!\n\nЭто бот для управления долгами клиентов.\nВыберите действие из меню ниже:", firstName)
}

func clientAddedMsg(name string) string {
	return fmt.Sprintf("✅ Клиент %s успешно добавлен!", name)
}

func duplicatePhoneMsg(existingName string) string {
	return fmt.Sprintf("Этот номер телефона уже зарегистрирован на клиента %s.", existingName)
}

func receiptAddedMsg(clientName string, r ledger.Receipt) string {
	return fmt.Sprintf(
		"✅ Чек успешно добавлен!\n\n👤 Клиент: %s\n💰 Сумма: %s\n📅 Срок оплаты: %s",
		clientName, debt.FormatAmount(r.Amount), debt.FormatDate(r.DueAt()),
	)
}

func receiptCaption(r ledger.Receipt, overdue bool) string {
	status := "Активен"
	if overdue {
		status = "Просрочен"
	}
	return fmt.Sprintf(
		"💰 Сумма: %s\n📅 Дата добавления: %s\n⏳ Срок оплаты: %s\n❗️ Статус: %s",
		debt.FormatAmount(r.Amount), debt.FormatDate(r.CreatedAt), debt.FormatDate(r.DueAt()), status,
	)
}

func clientSummaryMsg(c ledger.Client, totals debt.ClientTotals) string {
	return fmt.Sprintf(
		"👤 Клиент: %s\n📱 Телефон: %s\n💰 Общая сумма долга: %s\n💵 Оплачено: %s\n📊 Остаток: %s\n\n%s",
		c.Name, c.Phone,
		debt.FormatAmount(totals.Billed),
		debt.FormatAmount(totals.Paid),
		debt.FormatAmount(debt.DisplayOutstanding(debt.Outstanding(totals.Billed, totals.Paid))),
		msgClientReceipts,
	)
}

func paymentRecordedMsg(p ledger.Payment) string {
	return fmt.Sprintf("✅ Оплата на %s принята!", debt.FormatAmount(p.Amount))
}

func paymentAcceptedMsg(p ledger.Payment, covered, total int, outstanding string) string {
	text := paymentRecordedMsg(p)
	if total > 0 {
		text += fmt.Sprintf("\n📄 Закрыто чеков: %d из %d", covered, total)
	}
	if outstanding == "" {
		text += "\n" + msgDebtFullySettled
	} else {
		text += fmt.Sprintf("\n📊 Остаток долга: %s", outstanding)
	}
	return text
}

// clientButtonLabel renders a selection button: "Имя (телефон) - 3 чеков"
// with the outstanding debt appended when positive.
func clientButtonLabel(s ledger.ClientSummary, withCount bool) string {
	label := fmt.Sprintf("%s (%s)", s.Name, s.Phone)
	if withCount {
		label += fmt.Sprintf(" - %d чеков", s.ReceiptCount)
		if out := debt.Outstanding(s.TotalBilled, s.TotalPaid); out.IsPositive() {
			label += fmt.Sprintf(", долг: %s", debt.FormatAmount(out))
		}
	}
	return label
}

// clientKeyboard builds a one-button-per-row inline keyboard of clients.
func clientKeyboard(summaries []ledger.ClientSummary, kind IntentKind, withCount bool) *Keyboard {
	kb := &Keyboard{Inline: true}
	for _, s := range summaries {
		kb.Rows = append(kb.Rows, []Button{{
			Label: clientButtonLabel(s, withCount),
			Data:  Intent{Kind: kind, ID: s.ID}.Tag(),
		}})
	}
	return kb
}

func textReply(text string) Reply   { return Reply{Text: text} }
func menuReply(text string) Reply   { return Reply{Text: text, Keyboard: MainMenu()} }
func promptReply(text string) Reply { return Reply{Text: text, Keyboard: removeKeyboard()} }

func keyboardReply(text string, kb *Keyboard) Reply { return Reply{Text: text, Keyboard: kb} }
