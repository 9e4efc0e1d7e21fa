/*
engine.go - Per-chat state machine driver

PURPOSE:
  The Engine owns all conversation state: one session per chat, created when
  a flow starts, discarded on completion, cancel, or failure. Handle is the
  single entry point; it never returns an error — failures become replies and
  the chat always ends up in a well-defined state.

CONCURRENCY:
  The transport dispatcher guarantees at most one in-flight event per chat,
  so a session is only ever touched by one goroutine at a time. The sessions
  map itself is guarded for cross-chat access. Independent chats share
  nothing but the Store.

SCRATCH STATE:
  Values collected mid-flow (client name, selected client, photo, amount)
  live in the session draft. The single mutating store call of a flow happens
  only at the terminal step, once every draft field is present.
*/
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/creditbook/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store ledger.Store
	now   func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

// session is the per-chat scratch space for an in-flight flow.
type session struct {
	ID        string // uuid, correlates log lines of one flow
	State     State
	StartedAt time.Time
	Draft     draft
}

// draft buffers interim values between steps.
type draft struct {
	ClientName string
	ClientID   int64
	PhotoRef   string
	Amount     decimal.Decimal
}

func New(store ledger.Store) *Engine {
	return NewWithClock(store, time.Now)
}

// NewWithClock creates an engine with an explicit clock, for tests.
func NewWithClock(store ledger.Store, now func() time.Time) *Engine {
	return &Engine{
		store:    store,
		now:      now,
		sessions: make(map[int64]*session),
	}
}

// State returns the chat's current state (idle when no flow is in flight).
func (e *Engine) State(chatID int64) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[chatID]; ok {
		return s.State
	}
	return StateIdle
}

func (e *Engine) begin(chatID int64, st State) *session {
	s := &session{
		ID:        uuid.NewString(),
		State:     st,
		StartedAt: e.now(),
	}
	e.mu.Lock()
	e.sessions[chatID] = s
	e.mu.Unlock()
	return s
}

func (e *Engine) session(chatID int64) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[chatID]
}

func (e *Engine) end(chatID int64) {
	e.mu.Lock()
	delete(e.sessions, chatID)
	e.mu.Unlock()
}

// =============================================================================
// EVENT HANDLING
// =============================================================================

// Handle processes one inbound event and returns the replies to send.
func (e *Engine) Handle(ctx context.Context, ev Event) []Reply {
	if !ev.isCallback() {
		switch strings.TrimSpace(ev.Text) {
		case "/start":
			e.end(ev.ChatID)
			return []Reply{{Text: greeting(ev.FromName), Keyboard: MainMenu()}}
		case "/cancel":
			e.end(ev.ChatID)
			return []Reply{menuReply(msgCanceled)}
		}
	}

	sess := e.session(ev.ChatID)
	if sess == nil {
		return e.handleIdle(ctx, ev)
	}

	switch sess.State {
	case StateAddingClientName:
		return e.handleClientName(ev, sess)
	case StateAddingClientPhone:
		return e.handleClientPhone(ctx, ev, sess)
	case StateSelectingClientForReceipt:
		return e.handleSelectClientForReceipt(ctx, ev, sess)
	case StateUploadingReceipt:
		return e.handleReceiptPhoto(ev, sess)
	case StateAddingReceiptAmount:
		return e.handleReceiptAmount(ev, sess)
	case StateAddingDebtDays:
		return e.handleDebtDays(ctx, ev, sess)
	case StateSelectingClientForView:
		return e.handleSelectClientForView(ctx, ev, sess)
	case StateSelectingClientForDelete:
		return e.handleSelectClientForDelete(ctx, ev, sess)
	case StateSelectingReceiptForDelete:
		return e.handleSelectReceiptForDelete(ctx, ev, sess)
	case StateSelectingClientForPayment:
		return e.handleSelectClientForPayment(ctx, ev, sess)
	case StateAddingPaymentAmount:
		return e.handlePaymentAmount(ctx, ev, sess)
	default:
		// Unknown state: reset rather than strand the chat.
		slog.Error("unknown conversation state", "chat_id", ev.ChatID, "state", int(sess.State))
		e.end(ev.ChatID)
		return e.handleIdle(ctx, ev)
	}
}

// handleIdle dispatches main-menu actions.
func (e *Engine) handleIdle(ctx context.Context, ev Event) []Reply {
	if ev.isCallback() {
		// A button press with no flow in flight: the entity list it came
		// from is stale.
		return []Reply{menuReply(msgGenericError)}
	}

	switch strings.TrimSpace(ev.Text) {
	case MenuAddClient:
		return e.startAddClient(ev.ChatID)
	case MenuAddReceipt:
		return e.startAddReceipt(ctx, ev.ChatID)
	case MenuViewReceipts:
		return e.startViewReceipts(ctx, ev.ChatID)
	case MenuOverdueDebts:
		return e.showOverdueDebts(ctx, ev.ChatID)
	case MenuDeleteReceipts:
		return e.startDeleteReceipt(ctx, ev.ChatID)
	case MenuPayDebts:
		return e.startPayDebt(ctx, ev.ChatID)
	default:
		return []Reply{menuReply(msgMenuHint)}
	}
}

// fail logs the error, ends the flow, and returns the generic failure reply.
// Used for storage errors and vanished entities at terminal transitions.
func (e *Engine) fail(chatID int64, sess *session, op string, err error) []Reply {
	attrs := []any{"chat_id", chatID, "op", op, "error", err}
	if sess != nil {
		attrs = append(attrs, "session", sess.ID, "state", sess.State.String())
	}
	slog.Error("flow failed", attrs...)
	e.end(chatID)
	return []Reply{menuReply(msgGenericError)}
}
