/*
Package conversation implements the per-chat state machine that sequences
multi-step data entry for the debt book.

PURPOSE:
  Every inbound chat event (text, photo, or button press) enters the Engine,
  which looks up the chat's current state, validates the input, drives the
  ledger store and debt calculator, and returns the replies to send.

FLOWS (each a path from idle back to idle):
  add client:     idle -> client name -> client phone -> idle
  add receipt:    idle -> select client -> photo -> amount -> days -> idle
  view receipts:  idle -> select client -> idle
  delete receipt: idle -> select client -> select receipt -> idle
  pay debt:       idle -> select client -> payment amount -> idle
  overdue report: immediate, no sub-state

  /cancel returns any state to idle and discards the draft.

TRANSITION CONTRACT:
  Each state accepts exactly one input shape. Input of the wrong shape
  re-prompts in the same state. A malformed or mismatched callback tag ends
  the flow with a generic error. Validation failures never terminate a flow;
  storage failures always do.

SEE ALSO:
  - engine.go: event handling and flow logic
  - intent.go: callback tag parsing
  - reply.go:  outbound message/keyboard types and all user-facing copy
*/
package conversation

// State is the chat's position inside a flow.
type State int

const (
	StateIdle State = iota

	// add client
	StateAddingClientName
	StateAddingClientPhone

	// add receipt
	StateSelectingClientForReceipt
	StateUploadingReceipt
	StateAddingReceiptAmount
	StateAddingDebtDays

	// view receipts
	StateSelectingClientForView

	// delete receipt
	StateSelectingClientForDelete
	StateSelectingReceiptForDelete

	// pay debt
	StateSelectingClientForPayment
	StateAddingPaymentAmount
)

var stateNames = map[State]string{
	StateIdle:                      "idle",
	StateAddingClientName:          "adding_client_name",
	StateAddingClientPhone:         "adding_client_phone",
	StateSelectingClientForReceipt: "selecting_client_for_receipt",
	StateUploadingReceipt:          "uploading_receipt",
	StateAddingReceiptAmount:       "adding_receipt_amount",
	StateAddingDebtDays:            "adding_debt_days",
	StateSelectingClientForView:    "selecting_client_for_view",
	StateSelectingClientForDelete:  "selecting_client_for_delete",
	StateSelectingReceiptForDelete: "selecting_receipt_for_delete",
	StateSelectingClientForPayment: "selecting_client_for_payment",
	StateAddingPaymentAmount:       "adding_payment_amount",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}
