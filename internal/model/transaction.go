package model

import "time"

// TxnState is the state of an in-progress booking transaction.  The machine
// must survive full page navigations (the redirect to the payment gateway
// and back), so the whole Transaction document is persisted as data rather
// than held in a live call stack.
type TxnState string

const (
    StateSelecting  TxnState = "SELECTING"  // seat/food edits freely mutate the selection
    StateReviewing  TxnState = "REVIEWING"  // selection frozen for review; may go back
    StateSubmitting TxnState = "SUBMITTING" // order creation in flight; pay disabled
    StateRedirected TxnState = "REDIRECTED" // control left for the external gateway
    StateVerifying  TxnState = "VERIFYING"  // server-side verification in flight
    StatePaid       TxnState = "PAID"       // terminal
    StateFailed     TxnState = "FAILED"     // terminal
    StateCancelled  TxnState = "CANCELLED"  // terminal; only reachable before SUBMITTING
)

// IsTerminal reports whether no further transition may leave the state.
func (s TxnState) IsTerminal() bool {
    return s == StatePaid || s == StateFailed || s == StateCancelled
}

// String implements fmt.Stringer for logging.
func (s TxnState) String() string { return string(s) }

// AllowedTransitions defines the valid state transitions.  The key is the
// current state, the value the set of permitted target states.  Terminal
// states map to an empty slice.
var AllowedTransitions = map[TxnState][]TxnState{
    StateSelecting:  {StateReviewing, StateCancelled},
    StateReviewing:  {StateSelecting, StateSubmitting, StateCancelled},
    StateSubmitting: {StatePaid, StateRedirected, StateFailed},
    StateRedirected: {StateVerifying, StateFailed},
    StateVerifying:  {StatePaid, StateFailed},
    StatePaid:       {},
    StateFailed:     {},
    StateCancelled:  {},
}

// CanTransition checks whether a transition from one state to another is
// allowed.
func CanTransition(from, to TxnState) bool {
    for _, s := range AllowedTransitions[from] {
        if s == to {
            return true
        }
    }
    return false
}

// Failure reasons recorded on a FAILED transaction.  They let support tell
// "the gateway said no" apart from "we never got a clean answer".
const (
    ReasonDeclined          = "DECLINED"
    ReasonMalformedCallback = "MALFORMED_CALLBACK"
    ReasonVerifyUnavailable = "VERIFY_UNAVAILABLE"
    ReasonSubmitFailed      = "SUBMIT_FAILED"
)

// PriceBreakdown is derived from the current selection and voucher.  It is
// recomputed whenever any input changes and is never cached independently of
// its inputs.  All values are non-negative integers in the smallest
// currency unit.
type PriceBreakdown struct {
    SeatSubtotal int64 `json:"seat_subtotal"`
    FoodSubtotal int64 `json:"food_subtotal"`
    Discount     int64 `json:"discount"`
    FinalTotal   int64 `json:"final_total"`
}

// Transaction is the durable document backing one booking attempt.  It owns
// the set of selection lines exclusively; the underlying seat and food
// catalog entities are only referenced by ID.
//
// Fields:
//  ID            – opaque transaction identifier (UUID).
//  UserID        – authenticated customer driving the flow.
//  ShowtimeID    – showtime being booked.
//  State         – current TxnState.
//  SeatIDs       – chosen seat IDs in selection order.
//  Foods         – food id → quantity; a quantity of 0 is never stored.
//  VoucherCode   – applied voucher code, empty when none.
//  Breakdown     – totals derived from the selection and voucher.
//  OrderID       – created order, set once SUBMITTING succeeds.
//  BookingCode   – public booking code, set on success.
//  TxnRef        – gateway transaction reference, set when redirected.
//  FailureReason – one of the Reason* constants when State is FAILED.
//  Message       – human readable outcome detail surfaced to the customer.
type Transaction struct {
    ID            string            `json:"id"`
    UserID        uint64            `json:"user_id"`
    ShowtimeID    uint64            `json:"showtime_id"`
    State         TxnState          `json:"state"`
    SeatIDs       []uint64          `json:"seat_ids"`
    Foods         map[uint64]uint32 `json:"foods"`
    VoucherCode   string            `json:"voucher_code,omitempty"`
    Breakdown     PriceBreakdown    `json:"breakdown"`
    OrderID       uint64            `json:"order_id,omitempty"`
    BookingCode   string            `json:"booking_code,omitempty"`
    TxnRef        string            `json:"txn_ref,omitempty"`
    FailureReason string            `json:"failure_reason,omitempty"`
    Message       string            `json:"message,omitempty"`
    CreatedAt     time.Time         `json:"created_at"`
    UpdatedAt     time.Time         `json:"updated_at"`
}

// HasSeat reports whether the seat is part of the current selection.
func (t *Transaction) HasSeat(seatID uint64) bool {
    for _, id := range t.SeatIDs {
        if id == seatID {
            return true
        }
    }
    return false
}
