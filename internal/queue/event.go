// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPaidEvent is published when the verification service confirms a
// payment and the order settles PAID. It carries enough for downstream
// consumers to notify the customer or feed analytics without querying the
// primary database.
type OrderPaidEvent struct {
    OrderID     uint64 `json:"order_id"`
    UserID      uint64 `json:"user_id"`
    ShowtimeID  uint64 `json:"showtime_id"`
    BookingCode string `json:"booking_code"`
    TxnRef      string `json:"txn_ref"`
    TotalAmount int64  `json:"total_amount"`
    PaidAt      string `json:"paid_at"`
}
