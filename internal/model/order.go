package model

import "time"

// Order statuses.  An order is created PENDING and transitions exactly once
// to PAID, FAILED or CANCELLED; it never returns to PENDING.
const (
    OrderPending   = "PENDING"
    OrderPaid      = "PAID"
    OrderFailed    = "FAILED"
    OrderCancelled = "CANCELLED"
)

// Order records a finalized submission: the seats and concessions bought for
// a showtime, the voucher (if any) and the amount sent to the payment
// gateway.  Exactly one order is created per user-initiated pay action.
//
// Fields:
//  ID          – primary key identifier.
//  UserID      – customer who placed the order.
//  ShowtimeID  – showtime the seats belong to.
//  BookingCode – short public code printed on the ticket.
//  TxnRef      – reference sent to the payment gateway; unique per order.
//  VoucherCode – applied voucher code, if any.
//  TotalAmount – final charged amount in the smallest currency unit.
//  Status      – PENDING, PAID, FAILED or CANCELLED.
//  PaidAt      – set when the gateway confirms payment.
type Order struct {
    ID          uint64     `json:"id"`
    UserID      uint64     `json:"user_id"`
    ShowtimeID  uint64     `json:"showtime_id"`
    BookingCode string     `json:"booking_code"`
    TxnRef      string     `json:"txn_ref"`
    VoucherCode *string    `json:"voucher_code,omitempty"`
    TotalAmount int64      `json:"total_amount"`
    Status      string     `json:"status"`
    PaidAt      *time.Time `json:"paid_at,omitempty"`
    CreatedAt   time.Time  `json:"created_at"`
    UpdatedAt   time.Time  `json:"updated_at"`
}

// OrderSeat links an order to one purchased seat with the price at time of
// purchase.
type OrderSeat struct {
    ID      uint64 `json:"id"`
    OrderID uint64 `json:"order_id"`
    SeatID  uint64 `json:"seat_id"`
    Price   int64  `json:"price"`
}

// OrderFood links an order to one concession line.
type OrderFood struct {
    ID        uint64 `json:"id"`
    OrderID   uint64 `json:"order_id"`
    FoodID    uint64 `json:"food_id"`
    Quantity  uint32 `json:"quantity"`
    UnitPrice int64  `json:"unit_price"`
}
