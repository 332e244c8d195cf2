package model

import "time"

// Voucher discount modes.  PERCENT applies Magnitude as a percentage of the
// pre-discount subtotal, optionally capped by MaxDiscount.  FIXED subtracts
// Magnitude directly.
const (
    VoucherPercent = "PERCENT"
    VoucherFixed   = "FIXED"
)

// Voucher is a discount code.  At most one voucher is applied per
// transaction; applying another replaces the previous one, it never stacks.
//
// Fields:
//  ID          – primary key identifier.
//  Code        – unique code entered by the customer.
//  Mode        – PERCENT or FIXED.
//  Magnitude   – percentage (0-100) for PERCENT, amount for FIXED.
//  MaxDiscount – cap on the computed discount; 0 means no cap.  Only
//                meaningful for PERCENT vouchers.
//  ValidFrom   – start of the validity window.
//  ValidUntil  – end of the validity window.
//  IsActive    – deactivated vouchers are rejected regardless of window.
type Voucher struct {
    ID          uint64    `json:"id"`
    Code        string    `json:"code"`
    Mode        string    `json:"mode"`
    Magnitude   int64     `json:"magnitude"`
    MaxDiscount int64     `json:"max_discount"`
    ValidFrom   time.Time `json:"valid_from"`
    ValidUntil  time.Time `json:"valid_until"`
    IsActive    bool      `json:"is_active"`
}

// Usable reports whether the voucher can be applied at the given instant.
func (v Voucher) Usable(now time.Time) bool {
    if !v.IsActive {
        return false
    }
    if !v.ValidFrom.IsZero() && now.Before(v.ValidFrom) {
        return false
    }
    if !v.ValidUntil.IsZero() && now.After(v.ValidUntil) {
        return false
    }
    return true
}
