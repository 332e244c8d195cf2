// Package pricing computes price breakdowns for a booking transaction.  All
// arithmetic is pure integer math over amounts in the smallest currency
// unit; the package performs no I/O and is safe to call on every selection
// change without drift.
package pricing

import (
    "github.com/cinego/booking/internal/model"
)

// Compute derives a PriceBreakdown from the chosen seats, the food lines and
// an optionally applied voucher.  Seats must already be resolved to catalog
// rows so their prices are authoritative; food quantities are resolved
// against the passed catalog and lines whose item is missing from the
// catalog are ignored.
//
// The percentage discount rounds down (integer division) and rounding
// happens exactly once, at the final discount value.  The discount is capped
// by MaxDiscount when set and the final total is clamped at zero so it can
// never go negative.
func Compute(seats []model.ShowtimeSeat, foods map[uint64]uint32, catalog map[uint64]model.FoodItem, voucher *model.Voucher) model.PriceBreakdown {
    var b model.PriceBreakdown
    for _, s := range seats {
        b.SeatSubtotal += s.Price
    }
    for id, qty := range foods {
        if qty == 0 {
            continue
        }
        item, ok := catalog[id]
        if !ok {
            continue
        }
        b.FoodSubtotal += item.UnitPrice * int64(qty)
    }
    b.Discount = Discount(b.SeatSubtotal+b.FoodSubtotal, voucher)
    b.FinalTotal = b.SeatSubtotal + b.FoodSubtotal - b.Discount
    if b.FinalTotal < 0 {
        b.FinalTotal = 0
    }
    return b
}

// Discount returns the discount a voucher yields on the given pre-discount
// subtotal.  A nil voucher yields zero.  PERCENT vouchers compute
// floor(subtotal*magnitude/100) capped by MaxDiscount when the cap is
// positive; FIXED vouchers yield their magnitude unchanged (the caller's
// non-negativity clamp bounds the effect).
func Discount(subtotal int64, voucher *model.Voucher) int64 {
    if voucher == nil || subtotal <= 0 {
        return 0
    }
    switch voucher.Mode {
    case model.VoucherPercent:
        d := subtotal * voucher.Magnitude / 100
        if voucher.MaxDiscount > 0 && d > voucher.MaxDiscount {
            d = voucher.MaxDiscount
        }
        if d < 0 {
            d = 0
        }
        return d
    case model.VoucherFixed:
        if voucher.Magnitude < 0 {
            return 0
        }
        return voucher.Magnitude
    default:
        return 0
    }
}
