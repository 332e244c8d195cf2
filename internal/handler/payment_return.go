package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/cinego/booking/internal/booking"
    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/transaction"
)

// PaymentReturnHandler receives the browser redirect back from the payment
// gateway.  The endpoint is unauthenticated: the customer arrives here from
// the gateway's domain without our session headers, identified only by the
// transaction reference in the query.
type PaymentReturnHandler struct {
    Resolver *booking.Resolver
}

// NewPaymentReturnHandler constructs a PaymentReturnHandler.
func NewPaymentReturnHandler(resolver *booking.Resolver) *PaymentReturnHandler {
    if resolver == nil {
        panic("nil resolver passed to NewPaymentReturnHandler")
    }
    return &PaymentReturnHandler{Resolver: resolver}
}

// Return handles GET /v1/payment/return.  Replayed redirects are safe; the
// response always reflects the recorded outcome.  The response shape is the
// result screen's contract: outcome, booking code and a human message.
func (h *PaymentReturnHandler) Return(c echo.Context) error {
    t, err := h.Resolver.Resolve(c.Request().Context(), c.QueryParams())
    if err != nil {
        switch {
        case errors.Is(err, payment.ErrMalformedCallback):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed callback"})
        case errors.Is(err, transaction.ErrTxnNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown transaction reference"})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
        }
    }
    return c.JSON(http.StatusOK, presentOutcome(t))
}

// presentOutcome shapes a resolved transaction for the result screen.
func presentOutcome(t *model.Transaction) echo.Map {
    out := echo.Map{
        "transaction_id": t.ID,
        "state":          t.State,
        "breakdown":      t.Breakdown,
    }
    if t.BookingCode != "" && t.State == model.StatePaid {
        out["booking_code"] = t.BookingCode
    }
    if t.FailureReason != "" {
        out["failure_reason"] = t.FailureReason
    }
    if t.Message != "" {
        out["message"] = t.Message
    }
    return out
}
