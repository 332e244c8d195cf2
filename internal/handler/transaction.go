package handler

import (
    "context" // for the shared transition helper's callback signature
    "errors"  // for errors.Is comparisons against service sentinels
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/cinego/booking/internal/booking"
    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/transaction"
    "github.com/cinego/booking/internal/voucher"
)

// TransactionHandler exposes the booking flow over HTTP: opening a
// transaction, editing the selection, applying vouchers, moving between
// selecting and reviewing, and finally paying.  JWT authentication runs in
// middleware before any of these; each handler still extracts the user ID
// and lets the service enforce ownership.
type TransactionHandler struct {
    Svc       *transaction.Service // selection and state machine operations
    Submitter *booking.Submitter   // turns a reviewed transaction into an order
}

// NewTransactionHandler constructs a TransactionHandler.  All dependencies
// must be non-nil.
func NewTransactionHandler(svc *transaction.Service, submitter *booking.Submitter) *TransactionHandler {
    if svc == nil || submitter == nil {
        panic("nil dependency passed to NewTransactionHandler")
    }
    return &TransactionHandler{Svc: svc, Submitter: submitter}
}

// Begin handles POST /v1/transactions.  The body must carry the showtime to
// book.  Returns 201 with the fresh SELECTING transaction.
func (h *TransactionHandler) Begin(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        ShowtimeID uint64 `json:"showtime_id"`
    }
    if err := c.Bind(&body); err != nil || body.ShowtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
    }
    t, err := h.Svc.Begin(c.Request().Context(), userID, body.ShowtimeID)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"transaction": t})
}

// Get handles GET /v1/transactions/:id and returns the current document.
func (h *TransactionHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    t, err := h.Svc.Get(c.Request().Context(), c.Param("id"), userID)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"transaction": t})
}

// ToggleSeat handles POST /v1/transactions/:id/seats/:seatID.  Selecting an
// already chosen seat removes it; an unavailable seat leaves the selection
// unchanged rather than erroring.
func (h *TransactionHandler) ToggleSeat(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    seatID, err := strconv.ParseUint(c.Param("seatID"), 10, 64)
    if err != nil || seatID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
    }
    t, err := h.Svc.ToggleSeat(c.Request().Context(), c.Param("id"), userID, seatID)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"transaction": t})
}

// SetFood handles PUT /v1/transactions/:id/foods/:foodID.  The body carries
// the desired quantity; 0 removes the line.
func (h *TransactionHandler) SetFood(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    foodID, err := strconv.ParseUint(c.Param("foodID"), 10, 64)
    if err != nil || foodID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid food id"})
    }
    var body struct {
        Quantity uint32 `json:"quantity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    t, err := h.Svc.SetFood(c.Request().Context(), c.Param("id"), userID, foodID, body.Quantity)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"transaction": t})
}

// ApplyVoucher handles POST /v1/transactions/:id/voucher.  Applying a new
// code replaces any previous one.
func (h *TransactionHandler) ApplyVoucher(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Code string `json:"code"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    t, err := h.Svc.ApplyVoucher(c.Request().Context(), c.Param("id"), userID, body.Code)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"transaction": t})
}

// RemoveVoucher handles DELETE /v1/transactions/:id/voucher.
func (h *TransactionHandler) RemoveVoucher(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    t, err := h.Svc.RemoveVoucher(c.Request().Context(), c.Param("id"), userID)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"transaction": t})
}

// Review handles POST /v1/transactions/:id/review, freezing the selection.
func (h *TransactionHandler) Review(c echo.Context) error {
    return h.move(c, h.Svc.Review)
}

// Edit handles POST /v1/transactions/:id/edit, reopening the selection.
func (h *TransactionHandler) Edit(c echo.Context) error {
    return h.move(c, h.Svc.Edit)
}

// Cancel handles POST /v1/transactions/:id/cancel.
func (h *TransactionHandler) Cancel(c echo.Context) error {
    return h.move(c, h.Svc.Cancel)
}

func (h *TransactionHandler) move(c echo.Context, op func(ctx context.Context, id string, userID uint64) (*model.Transaction, error)) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    t, err := op(c.Request().Context(), c.Param("id"), userID)
    if err != nil {
        return txnError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"transaction": t})
}

// Pay handles POST /v1/transactions/:id/pay.  On success the response
// carries the gateway redirect URL, or no URL when a voucher covered the
// full amount and the booking settled immediately.
func (h *TransactionHandler) Pay(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    out, err := h.Submitter.Pay(c.Request().Context(), c.Param("id"), userID)
    if err != nil {
        return txnError(c, err)
    }
    resp := echo.Map{"transaction": out.Txn}
    if out.RedirectURL != "" {
        resp["redirect_url"] = out.RedirectURL
    }
    return c.JSON(http.StatusOK, resp)
}

// txnError maps service sentinels onto HTTP responses.  Unknown errors
// collapse to 500 without leaking internals.
func txnError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, transaction.ErrTxnNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
    case errors.Is(err, transaction.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, transaction.ErrSelectionFrozen),
        errors.Is(err, transaction.ErrNotReviewable),
        errors.Is(err, transaction.ErrNoLongerCancellable),
        errors.Is(err, transaction.ErrApplyInFlight),
        errors.Is(err, booking.ErrNotPayable),
        errors.Is(err, booking.ErrSubmitInFlight),
        errors.Is(err, repository.ErrSeatUnavailable):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, booking.ErrEmptySelection),
        errors.Is(err, voucher.ErrEmptyCode),
        errors.Is(err, voucher.ErrNotApplicable),
        errors.Is(err, voucher.ErrNothingToDiscount):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, voucher.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "voucher not found"})
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
    }
}
