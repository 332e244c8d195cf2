package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/repository"
)

// CatalogHandler serves the read-only reference data the booking screen
// needs: the seat map of a showtime, the concession menu and the vouchers a
// customer can try.  These endpoints sit behind the response cache
// middleware; they are hit on every page load.
type CatalogHandler struct {
    Seats    *repository.SeatCatalogRepo
    Foods    *repository.FoodRepo
    Vouchers *repository.VoucherRepo
}

// NewCatalogHandler constructs a CatalogHandler.  All dependencies must be
// non-nil.
func NewCatalogHandler(seats *repository.SeatCatalogRepo, foods *repository.FoodRepo, vouchers *repository.VoucherRepo) *CatalogHandler {
    if seats == nil || foods == nil || vouchers == nil {
        panic("nil repository passed to NewCatalogHandler")
    }
    return &CatalogHandler{Seats: seats, Foods: foods, Vouchers: vouchers}
}

// GetShowtimeSeats handles GET /v1/showtimes/:id/seats.  It returns every
// seat of the showtime with its label, class, price and availability.
func (h *CatalogHandler) GetShowtimeSeats(c echo.Context) error {
    showtimeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || showtimeID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
    }
    seats, err := h.Seats.ListByShowtime(c.Request().Context(), showtimeID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
    }
    items := make([]echo.Map, 0, len(seats))
    for _, s := range seats {
        items = append(items, echo.Map{
            "seat_id": s.SeatID,
            "label":   s.Label(),
            "class":   s.Class,
            "status":  s.Status,
            "price":   s.Price,
        })
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListFoods handles GET /v1/foods and returns the active concession menu.
func (h *CatalogHandler) ListFoods(c echo.Context) error {
    items, err := h.Foods.ListActive(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load foods"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListVouchers handles GET /v1/vouchers and returns the vouchers usable
// right now, so the booking screen can offer them before the customer types
// a code.
func (h *CatalogHandler) ListVouchers(c echo.Context) error {
    vouchers, err := h.Vouchers.ListUsable(c.Request().Context(), time.Now().UTC())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load vouchers"})
    }
    items := make([]echo.Map, 0, len(vouchers))
    for _, v := range vouchers {
        items = append(items, presentVoucher(v))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// presentVoucher shapes a voucher for API responses, hiding the is_active
// flag which is always true for listed vouchers.
func presentVoucher(v model.Voucher) echo.Map {
    return echo.Map{
        "code":         v.Code,
        "mode":         v.Mode,
        "magnitude":    v.Magnitude,
        "max_discount": v.MaxDiscount,
        "valid_until":  v.ValidUntil.Format(time.RFC3339),
    }
}
