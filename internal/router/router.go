package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // the Echo web framework handles routing
    "github.com/redis/go-redis/v9"

    "github.com/cinego/booking/internal/config"
    "github.com/cinego/booking/internal/handler"
    "github.com/cinego/booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterCatalog registers the read-only catalog endpoints.  They require
// a valid customer token and sit behind the Redis response cache because
// every booking screen load hits them.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, rdb *redis.Client) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("CUSTOMER"))
    g.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
    g.GET("/showtimes/:id/seats", h.GetShowtimeSeats)
    g.GET("/foods", h.ListFoods)
    g.GET("/vouchers", h.ListVouchers)
}

// RegisterBooking registers the booking pipeline: transaction lifecycle,
// selection edits, voucher application and payment submission.  All of
// these require a valid customer token.
func RegisterBooking(e *echo.Echo, h *handler.TransactionHandler, jwtSecret string) {
    g := e.Group("/v1/transactions")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("CUSTOMER"))

    g.POST("", h.Begin)
    g.GET("/:id", h.Get)
    g.POST("/:id/seats/:seatID", h.ToggleSeat)
    g.PUT("/:id/foods/:foodID", h.SetFood)
    g.POST("/:id/voucher", h.ApplyVoucher)
    g.DELETE("/:id/voucher", h.RemoveVoucher)
    g.POST("/:id/review", h.Review)
    g.POST("/:id/edit", h.Edit)
    g.POST("/:id/cancel", h.Cancel)
    g.POST("/:id/pay", h.Pay)
}

// RegisterPaymentReturn registers the gateway return endpoint.  It carries
// no JWT middleware: the customer arrives from the gateway's domain without
// our session.  The rate limiter shields it from replay floods instead.
func RegisterPaymentReturn(e *echo.Echo, h *handler.PaymentReturnHandler, rdb *redis.Client) {
    e.GET("/v1/payment/return", h.Return,
        middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
}
