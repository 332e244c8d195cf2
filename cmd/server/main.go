package main // Entry point package

import (
    "context" // Cancellation for background workers
    "log"     // Logging library
    "time"    // Durations derived from config

    "github.com/joho/godotenv"    // Loads .env files in development
    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/cinego/booking/internal/booking"
    "github.com/cinego/booking/internal/config"
    "github.com/cinego/booking/internal/database"
    "github.com/cinego/booking/internal/handler"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/queue"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/router"
    queue_publisher "github.com/cinego/booking/internal/service"
    "github.com/cinego/booking/internal/transaction"
    "github.com/cinego/booking/internal/voucher"
)

func main() {
    _ = godotenv.Load() // .env is optional; real deployments set the environment directly

    cfg := config.Load() // Load environment config

    // MySQL holds the durable rows: seat catalog, orders and vouchers.
    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis carries the transaction documents across the gateway redirect.
    // Unlike the response cache it is a hard dependency here.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Fatal("redis: connection failed; the transaction store requires redis")
    }

    // Repositories.
    seatCatalog := repository.NewSeatCatalogRepo(db)
    foods := repository.NewFoodRepo(db)
    vouchers := repository.NewVoucherRepo(db)
    orders := repository.NewOrderRepo(db)

    // Domain services.
    validator := voucher.NewValidator(vouchers)
    store := transaction.NewRedisStore(rdb, time.Duration(cfg.TxnTTLHours)*time.Hour)
    txnSvc := transaction.NewService(store, seatCatalog, foods, validator)

    gateway := payment.NewGateway(cfg.GatewayPayURL, cfg.GatewayReturnURL, cfg.GatewayTmnCode, cfg.GatewaySecret)
    verifier := payment.NewHTTPVerifier(cfg.VerifyEndpoint, cfg.VerifyToken, time.Duration(cfg.VerifyTimeoutSec)*time.Second)

    orderStore := booking.NewSQLOrderStore(db, orders, seatCatalog)
    submitter := booking.NewSubmitter(store, orderStore, seatCatalog, foods, validator, gateway, queue_publisher.PublishOrderPaid)
    resolver := booking.NewResolver(store, orderStore, gateway, verifier, queue_publisher.PublishOrderPaid)

    // Background workers: the order.paid consumer feeds logs/order.log and
    // the reconciliation worker settles orders whose outcome never arrived.
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go func() {
        if err := queue.StartOrderPaidConsumer(); err != nil {
            log.Printf("order-consumer: %v", err)
        }
    }()
    worker := booking.NewReconciliationWorker(orderStore, store, verifier, queue_publisher.PublishOrderPaid,
        time.Duration(cfg.ReconcileIntervalSec)*time.Second,
        time.Duration(cfg.ReconcileAfterSec)*time.Second)
    go worker.Run(ctx)

    // HTTP surface.
    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterCatalog(e, handler.NewCatalogHandler(seatCatalog, foods, vouchers), cfg.JWTSecret, rdb)
    router.RegisterBooking(e, handler.NewTransactionHandler(txnSvc, submitter), cfg.JWTSecret)
    router.RegisterPaymentReturn(e, handler.NewPaymentReturnHandler(resolver), rdb)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
