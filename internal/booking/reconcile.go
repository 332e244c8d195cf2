package booking

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/queue"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/transaction"
)

// ReconciliationWorker periodically settles PENDING orders whose outcome
// never reached us: the customer closed the tab at the gateway, or the
// verification call failed on the return leg.  It asks the verification
// service for the settled truth and applies it.  The conditional settle
// update makes it safe to run alongside live return callbacks.
type ReconciliationWorker struct {
    orders    OrderStore
    store     transaction.Store
    verifier  payment.Verifier
    publish   Publisher
    interval  time.Duration
    olderThan time.Duration
    batch     int
}

// NewReconciliationWorker constructs a worker.  interval is how often the
// sweep runs; olderThan is how long an order must have been PENDING before
// it is considered stuck.
func NewReconciliationWorker(orders OrderStore, store transaction.Store, verifier payment.Verifier, publish Publisher, interval, olderThan time.Duration) *ReconciliationWorker {
    if orders == nil || store == nil || verifier == nil {
        panic("nil dependency passed to NewReconciliationWorker")
    }
    if interval <= 0 {
        interval = time.Minute
    }
    if olderThan <= 0 {
        olderThan = 15 * time.Minute
    }
    return &ReconciliationWorker{
        orders:    orders,
        store:     store,
        verifier:  verifier,
        publish:   publish,
        interval:  interval,
        olderThan: olderThan,
        batch:     50,
    }
}

// Run sweeps on a ticker until the context is cancelled.
func (w *ReconciliationWorker) Run(ctx context.Context) {
    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()
    log.Printf("reconciliation worker started (every %s, cutoff %s)", w.interval, w.olderThan)
    for {
        select {
        case <-ctx.Done():
            log.Println("reconciliation worker stopped")
            return
        case <-ticker.C:
            w.Sweep(ctx)
        }
    }
}

// Sweep settles one batch of stuck orders.  Exported so tests drive it
// directly without the ticker.
func (w *ReconciliationWorker) Sweep(ctx context.Context) {
    stuck, err := w.orders.StuckPending(ctx, int64(w.olderThan/time.Second), w.batch)
    if err != nil {
        log.Printf("reconciliation: listing stuck orders failed: %v", err)
        return
    }
    for _, o := range stuck {
        if err := w.settle(ctx, o); err != nil {
            log.Printf("reconciliation: order %d (%s): %v", o.ID, o.TxnRef, err)
        }
    }
}

func (w *ReconciliationWorker) settle(ctx context.Context, o repository.StuckOrder) error {
    result, err := w.verifier.QueryStatus(ctx, o.TxnRef)
    if err != nil {
        // Verification still unreachable; leave the order for the next
        // sweep rather than guessing at an outcome.
        return err
    }
    status := model.OrderFailed
    if result.Success {
        status = model.OrderPaid
    }
    if err := w.orders.SettleOrder(ctx, o.ID, status); err != nil {
        if errors.Is(err, repository.ErrOrderSettled) {
            return nil
        }
        return err
    }
    log.Printf("reconciliation: order %d (%s) settled %s", o.ID, o.TxnRef, status)
    if status == model.OrderPaid {
        w.publishPaid(ctx, o, result)
    }
    w.updateTxn(ctx, o, status, result)
    return nil
}

// updateTxn brings the transaction document in line with the reconciled
// order when the document still exists and has not reached a terminal
// state of its own.  A terminal document is never reopened; the order row
// in the customer's ticket history carries the reconciled truth.
func (w *ReconciliationWorker) updateTxn(ctx context.Context, o repository.StuckOrder, status string, result payment.VerifyResult) {
    t, err := w.store.GetByRef(ctx, o.TxnRef)
    if err != nil {
        if !errors.Is(err, transaction.ErrTxnNotFound) {
            log.Printf("reconciliation: loading transaction for %s failed: %v", o.TxnRef, err)
        }
        return
    }
    if t.State.IsTerminal() {
        return
    }
    if status == model.OrderPaid {
        t.State = model.StatePaid
        t.FailureReason = ""
        if result.BookingCode != "" {
            t.BookingCode = result.BookingCode
        }
        t.Message = "payment confirmed after reconciliation"
    } else {
        t.State = model.StateFailed
        t.FailureReason = model.ReasonDeclined
        t.Message = "payment did not complete"
    }
    if err := w.store.Save(ctx, t); err != nil {
        log.Printf("reconciliation: saving transaction for %s failed: %v", o.TxnRef, err)
    }
}

func (w *ReconciliationWorker) publishPaid(ctx context.Context, o repository.StuckOrder, result payment.VerifyResult) {
    if w.publish == nil {
        return
    }
    _ = w.publish(ctx, queue.OrderPaidEvent{
        OrderID:     o.ID,
        ShowtimeID:  o.ShowtimeID,
        BookingCode: result.BookingCode,
        TxnRef:      o.TxnRef,
        PaidAt:      time.Now().UTC().Format("2006-01-02 15:04:05"),
    })
}
