package booking

import (
    "context"
    "errors"
    "log"
    "net/url"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/queue"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/transaction"
)

// Resolver handles the return leg of the payment redirect.  The gateway
// calls back with untrusted query parameters; the resolver verifies them
// server-side and settles both the durable order row and the transaction
// document exactly once, no matter how many times the callback is replayed.
type Resolver struct {
    store    transaction.Store
    orders   OrderStore
    gateway  *payment.Gateway
    verifier payment.Verifier
    publish  Publisher
}

// NewResolver constructs a Resolver.  publish may be nil.
func NewResolver(store transaction.Store, orders OrderStore, gateway *payment.Gateway, verifier payment.Verifier, publish Publisher) *Resolver {
    if store == nil || orders == nil || gateway == nil || verifier == nil {
        panic("nil dependency passed to NewResolver")
    }
    return &Resolver{store: store, orders: orders, gateway: gateway, verifier: verifier, publish: publish}
}

// Resolve processes one return callback and returns the transaction in its
// final (or current) state for presentation.  Replayed callbacks after a
// terminal outcome return the recorded outcome without re-verifying.
func (r *Resolver) Resolve(ctx context.Context, q url.Values) (*model.Transaction, error) {
    params, err := r.gateway.ParseReturn(q)
    if err != nil {
        return r.failMalformed(ctx, q)
    }
    t, err := r.store.GetByRef(ctx, params.TxnRef)
    if err != nil {
        return nil, err
    }
    if t.State.IsTerminal() {
        return t, nil
    }

    first, err := r.store.MarkResolving(ctx, params.TxnRef)
    if err != nil {
        return nil, err
    }
    if !first {
        // Another delivery of this callback is (or was) in flight; surface
        // whatever the document says rather than verifying twice.
        return r.store.GetByRef(ctx, params.TxnRef)
    }

    t.State = model.StateVerifying
    if err := r.store.Save(ctx, t); err != nil {
        return nil, err
    }

    order, err := r.orders.OrderByTxnRef(ctx, params.TxnRef)
    if err != nil {
        return nil, err
    }

    result, err := r.verifier.VerifyReturn(ctx, params.TxnRef, params.ResponseCode)
    if err != nil {
        // The gateway's word alone does not settle money.  Without a
        // verification answer the order stays PENDING for the
        // reconciliation worker; the customer sees a failure with a
        // pointer to their ticket history.
        t.State = model.StateFailed
        t.FailureReason = model.ReasonVerifyUnavailable
        t.Message = "payment result could not be confirmed; please check your ticket history"
        if err := r.store.Save(ctx, t); err != nil {
            return nil, err
        }
        return t, nil
    }

    if params.Approved() && result.Success {
        if err := r.settlePaid(ctx, order, t, result); err != nil {
            return nil, err
        }
        return t, nil
    }

    if err := r.orders.SettleOrder(ctx, order.ID, model.OrderFailed); err != nil && !errors.Is(err, repository.ErrOrderSettled) {
        return nil, err
    }
    t.State = model.StateFailed
    t.FailureReason = model.ReasonDeclined
    if result.Message != "" {
        t.Message = result.Message
    } else {
        t.Message = "payment declined by gateway"
    }
    if err := r.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// failMalformed handles a callback missing its reference or response code.
// When the reference is present and known, the transaction fails with
// MALFORMED_CALLBACK and no verification call is made; otherwise the error
// propagates for the handler to reject.
func (r *Resolver) failMalformed(ctx context.Context, q url.Values) (*model.Transaction, error) {
    ref := q.Get(payment.ParamTxnRef)
    if ref == "" {
        return nil, payment.ErrMalformedCallback
    }
    t, err := r.store.GetByRef(ctx, ref)
    if err != nil {
        return nil, payment.ErrMalformedCallback
    }
    if t.State.IsTerminal() {
        return t, nil
    }
    t.State = model.StateFailed
    t.FailureReason = model.ReasonMalformedCallback
    t.Message = "gateway callback was incomplete; please check your ticket history"
    if err := r.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// settlePaid moves the order and the document to PAID and fires the event.
// ErrOrderSettled means the reconciliation worker beat us to it, which is
// fine.
func (r *Resolver) settlePaid(ctx context.Context, order *model.Order, t *model.Transaction, result payment.VerifyResult) error {
    if err := r.orders.SettleOrder(ctx, order.ID, model.OrderPaid); err != nil {
        if !errors.Is(err, repository.ErrOrderSettled) {
            return err
        }
        log.Printf("booking: order %d settled concurrently", order.ID)
    }
    t.State = model.StatePaid
    if result.BookingCode != "" {
        t.BookingCode = result.BookingCode
    }
    if result.Message != "" {
        t.Message = result.Message
    } else {
        t.Message = "payment confirmed"
    }
    if err := r.store.Save(ctx, t); err != nil {
        return err
    }
    if r.publish != nil {
        _ = r.publish(ctx, queue.OrderPaidEvent{
            OrderID:     order.ID,
            UserID:      order.UserID,
            ShowtimeID:  order.ShowtimeID,
            BookingCode: t.BookingCode,
            TxnRef:      order.TxnRef,
            TotalAmount: order.TotalAmount,
            PaidAt:      t.UpdatedAt.Format("2006-01-02 15:04:05"),
        })
    }
    return nil
}
