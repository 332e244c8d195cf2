package booking

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/repository"
)

type reconcileFixture struct {
    worker   *ReconciliationWorker
    store    *memStore
    orders   *fakeOrders
    verifier *fakeVerifier
    events   *eventRecorder
}

func newReconcileFixture() *reconcileFixture {
    store := newMemStore()
    orders := newFakeOrders()
    verifier := &fakeVerifier{}
    events := &eventRecorder{}
    return &reconcileFixture{
        worker:   NewReconciliationWorker(orders, store, verifier, events.publish, time.Minute, 15*time.Minute),
        store:    store,
        orders:   orders,
        verifier: verifier,
        events:   events,
    }
}

// stuckOrder seeds a PENDING order and registers it as stuck.
func (f *reconcileFixture) stuckOrder(t *testing.T, txnRef string) *model.Order {
    t.Helper()
    order := &model.Order{UserID: 42, ShowtimeID: 7, BookingCode: "CG-STUCK123", TxnRef: txnRef, TotalAmount: 240000}
    require.NoError(t, f.orders.PlaceOrder(context.Background(), order, nil, nil))
    f.orders.stuck = append(f.orders.stuck, repository.StuckOrder{
        ID: order.ID, ShowtimeID: order.ShowtimeID, TxnRef: txnRef,
        CreatedAt: time.Now().Add(-time.Hour),
    })
    return order
}

func TestSweepSettlesConfirmedPayment(t *testing.T) {
    f := newReconcileFixture()
    order := f.stuckOrder(t, "ref-1")
    f.verifier.result = payment.VerifyResult{Success: true, BookingCode: "CG-STUCK123"}

    // document still waiting at the gateway
    now := time.Now().UTC()
    doc := &model.Transaction{
        ID: "txn-1", UserID: 42, ShowtimeID: 7, State: model.StateRedirected,
        TxnRef: "ref-1", OrderID: order.ID, CreatedAt: now, UpdatedAt: now,
    }
    require.NoError(t, f.store.Save(context.Background(), doc))

    f.worker.Sweep(context.Background())

    assert.Equal(t, model.OrderPaid, f.orders.status(order.ID))
    assert.Equal(t, 1, f.verifier.statusCalls)
    require.Len(t, f.events.events, 1)
    assert.Equal(t, "ref-1", f.events.events[0].TxnRef)

    after, err := f.store.GetByRef(context.Background(), "ref-1")
    require.NoError(t, err)
    assert.Equal(t, model.StatePaid, after.State)
}

func TestSweepFailsUnconfirmedPayment(t *testing.T) {
    f := newReconcileFixture()
    order := f.stuckOrder(t, "ref-1")
    f.verifier.result = payment.VerifyResult{Success: false}

    f.worker.Sweep(context.Background())

    assert.Equal(t, model.OrderFailed, f.orders.status(order.ID))
    assert.Empty(t, f.events.events)
}

func TestSweepLeavesOrderWhenVerificationDown(t *testing.T) {
    f := newReconcileFixture()
    order := f.stuckOrder(t, "ref-1")
    f.verifier.err = payment.ErrVerifyUnavailable

    f.worker.Sweep(context.Background())

    assert.Equal(t, model.OrderPending, f.orders.status(order.ID),
        "no outcome may be invented while verification is down")
}

func TestSweepNeverReopensTerminalDocument(t *testing.T) {
    f := newReconcileFixture()
    order := f.stuckOrder(t, "ref-1")
    f.verifier.result = payment.VerifyResult{Success: true}

    // the return leg already failed the document for the customer
    now := time.Now().UTC()
    doc := &model.Transaction{
        ID: "txn-1", UserID: 42, ShowtimeID: 7, State: model.StateFailed,
        FailureReason: model.ReasonVerifyUnavailable,
        TxnRef:        "ref-1", OrderID: order.ID, CreatedAt: now, UpdatedAt: now,
    }
    require.NoError(t, f.store.Save(context.Background(), doc))

    f.worker.Sweep(context.Background())

    assert.Equal(t, model.OrderPaid, f.orders.status(order.ID),
        "the durable order row still gets the reconciled truth")
    after, err := f.store.GetByRef(context.Background(), "ref-1")
    require.NoError(t, err)
    assert.Equal(t, model.StateFailed, after.State,
        "a terminal document is never reopened")
    require.Len(t, f.events.events, 1)
}

func TestSweepIgnoresAlreadySettledOrders(t *testing.T) {
    f := newReconcileFixture()
    order := f.stuckOrder(t, "ref-1")
    require.NoError(t, f.orders.SettleOrder(context.Background(), order.ID, model.OrderPaid))
    f.verifier.result = payment.VerifyResult{Success: true}

    f.worker.Sweep(context.Background())

    assert.Equal(t, model.OrderPaid, f.orders.status(order.ID))
    assert.Empty(t, f.events.events, "a concurrently settled order must not publish again")
}
