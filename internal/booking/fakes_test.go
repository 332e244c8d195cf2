package booking

import (
    "context"
    "sync"
    "time"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/queue"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/transaction"
)

// memStore is an in-memory transaction.Store for tests.
type memStore struct {
    docs     map[string]model.Transaction
    byRef    map[string]string
    submit   map[string]bool
    apply    map[string]bool
    resolved map[string]bool
}

func newMemStore() *memStore {
    return &memStore{
        docs:     map[string]model.Transaction{},
        byRef:    map[string]string{},
        submit:   map[string]bool{},
        apply:    map[string]bool{},
        resolved: map[string]bool{},
    }
}

func (m *memStore) Save(_ context.Context, t *model.Transaction) error {
    m.docs[t.ID] = *t
    if t.TxnRef != "" {
        m.byRef[t.TxnRef] = t.ID
    }
    return nil
}

func (m *memStore) Get(_ context.Context, id string) (*model.Transaction, error) {
    t, ok := m.docs[id]
    if !ok {
        return nil, transaction.ErrTxnNotFound
    }
    cp := t
    return &cp, nil
}

func (m *memStore) GetByRef(ctx context.Context, ref string) (*model.Transaction, error) {
    id, ok := m.byRef[ref]
    if !ok {
        return nil, transaction.ErrTxnNotFound
    }
    return m.Get(ctx, id)
}

func (m *memStore) AcquireSubmitLock(_ context.Context, id string) (bool, error) {
    if m.submit[id] {
        return false, nil
    }
    m.submit[id] = true
    return true, nil
}

func (m *memStore) ReleaseSubmitLock(_ context.Context, id string) error {
    delete(m.submit, id)
    return nil
}

func (m *memStore) AcquireApplyLock(_ context.Context, id string) (bool, error) {
    if m.apply[id] {
        return false, nil
    }
    m.apply[id] = true
    return true, nil
}

func (m *memStore) ReleaseApplyLock(_ context.Context, id string) error {
    delete(m.apply, id)
    return nil
}

func (m *memStore) MarkResolving(_ context.Context, ref string) (bool, error) {
    if m.resolved[ref] {
        return false, nil
    }
    m.resolved[ref] = true
    return true, nil
}

// fakeOrders is an in-memory OrderStore with the same settle-once semantics
// as the SQL implementation.
type fakeOrders struct {
    mu       sync.Mutex
    nextID   uint64
    orders   map[uint64]*model.Order
    byRef    map[string]uint64
    placeErr error
    stuck    []repository.StuckOrder
}

func newFakeOrders() *fakeOrders {
    return &fakeOrders{orders: map[uint64]*model.Order{}, byRef: map[string]uint64{}}
}

func (f *fakeOrders) PlaceOrder(_ context.Context, order *model.Order, _ []model.OrderSeat, _ []model.OrderFood) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.placeErr != nil {
        return f.placeErr
    }
    f.nextID++
    order.ID = f.nextID
    order.Status = model.OrderPending
    cp := *order
    f.orders[order.ID] = &cp
    f.byRef[order.TxnRef] = order.ID
    return nil
}

func (f *fakeOrders) SettleOrder(_ context.Context, orderID uint64, status string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    o, ok := f.orders[orderID]
    if !ok {
        return repository.ErrOrderNotFound
    }
    if o.Status != model.OrderPending {
        return repository.ErrOrderSettled
    }
    o.Status = status
    if status == model.OrderPaid {
        now := time.Now().UTC()
        o.PaidAt = &now
    }
    return nil
}

func (f *fakeOrders) OrderByTxnRef(_ context.Context, txnRef string) (*model.Order, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    id, ok := f.byRef[txnRef]
    if !ok {
        return nil, repository.ErrOrderNotFound
    }
    cp := *f.orders[id]
    return &cp, nil
}

func (f *fakeOrders) StuckPending(_ context.Context, _ int64, _ int) ([]repository.StuckOrder, error) {
    return f.stuck, nil
}

func (f *fakeOrders) count() int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return len(f.orders)
}

func (f *fakeOrders) status(id uint64) string {
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.orders[id].Status
}

// fakeVerifier returns a canned verification result and counts calls.
type fakeVerifier struct {
    result      payment.VerifyResult
    err         error
    verifyCalls int
    statusCalls int
}

func (f *fakeVerifier) VerifyReturn(_ context.Context, _, _ string) (payment.VerifyResult, error) {
    f.verifyCalls++
    return f.result, f.err
}

func (f *fakeVerifier) QueryStatus(_ context.Context, _ string) (payment.VerifyResult, error) {
    f.statusCalls++
    return f.result, f.err
}

// eventRecorder is a Publisher capturing published events.
type eventRecorder struct {
    events []queue.OrderPaidEvent
}

func (r *eventRecorder) publish(_ context.Context, e queue.OrderPaidEvent) error {
    r.events = append(r.events, e)
    return nil
}

// fakeSeats serves a static seat map.
type fakeSeats struct {
    rows map[uint64]model.ShowtimeSeat
}

func (f *fakeSeats) ListByShowtime(_ context.Context, _ uint64) ([]model.ShowtimeSeat, error) {
    out := make([]model.ShowtimeSeat, 0, len(f.rows))
    for _, s := range f.rows {
        out = append(out, s)
    }
    return out, nil
}

func (f *fakeSeats) GetByIDs(_ context.Context, _ uint64, ids []uint64) (map[uint64]model.ShowtimeSeat, error) {
    out := map[uint64]model.ShowtimeSeat{}
    for _, id := range ids {
        if s, ok := f.rows[id]; ok {
            out[id] = s
        }
    }
    return out, nil
}

// fakeFoods serves a static concession catalog.
type fakeFoods struct {
    items map[uint64]model.FoodItem
}

func (f *fakeFoods) GetByIDs(_ context.Context, ids []uint64) (map[uint64]model.FoodItem, error) {
    out := map[uint64]model.FoodItem{}
    for _, id := range ids {
        if it, ok := f.items[id]; ok {
            out[id] = it
        }
    }
    return out, nil
}

// fakeVouchers implements voucher.Lookup.  Misses return the repository
// sentinel, exactly like VoucherRepo, so the submit-time revalidation path
// is tested against production semantics.
type fakeVouchers struct {
    byCode map[string]*model.Voucher
}

func (f *fakeVouchers) FindByCode(_ context.Context, code string) (*model.Voucher, error) {
    v, ok := f.byCode[code]
    if !ok {
        return nil, repository.ErrVoucherNotFound
    }
    return v, nil
}

func testGateway() *payment.Gateway {
    return payment.NewGateway(
        "https://pay.example/checkout",
        "https://app.example/v1/payment/return",
        "CINEGO01",
        "test-secret",
    )
}

func activeVoucher(code, mode string, magnitude, maxDiscount int64) *model.Voucher {
    return &model.Voucher{
        Code: code, Mode: mode, Magnitude: magnitude, MaxDiscount: maxDiscount,
        IsActive: true, ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
    }
}
