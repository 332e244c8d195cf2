package transaction

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/voucher"
)

// memStore is an in-memory Store for tests.
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
        return nil, ErrTxnNotFound
    }
    cp := t
    return &cp, nil
}

func (m *memStore) GetByRef(ctx context.Context, ref string) (*model.Transaction, error) {
    id, ok := m.byRef[ref]
    if !ok {
        return nil, ErrTxnNotFound
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
// sentinel, exactly like VoucherRepo, so these tests exercise the same
// translation path as production wiring.
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

func activeVoucher(code, mode string, magnitude, maxDiscount int64) *model.Voucher {
    return &model.Voucher{
        Code: code, Mode: mode, Magnitude: magnitude, MaxDiscount: maxDiscount,
        IsActive: true, ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().Add(time.Hour),
    }
}

func newTestService(seats map[uint64]model.ShowtimeSeat, foods map[uint64]model.FoodItem, vouchers map[string]*model.Voucher) (*Service, *memStore) {
    store := newMemStore()
    svc := NewService(store, &fakeSeats{rows: seats}, &fakeFoods{items: foods},
        voucher.NewValidator(&fakeVouchers{byCode: vouchers}))
    return svc, store
}

func seatRow(id uint64, status string, price int64) model.ShowtimeSeat {
    return model.ShowtimeSeat{SeatID: id, ShowtimeID: 7, RowLabel: "E", SeatNumber: uint32(id), Status: status, Price: price}
}

func TestBeginStartsSelecting(t *testing.T) {
    svc, _ := newTestService(nil, nil, nil)
    txn, err := svc.Begin(context.Background(), 42, 7)
    require.NoError(t, err)
    assert.Equal(t, model.StateSelecting, txn.State)
    assert.Empty(t, txn.SeatIDs)
    assert.Equal(t, int64(0), txn.Breakdown.FinalTotal)
}

func TestToggleSeatAddAndRemove(t *testing.T) {
    svc, _ := newTestService(map[uint64]model.ShowtimeSeat{
        1: seatRow(1, model.SeatAvailable, 120000),
    }, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)

    txn, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)
    assert.Equal(t, []uint64{1}, txn.SeatIDs)
    assert.Equal(t, int64(120000), txn.Breakdown.SeatSubtotal)

    txn, err = svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)
    assert.Empty(t, txn.SeatIDs)
    assert.Equal(t, int64(0), txn.Breakdown.SeatSubtotal)
}

func TestToggleUnavailableSeatIsNoOp(t *testing.T) {
    svc, _ := newTestService(map[uint64]model.ShowtimeSeat{
        1: seatRow(1, model.SeatSold, 120000),
        2: seatRow(2, model.SeatHeld, 120000),
    }, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)

    for _, id := range []uint64{1, 2, 99} {
        got, err := svc.ToggleSeat(ctx, txn.ID, 42, id)
        require.NoError(t, err, "toggling seat %d must not error", id)
        assert.Empty(t, got.SeatIDs, "seat %d must not join the selection", id)
    }
}

func TestToggleSeatRejectedOutsideSelecting(t *testing.T) {
    svc, _ := newTestService(map[uint64]model.ShowtimeSeat{
        1: seatRow(1, model.SeatAvailable, 120000),
    }, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)
    _, err = svc.Review(ctx, txn.ID, 42)
    require.NoError(t, err)

    _, err = svc.ToggleSeat(ctx, txn.ID, 42, 1)
    assert.ErrorIs(t, err, ErrSelectionFrozen)
}

func TestSetFoodQuantityZeroRemovesLine(t *testing.T) {
    svc, _ := newTestService(
        map[uint64]model.ShowtimeSeat{1: seatRow(1, model.SeatAvailable, 120000)},
        map[uint64]model.FoodItem{10: {ID: 10, Name: "Popcorn", UnitPrice: 45000, IsActive: true}},
        nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)

    txn, err := svc.SetFood(ctx, txn.ID, 42, 10, 2)
    require.NoError(t, err)
    assert.Equal(t, int64(90000), txn.Breakdown.FoodSubtotal)

    txn, err = svc.SetFood(ctx, txn.ID, 42, 10, 0)
    require.NoError(t, err)
    assert.NotContains(t, txn.Foods, uint64(10))
    assert.Equal(t, int64(0), txn.Breakdown.FoodSubtotal)
}

func TestApplySecondVoucherReplacesFirst(t *testing.T) {
    svc, _ := newTestService(
        map[uint64]model.ShowtimeSeat{1: seatRow(1, model.SeatAvailable, 200000)},
        nil,
        map[string]*model.Voucher{
            "TEN":  activeVoucher("TEN", model.VoucherPercent, 10, 0),
            "FLAT": activeVoucher("FLAT", model.VoucherFixed, 5000, 0),
        })
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)

    txn, err = svc.ApplyVoucher(ctx, txn.ID, 42, "TEN")
    require.NoError(t, err)
    assert.Equal(t, int64(20000), txn.Breakdown.Discount)

    txn, err = svc.ApplyVoucher(ctx, txn.ID, 42, "FLAT")
    require.NoError(t, err)
    assert.Equal(t, "FLAT", txn.VoucherCode)
    assert.Equal(t, int64(5000), txn.Breakdown.Discount, "discounts must replace, never stack")
}

func TestApplyVoucherGuardedAgainstConcurrency(t *testing.T) {
    svc, store := newTestService(
        map[uint64]model.ShowtimeSeat{1: seatRow(1, model.SeatAvailable, 200000)},
        nil,
        map[string]*model.Voucher{"TEN": activeVoucher("TEN", model.VoucherPercent, 10, 0)})
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)

    // simulate an apply already in flight
    ok, err := store.AcquireApplyLock(ctx, txn.ID)
    require.NoError(t, err)
    require.True(t, ok)

    _, err = svc.ApplyVoucher(ctx, txn.ID, 42, "TEN")
    assert.ErrorIs(t, err, ErrApplyInFlight)
}

func TestApplyUnknownVoucherSurfacesNotFound(t *testing.T) {
    svc, _ := newTestService(
        map[uint64]model.ShowtimeSeat{1: seatRow(1, model.SeatAvailable, 200000)},
        nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)

    _, err = svc.ApplyVoucher(ctx, txn.ID, 42, "NOPE")
    assert.ErrorIs(t, err, voucher.ErrNotFound,
        "an unknown code must surface as voucher.ErrNotFound so the handler returns 404")
}

func TestDeletedVoucherDroppedOnNextEdit(t *testing.T) {
    vouchers := map[string]*model.Voucher{"TEN": activeVoucher("TEN", model.VoucherPercent, 10, 0)}
    svc, _ := newTestService(
        map[uint64]model.ShowtimeSeat{
            1: seatRow(1, model.SeatAvailable, 200000),
            2: seatRow(2, model.SeatAvailable, 200000),
        },
        nil, vouchers)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)
    txn, err = svc.ApplyVoucher(ctx, txn.ID, 42, "TEN")
    require.NoError(t, err)
    require.Equal(t, "TEN", txn.VoucherCode)

    // voucher deleted while the customer keeps editing
    delete(vouchers, "TEN")

    txn, err = svc.ToggleSeat(ctx, txn.ID, 42, 2)
    require.NoError(t, err, "a voucher deleted mid-flow must be dropped, not block edits")
    assert.Empty(t, txn.VoucherCode)
    assert.Equal(t, int64(0), txn.Breakdown.Discount)
}

// raceApplyStore grants the apply lock but mutates the stored document
// first, simulating a pay request that finished between our initial read
// and the lock acquisition.
type raceApplyStore struct {
    *memStore
    mutate func()
}

func (s *raceApplyStore) AcquireApplyLock(ctx context.Context, id string) (bool, error) {
    ok, err := s.memStore.AcquireApplyLock(ctx, id)
    if ok && s.mutate != nil {
        s.mutate()
    }
    return ok, err
}

func TestApplyVoucherRechecksStateUnderLock(t *testing.T) {
    store := newMemStore()
    ctx := context.Background()
    raced := &raceApplyStore{memStore: store}
    svc := NewService(raced,
        &fakeSeats{rows: map[uint64]model.ShowtimeSeat{1: seatRow(1, model.SeatAvailable, 200000)}},
        &fakeFoods{},
        voucher.NewValidator(&fakeVouchers{byCode: map[string]*model.Voucher{
            "TEN": activeVoucher("TEN", model.VoucherPercent, 10, 0),
        }}))

    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)
    _, err = svc.Review(ctx, txn.ID, 42)
    require.NoError(t, err)

    raced.mutate = func() {
        doc := store.docs[txn.ID]
        doc.State = model.StateRedirected
        store.docs[txn.ID] = doc
    }

    _, err = svc.ApplyVoucher(ctx, txn.ID, 42, "TEN")
    assert.ErrorIs(t, err, ErrSelectionFrozen)
    assert.Equal(t, model.StateRedirected, store.docs[txn.ID].State,
        "a stale apply must never overwrite a transaction that moved on")
    assert.Empty(t, store.docs[txn.ID].VoucherCode)
}

func TestApplyVoucherOnEmptySelectionRejected(t *testing.T) {
    svc, _ := newTestService(nil, nil,
        map[string]*model.Voucher{"TEN": activeVoucher("TEN", model.VoucherPercent, 10, 0)})
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ApplyVoucher(ctx, txn.ID, 42, "TEN")
    assert.ErrorIs(t, err, voucher.ErrNothingToDiscount)
}

func TestReviewAndEditRoundTrip(t *testing.T) {
    svc, _ := newTestService(map[uint64]model.ShowtimeSeat{
        1: seatRow(1, model.SeatAvailable, 120000),
    }, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.ToggleSeat(ctx, txn.ID, 42, 1)
    require.NoError(t, err)

    txn, err = svc.Review(ctx, txn.ID, 42)
    require.NoError(t, err)
    assert.Equal(t, model.StateReviewing, txn.State)

    txn, err = svc.Edit(ctx, txn.ID, 42)
    require.NoError(t, err)
    assert.Equal(t, model.StateSelecting, txn.State)
}

func TestCancelBeforeSubmitting(t *testing.T) {
    svc, _ := newTestService(nil, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    txn, err := svc.Cancel(ctx, txn.ID, 42)
    require.NoError(t, err)
    assert.Equal(t, model.StateCancelled, txn.State)
}

func TestCancelRefusedOnceSubmitting(t *testing.T) {
    svc, store := newTestService(nil, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    doc, _ := store.Get(ctx, txn.ID)
    doc.State = model.StateSubmitting
    require.NoError(t, store.Save(ctx, doc))

    _, err := svc.Cancel(ctx, txn.ID, 42)
    assert.ErrorIs(t, err, ErrNoLongerCancellable)
}

func TestOwnershipEnforced(t *testing.T) {
    svc, _ := newTestService(nil, nil, nil)
    ctx := context.Background()
    txn, _ := svc.Begin(ctx, 42, 7)
    _, err := svc.Get(ctx, txn.ID, 99)
    assert.ErrorIs(t, err, ErrForbidden)
}
