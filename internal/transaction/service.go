package transaction

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/pricing"
    "github.com/cinego/booking/internal/voucher"
)

// Service errors surfaced to handlers.
var (
    // ErrForbidden is returned when a transaction belongs to another user.
    ErrForbidden = errors.New("transaction belongs to another user")
    // ErrSelectionFrozen is returned for seat/food/voucher edits outside
    // the SELECTING state.
    ErrSelectionFrozen = errors.New("selection is frozen in the current state")
    // ErrNotReviewable is returned when review/edit is requested from a
    // state that does not allow it.
    ErrNotReviewable = errors.New("transaction cannot move between selecting and reviewing now")
    // ErrNoLongerCancellable is returned when cancel arrives after
    // SUBMITTING was entered; only the terminal outcomes end the flow then.
    ErrNoLongerCancellable = errors.New("payment already initiated; wait for the final outcome")
    // ErrApplyInFlight is returned when a voucher apply is already running
    // for the transaction.
    ErrApplyInFlight = errors.New("a voucher apply is already in progress")
)

// SeatCatalog is the read side of the showtime seat service the pipeline
// consumes.  *repository.SeatCatalogRepo satisfies it.
type SeatCatalog interface {
    ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.ShowtimeSeat, error)
    GetByIDs(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]model.ShowtimeSeat, error)
}

// FoodCatalog is the read side of the concession service.
// *repository.FoodRepo satisfies it.
type FoodCatalog interface {
    GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.FoodItem, error)
}

// Service drives a transaction through SELECTING and REVIEWING: seat and
// food toggles, voucher application and the derived totals.  Submission and
// the return leg are owned by the booking package.
type Service struct {
    store     Store
    seats     SeatCatalog
    foods     FoodCatalog
    validator *voucher.Validator
}

// NewService constructs a Service.  All dependencies must be non-nil.
func NewService(store Store, seats SeatCatalog, foods FoodCatalog, validator *voucher.Validator) *Service {
    if store == nil || seats == nil || foods == nil || validator == nil {
        panic("nil dependency passed to transaction.NewService")
    }
    return &Service{store: store, seats: seats, foods: foods, validator: validator}
}

// Begin opens a fresh SELECTING transaction for the user and showtime.
func (s *Service) Begin(ctx context.Context, userID, showtimeID uint64) (*model.Transaction, error) {
    now := time.Now().UTC()
    t := &model.Transaction{
        ID:         uuid.NewString(),
        UserID:     userID,
        ShowtimeID: showtimeID,
        State:      model.StateSelecting,
        SeatIDs:    []uint64{},
        Foods:      map[uint64]uint32{},
        CreatedAt:  now,
        UpdatedAt:  now,
    }
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// Get loads a transaction and enforces ownership.
func (s *Service) Get(ctx context.Context, id string, userID uint64) (*model.Transaction, error) {
    t, err := s.store.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if t.UserID != userID {
        return nil, ErrForbidden
    }
    return t, nil
}

// ToggleSeat adds the seat to the selection or removes it when already
// selected.  Adding a seat whose catalog status is not AVAILABLE is a
// silent no-op: when two customers race for a seat, the loser's click
// simply has no effect rather than erroring out.  Removal is always
// allowed.  The breakdown is recomputed before saving.
func (s *Service) ToggleSeat(ctx context.Context, id string, userID, seatID uint64) (*model.Transaction, error) {
    t, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if t.State != model.StateSelecting {
        return nil, ErrSelectionFrozen
    }
    if t.HasSeat(seatID) {
        kept := t.SeatIDs[:0]
        for _, sid := range t.SeatIDs {
            if sid != seatID {
                kept = append(kept, sid)
            }
        }
        t.SeatIDs = kept
    } else {
        rows, err := s.seats.GetByIDs(ctx, t.ShowtimeID, []uint64{seatID})
        if err != nil {
            return nil, err
        }
        seat, ok := rows[seatID]
        if !ok || seat.Status != model.SeatAvailable {
            // no-op; return the unchanged document
            return t, nil
        }
        t.SeatIDs = append(t.SeatIDs, seatID)
    }
    if err := s.reprice(ctx, t); err != nil {
        return nil, err
    }
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// SetFood sets the quantity of a concession line.  Quantity 0 removes the
// line.  Unknown or inactive items are rejected by the catalog lookup
// (absent from the result) and leave the selection unchanged.
func (s *Service) SetFood(ctx context.Context, id string, userID, foodID uint64, qty uint32) (*model.Transaction, error) {
    t, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if t.State != model.StateSelecting {
        return nil, ErrSelectionFrozen
    }
    if qty == 0 {
        delete(t.Foods, foodID)
    } else {
        items, err := s.foods.GetByIDs(ctx, []uint64{foodID})
        if err != nil {
            return nil, err
        }
        if _, ok := items[foodID]; !ok {
            return t, nil
        }
        if t.Foods == nil {
            t.Foods = map[uint64]uint32{}
        }
        t.Foods[foodID] = qty
    }
    if err := s.reprice(ctx, t); err != nil {
        return nil, err
    }
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// ApplyVoucher validates the code against the current pre-discount subtotal
// and applies it, replacing any previously applied voucher.  The apply lock
// ensures only one validation is in flight per transaction; a second
// concurrent apply gets ErrApplyInFlight instead of racing.
func (s *Service) ApplyVoucher(ctx context.Context, id string, userID uint64, code string) (*model.Transaction, error) {
    t, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if t.State != model.StateSelecting && t.State != model.StateReviewing {
        return nil, ErrSelectionFrozen
    }
    ok, err := s.store.AcquireApplyLock(ctx, t.ID)
    if err != nil {
        return nil, err
    }
    if !ok {
        return nil, ErrApplyInFlight
    }
    defer func() { _ = s.store.ReleaseApplyLock(ctx, t.ID) }()

    // Reload under the lock; a pay request holding the lock before us may
    // have moved the transaction past REVIEWING, and saving a stale
    // document here would reopen a payable state.
    t, err = s.store.Get(ctx, t.ID)
    if err != nil {
        return nil, err
    }
    if t.State != model.StateSelecting && t.State != model.StateReviewing {
        return nil, ErrSelectionFrozen
    }

    subtotal, err := s.subtotal(ctx, t)
    if err != nil {
        return nil, err
    }
    rec, err := s.validator.Validate(ctx, code, subtotal)
    if err != nil {
        return nil, err
    }
    t.VoucherCode = rec.Code // overwrite, never stack
    if err := s.reprice(ctx, t); err != nil {
        return nil, err
    }
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// RemoveVoucher clears the applied voucher, if any.
func (s *Service) RemoveVoucher(ctx context.Context, id string, userID uint64) (*model.Transaction, error) {
    t, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if t.State != model.StateSelecting && t.State != model.StateReviewing {
        return nil, ErrSelectionFrozen
    }
    t.VoucherCode = ""
    if err := s.reprice(ctx, t); err != nil {
        return nil, err
    }
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// Review freezes the selection for the summary screen.
func (s *Service) Review(ctx context.Context, id string, userID uint64) (*model.Transaction, error) {
    return s.transition(ctx, id, userID, model.StateSelecting, model.StateReviewing)
}

// Edit returns a reviewing transaction to SELECTING.
func (s *Service) Edit(ctx context.Context, id string, userID uint64) (*model.Transaction, error) {
    return s.transition(ctx, id, userID, model.StateReviewing, model.StateSelecting)
}

func (s *Service) transition(ctx context.Context, id string, userID uint64, from, to model.TxnState) (*model.Transaction, error) {
    t, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if t.State != from || !model.CanTransition(from, to) {
        return nil, ErrNotReviewable
    }
    t.State = to
    // refresh the breakdown so the review screen never shows stale totals
    if err := s.reprice(ctx, t); err != nil {
        return nil, err
    }
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// Cancel abandons the flow.  Before SUBMITTING no order exists, so the
// document simply settles CANCELLED.  From SUBMITTING on, abandonment is
// impossible: the customer is told to wait for the terminal outcome rather
// than being shown a cancel that would leave a dangling order.
func (s *Service) Cancel(ctx context.Context, id string, userID uint64) (*model.Transaction, error) {
    t, err := s.Get(ctx, id, userID)
    if err != nil {
        return nil, err
    }
    if t.State.IsTerminal() {
        return t, nil
    }
    if !model.CanTransition(t.State, model.StateCancelled) {
        return nil, ErrNoLongerCancellable
    }
    t.State = model.StateCancelled
    t.Message = "booking abandoned before payment"
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return t, nil
}

// subtotal computes the pre-discount subtotal from the live catalogs.
func (s *Service) subtotal(ctx context.Context, t *model.Transaction) (int64, error) {
    seats, foods, err := s.resolve(ctx, t)
    if err != nil {
        return 0, err
    }
    b := pricing.Compute(seats, t.Foods, foods, nil)
    return b.SeatSubtotal + b.FoodSubtotal, nil
}

// reprice recomputes the breakdown from the current selection and voucher.
// A voucher that is no longer applicable (expired meanwhile, or the
// subtotal dropped to zero) is removed rather than silently priced at a
// stale discount.
func (s *Service) reprice(ctx context.Context, t *model.Transaction) error {
    seats, foods, err := s.resolve(ctx, t)
    if err != nil {
        return err
    }
    var applied *model.Voucher
    if t.VoucherCode != "" {
        base := pricing.Compute(seats, t.Foods, foods, nil)
        rec, err := s.validator.Validate(ctx, t.VoucherCode, base.SeatSubtotal+base.FoodSubtotal)
        switch {
        case err == nil:
            applied = rec
        case errors.Is(err, voucher.ErrNotFound),
            errors.Is(err, voucher.ErrNotApplicable),
            errors.Is(err, voucher.ErrNothingToDiscount):
            t.VoucherCode = ""
            t.Message = "voucher removed: no longer applicable"
        default:
            return err
        }
    }
    t.Breakdown = pricing.Compute(seats, t.Foods, foods, applied)
    return nil
}

// resolve loads the catalog rows backing the current selection.
func (s *Service) resolve(ctx context.Context, t *model.Transaction) ([]model.ShowtimeSeat, map[uint64]model.FoodItem, error) {
    seatRows, err := s.seats.GetByIDs(ctx, t.ShowtimeID, t.SeatIDs)
    if err != nil {
        return nil, nil, err
    }
    seats := make([]model.ShowtimeSeat, 0, len(t.SeatIDs))
    for _, id := range t.SeatIDs {
        if row, ok := seatRows[id]; ok {
            seats = append(seats, row)
        }
    }
    foodIDs := make([]uint64, 0, len(t.Foods))
    for id := range t.Foods {
        foodIDs = append(foodIDs, id)
    }
    foods, err := s.foods.GetByIDs(ctx, foodIDs)
    if err != nil {
        return nil, nil, err
    }
    return seats, foods, nil
}
