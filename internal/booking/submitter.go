package booking

import (
    "context"
    "errors"
    "time"

    "github.com/google/uuid"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/payment"
    "github.com/cinego/booking/internal/pricing"
    "github.com/cinego/booking/internal/queue"
    "github.com/cinego/booking/internal/repository"
    "github.com/cinego/booking/internal/transaction"
    "github.com/cinego/booking/internal/voucher"
)

// Submission errors surfaced to handlers.
var (
    // ErrEmptySelection is returned when pay is requested with no seats
    // selected.  The check runs before any lock or network call.
    ErrEmptySelection = errors.New("cannot pay for an empty selection")
    // ErrNotPayable is returned when the transaction is not in REVIEWING.
    ErrNotPayable = errors.New("transaction is not awaiting payment")
    // ErrSubmitInFlight is returned when another pay request already holds
    // the submit lock for the transaction.
    ErrSubmitInFlight = errors.New("a submission is already in progress")
)

// Publisher sends an order.paid event to the broker.  A function type so
// tests substitute a recorder without standing up RabbitMQ.
type Publisher func(ctx context.Context, event queue.OrderPaidEvent) error

// PayOutcome is the result of a successful pay request.  RedirectURL is
// empty when the voucher covered the full amount and no gateway round trip
// was needed.
type PayOutcome struct {
    Txn         *model.Transaction
    RedirectURL string
}

// Submitter turns a reviewed transaction into exactly one PENDING order and
// hands the customer to the payment gateway.  The submit lock plus the
// SUBMITTING state guarantee that rapid repeated pay clicks collapse into a
// single order.
type Submitter struct {
    store     transaction.Store
    orders    OrderStore
    seats     transaction.SeatCatalog
    foods     transaction.FoodCatalog
    validator *voucher.Validator
    gateway   *payment.Gateway
    publish   Publisher
}

// NewSubmitter constructs a Submitter.  publish may be nil when no broker
// is configured; paid events are then dropped.
func NewSubmitter(store transaction.Store, orders OrderStore, seats transaction.SeatCatalog, foods transaction.FoodCatalog, validator *voucher.Validator, gateway *payment.Gateway, publish Publisher) *Submitter {
    if store == nil || orders == nil || seats == nil || foods == nil || validator == nil || gateway == nil {
        panic("nil dependency passed to NewSubmitter")
    }
    return &Submitter{
        store:     store,
        orders:    orders,
        seats:     seats,
        foods:     foods,
        validator: validator,
        gateway:   gateway,
        publish:   publish,
    }
}

// Pay submits the transaction for payment.  The selection is repriced one
// final time against the live catalogs before the amount is fixed on the
// order; whatever total the customer saw earlier is advisory only.
func (s *Submitter) Pay(ctx context.Context, id string, userID uint64) (*PayOutcome, error) {
    t, err := s.store.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if t.UserID != userID {
        return nil, transaction.ErrForbidden
    }
    if len(t.SeatIDs) == 0 {
        return nil, ErrEmptySelection
    }
    if t.State != model.StateReviewing {
        return nil, ErrNotPayable
    }
    ok, err := s.store.AcquireSubmitLock(ctx, t.ID)
    if err != nil {
        return nil, err
    }
    if !ok {
        return nil, ErrSubmitInFlight
    }
    defer func() { _ = s.store.ReleaseSubmitLock(ctx, t.ID) }()

    // The apply lock is taken for the whole submission: a voucher apply
    // still validating must not save its result over a transaction that is
    // meanwhile fixing its price on an order.
    ok, err = s.store.AcquireApplyLock(ctx, t.ID)
    if err != nil {
        return nil, err
    }
    if !ok {
        return nil, transaction.ErrApplyInFlight
    }
    defer func() { _ = s.store.ReleaseApplyLock(ctx, t.ID) }()

    // Reload under the lock; a concurrent pay may have advanced the state
    // between our first read and the lock acquisition.
    t, err = s.store.Get(ctx, id)
    if err != nil {
        return nil, err
    }
    if t.State != model.StateReviewing {
        return nil, ErrNotPayable
    }

    t.State = model.StateSubmitting
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }

    outcome, err := s.submit(ctx, t)
    if err != nil {
        t.State = model.StateFailed
        t.FailureReason = model.ReasonSubmitFailed
        if errors.Is(err, repository.ErrSeatUnavailable) {
            t.Message = "one or more selected seats were just sold"
        } else {
            t.Message = "order could not be created; you have not been charged"
        }
        _ = s.store.Save(ctx, t)
        return nil, err
    }
    return outcome, nil
}

// submit prices, places and (for a zero total) settles the order.  The
// caller owns the SUBMITTING state and handles failure bookkeeping.
func (s *Submitter) submit(ctx context.Context, t *model.Transaction) (*PayOutcome, error) {
    seatRows, err := s.seats.GetByIDs(ctx, t.ShowtimeID, t.SeatIDs)
    if err != nil {
        return nil, err
    }
    seats := make([]model.ShowtimeSeat, 0, len(t.SeatIDs))
    for _, sid := range t.SeatIDs {
        row, ok := seatRows[sid]
        if !ok || row.Status != model.SeatAvailable {
            return nil, repository.ErrSeatUnavailable
        }
        seats = append(seats, row)
    }
    foodIDs := make([]uint64, 0, len(t.Foods))
    for fid := range t.Foods {
        foodIDs = append(foodIDs, fid)
    }
    foodRows, err := s.foods.GetByIDs(ctx, foodIDs)
    if err != nil {
        return nil, err
    }

    var applied *model.Voucher
    if t.VoucherCode != "" {
        base := pricing.Compute(seats, t.Foods, foodRows, nil)
        rec, verr := s.validator.Validate(ctx, t.VoucherCode, base.SeatSubtotal+base.FoodSubtotal)
        switch {
        case verr == nil:
            applied = rec
        case errors.Is(verr, voucher.ErrNotFound),
            errors.Is(verr, voucher.ErrNotApplicable),
            errors.Is(verr, voucher.ErrNothingToDiscount):
            t.VoucherCode = ""
            t.Message = "voucher removed: no longer applicable"
        default:
            return nil, verr
        }
    }
    t.Breakdown = pricing.Compute(seats, t.Foods, foodRows, applied)

    order := &model.Order{
        UserID:      t.UserID,
        ShowtimeID:  t.ShowtimeID,
        BookingCode: newBookingCode(),
        TxnRef:      uuid.NewString(),
        TotalAmount: t.Breakdown.FinalTotal,
    }
    if t.VoucherCode != "" {
        code := t.VoucherCode
        order.VoucherCode = &code
    }
    seatLines := repository.BuildSeatLines(t.SeatIDs, seatRows)
    foodLines := repository.BuildFoodLines(t.Foods, foodRows)
    if err := s.orders.PlaceOrder(ctx, order, seatLines, foodLines); err != nil {
        return nil, err
    }

    t.OrderID = order.ID
    t.BookingCode = order.BookingCode
    t.TxnRef = order.TxnRef

    if t.Breakdown.FinalTotal == 0 {
        // Fully covered by the voucher: no gateway round trip, settle now.
        if err := s.orders.SettleOrder(ctx, order.ID, model.OrderPaid); err != nil {
            return nil, err
        }
        paidAt := time.Now().UTC()
        order.PaidAt = &paidAt
        t.State = model.StatePaid
        t.Message = "booking confirmed; fully covered by voucher"
        if err := s.store.Save(ctx, t); err != nil {
            return nil, err
        }
        s.publishPaid(ctx, order, t)
        return &PayOutcome{Txn: t}, nil
    }

    redirect := s.gateway.PaymentURL(order.TxnRef, order.TotalAmount, "booking "+order.BookingCode)
    t.State = model.StateRedirected
    if err := s.store.Save(ctx, t); err != nil {
        return nil, err
    }
    return &PayOutcome{Txn: t, RedirectURL: redirect}, nil
}

// publishPaid fires the order.paid event, best effort.  The publisher logs
// its own failures; a down broker never fails a confirmed payment.
func (s *Submitter) publishPaid(ctx context.Context, order *model.Order, t *model.Transaction) {
    if s.publish == nil {
        return
    }
    paidAt := ""
    if order.PaidAt != nil {
        paidAt = order.PaidAt.Format("2006-01-02 15:04:05")
    }
    _ = s.publish(ctx, queue.OrderPaidEvent{
        OrderID:     order.ID,
        UserID:      order.UserID,
        ShowtimeID:  order.ShowtimeID,
        BookingCode: order.BookingCode,
        TxnRef:      order.TxnRef,
        TotalAmount: order.TotalAmount,
        PaidAt:      paidAt,
    })
}
