// Package booking owns the two legs of the pipeline that touch money: the
// guarded submission that creates exactly one order per pay action, and the
// return-leg resolution that settles it after the gateway redirect.  A
// reconciliation worker sweeps up orders whose outcome never reached us.
package booking

import (
    "context"
    "database/sql"
    "time"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/repository"
)

// OrderStore is what the submitter, resolver and reconciliation worker need
// from order persistence.  The SQL implementation below hides the
// transaction plumbing so tests can fake the whole thing in memory.
type OrderStore interface {
    // PlaceOrder atomically marks the seats SOLD and inserts the PENDING
    // order with its lines.  repository.ErrSeatUnavailable is returned,
    // with nothing written, when any seat was bought in the meantime.
    PlaceOrder(ctx context.Context, order *model.Order, seats []model.OrderSeat, foods []model.OrderFood) error
    // SettleOrder moves a PENDING order to the given terminal status.  On
    // FAILED the order's seats are released back to AVAILABLE.  Returns
    // repository.ErrOrderSettled when the order already left PENDING.
    SettleOrder(ctx context.Context, orderID uint64, status string) error
    // OrderByTxnRef loads the order carrying a gateway reference.
    OrderByTxnRef(ctx context.Context, txnRef string) (*model.Order, error)
    // StuckPending lists PENDING orders older than the cutoff for the
    // reconciliation worker.
    StuckPending(ctx context.Context, olderThanSeconds int64, limit int) ([]repository.StuckOrder, error)
}

// SQLOrderStore implements OrderStore over MySQL, coordinating the order
// repository and the seat catalog inside one database transaction.
type SQLOrderStore struct {
    db     *sql.DB
    orders *repository.OrderRepo
    seats  *repository.SeatCatalogRepo
}

// NewSQLOrderStore constructs a SQLOrderStore.  All dependencies must be
// non-nil.
func NewSQLOrderStore(db *sql.DB, orders *repository.OrderRepo, seats *repository.SeatCatalogRepo) *SQLOrderStore {
    if db == nil || orders == nil || seats == nil {
        panic("nil dependency passed to NewSQLOrderStore")
    }
    return &SQLOrderStore{db: db, orders: orders, seats: seats}
}

// PlaceOrder runs the seat flip and the order insert in one transaction so
// either both happen or neither does.
func (s *SQLOrderStore) PlaceOrder(ctx context.Context, order *model.Order, seats []model.OrderSeat, foods []model.OrderFood) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    seatIDs := make([]uint64, 0, len(seats))
    for _, line := range seats {
        seatIDs = append(seatIDs, line.SeatID)
    }
    if err := s.seats.MarkSoldTx(ctx, tx, order.ShowtimeID, seatIDs); err != nil {
        return err
    }
    if err := s.orders.CreateTx(ctx, tx, order, seats, foods); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// SettleOrder applies the terminal status with the conditional update and,
// for FAILED orders, puts the seats back on sale in the same transaction.
func (s *SQLOrderStore) SettleOrder(ctx context.Context, orderID uint64, status string) error {
    order, err := s.orders.GetByID(ctx, orderID)
    if err != nil {
        return err
    }
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := s.orders.SettleTx(ctx, tx, orderID, status); err != nil {
        return err
    }
    if status == model.OrderFailed || status == model.OrderCancelled {
        seatIDs, err := s.orders.SeatIDsTx(ctx, tx, orderID)
        if err != nil {
            return err
        }
        if err := s.seats.ReleaseTx(ctx, tx, order.ShowtimeID, seatIDs); err != nil {
            return err
        }
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// OrderByTxnRef delegates to the order repository.
func (s *SQLOrderStore) OrderByTxnRef(ctx context.Context, txnRef string) (*model.Order, error) {
    return s.orders.GetByTxnRef(ctx, txnRef)
}

// StuckPending delegates to the order repository.
func (s *SQLOrderStore) StuckPending(ctx context.Context, olderThanSeconds int64, limit int) ([]repository.StuckOrder, error) {
    return s.orders.FindStuckPending(ctx, time.Duration(olderThanSeconds)*time.Second, limit)
}
