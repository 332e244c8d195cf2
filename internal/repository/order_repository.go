package repository // repository for order persistence

import (
    "context"
    "database/sql"
    "errors"
    "sort"
    "time"

    "github.com/cinego/booking/internal/model"
)

// OrderRepo provides persistence for orders and their seat/food lines.  An
// order is written exactly once (PENDING) inside a transaction shared with
// the seat status update, and afterwards only its status may change, PENDING
// to a terminal value.  All timestamps are stored in UTC.
type OrderRepo struct {
    db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so services can open transactions that
// span the order insert and the seat catalog update.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new PENDING order with its seat and food lines within
// the scope of an existing transaction.  It populates the generated ID on
// the order.  The caller must commit or rollback.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, order *model.Order, seats []model.OrderSeat, foods []model.OrderFood) error {
    const q = `INSERT INTO orders (user_id, showtime_id, booking_code, txn_ref, voucher_code, total_amount, status)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q,
        order.UserID, order.ShowtimeID, order.BookingCode, order.TxnRef,
        order.VoucherCode, order.TotalAmount, model.OrderPending,
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    order.ID = uint64(id)
    order.Status = model.OrderPending

    if len(seats) > 0 {
        query := `INSERT INTO order_seats (order_id, seat_id, price) VALUES `
        args := make([]interface{}, 0, len(seats)*3)
        for i, s := range seats {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?)"
            args = append(args, order.ID, s.SeatID, s.Price)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }
    if len(foods) > 0 {
        query := `INSERT INTO order_foods (order_id, food_id, quantity, unit_price) VALUES `
        args := make([]interface{}, 0, len(foods)*4)
        for i, f := range foods {
            if i > 0 {
                query += ","
            }
            query += "(?, ?, ?, ?)"
            args = append(args, order.ID, f.FoodID, f.Quantity, f.UnitPrice)
        }
        if _, err := tx.ExecContext(ctx, query, args...); err != nil {
            return err
        }
    }
    return nil
}

// GetByTxnRef returns the order carrying the given gateway transaction
// reference, or ErrOrderNotFound.
func (r *OrderRepo) GetByTxnRef(ctx context.Context, txnRef string) (*model.Order, error) {
    const q = `SELECT id, user_id, showtime_id, booking_code, txn_ref, voucher_code,
                      total_amount, status, paid_at, created_at, updated_at
               FROM orders WHERE txn_ref = ?`
    return r.scanOne(r.db.QueryRowContext(ctx, q, txnRef))
}

// GetByID returns the order with the given ID, or ErrOrderNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
    const q = `SELECT id, user_id, showtime_id, booking_code, txn_ref, voucher_code,
                      total_amount, status, paid_at, created_at, updated_at
               FROM orders WHERE id = ?`
    return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *OrderRepo) scanOne(row *sql.Row) (*model.Order, error) {
    var o model.Order
    var voucher sql.NullString
    var paidAt sql.NullTime
    err := row.Scan(
        &o.ID, &o.UserID, &o.ShowtimeID, &o.BookingCode, &o.TxnRef, &voucher,
        &o.TotalAmount, &o.Status, &paidAt, &o.CreatedAt, &o.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrOrderNotFound
        }
        return nil, err
    }
    if voucher.Valid {
        vc := voucher.String
        o.VoucherCode = &vc
    }
    if paidAt.Valid {
        t := paidAt.Time.UTC()
        o.PaidAt = &t
    }
    return &o, nil
}

// SeatIDsTx returns the seat IDs of an order within a transaction.  Used
// when a failed order releases its seats back to the catalog.
func (r *OrderRepo) SeatIDsTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]uint64, error) {
    const q = `SELECT seat_id FROM order_seats WHERE order_id = ?`
    rows, err := tx.QueryContext(ctx, q, orderID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}

// SettleTx moves a PENDING order to the given terminal status within a
// transaction.  The conditional WHERE guards against double settlement: if
// the order already left PENDING, no row is affected and ErrOrderSettled is
// returned so replayed callbacks cannot re-settle an order.
func (r *OrderRepo) SettleTx(ctx context.Context, tx *sql.Tx, orderID uint64, status string) error {
    var q string
    if status == model.OrderPaid {
        q = `UPDATE orders SET status = ?, paid_at = UTC_TIMESTAMP() WHERE id = ? AND status = 'PENDING'`
    } else {
        q = `UPDATE orders SET status = ? WHERE id = ? AND status = 'PENDING'`
    }
    res, err := tx.ExecContext(ctx, q, status, orderID)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return ErrOrderSettled
    }
    return nil
}

// StuckOrder is a PENDING order the reconciliation worker needs to settle
// from the gateway's source of truth.
type StuckOrder struct {
    ID         uint64
    ShowtimeID uint64
    TxnRef     string
    CreatedAt  time.Time
}

// FindStuckPending returns orders still PENDING that were created before
// the cutoff.  These are orders whose customer never came back from the
// gateway, or whose verification call failed.
func (r *OrderRepo) FindStuckPending(ctx context.Context, olderThan time.Duration, limit int) ([]StuckOrder, error) {
    const q = `SELECT id, showtime_id, txn_ref, created_at
               FROM orders
               WHERE status = 'PENDING' AND created_at < (UTC_TIMESTAMP() - INTERVAL ? SECOND)
               ORDER BY created_at
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, int64(olderThan/time.Second), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]StuckOrder, 0)
    for rows.Next() {
        var s StuckOrder
        if err := rows.Scan(&s.ID, &s.ShowtimeID, &s.TxnRef, &s.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// BuildSeatLines converts catalog rows into order seat lines in the order
// the seat IDs were selected.  Seats missing from the catalog map are
// skipped; callers validate completeness beforehand.
func BuildSeatLines(seatIDs []uint64, catalog map[uint64]model.ShowtimeSeat) []model.OrderSeat {
    lines := make([]model.OrderSeat, 0, len(seatIDs))
    for _, id := range seatIDs {
        s, ok := catalog[id]
        if !ok {
            continue
        }
        lines = append(lines, model.OrderSeat{SeatID: id, Price: s.Price})
    }
    return lines
}

// BuildFoodLines converts the food quantity map into order food lines with
// deterministic ordering by food ID.
func BuildFoodLines(foods map[uint64]uint32, catalog map[uint64]model.FoodItem) []model.OrderFood {
    ids := make([]uint64, 0, len(foods))
    for id, qty := range foods {
        if qty == 0 {
            continue
        }
        if _, ok := catalog[id]; !ok {
            continue
        }
        ids = append(ids, id)
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    lines := make([]model.OrderFood, 0, len(ids))
    for _, id := range ids {
        lines = append(lines, model.OrderFood{
            FoodID:    id,
            Quantity:  foods[id],
            UnitPrice: catalog[id].UnitPrice,
        })
    }
    return lines
}
