package repository // repository for the showtime seat catalog

import (
    "context"
    "database/sql"
    "strings"

    "github.com/cinego/booking/internal/model"
)

// SeatCatalogRepo reads the seat map of a showtime and flips seat statuses
// when orders are created.  The pipeline never creates catalog rows; the
// showtime_seats table is owned by the catalog side of the system.
type SeatCatalogRepo struct {
    db *sql.DB
}

// NewSeatCatalogRepo constructs a SeatCatalogRepo given a DB handle.
func NewSeatCatalogRepo(db *sql.DB) *SeatCatalogRepo {
    return &SeatCatalogRepo{db: db}
}

// ListByShowtime returns every seat of the showtime ordered by row and
// number.  An empty slice (not nil) is returned when the showtime has no
// seats, which handlers serialize as [].
func (r *SeatCatalogRepo) ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.ShowtimeSeat, error) {
    const q = `SELECT id, showtime_id, row_label, seat_number, class, status, price
               FROM showtime_seats
               WHERE showtime_id = ?
               ORDER BY row_label, seat_number`
    rows, err := r.db.QueryContext(ctx, q, showtimeID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats := make([]model.ShowtimeSeat, 0)
    for rows.Next() {
        var s model.ShowtimeSeat
        if err := rows.Scan(&s.SeatID, &s.ShowtimeID, &s.RowLabel, &s.SeatNumber, &s.Class, &s.Status, &s.Price); err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// GetByIDs returns the catalog rows for the given seat IDs of a showtime.
// Seats not found are simply absent from the result; callers decide whether
// that is an error.  Passing an empty slice returns an empty map.
func (r *SeatCatalogRepo) GetByIDs(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]model.ShowtimeSeat, error) {
    out := make(map[uint64]model.ShowtimeSeat, len(seatIDs))
    if len(seatIDs) == 0 {
        return out, nil
    }
    placeholders := make([]string, 0, len(seatIDs))
    args := make([]interface{}, 0, len(seatIDs)+1)
    args = append(args, showtimeID)
    for _, id := range seatIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `SELECT id, showtime_id, row_label, seat_number, class, status, price
          FROM showtime_seats
          WHERE showtime_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var s model.ShowtimeSeat
        if err := rows.Scan(&s.SeatID, &s.ShowtimeID, &s.RowLabel, &s.SeatNumber, &s.Class, &s.Status, &s.Price); err != nil {
            return nil, err
        }
        out[s.SeatID] = s
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// MarkSoldTx flips the given seats to SOLD within a transaction, but only
// those still AVAILABLE.  When fewer rows are affected than seats were
// requested, another order won the race for at least one seat and
// ErrSeatUnavailable is returned so the caller rolls back.
func (r *SeatCatalogRepo) MarkSoldTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) error {
    if len(seatIDs) == 0 {
        return nil
    }
    placeholders := make([]string, 0, len(seatIDs))
    args := make([]interface{}, 0, len(seatIDs)+2)
    args = append(args, model.SeatSold, showtimeID)
    for _, id := range seatIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `UPDATE showtime_seats SET status = ?
          WHERE showtime_id = ? AND id IN (` + strings.Join(placeholders, ",") + `) AND status = 'AVAILABLE'`
    res, err := tx.ExecContext(ctx, q, args...)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected != int64(len(seatIDs)) {
        return ErrSeatUnavailable
    }
    return nil
}

// ReleaseTx returns seats to AVAILABLE within a transaction.  Used when a
// pending order is settled FAILED so the seats go back on sale.
func (r *SeatCatalogRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, seatIDs []uint64) error {
    if len(seatIDs) == 0 {
        return nil
    }
    placeholders := make([]string, 0, len(seatIDs))
    args := make([]interface{}, 0, len(seatIDs)+2)
    args = append(args, model.SeatAvailable, showtimeID)
    for _, id := range seatIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `UPDATE showtime_seats SET status = ?
          WHERE showtime_id = ? AND id IN (` + strings.Join(placeholders, ",") + `)`
    _, err := tx.ExecContext(ctx, q, args...)
    return err
}
