package repository // repository for voucher lookup

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/cinego/booking/internal/model"
)

// VoucherRepo looks up discount vouchers.  It implements voucher.Lookup so
// the validator is wired to MySQL in production and to fakes in tests.
type VoucherRepo struct {
    db *sql.DB
}

// NewVoucherRepo constructs a VoucherRepo given a DB handle.
func NewVoucherRepo(db *sql.DB) *VoucherRepo {
    return &VoucherRepo{db: db}
}

// FindByCode returns the voucher with the given code or ErrVoucherNotFound.
// Codes are stored upper-case; callers are expected to normalize before
// lookup (the validator does).
func (r *VoucherRepo) FindByCode(ctx context.Context, code string) (*model.Voucher, error) {
    const q = `SELECT id, code, mode, magnitude, max_discount, valid_from, valid_until, is_active
               FROM vouchers WHERE code = ?`
    var v model.Voucher
    var from, until sql.NullTime
    err := r.db.QueryRowContext(ctx, q, code).Scan(
        &v.ID, &v.Code, &v.Mode, &v.Magnitude, &v.MaxDiscount, &from, &until, &v.IsActive,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrVoucherNotFound
        }
        return nil, err
    }
    if from.Valid {
        v.ValidFrom = from.Time.UTC()
    }
    if until.Valid {
        v.ValidUntil = until.Time.UTC()
    }
    return &v, nil
}

// ListUsable returns all vouchers usable at the given instant, ordered by
// code.  Backs the "my vouchers" listing.
func (r *VoucherRepo) ListUsable(ctx context.Context, now time.Time) ([]model.Voucher, error) {
    const q = `SELECT id, code, mode, magnitude, max_discount, valid_from, valid_until, is_active
               FROM vouchers
               WHERE is_active = 1
                 AND (valid_from IS NULL OR valid_from <= ?)
                 AND (valid_until IS NULL OR valid_until >= ?)
               ORDER BY code`
    rows, err := r.db.QueryContext(ctx, q, now, now)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Voucher, 0)
    for rows.Next() {
        var v model.Voucher
        var from, until sql.NullTime
        if err := rows.Scan(&v.ID, &v.Code, &v.Mode, &v.Magnitude, &v.MaxDiscount, &from, &until, &v.IsActive); err != nil {
            return nil, err
        }
        if from.Valid {
            v.ValidFrom = from.Time.UTC()
        }
        if until.Valid {
            v.ValidUntil = until.Time.UTC()
        }
        out = append(out, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
