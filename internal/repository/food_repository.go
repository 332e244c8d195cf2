package repository // repository for the concession catalog

import (
    "context"
    "database/sql"
    "strings"

    "github.com/cinego/booking/internal/model"
)

// FoodRepo reads the concession catalog.  Read-only for the pipeline.
type FoodRepo struct {
    db *sql.DB
}

// NewFoodRepo constructs a FoodRepo given a DB handle.
func NewFoodRepo(db *sql.DB) *FoodRepo {
    return &FoodRepo{db: db}
}

// ListActive returns all active food items ordered by name.
func (r *FoodRepo) ListActive(ctx context.Context) ([]model.FoodItem, error) {
    const q = `SELECT id, name, unit_price, is_active FROM food_items WHERE is_active = 1 ORDER BY name`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    items := make([]model.FoodItem, 0)
    for rows.Next() {
        var f model.FoodItem
        if err := rows.Scan(&f.ID, &f.Name, &f.UnitPrice, &f.IsActive); err != nil {
            return nil, err
        }
        items = append(items, f)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return items, nil
}

// GetByIDs returns active food items for the given IDs keyed by ID.  Items
// that do not exist or are inactive are absent from the result.
func (r *FoodRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.FoodItem, error) {
    out := make(map[uint64]model.FoodItem, len(ids))
    if len(ids) == 0 {
        return out, nil
    }
    placeholders := make([]string, 0, len(ids))
    args := make([]interface{}, 0, len(ids))
    for _, id := range ids {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `SELECT id, name, unit_price, is_active FROM food_items
          WHERE is_active = 1 AND id IN (` + strings.Join(placeholders, ",") + `)`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var f model.FoodItem
        if err := rows.Scan(&f.ID, &f.Name, &f.UnitPrice, &f.IsActive); err != nil {
            return nil, err
        }
        out[f.ID] = f
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}
