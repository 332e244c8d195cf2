package model

// FoodItem is a concession product sold alongside tickets (popcorn, drinks,
// combos).  Read-only reference data for the pipeline: the transaction only
// stores (food id, quantity) pairs.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name.
//  UnitPrice – price per unit in the smallest currency unit.
//  IsActive  – inactive items are hidden from the catalog.
type FoodItem struct {
    ID        uint64 `json:"id"`
    Name      string `json:"name"`
    UnitPrice int64  `json:"unit_price"`
    IsActive  bool   `json:"is_active"`
}
