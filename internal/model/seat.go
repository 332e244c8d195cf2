package model

import "strconv"

// Seat availability statuses as stored in the showtime_seats table.  Only
// AVAILABLE seats may enter a selection; HELD and SOLD seats are ignored
// when toggled so two customers racing for the same seat do not error out.
const (
    SeatAvailable = "AVAILABLE"
    SeatHeld      = "HELD"
    SeatSold      = "SOLD"
)

// Seat classes.  The class determines the price multiplier applied when a
// showtime's seat map is generated.
const (
    SeatClassStandard = "STANDARD"
    SeatClassVIP      = "VIP"
    SeatClassCouple   = "COUPLE"
)

// ShowtimeSeat describes one seat of a showtime's seat map: its label,
// class, availability and price.  The pipeline only reads these rows; it
// records chosen seat IDs on the transaction and flips status to SOLD when
// an order is created.
//
// Fields:
//  SeatID     – primary key of the showtime_seats row.
//  ShowtimeID – showtime this seat belongs to.
//  RowLabel   – letter designating the row (e.g. "E").
//  SeatNumber – number of the seat within the row.
//  Class      – STANDARD, VIP or COUPLE.
//  Status     – AVAILABLE, HELD or SOLD.
//  Price      – price in the smallest currency unit.
type ShowtimeSeat struct {
    SeatID     uint64 `json:"seat_id"`
    ShowtimeID uint64 `json:"showtime_id"`
    RowLabel   string `json:"row_label"`
    SeatNumber uint32 `json:"seat_number"`
    Class      string `json:"class"`
    Status     string `json:"status"`
    Price      int64  `json:"price"`
}

// Label returns the human readable seat label, e.g. "E7".
func (s ShowtimeSeat) Label() string {
    return s.RowLabel + strconv.FormatUint(uint64(s.SeatNumber), 10)
}
