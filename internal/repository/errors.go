// Package repository defines the data access layer and the sentinel error
// values reused across repositories. These sentinels let handlers and
// services distinguish failure scenarios without string matching: for
// example ErrSeatUnavailable signals that another customer bought a seat
// between selection and submission, while ErrOrderSettled signals that an
// order already left PENDING and must not be settled again.
package repository

import "errors"

// ErrOrderNotFound is returned when no order matches the given identifier
// or transaction reference.
var ErrOrderNotFound = errors.New("order not found")

// ErrSeatUnavailable is returned when a conditional seat status update
// affects fewer rows than requested, meaning at least one seat was no
// longer AVAILABLE. The enclosing transaction must be rolled back.
var ErrSeatUnavailable = errors.New("seat no longer available")

// ErrOrderSettled is returned by conditional status updates when the order
// has already reached a terminal status. Callers treat this as "someone
// else settled it first" and re-read the row instead of failing.
var ErrOrderSettled = errors.New("order already settled")

// ErrVoucherNotFound is returned when a voucher code has no matching row.
var ErrVoucherNotFound = errors.New("voucher not found")
