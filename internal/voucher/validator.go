// Package voucher decides whether a discount code is usable for a given
// subtotal.  The backing lookup is an interface so handlers use the MySQL
// repository while tests supply an in-memory fake.
package voucher

import (
    "context"
    "errors"
    "strings"
    "time"

    "github.com/cinego/booking/internal/model"
    "github.com/cinego/booking/internal/repository"
)

// Validation errors.  Handlers translate these into 400/404 responses; none
// of them leaves the transaction in a broken state because applying a
// voucher only mutates the document after successful validation.
var (
    ErrEmptyCode         = errors.New("voucher code is empty")
    ErrNothingToDiscount = errors.New("subtotal is zero, nothing to discount")
    ErrNotFound          = errors.New("voucher not found")
    ErrNotApplicable     = errors.New("voucher expired or not applicable")
)

// Lookup resolves a voucher code to its record.  Implementations report a
// missing code as ErrNotFound or repository.ErrVoucherNotFound; Validate
// translates the latter so callers only ever match on ErrNotFound.
type Lookup interface {
    FindByCode(ctx context.Context, code string) (*model.Voucher, error)
}

// Validator validates voucher codes against the lookup service.  The now
// function is injectable so expiry tests do not depend on the wall clock.
type Validator struct {
    lookup Lookup
    now    func() time.Time
}

// NewValidator constructs a Validator.  The lookup must be non-nil.
func NewValidator(lookup Lookup) *Validator {
    if lookup == nil {
        panic("nil lookup passed to NewValidator")
    }
    return &Validator{lookup: lookup, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source.  Intended for tests.
func (v *Validator) WithClock(now func() time.Time) *Validator {
    v.now = now
    return v
}

// Validate checks a code against the current pre-discount subtotal and
// returns the voucher on success.  It rejects empty codes and zero subtotals
// before touching the lookup service at all, and rejects codes the lookup
// reports as unknown, inactive or outside their validity window.
func (v *Validator) Validate(ctx context.Context, code string, subtotal int64) (*model.Voucher, error) {
    code = strings.TrimSpace(strings.ToUpper(code))
    if code == "" {
        return nil, ErrEmptyCode
    }
    if subtotal <= 0 {
        return nil, ErrNothingToDiscount
    }
    rec, err := v.lookup.FindByCode(ctx, code)
    if err != nil {
        if errors.Is(err, repository.ErrVoucherNotFound) {
            return nil, ErrNotFound
        }
        return nil, err
    }
    if rec == nil {
        return nil, ErrNotFound
    }
    if !rec.Usable(v.now()) {
        return nil, ErrNotApplicable
    }
    return rec, nil
}
