package booking

import (
    "crypto/rand"
    "encoding/base32"
)

// bookingCodeAlphabet avoids 0/O and 1/I confusion when the code is read
// aloud at the box office.
var bookingCodeEncoding = base32.NewEncoding("ABCDEFGHJKLMNPQRSTUVWXYZ23456789").WithPadding(base32.NoPadding)

// newBookingCode returns a short public ticket code such as "CG-7KQ2MXR9".
func newBookingCode() string {
    buf := make([]byte, 5)
    if _, err := rand.Read(buf); err != nil {
        // crypto/rand never fails on supported platforms
        panic(err)
    }
    return "CG-" + bookingCodeEncoding.EncodeToString(buf)
}
