// Package payment encapsulates the redirect contract with the external
// payment gateway: building the signed outbound URL, parsing the untrusted
// return parameters, and the server-side verification call that alone
// decides whether an order is PAID.
package payment

import (
    "crypto/hmac"
    "crypto/sha512"
    "encoding/hex"
    "errors"
    "net/url"
    "sort"
    "strconv"
    "time"
)

// Gateway query parameter names and the response code the gateway sends for
// an approved payment.  The return callback must carry at least the
// transaction reference and a response code to be considered well-formed.
const (
    ParamTxnRef       = "vnp_TxnRef"
    ParamAmount       = "vnp_Amount"
    ParamOrderInfo    = "vnp_OrderInfo"
    ParamCreateDate   = "vnp_CreateDate"
    ParamReturnURL    = "vnp_ReturnUrl"
    ParamTmnCode      = "vnp_TmnCode"
    ParamResponseCode = "vnp_ResponseCode"
    ParamSecureHash   = "vnp_SecureHash"

    ResponseCodeSuccess = "00"
)

// ErrMalformedCallback is returned when the return redirect is missing the
// transaction reference or the response code.  It must stay distinguishable
// from a gateway decline so support can separate "the gateway said no" from
// "we never got a clean answer".
var ErrMalformedCallback = errors.New("malformed gateway callback: missing txnRef or responseCode")

// Gateway builds outbound redirect URLs for the external payment page and
// checks the integrity of return redirects.  Both directions are signed
// with HMAC-SHA512 over the sorted, URL-encoded parameters, which is the
// gateway's published scheme.
type Gateway struct {
    payURL    string // base URL of the gateway's payment page
    returnURL string // our return endpoint the gateway redirects back to
    tmnCode   string // merchant terminal code issued by the gateway
    secret    []byte // HMAC secret shared with the gateway
    now       func() time.Time
}

// NewGateway constructs a Gateway.  All parameters are required.
func NewGateway(payURL, returnURL, tmnCode, secret string) *Gateway {
    return &Gateway{
        payURL:    payURL,
        returnURL: returnURL,
        tmnCode:   tmnCode,
        secret:    []byte(secret),
        now:       func() time.Time { return time.Now().UTC() },
    }
}

// WithClock overrides the time source.  Intended for tests.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
    g.now = now
    return g
}

// PaymentURL builds the full-page redirect URL for a pending order.  The
// amount is multiplied by 100 on the wire as the gateway expects, and the
// whole query is signed so the gateway can verify it came from us.
func (g *Gateway) PaymentURL(txnRef string, amount int64, orderInfo string) string {
    q := url.Values{}
    q.Set(ParamTmnCode, g.tmnCode)
    q.Set(ParamTxnRef, txnRef)
    q.Set(ParamAmount, strconv.FormatInt(amount*100, 10))
    q.Set(ParamOrderInfo, orderInfo)
    q.Set(ParamCreateDate, g.now().Format("20060102150405"))
    q.Set(ParamReturnURL, g.returnURL)
    q.Set(ParamSecureHash, g.sign(q))
    return g.payURL + "?" + q.Encode()
}

// ReturnParams carries the two fields a well-formed callback must provide.
// They are untrusted until the verification service confirms them.
type ReturnParams struct {
    TxnRef       string
    ResponseCode string
}

// ParseReturn extracts the transaction reference and response code from a
// return redirect's query.  Missing either field yields
// ErrMalformedCallback; when a secure hash is present it must also match,
// otherwise the callback is treated as malformed rather than declined.
func (g *Gateway) ParseReturn(q url.Values) (ReturnParams, error) {
    p := ReturnParams{
        TxnRef:       q.Get(ParamTxnRef),
        ResponseCode: q.Get(ParamResponseCode),
    }
    if p.TxnRef == "" || p.ResponseCode == "" {
        return ReturnParams{}, ErrMalformedCallback
    }
    if hash := q.Get(ParamSecureHash); hash != "" {
        unsigned := url.Values{}
        for k, vs := range q {
            if k == ParamSecureHash {
                continue
            }
            for _, v := range vs {
                unsigned.Add(k, v)
            }
        }
        if !hmac.Equal([]byte(hash), []byte(g.sign(unsigned))) {
            return ReturnParams{}, ErrMalformedCallback
        }
    }
    return p, nil
}

// Approved reports whether the gateway-reported response code is the
// success sentinel.  A true value alone never yields PAID; verification
// must also succeed.
func (p ReturnParams) Approved() bool {
    return p.ResponseCode == ResponseCodeSuccess
}

// sign computes the hex HMAC-SHA512 of the sorted key=value pairs.
func (g *Gateway) sign(q url.Values) string {
    keys := make([]string, 0, len(q))
    for k := range q {
        keys = append(keys, k)
    }
    sort.Strings(keys)
    data := url.Values{}
    for _, k := range keys {
        data.Set(k, q.Get(k))
    }
    mac := hmac.New(sha512.New, g.secret)
    mac.Write([]byte(data.Encode()))
    return hex.EncodeToString(mac.Sum(nil))
}
