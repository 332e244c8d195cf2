package payment

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "time"
)

// ErrVerifyUnavailable wraps transport failures of the verification call.
// The caller must settle the client-visible outcome without claiming to
// know the true payment status; reconciliation fixes the order row later.
var ErrVerifyUnavailable = errors.New("payment verification unavailable")

// VerifyResult is the verification service's answer for one transaction
// reference.  Only Success==true combined with the gateway's success
// response code yields a PAID order.
type VerifyResult struct {
    Success     bool   `json:"success"`
    BookingCode string `json:"booking_code"`
    Message     string `json:"message"`
}

// Verifier is the server-side verification collaborator.  VerifyReturn
// checks a return callback's reference and code; QueryStatus asks for the
// settled truth about a reference without a callback in hand (used by the
// reconciliation worker).  Both must be idempotent on the remote side:
// repeated calls with the same reference return the same final status and
// never re-charge.
type Verifier interface {
    VerifyReturn(ctx context.Context, txnRef, responseCode string) (VerifyResult, error)
    QueryStatus(ctx context.Context, txnRef string) (VerifyResult, error)
}

// HTTPVerifier calls the verification service over HTTP with JSON bodies.
// The bearer credential is injected at construction rather than read from
// ambient storage on every call.
type HTTPVerifier struct {
    client   *http.Client
    endpoint string
    token    string
}

// NewHTTPVerifier constructs an HTTPVerifier with a bounded client timeout
// so a hung verification call cannot wedge the return handler.
func NewHTTPVerifier(endpoint, token string, timeout time.Duration) *HTTPVerifier {
    if timeout <= 0 {
        timeout = 10 * time.Second
    }
    return &HTTPVerifier{
        client:   &http.Client{Timeout: timeout},
        endpoint: endpoint,
        token:    token,
    }
}

// VerifyReturn POSTs the reference and code to the verification endpoint.
func (v *HTTPVerifier) VerifyReturn(ctx context.Context, txnRef, responseCode string) (VerifyResult, error) {
    return v.post(ctx, v.endpoint+"/verify", map[string]string{
        "txn_ref":       txnRef,
        "response_code": responseCode,
    })
}

// QueryStatus POSTs a status query for the reference.
func (v *HTTPVerifier) QueryStatus(ctx context.Context, txnRef string) (VerifyResult, error) {
    return v.post(ctx, v.endpoint+"/status", map[string]string{
        "txn_ref": txnRef,
    })
}

func (v *HTTPVerifier) post(ctx context.Context, u string, payload map[string]string) (VerifyResult, error) {
    body, err := json.Marshal(payload)
    if err != nil {
        return VerifyResult{}, err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
    if err != nil {
        return VerifyResult{}, err
    }
    req.Header.Set("Content-Type", "application/json")
    if v.token != "" {
        req.Header.Set("Authorization", "Bearer "+v.token)
    }
    resp, err := v.client.Do(req)
    if err != nil {
        return VerifyResult{}, fmt.Errorf("%w: %v", ErrVerifyUnavailable, err)
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return VerifyResult{}, fmt.Errorf("%w: status %d", ErrVerifyUnavailable, resp.StatusCode)
    }
    var out VerifyResult
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        return VerifyResult{}, fmt.Errorf("%w: %v", ErrVerifyUnavailable, err)
    }
    return out, nil
}
