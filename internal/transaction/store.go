// Package transaction owns the lifecycle of booking transactions: the
// durable document holding the customer's selection, the state machine over
// it, and its persistence.  The document lives in Redis rather than in
// process memory because the flow spans a full-page redirect to the payment
// gateway and back; nothing may depend on a live call stack surviving that
// navigation.
package transaction

import (
    "context"
    "encoding/json"
    "errors"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/cinego/booking/internal/model"
)

// ErrTxnNotFound is returned when no transaction exists for the given ID or
// gateway reference (possibly expired).
var ErrTxnNotFound = errors.New("transaction not found")

// Store persists transaction documents and provides the locks the pipeline
// relies on for correctness.  It is an interface so services accept fakes
// in tests while production wires RedisStore.
type Store interface {
    // Save writes the document, refreshing its TTL, and indexes the gateway
    // reference when one is set.
    Save(ctx context.Context, t *model.Transaction) error
    // Get loads a document by ID, returning ErrTxnNotFound when absent.
    Get(ctx context.Context, id string) (*model.Transaction, error)
    // GetByRef loads a document by its gateway transaction reference.
    GetByRef(ctx context.Context, txnRef string) (*model.Transaction, error)
    // AcquireSubmitLock takes the per-transaction pay lock.  It returns
    // false when another submission already holds it, which is how rapid
    // double clicks collapse into one order.
    AcquireSubmitLock(ctx context.Context, id string) (bool, error)
    // ReleaseSubmitLock drops the pay lock.
    ReleaseSubmitLock(ctx context.Context, id string) error
    // AcquireApplyLock takes the per-transaction voucher-apply lock so two
    // concurrent applies of the same code cannot race.
    AcquireApplyLock(ctx context.Context, id string) (bool, error)
    // ReleaseApplyLock drops the voucher-apply lock.
    ReleaseApplyLock(ctx context.Context, id string) error
    // MarkResolving is the check-then-set guard on the return leg: the
    // first caller per reference gets true and proceeds to verification,
    // every later caller gets false and must read the cached outcome.
    MarkResolving(ctx context.Context, txnRef string) (bool, error)
}

// RedisStore is the production Store.  Documents are JSON values under
// txn:<id> with a TTL long enough to cover any realistic gateway round trip
// plus a customer who only returns the next day.
type RedisStore struct {
    rdb *redis.Client
    ttl time.Duration
}

// NewRedisStore constructs a RedisStore.  The client must be non-nil; the
// transaction store is a hard dependency, unlike the response cache.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
    if rdb == nil {
        panic("nil redis client passed to NewRedisStore")
    }
    if ttl <= 0 {
        ttl = 24 * time.Hour
    }
    return &RedisStore{rdb: rdb, ttl: ttl}
}

const (
    txnKeyPrefix     = "txn:"
    refKeyPrefix     = "txnref:"
    submitKeyPrefix  = "txn:submit:"
    applyKeyPrefix   = "txn:apply:"
    resolveKeyPrefix = "payreturn:resolved:"

    submitLockTTL = 30 * time.Second
    applyLockTTL  = 10 * time.Second
)

// Save marshals and writes the document.  When the document carries a
// gateway reference the reference index is written with the same TTL so the
// return endpoint can find the transaction after the redirect.
func (s *RedisStore) Save(ctx context.Context, t *model.Transaction) error {
    t.UpdatedAt = time.Now().UTC()
    body, err := json.Marshal(t)
    if err != nil {
        return err
    }
    if err := s.rdb.Set(ctx, txnKeyPrefix+t.ID, body, s.ttl).Err(); err != nil {
        return err
    }
    if t.TxnRef != "" {
        if err := s.rdb.Set(ctx, refKeyPrefix+t.TxnRef, t.ID, s.ttl).Err(); err != nil {
            return err
        }
    }
    return nil
}

// Get loads and unmarshals a document by ID.
func (s *RedisStore) Get(ctx context.Context, id string) (*model.Transaction, error) {
    body, err := s.rdb.Get(ctx, txnKeyPrefix+id).Bytes()
    if err != nil {
        if errors.Is(err, redis.Nil) {
            return nil, ErrTxnNotFound
        }
        return nil, err
    }
    var t model.Transaction
    if err := json.Unmarshal(body, &t); err != nil {
        return nil, err
    }
    return &t, nil
}

// GetByRef resolves the reference index then loads the document.
func (s *RedisStore) GetByRef(ctx context.Context, txnRef string) (*model.Transaction, error) {
    id, err := s.rdb.Get(ctx, refKeyPrefix+txnRef).Result()
    if err != nil {
        if errors.Is(err, redis.Nil) {
            return nil, ErrTxnNotFound
        }
        return nil, err
    }
    return s.Get(ctx, id)
}

// AcquireSubmitLock takes the pay lock with SETNX.  The short TTL is a
// safety valve: if the process dies mid-submit the lock clears itself and
// the state check on the document still refuses a second order.
func (s *RedisStore) AcquireSubmitLock(ctx context.Context, id string) (bool, error) {
    return s.rdb.SetNX(ctx, submitKeyPrefix+id, 1, submitLockTTL).Result()
}

// ReleaseSubmitLock drops the pay lock.
func (s *RedisStore) ReleaseSubmitLock(ctx context.Context, id string) error {
    return s.rdb.Del(ctx, submitKeyPrefix+id).Err()
}

// AcquireApplyLock takes the voucher-apply lock with SETNX.
func (s *RedisStore) AcquireApplyLock(ctx context.Context, id string) (bool, error) {
    return s.rdb.SetNX(ctx, applyKeyPrefix+id, 1, applyLockTTL).Result()
}

// ReleaseApplyLock drops the voucher-apply lock.
func (s *RedisStore) ReleaseApplyLock(ctx context.Context, id string) error {
    return s.rdb.Del(ctx, applyKeyPrefix+id).Err()
}

// MarkResolving marks a gateway reference as being resolved.  SETNX makes
// the read-modify-write atomic: of two near-simultaneous callback
// deliveries exactly one proceeds past this check.
func (s *RedisStore) MarkResolving(ctx context.Context, txnRef string) (bool, error) {
    return s.rdb.SetNX(ctx, resolveKeyPrefix+txnRef, 1, s.ttl).Result()
}
