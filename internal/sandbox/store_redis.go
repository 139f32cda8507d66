package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore keeps every record as a JSON string under linkpay:<kind>:<id>.
// Sessions expire after ttl; customers and payments do not.
type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, sessionTTL time.Duration) Store {
	return &redisStore{rdb: rdb, ttl: sessionTTL}
}

func redisKey(kind, id string) string { return "linkpay:" + kind + ":" + id }

func (r *redisStore) put(ctx context.Context, kind, id string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, redisKey(kind, id), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", kind, err)
	}
	return nil
}

func (r *redisStore) get(ctx context.Context, kind, id string, v any) error {
	b, err := r.rdb.Get(ctx, redisKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", kind, err)
	}
	return json.Unmarshal(b, v)
}

func (r *redisStore) SaveSession(ctx context.Context, s Session) error {
	return r.put(ctx, "session", s.Key, s, r.ttl)
}

func (r *redisStore) Session(ctx context.Context, key string) (Session, error) {
	var s Session
	err := r.get(ctx, "session", key, &s)
	return s, err
}

func (r *redisStore) SaveCustomer(ctx context.Context, c Customer) error {
	return r.put(ctx, "customer", c.ID, c, 0)
}

func (r *redisStore) Customer(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := r.get(ctx, "customer", id, &c)
	return c, err
}

func (r *redisStore) SavePayment(ctx context.Context, p PaymentRecord) error {
	return r.put(ctx, "payment", p.ID, p, 0)
}

func (r *redisStore) Payment(ctx context.Context, id string) (PaymentRecord, error) {
	var p PaymentRecord
	err := r.get(ctx, "payment", id, &p)
	return p, err
}
