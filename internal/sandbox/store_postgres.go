package sandbox

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store { return &pgStore{pool: pool} }

// EnsureSchema creates the sandbox tables if they do not already exist.
// Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS link_sessions (
  session_key text PRIMARY KEY,
  client_id text NOT NULL,
  first_name text,
  last_name text,
  email text,
  customer_id text,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS link_customers (
  id text PRIMARY KEY,
  session_key text NOT NULL,
  email text,
  linked_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS payments (
  id text PRIMARY KEY,
  status text NOT NULL,
  client_id text NOT NULL DEFAULT '',
  client_reference_id text,
  soft_descriptor text,
  currency text NOT NULL,
  amount double precision NOT NULL,
  customer_id text NOT NULL,
  merchant_id text NOT NULL,
  created_at timestamptz NOT NULL DEFAULT NOW()
);
ALTER TABLE payments ADD COLUMN IF NOT EXISTS client_id text NOT NULL DEFAULT '';`)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *pgStore) SaveSession(ctx context.Context, s Session) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO link_sessions(session_key, client_id, first_name, last_name, email, customer_id, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7)
ON CONFLICT (session_key) DO UPDATE SET customer_id = EXCLUDED.customer_id`,
		s.Key, s.ClientID, s.First, s.Last, s.Email, s.CustomerID, s.CreatedAt)
	return err
}

func (p *pgStore) Session(ctx context.Context, key string) (Session, error) {
	var s Session
	err := p.pool.QueryRow(ctx, `SELECT session_key, client_id, COALESCE(first_name,''), COALESCE(last_name,''),
COALESCE(email,''), COALESCE(customer_id,''), created_at FROM link_sessions WHERE session_key=$1`, key).
		Scan(&s.Key, &s.ClientID, &s.First, &s.Last, &s.Email, &s.CustomerID, &s.CreatedAt)
	return s, notFound(err)
}

func (p *pgStore) SaveCustomer(ctx context.Context, c Customer) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO link_customers(id, session_key, email, linked_at) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO NOTHING`, c.ID, c.SessionKey, c.Email, c.LinkedAt)
	return err
}

func (p *pgStore) Customer(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := p.pool.QueryRow(ctx, `SELECT id, session_key, COALESCE(email,''), linked_at FROM link_customers WHERE id=$1`, id).
		Scan(&c.ID, &c.SessionKey, &c.Email, &c.LinkedAt)
	return c, notFound(err)
}

func (p *pgStore) SavePayment(ctx context.Context, r PaymentRecord) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO payments(id, status, client_id, client_reference_id, soft_descriptor, currency, amount, customer_id, merchant_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.Status, r.ClientID, r.ClientReferenceID, r.SoftDescriptor, r.Currency, r.Amount, r.CustomerID, r.MerchantID, r.CreatedAt)
	return err
}

func (p *pgStore) Payment(ctx context.Context, id string) (PaymentRecord, error) {
	var r PaymentRecord
	err := p.pool.QueryRow(ctx, `SELECT id, status, client_id, COALESCE(client_reference_id,''), COALESCE(soft_descriptor,''), currency, amount,
customer_id, merchant_id, created_at FROM payments WHERE id=$1`, id).
		Scan(&r.ID, &r.Status, &r.ClientID, &r.ClientReferenceID, &r.SoftDescriptor, &r.Currency, &r.Amount, &r.CustomerID, &r.MerchantID, &r.CreatedAt)
	return r, notFound(err)
}
