package sandbox

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Session is a linking session created by the session-key endpoint.
type Session struct {
	Key        string    `json:"key"`
	ClientID   string    `json:"client_id"`
	First      string    `json:"first"`
	Last       string    `json:"last"`
	Email      string    `json:"email"`
	CustomerID string    `json:"customer_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Customer is an account linked through the hosted linking page.
type Customer struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Email      string    `json:"email"`
	LinkedAt   time.Time `json:"linked_at"`
}

type PaymentRecord struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"`
	ClientID          string    `json:"client_id"`
	ClientReferenceID string    `json:"client_reference_id"`
	SoftDescriptor    string    `json:"soft_descriptor"`
	Currency          string    `json:"currency"`
	Amount            float64   `json:"amount"`
	CustomerID        string    `json:"customer_id"`
	MerchantID        string    `json:"merchant_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// Store persists sandbox state. Lookups of unknown ids return ErrNotFound.
type Store interface {
	SaveSession(ctx context.Context, s Session) error
	Session(ctx context.Context, key string) (Session, error)
	SaveCustomer(ctx context.Context, c Customer) error
	Customer(ctx context.Context, id string) (Customer, error)
	SavePayment(ctx context.Context, p PaymentRecord) error
	Payment(ctx context.Context, id string) (PaymentRecord, error)
}
