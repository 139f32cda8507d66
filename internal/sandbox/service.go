package sandbox

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"linkpay/internal/merchant"
	"linkpay/internal/policy"
	"linkpay/pkg/config"
)

const paymentPending = "PENDING"

// Error is a request failure with the HTTP status and problem slug to report.
type Error struct {
	Status  int
	Slug    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func fail(status int, slug, format string, args ...any) *Error {
	return &Error{Status: status, Slug: slug, Message: fmt.Sprintf(format, args...)}
}

// Service implements the merchant backend the demo talks to.
type Service struct {
	cfg      config.SandboxConfig
	store    Store
	tokens   *Issuer
	policy   *policy.Engine
	log      *zap.SugaredLogger
	metrics  *Metrics
	validate *validator.Validate
	now      func() time.Time
}

func NewService(cfg config.SandboxConfig, store Store, tokens *Issuer, engine *policy.Engine, log *zap.SugaredLogger, metrics *Metrics) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		cfg: cfg, store: store, tokens: tokens, policy: engine, log: log, metrics: metrics,
		validate: validator.New(), now: time.Now,
	}
}

// IssueToken exchanges client credentials for an access token.
func (s *Service) IssueToken(ctx context.Context, req merchant.AccessTokenRequest) (merchant.AccessToken, error) {
	idOK := subtle.ConstantTimeCompare([]byte(req.ClientID), []byte(s.cfg.ClientID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(req.ClientSecret), []byte(s.cfg.ClientSecret)) == 1
	if !idOK || !secretOK {
		s.metrics.event("access_token", "rejected")
		return merchant.AccessToken{}, fail(http.StatusUnauthorized, "invalid-client", "invalid client")
	}
	scopes := []string{ScopeLink, ScopePayments, scopeRead}
	raw, ttl, err := s.tokens.Mint(req.ClientID, s.cfg.MerchantID, scopes)
	if err != nil {
		return merchant.AccessToken{}, err
	}
	s.metrics.event("access_token", "issued")
	return merchant.AccessToken{
		Token:     raw,
		ExpiresIn: int64(ttl / time.Second),
		Scope:     strings.Join(scopes, " "),
		TokenType: "Bearer",
	}, nil
}

type sessionInput struct {
	First string `validate:"required"`
	Last  string `validate:"required"`
	Email string `validate:"required,email"`
}

// CreateSession opens a linking session for the customer in req.
func (s *Service) CreateSession(ctx context.Context, req merchant.SessionKeyRequest) (merchant.SessionKey, error) {
	tok, err := s.authorize(ctx, req.AccessToken, ScopeLink)
	if err != nil {
		s.metrics.event("session_key", "rejected")
		return merchant.SessionKey{}, err
	}
	if err := s.validate.Struct(sessionInput{First: req.First, Last: req.Last, Email: req.Email}); err != nil {
		s.metrics.event("session_key", "invalid")
		return merchant.SessionKey{}, fail(http.StatusBadRequest, "invalid-request", "%s", describeValidation(err))
	}
	sess := Session{
		Key:       uuid.NewString(),
		ClientID:  tok.Subject(),
		First:     req.First,
		Last:      req.Last,
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return merchant.SessionKey{}, fmt.Errorf("save session: %w", err)
	}
	s.metrics.event("session_key", "issued")
	s.log.Infow("link session created", "client", sess.ClientID)
	return merchant.SessionKey{Key: sess.Key}, nil
}

// Link completes the linking flow for sessionKey. Linking the same session
// twice yields the same customer.
func (s *Service) Link(ctx context.Context, sessionKey string) (Customer, error) {
	sess, err := s.store.Session(ctx, sessionKey)
	if errors.Is(err, ErrNotFound) {
		s.metrics.event("link", "unknown_session")
		return Customer{}, fail(http.StatusNotFound, "unknown-session", "unknown session key")
	}
	if err != nil {
		return Customer{}, fmt.Errorf("load session: %w", err)
	}
	if sess.CustomerID != "" {
		return s.store.Customer(ctx, sess.CustomerID)
	}
	c := Customer{ID: uuid.NewString(), SessionKey: sess.Key, Email: sess.Email, LinkedAt: s.now().UTC()}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return Customer{}, fmt.Errorf("save customer: %w", err)
	}
	sess.CustomerID = c.ID
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return Customer{}, fmt.Errorf("save session: %w", err)
	}
	s.metrics.event("link", "linked")
	s.log.Infow("customer linked", "customer", c.ID)
	return c, nil
}

// Pay charges a linked customer on behalf of the merchant, subject to the payment policy.
func (s *Service) Pay(ctx context.Context, req merchant.PaymentRequest) (merchant.Payment, error) {
	tok, err := s.authorize(ctx, req.AccessToken, ScopePayments)
	if err != nil {
		s.metrics.event("payment", "rejected")
		return merchant.Payment{}, err
	}
	if req.Source.Type != "CUSTOMER" || req.Destination.Type != "MERCHANT" {
		s.metrics.event("payment", "invalid")
		return merchant.Payment{}, fail(http.StatusBadRequest, "invalid-request", "source must be a CUSTOMER and destination a MERCHANT")
	}
	if _, err := s.store.Customer(ctx, req.Source.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.event("payment", "unknown_customer")
			return merchant.Payment{}, fail(http.StatusNotFound, "unknown-customer", "unknown customer")
		}
		return merchant.Payment{}, fmt.Errorf("load customer: %w", err)
	}

	dec := s.policy.Evaluate(ctx,
		map[string]any{
			"amount":      req.Amount.Value,
			"currency":    req.Amount.Currency,
			"destination": req.Destination.ID,
		},
		map[string]any{
			"limit":       s.cfg.PaymentLimit,
			"merchant_id": s.cfg.MerchantID,
		},
	)
	if !dec.Allowed() {
		s.metrics.event("payment", "declined")
		s.log.Infow("payment declined", "reasons", dec.Reasons)
		return merchant.Payment{}, fail(http.StatusUnprocessableEntity, "payment-declined", "payment declined: %s", strings.Join(dec.Reasons, ", "))
	}

	rec := PaymentRecord{
		ID:                uuid.NewString(),
		Status:            paymentPending,
		ClientID:          tok.Subject(),
		ClientReferenceID: req.ClientReferenceID,
		SoftDescriptor:    req.SoftDescriptor,
		Currency:          req.Amount.Currency,
		Amount:            req.Amount.Value,
		CustomerID:        req.Source.ID,
		MerchantID:        req.Destination.ID,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.store.SavePayment(ctx, rec); err != nil {
		return merchant.Payment{}, fmt.Errorf("save payment: %w", err)
	}
	s.metrics.event("payment", "accepted")
	s.log.Infow("payment accepted", "payment", rec.ID, "amount", rec.Amount)
	return merchant.Payment{ID: rec.ID, Status: rec.Status, ClientReferenceID: rec.ClientReferenceID}, nil
}

// Payment looks up a payment made by client. Payments made by other clients
// are reported as unknown.
func (s *Service) Payment(ctx context.Context, client, id string) (PaymentRecord, error) {
	rec, err := s.store.Payment(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && rec.ClientID != client) {
		s.log.Infow("payment lookup miss", "payment", id, "actor", client)
		return PaymentRecord{}, fail(http.StatusNotFound, "unknown-payment", "unknown payment")
	}
	return rec, err
}

func (s *Service) authorize(ctx context.Context, raw, scope string) (jwt.Token, error) {
	if raw == "" {
		return nil, fail(http.StatusUnauthorized, "missing-token", "missing access token")
	}
	tok, err := s.tokens.Verify(ctx, raw)
	if err != nil {
		return nil, fail(http.StatusUnauthorized, "invalid-token", "invalid token")
	}
	if !hasScope(tok, scope) {
		return nil, fail(http.StatusForbidden, "insufficient-scope", "insufficient_scope")
	}
	return tok, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, strings.ToLower(fe.Field())+" is required")
		default:
			parts = append(parts, strings.ToLower(fe.Field())+" is not a valid "+fe.Tag())
		}
	}
	return "invalid session request: " + strings.Join(parts, ", ")
}
