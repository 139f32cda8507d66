package sandbox

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	ScopeLink     = "link"
	ScopePayments = "payments"
	scopeRead     = "payments:read"
)

// Issuer mints and verifies the HS256 access tokens handed out by the
// access-token endpoint.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer uses signingKey, or a random per-process key when it is empty.
func NewIssuer(signingKey, issuer string, ttl time.Duration) (*Issuer, error) {
	key := []byte(signingKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Mint returns a signed token for clientID carrying the merchant id and scopes.
func (i *Issuer) Mint(clientID, merchantID string, scopes []string) (string, time.Duration, error) {
	now := i.now()
	tok, err := jwt.NewBuilder().
		JwtID(uuid.NewString()).
		Issuer(i.issuer).
		Subject(clientID).
		IssuedAt(now).
		Expiration(now.Add(i.ttl)).
		Claim("mid", merchantID).
		Claim("scope", strings.Join(scopes, " ")).
		Build()
	if err != nil {
		return "", 0, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.key))
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), i.ttl, nil
}

// Verify checks signature, issuer and expiry.
func (i *Issuer) Verify(_ context.Context, raw string) (jwt.Token, error) {
	return jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.issuer),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
}

func hasScope(tok jwt.Token, scope string) bool {
	v, ok := tok.Get("scope")
	if !ok {
		return false
	}
	s, _ := v.(string)
	for _, f := range strings.Fields(s) {
		if f == scope {
			return true
		}
	}
	return false
}
