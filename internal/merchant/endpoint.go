package merchant

import (
	"errors"
	"net/http"
	"net/url"

	"linkpay/pkg/config"
)

// Kind identifies one of the merchant backend calls.
type Kind int

const (
	KindAccessToken Kind = iota
	KindSessionKey
	KindPayment
)

func (k Kind) String() string {
	switch k {
	case KindAccessToken:
		return "access_token"
	case KindSessionKey:
		return "session_key"
	case KindPayment:
		return "payment"
	}
	return "unknown"
}

// Endpoint is the closed set of request bodies the backend accepts. The
// unexported method keeps the set closed to this package.
type Endpoint interface {
	Kind() Kind
	endpoint()
}

type AccessTokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type SessionKeyRequest struct {
	First       string `json:"first"`
	Last        string `json:"last"`
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
}

type Amount struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

type Party struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type PaymentRequest struct {
	ClientReferenceID string `json:"clientReferenceId"`
	SoftDescriptor    string `json:"softDescriptor"`
	Amount            Amount `json:"amount"`
	Source            Party  `json:"source"`
	Destination       Party  `json:"destination"`
	AccessToken       string `json:"accessToken"`
}

const (
	CurrencyUSD     = "USD"
	PartyCustomer   = "CUSTOMER"
	PartyMerchant   = "MERCHANT"
	contentTypeJSON = "application/json"
)

// NewPaymentRequest fills the fixed parts of a payment: USD, customer source,
// merchant destination.
func NewPaymentRequest(customerID, merchantID string, value float64, accessToken, referenceID, softDescriptor string) PaymentRequest {
	return PaymentRequest{
		ClientReferenceID: referenceID,
		SoftDescriptor:    softDescriptor,
		Amount:            Amount{Currency: CurrencyUSD, Value: value},
		Source:            Party{ID: customerID, Type: PartyCustomer},
		Destination:       Party{ID: merchantID, Type: PartyMerchant},
		AccessToken:       accessToken,
	}
}

func (AccessTokenRequest) Kind() Kind { return KindAccessToken }
func (SessionKeyRequest) Kind() Kind  { return KindSessionKey }
func (PaymentRequest) Kind() Kind     { return KindPayment }

func (AccessTokenRequest) endpoint() {}
func (SessionKeyRequest) endpoint()  {}
func (PaymentRequest) endpoint()     {}

// Routes holds the base URL and per-call path fragments.
type Routes struct {
	BaseURL         string
	AccessTokenPath string
	SessionKeyPath  string
	PaymentPath     string
}

func RoutesFrom(s config.Settings) Routes {
	return Routes{
		BaseURL:         s.BaseURL,
		AccessTokenPath: s.AccessTokenPath,
		SessionKeyPath:  s.SessionKeyPath,
		PaymentPath:     s.PaymentPath,
	}
}

func (r Routes) path(k Kind) string {
	switch k {
	case KindAccessToken:
		return r.AccessTokenPath
	case KindSessionKey:
		return r.SessionKeyPath
	case KindPayment:
		return r.PaymentPath
	}
	return ""
}

// Descriptor is everything needed to build the HTTP request for one call.
type Descriptor struct {
	Kind    Kind
	BaseURL string
	URL     string
	Method  string
	Header  http.Header
	Params  any
}

// Describe resolves an endpoint against the configured routes. The URL is the
// base URL and path fragment concatenated as-is.
func Describe(routes Routes, ep Endpoint) (Descriptor, error) {
	full := routes.BaseURL + routes.path(ep.Kind())
	u, err := url.Parse(full)
	if err != nil {
		return Descriptor{}, &ConfigurationError{URL: full, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return Descriptor{}, &ConfigurationError{URL: full, Err: errors.New("missing scheme or host")}
	}
	return Descriptor{
		Kind:    ep.Kind(),
		BaseURL: routes.BaseURL,
		URL:     u.String(),
		Method:  http.MethodPost,
		Header:  http.Header{"Content-Type": []string{contentTypeJSON}},
		Params:  ep,
	}, nil
}
